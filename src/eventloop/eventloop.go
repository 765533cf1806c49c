package eventloop

import (
	"context"
	"log"

	"stackfield-desktop/src/browser"
	"stackfield-desktop/src/clipboard"
	"stackfield-desktop/src/logutil"
	"stackfield-desktop/src/singleinstance"
	"stackfield-desktop/src/worker"
)

// Window is the app window as seen by the loop.
type Window interface {
	Events() <-chan browser.Event
	Show(ctx context.Context) error
	Toggle(ctx context.Context) error
	Reload(ctx context.Context) error
}

// Poller receives page signals that should trigger an unread check.
type Poller interface {
	Start(ctx context.Context)
	TitleChanged()
	Focused()
}

// Clipboard serves the page's clipboard requests.
type Clipboard interface {
	WriteImageDataURL(ctx context.Context, dataURL string) clipboard.Result
	Test() clipboard.Result
}

// Command is a user action posted from the tray.
type Command int

const (
	ToggleWindow Command = iota
	ShowWindow
	Reload
	DebugOn
	DebugOff
	Quit
)

// Deps are the collaborators the loop dispatches to. Server may be nil.
type Deps struct {
	Window    Window
	Poller    Poller
	Clipboard Clipboard
	Server    singleinstance.Server
	Debug     *logutil.DebugLogger
}

// Loop is the single-threaded coordinator for page events, tray commands and
// second-instance activations. Blocking work runs on the worker pool and
// posts back through results.
type Loop struct {
	deps     Deps
	pool     *worker.Pool
	results  chan result
	commands chan Command
	reply    func(ev browser.Event, res clipboard.Result)
}

type result struct {
	ev  browser.Event
	res clipboard.Result
}

// New creates a new event loop.
func New(deps Deps) *Loop {
	return &Loop{
		deps:     deps,
		pool:     worker.New(2, 4),
		results:  make(chan result, 4),
		commands: make(chan Command, 8),
		reply: func(ev browser.Event, res clipboard.Result) {
			if ev.Page != nil {
				ev.Page.ReplyClipboard(ev.ReplyID, res)
			}
		},
	}
}

// Post queues a command without blocking. Commands arriving while the queue
// is full are dropped.
func (l *Loop) Post(cmd Command) {
	select {
	case l.commands <- cmd:
	default:
		log.Printf("eventloop: command queue full, dropping %d", cmd)
	}
}

// Run processes events until ctx is cancelled or Quit is posted.
func (l *Loop) Run(ctx context.Context) error {
	defer l.pool.Close()

	reqCh := make(chan singleinstance.Conn, 4)
	if l.deps.Server != nil {
		if err := l.deps.Server.Start(ctx); err != nil {
			return err
		}
		defer l.deps.Server.Close()
		if p := l.deps.Server.Port(); p > 0 {
			log.Printf("Resident listening on 127.0.0.1:%d", p)
		}
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			for {
				conn, err := l.deps.Server.Next(ctx)
				if err != nil {
					return
				}
				select {
				case reqCh <- conn:
				case <-stop:
					_ = conn.Close()
					return
				}
			}
		}()
	}

	var events <-chan browser.Event
	if l.deps.Window != nil {
		events = l.deps.Window.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			l.handleEvent(ctx, ev)
		case cmd := <-l.commands:
			if cmd == Quit {
				log.Printf("eventloop: quit")
				return nil
			}
			l.handleCommand(ctx, cmd)
		case conn := <-reqCh:
			l.handleConn(ctx, conn)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleEvent(ctx context.Context, ev browser.Event) {
	switch ev.Kind {
	case browser.PageLoaded:
		if ev.Main && l.deps.Poller != nil {
			l.deps.Poller.Start(ctx)
		}
	case browser.TitleChanged:
		if ev.Main && l.deps.Poller != nil {
			l.deps.Poller.TitleChanged()
		}
	case browser.Focused:
		if ev.Main && l.deps.Poller != nil {
			l.deps.Poller.Focused()
		}
	case browser.ClipboardImage, browser.ClipboardTest:
		l.startClipboard(ctx, ev)
	case browser.PageClosed:
		log.Printf("eventloop: page closed (main=%v)", ev.Main)
	}
}

func (l *Loop) startClipboard(ctx context.Context, ev browser.Event) {
	if l.deps.Clipboard == nil {
		l.reply(ev, clipboard.Result{Error: "clipboard unavailable"})
		return
	}
	submitted := l.pool.Submit(ctx, ev.Kind.String(), func(jctx context.Context) {
		var res clipboard.Result
		if ev.Kind == browser.ClipboardTest {
			res = l.deps.Clipboard.Test()
		} else {
			res = l.deps.Clipboard.WriteImageDataURL(jctx, ev.DataURL)
		}
		select {
		case l.results <- result{ev: ev, res: res}:
		case <-jctx.Done():
		}
	})
	if !submitted {
		l.reply(ev, clipboard.Result{Error: "Busy, please retry"})
	}
}

func (l *Loop) handleResult(r result) {
	l.deps.Debug.ClipboardEvent("result", r.ev.Kind.String(), r.res.Success, r.res.Method)
	l.reply(r.ev, r.res)
}

func (l *Loop) handleCommand(ctx context.Context, cmd Command) {
	switch cmd {
	case ToggleWindow:
		l.windowJob(ctx, "toggle-window", l.deps.Window.Toggle)
	case ShowWindow:
		l.windowJob(ctx, "show-window", l.deps.Window.Show)
	case Reload:
		l.windowJob(ctx, "reload", l.deps.Window.Reload)
	case DebugOn:
		l.deps.Debug.SetEnabled(true)
	case DebugOff:
		l.deps.Debug.SetEnabled(false)
	}
}

// windowJob runs a window operation off the loop; relaunching the browser
// can take seconds.
func (l *Loop) windowJob(ctx context.Context, name string, op func(context.Context) error) {
	if l.deps.Window == nil {
		return
	}
	l.pool.Submit(ctx, name, func(jctx context.Context) {
		if err := op(jctx); err != nil {
			log.Printf("eventloop: %s: %v", name, err)
		}
	})
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	defer conn.Close()
	switch conn.Request().Command {
	case singleinstance.CommandShow:
		log.Printf("eventloop: second instance asked to show the window")
		l.handleCommand(ctx, ShowWindow)
		_ = conn.RespondSuccess()
	default:
		_ = conn.RespondError("unknown command")
	}
}
