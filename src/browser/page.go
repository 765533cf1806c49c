package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/tidwall/gjson"

	"stackfield-desktop/src/clipboard"
	"stackfield-desktop/src/picker"
	"stackfield-desktop/src/screenshare"
	"stackfield-desktop/src/unread"
)

var ErrPageClosed = errors.New("page closed")

// Page is one browser tab: the main app window or a same-site popup. Each
// page is its own display-media context.
type Page struct {
	shell  *Shell
	ctx    context.Context
	cancel context.CancelFunc
	id     target.ID
	name   string
	main   bool

	mu        sync.Mutex
	handler   screenshare.DisplayMediaHandler
	navCtx    context.Context
	navCancel context.CancelFunc
	title     string
}

func newPage(s *Shell, ctx context.Context, cancel context.CancelFunc, name string, main bool) *Page {
	p := &Page{shell: s, ctx: ctx, cancel: cancel, name: name, main: main}
	p.navCtx, p.navCancel = context.WithCancel(ctx)
	return p
}

// Name identifies the page in logs.
func (p *Page) Name() string { return p.name }

// ID is the DevTools target id.
func (p *Page) ID() target.ID { return p.id }

// IsMain reports whether this is the app window.
func (p *Page) IsMain() bool { return p.main }

// SetDisplayMediaHandler installs the handler for getDisplayMedia calls.
// Without one, requests resolve empty right away.
func (p *Page) SetDisplayMediaHandler(h screenshare.DisplayMediaHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// install attaches to the target and sets up bindings and the bootstrap
// script. The script also runs once in the current document.
func (p *Page) install() error {
	script := bootstrapScript(p.shell.policy.Hosts())
	err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, name := range bindings {
			if err := runtime.AddBinding(name).Do(ctx); err != nil {
				return fmt.Errorf("add binding %s: %w", name, err)
			}
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			return fmt.Errorf("add bootstrap script: %w", err)
		}
		return nil
	}), chromedp.Evaluate(script, nil))
	if err != nil {
		return err
	}
	if c := chromedp.FromContext(p.ctx); c != nil && c.Target != nil {
		p.id = c.Target.TargetID
	}
	chromedp.ListenTarget(p.ctx, p.onEvent)
	return nil
}

// onEvent runs on the chromedp reader goroutine and must not block.
func (p *Page) onEvent(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		go p.handleBinding(ev.Name, ev.Payload)
	case *page.EventLoadEventFired:
		go p.shell.emit(Event{Kind: PageLoaded, Page: p})
	case *page.EventFrameNavigated:
		if ev.Frame != nil && ev.Frame.ParentID == "" {
			p.renewNavigation()
		}
	case *runtime.EventConsoleAPICalled:
		if p.shell.debug.Enabled() {
			args := make([]string, 0, len(ev.Args))
			for _, a := range ev.Args {
				if len(a.Value) > 0 {
					args = append(args, string(a.Value))
				} else {
					args = append(args, a.Description)
				}
			}
			p.shell.debug.Log(fmt.Sprintf("[page %s] console.%s", p.name, ev.Type), args)
		}
	}
}

// renewNavigation cancels requests tied to the previous document.
func (p *Page) renewNavigation() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navCancel()
	p.navCtx, p.navCancel = context.WithCancel(p.ctx)
}

func (p *Page) handleBinding(name, payload string) {
	if !gjson.Valid(payload) {
		log.Printf("browser: %s: ignoring malformed payload from %s", name, p.name)
		return
	}
	switch name {
	case bindingDisplayMedia:
		p.displayMedia(gjson.Get(payload, "id").String())
	case bindingClipboard:
		ev := Event{Kind: ClipboardImage, Page: p, ReplyID: gjson.Get(payload, "id").String()}
		if gjson.Get(payload, "test").Bool() {
			ev.Kind = ClipboardTest
		} else {
			ev.DataURL = gjson.Get(payload, "dataUrl").String()
		}
		p.shell.emit(ev)
	case bindingTitle:
		title := gjson.Get(payload, "title").String()
		p.mu.Lock()
		p.title = title
		p.mu.Unlock()
		p.shell.emit(Event{Kind: TitleChanged, Page: p, Title: title})
	case bindingFocus:
		p.shell.emit(Event{Kind: Focused, Page: p})
	case bindingExternal:
		p.shell.OpenExternal(gjson.Get(payload, "url").String())
	}
}

func (p *Page) displayMedia(id string) {
	p.mu.Lock()
	h, ctx := p.handler, p.navCtx
	p.mu.Unlock()

	if h == nil {
		p.settle(id, picker.Result{})
		return
	}
	h(ctx, func(r picker.Result) { p.settle(id, r) })
}

// ReplyClipboard answers a ClipboardImage or ClipboardTest event.
func (p *Page) ReplyClipboard(id string, res clipboard.Result) {
	p.settle(id, res)
}

func (p *Page) settle(id string, value any) {
	expr, err := settleExpr(id, value)
	if err != nil {
		log.Printf("browser: %s: %v", p.name, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var delivered bool
	if err := p.run(ctx, chromedp.Evaluate(expr, &delivered)); err != nil {
		log.Printf("browser: %s: reply %s not delivered: %v", p.name, id, err)
		return
	}
	if !delivered {
		p.shell.debug.Log("reply for stale request", id, "on", p.name)
	}
}

// run executes actions on this page, bounded by both ctx and the page.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return ErrPageClosed
	}
	rctx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(rctx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// QueryUnreadIndicator reads the unread badge from the page DOM.
func (p *Page) QueryUnreadIndicator(ctx context.Context) (bool, error) {
	var found bool
	if err := p.run(ctx, chromedp.Evaluate(unreadQuery, &found)); err != nil {
		return false, &unread.DomQueryError{Err: err}
	}
	return found, nil
}

// Title returns the live document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.title != "" {
			return p.title, nil
		}
		return "", err
	}
	return title, nil
}

// Reload reloads the page.
func (p *Page) Reload(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}

// setWindowState minimizes or restores the page's browser window.
func (p *Page) setWindowState(ctx context.Context, state cdpbrowser.WindowState) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		bctx := cdp.WithExecutor(ctx, c.Browser)
		windowID, _, err := cdpbrowser.GetWindowForTarget().WithTargetID(p.id).Do(bctx)
		if err != nil {
			return fmt.Errorf("get window: %w", err)
		}
		return cdpbrowser.SetWindowBounds(windowID, &cdpbrowser.Bounds{WindowState: state}).Do(bctx)
	}))
}

// Focus restores and raises the window.
func (p *Page) Focus(ctx context.Context) error {
	if err := p.setWindowState(ctx, cdpbrowser.WindowStateNormal); err != nil {
		return err
	}
	return p.run(ctx, page.BringToFront())
}

// Minimize hides the window in the task bar.
func (p *Page) Minimize(ctx context.Context) error {
	return p.setWindowState(ctx, cdpbrowser.WindowStateMinimized)
}

// Close closes the tab.
func (p *Page) Close() {
	p.mu.Lock()
	p.navCancel()
	p.mu.Unlock()
	p.cancel()
}
