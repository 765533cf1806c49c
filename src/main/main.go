package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"stackfield-desktop/src/browser"
	"stackfield-desktop/src/capture"
	"stackfield-desktop/src/config"
	"stackfield-desktop/src/eventloop"
	"stackfield-desktop/src/logutil"
	"stackfield-desktop/src/notification"
	"stackfield-desktop/src/picker"
	"stackfield-desktop/src/runtimeinit"
	"stackfield-desktop/src/scheduler"
	"stackfield-desktop/src/screenshare"
	"stackfield-desktop/src/singleinstance"
	"stackfield-desktop/src/tray"
	"stackfield-desktop/src/unread"
)

const appID = "com.stackfield.desktop"

type mainOptions struct {
	debug    bool
	startURL string
	envFile  string
}

var legacyLongFlags = []string{"debug", "url", "env-file"}

// normalizeLegacyArgs accepts single-dash long flags (-debug) from older
// shortcuts and rewrites them for cobra.
func normalizeLegacyArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 1; i < len(out); i++ {
		arg := out[i]
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name, _, _ := strings.Cut(arg[1:], "=")
		for _, f := range legacyLongFlags {
			if name == f {
				out[i] = "-" + arg
				break
			}
		}
	}
	return out
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           config.AppName,
		Short:         "Stackfield desktop shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging for screen sharing, notifications and clipboard")
	cmd.Flags().StringVar(&opts.startURL, "url", "", "Override START_URL")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file")
	return cmd
}

func main() {
	enableDPIAwareness()

	os.Args = normalizeLegacyArgs(os.Args)
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// handleSecondInstance asks a running instance to show its window. It
// returns true when one answered and this process should exit.
func handleSecondInstance(ctx context.Context, client singleinstance.Client) bool {
	err := client.Activate(ctx)
	switch {
	case err == nil:
		log.Printf("Resident instance activated, exiting")
		return true
	case errors.Is(err, singleinstance.ErrNoResident):
		return false
	default:
		// Something holds the port but did not take the request.
		log.Printf("Activation failed: %v", err)
		return true
	}
}

func run(opts *mainOptions) error {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			EnvFileOverride:  opts.envFile,
			StartURLOverride: opts.startURL,
			Debug:            opts.debug,
		},
		SetupLogging:      setupLogging,
		ShowBlockingError: true,
	})
	if err != nil {
		return err
	}
	cfg := rt.Config

	actx, cancelActivate := context.WithTimeout(context.Background(), 3*time.Second)
	activated := handleSecondInstance(actx, singleinstance.NewClient())
	cancelActivate()
	if activated {
		return nil
	}

	logMonitorConfiguration()

	a := app.NewWithID(appID)
	// The driver quits once its last window closes; picker windows come and
	// go, so one hidden window stays for the life of the process.
	keepAlive := a.NewWindow(config.AppName)
	keepAlive.SetCloseIntercept(func() {})

	coord := screenshare.New(
		capture.NewDesktopProvider(cfg.ThumbnailSize),
		picker.New(picker.NewFyneSurface(a), rt.Debug),
		rt.Debug,
	)

	shell := browser.New(browser.Options{
		StartURL:     cfg.StartURL,
		AllowedHosts: cfg.AllowedHosts,
		ChromePath:   cfg.ChromePath,
		ProfileDir:   cfg.ProfileDir,
	}, rt.Debug)
	shell.OnPage(func(p *browser.Page) { coord.Register(p) })

	poller := unread.New(shell, scheduler.New(), unread.Options{
		InitialDelay:  cfg.PollInitialDelay,
		Interval:      cfg.PollInterval,
		TitleDebounce: cfg.TitleDebounce,
		FocusDebounce: cfg.FocusDebounce,
	}, rt.Debug)

	var loop *eventloop.Loop
	ind := tray.New(tray.Config{
		IconPath:       cfg.IconPath,
		AlertIconPath:  cfg.AlertIconPath,
		DebugEnabled:   cfg.Debug,
		OnToggleWindow: func() { loop.Post(eventloop.ToggleWindow) },
		OnReload:       func() { loop.Post(eventloop.Reload) },
		OnDebug: func(enabled bool) {
			if enabled {
				loop.Post(eventloop.DebugOn)
			} else {
				loop.Post(eventloop.DebugOff)
			}
		},
		OnQuit: func() { loop.Post(eventloop.Quit) },
	})
	desk := notification.NewDesktop(cfg.AlertIconPath)
	poller.OnChange(ind.Apply)
	poller.OnChange(desk.Apply)

	loop = eventloop.New(eventloop.Deps{
		Window:    shell,
		Poller:    poller,
		Clipboard: rt.Clipboard,
		Server:    singleinstance.NewServer(),
		Debug:     rt.Debug,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ind.Install(a); err != nil {
		log.Printf("Tray unavailable: %v", err)
	}
	go func() {
		if err := shell.Start(ctx); err != nil {
			log.Printf("Failed to open %s: %v", cfg.StartURL, err)
		}
	}()

	loopErr := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		loopErr <- err

		poller.Stop()
		shell.Close()
		fyne.Do(a.Quit)
	}()

	log.Printf("Stackfield desktop started")
	a.Run()

	if err := <-loopErr; err != nil {
		notification.ShowBlockingError("Stackfield", fmt.Sprintf("Stopped unexpectedly: %v", err))
		return err
	}
	log.Printf("Stackfield desktop exited")
	return nil
}

func setupLogging(enableFileLogging bool) {
	logutil.Setup(enableFileLogging)
}
