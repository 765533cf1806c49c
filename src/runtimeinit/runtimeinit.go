package runtimeinit

import (
	"fmt"
	"log"
	"net/url"

	"stackfield-desktop/src/clipboard"
	"stackfield-desktop/src/config"
	"stackfield-desktop/src/logutil"
	"stackfield-desktop/src/notification"
)

type Options struct {
	LoadOptions       config.LoadOptions
	SetupLogging      func(bool)
	ShowBlockingError bool
}

// Runtime holds what every entry point needs after bootstrap.
type Runtime struct {
	Config    *config.Config
	Debug     *logutil.DebugLogger
	Clipboard *clipboard.Manager
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	if err := validateStartURL(cfg.StartURL); err != nil {
		if opts.ShowBlockingError {
			notification.ShowBlockingError("Invalid configuration", fmt.Sprintf("%v\n\nPlease check START_URL in your .env file.", err))
		}
		return nil, err
	}

	debug := logutil.NewDebugLogger(cfg.Debug)

	clip := clipboard.New(debug)
	if err := clip.Init(); err != nil {
		// Image copies can still go through xclip or wl-copy.
		log.Printf("Clipboard: %v", err)
	}

	log.Printf("Start URL: %s", cfg.StartURL)
	log.Printf("Allowed hosts: %v", cfg.AllowedHosts)
	if cfg.EnvPath != "" {
		log.Printf("Configuration file: %s", cfg.EnvPath)
	}

	return &Runtime{Config: cfg, Debug: debug, Clipboard: clip}, nil
}

func validateStartURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("START_URL %q is not a valid URL: %w", raw, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("START_URL %q must be an http(s) URL", raw)
	}
	return nil
}
