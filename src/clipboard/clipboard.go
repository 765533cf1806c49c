// Package clipboard bridges page clipboard writes to the system clipboard.
// Text and PNG images go through golang.design/x/clipboard; on Linux image
// writes fall back to xclip or wl-copy when the native write does not stick.
package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"golang.design/x/clipboard"

	"stackfield-desktop/src/logutil"
)

const (
	MethodNative = "native"
	MethodSystem = "system"

	testText = "Stackfield clipboard test"
)

// Result is reported back to the page after a clipboard request.
type Result struct {
	Success bool   `json:"success"`
	Method  string `json:"method,omitempty"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

func failure(err error) Result { return Result{Error: err.Error()} }

// System is the native clipboard.
type System interface {
	Write(format clipboard.Format, data []byte)
	Read(format clipboard.Format) []byte
}

type nativeClipboard struct{}

func (nativeClipboard) Write(format clipboard.Format, data []byte) {
	<-clipboard.Write(format, data)
}

func (nativeClipboard) Read(format clipboard.Format) []byte { return clipboard.Read(format) }

// runFunc runs name with args, feeding stdin.
type runFunc func(ctx context.Context, stdin []byte, name string, args ...string) error

func runCommand(ctx context.Context, stdin []byte, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// Manager serializes clipboard writes.
type Manager struct {
	debug *logutil.DebugLogger

	writeMu  sync.Mutex
	native   System
	run      runFunc
	lookPath func(string) (string, error)
	goos     string
	timeout  time.Duration
}

// New returns a Manager. Call Init before the first write.
func New(debug *logutil.DebugLogger) *Manager {
	return &Manager{
		debug:    debug,
		run:      runCommand,
		lookPath: exec.LookPath,
		goos:     runtime.GOOS,
		timeout:  5 * time.Second,
	}
}

// Init initializes the native clipboard. When it is unavailable the manager
// keeps working with the command line fallbacks only.
func (m *Manager) Init() error {
	if err := clipboard.Init(); err != nil {
		m.debug.ClipboardEvent("native clipboard unavailable", err)
		return fmt.Errorf("init clipboard: %w", err)
	}
	m.native = nativeClipboard{}
	m.debug.ClipboardEvent("xclip available", m.has("xclip"))
	m.debug.ClipboardEvent("wl-clipboard available", m.has("wl-copy"))
	return nil
}

func (m *Manager) has(tool string) bool {
	_, err := m.lookPath(tool)
	return err == nil
}

// WriteText performs a mutex-guarded clipboard write.
func (m *Manager) WriteText(text string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.native == nil {
		return errors.New("clipboard not initialized")
	}
	m.native.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Test writes a known string and reads it back.
func (m *Manager) Test() Result {
	if err := m.WriteText(testText); err != nil {
		m.debug.Error("Clipboard test failed:", err)
		return failure(err)
	}
	got := string(m.native.Read(clipboard.FmtText))
	m.debug.ClipboardEvent("test success", got)
	return Result{Success: true, Method: MethodNative, Text: got}
}

// WriteImageDataURL copies an image received from the page as a data URL.
func (m *Manager) WriteImageDataURL(ctx context.Context, dataURL string) Result {
	m.debug.ClipboardEvent("image request", logutil.Truncate(dataURL, 48))
	pngData, err := DecodeImageDataURL(dataURL)
	if err != nil {
		m.debug.Error("Clipboard image failed:", err)
		return failure(err)
	}
	res := m.WriteImage(ctx, pngData)
	if !res.Success {
		log.Printf("clipboard: image write failed: %s", res.Error)
	}
	return res
}

// WriteImage writes PNG bytes, verifying the native write by reading it back.
func (m *Manager) WriteImage(ctx context.Context, pngData []byte) Result {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.native != nil {
		m.native.Write(clipboard.FmtImage, pngData)
		if len(m.native.Read(clipboard.FmtImage)) > 0 {
			m.debug.ClipboardEvent("native clipboard success")
			return Result{Success: true, Method: MethodNative}
		}
	}

	if m.goos != "linux" {
		return failure(errors.New("all clipboard methods failed"))
	}
	if err := m.writeWithTools(ctx, pngData, "image/png"); err != nil {
		return failure(err)
	}
	return Result{Success: true, Method: MethodSystem}
}

// writeWithTools tries xclip, then wl-copy.
func (m *Manager) writeWithTools(ctx context.Context, data []byte, mime string) error {
	hasX, hasWl := m.has("xclip"), m.has("wl-copy")
	if !hasX && !hasWl {
		return errors.New("no system clipboard utilities available, install xclip or wl-clipboard")
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var errs []error
	if hasX {
		err := m.run(ctx, data, "xclip", "-selection", "clipboard", "-t", mime)
		if err == nil {
			m.debug.ClipboardEvent("xclip success")
			return nil
		}
		errs = append(errs, err)
	}
	if hasWl {
		err := m.run(ctx, data, "wl-copy", "--type", mime)
		if err == nil {
			m.debug.ClipboardEvent("wl-copy success")
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
