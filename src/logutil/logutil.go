package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
)

const (
	logFileName  = "stackfield_desktop.log"
	maxSizeBytes = 10 * 1024 * 1024
	maxArchives  = 3
)

// Setup sends the standard logger to stdout, and also to a rotating
// stackfield_desktop.log in the working directory when file logging is on.
func Setup(enableFileLogging bool) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if !enableFileLogging {
		log.SetOutput(os.Stdout)
		return
	}
	w, err := openRotating(logFileName, maxSizeBytes, maxArchives)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		log.SetOutput(os.Stdout)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, w))
	log.Printf("File logging enabled: %s", logFileName)
}

// rotatingWriter appends to path and shifts it to path.1 .. path.<keep> once
// a write would take it past limit. The oldest archive is dropped. Callers
// serialize writes; the standard logger does.
type rotatingWriter struct {
	path  string
	limit int64
	keep  int
	f     *os.File
	size  int64
}

func openRotating(path string, limit int64, keep int) (*rotatingWriter, error) {
	w := &rotatingWriter{path: path, limit: limit, keep: keep}
	if st, err := os.Stat(path); err == nil && st.Size() > limit {
		w.shift()
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.size = f, st.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	if w.size > 0 && w.size+int64(len(p)) > w.limit {
		_ = w.f.Close()
		w.shift()
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) shift() {
	_ = os.Remove(w.archive(w.keep))
	for i := w.keep - 1; i >= 1; i-- {
		_ = os.Rename(w.archive(i), w.archive(i+1))
	}
	_ = os.Rename(w.path, w.archive(1))
}

func (w *rotatingWriter) archive(n int) string { return fmt.Sprintf("%s.%d", w.path, n) }

func (w *rotatingWriter) Close() error { return w.f.Close() }

// Truncate shortens s for log lines.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
