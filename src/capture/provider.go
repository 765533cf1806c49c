package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/kbinani/screenshot"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// DefaultThumbnailSize bounds both thumbnail dimensions.
const DefaultThumbnailSize = 150

// Provider lists the screens and windows available for capture.
type Provider interface {
	ListSources(ctx context.Context) ([]Source, error)
}

// Display is one active monitor in virtual-screen coordinates.
type Display struct {
	Index  int
	Bounds image.Rectangle
}

// ScreenSource enumerates displays and grabs pixels from the virtual screen.
type ScreenSource interface {
	Displays() []Display
	CaptureRect(r image.Rectangle) (image.Image, error)
}

// Window is a top-level window reported by the window system.
type Window struct {
	ID     uint32
	Title  string
	Bounds image.Rectangle
}

// WindowLister enumerates top-level windows.
type WindowLister interface {
	ListWindows(ctx context.Context) ([]Window, error)
}

// DesktopProvider requests screens and windows in one call and renders a
// bounded thumbnail for each.
type DesktopProvider struct {
	Screens       ScreenSource
	Windows       WindowLister
	ThumbnailSize int
}

// NewDesktopProvider returns a provider backed by the OS screen and window APIs.
func NewDesktopProvider(thumbnailSize int) *DesktopProvider {
	if thumbnailSize <= 0 {
		thumbnailSize = DefaultThumbnailSize
	}
	return &DesktopProvider{
		Screens:       kbinaniScreens{},
		Windows:       newWindowLister(),
		ThumbnailSize: thumbnailSize,
	}
}

type pending struct {
	src    Source
	bounds image.Rectangle
}

// ListSources returns screens first, then windows. It fails only when nothing
// could be enumerated at all; a broken window lister with working displays
// still yields the screens.
func (p *DesktopProvider) ListSources(ctx context.Context) ([]Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, &EnumerationError{Err: err}
	}

	var items []pending
	var displays []Display
	if p.Screens != nil {
		displays = p.Screens.Displays()
	}
	for _, d := range displays {
		name := fmt.Sprintf("Screen %d", d.Index+1)
		if len(displays) == 1 {
			name = "Entire Screen"
		}
		items = append(items, pending{src: Source{ID: screenID(d.Index), Name: name}, bounds: d.Bounds})
	}

	var windowErr error
	if p.Windows != nil {
		windows, err := p.Windows.ListWindows(ctx)
		if err != nil {
			windowErr = err
			log.Printf("capture: window enumeration failed: %v", err)
		}
		for _, w := range windows {
			if w.Title == "" {
				continue
			}
			items = append(items, pending{src: Source{ID: windowID(w.ID), Name: w.Title}, bounds: w.Bounds})
		}
	}

	if len(items) == 0 {
		if windowErr != nil {
			return nil, &EnumerationError{Err: windowErr}
		}
		if p.Screens != nil && len(displays) == 0 {
			return nil, &EnumerationError{Err: errors.New("no active displays found")}
		}
		return nil, nil
	}

	items = dedupe(items)
	p.renderThumbnails(ctx, items)

	sources := make([]Source, len(items))
	for i, it := range items {
		sources[i] = it.src
	}
	return sources, nil
}

func dedupe(items []pending) []pending {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if seen[it.src.ID] {
			continue
		}
		seen[it.src.ID] = true
		out = append(out, it)
	}
	return out
}

func (p *DesktopProvider) renderThumbnails(ctx context.Context, items []pending) {
	if p.Screens == nil {
		return
	}
	size := p.ThumbnailSize
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range items {
		if items[i].bounds.Empty() {
			continue
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			img, err := p.Screens.CaptureRect(items[i].bounds)
			if err != nil {
				log.Printf("capture: thumbnail for %s failed: %v", items[i].src.ID, err)
				return nil
			}
			items[i].src.Thumbnail = Thumbnail(img, size)
			return nil
		})
	}
	_ = g.Wait()
}

// Thumbnail scales img down to fit a size×size box, keeping its aspect ratio.
// Images already inside the box are copied unscaled.
func Thumbnail(img image.Image, size int) image.Image {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || size <= 0 {
		return nil
	}
	scale := 1.0
	if w > size || h > size {
		scale = min(float64(size)/float64(w), float64(size)/float64(h))
	}
	tw := max(1, int(float64(w)*scale))
	th := max(1, int(float64(h)*scale))
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

type kbinaniScreens struct{}

func (kbinaniScreens) Displays() []Display {
	n := screenshot.NumActiveDisplays()
	out := make([]Display, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Display{Index: i, Bounds: screenshot.GetDisplayBounds(i)})
	}
	return out
}

func (kbinaniScreens) CaptureRect(r image.Rectangle) (image.Image, error) {
	img, err := screenshot.CaptureRect(r)
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return img, nil
}
