package picker

import (
	"errors"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"stackfield-desktop/src/capture"
)

var errNoApp = errors.New("fyne app is not running")

var (
	windowSize    = fyne.NewSize(800, 600)
	cardSize      = fyne.NewSize(180, 200)
	thumbnailSize = fyne.NewSize(150, 150)
)

// FyneSurface renders the source list in a fyne window. One surface backs one
// session.
type FyneSurface struct {
	app fyne.App

	mu  sync.Mutex
	win fyne.Window
}

// NewFyneSurface returns a surface factory for Picker.
func NewFyneSurface(a fyne.App) func() Surface {
	return func() Surface { return &FyneSurface{app: a} }
}

func (f *FyneSurface) Open(title string, sources []capture.Source, h Handlers) error {
	if f.app == nil {
		return errNoApp
	}
	fyne.DoAndWait(func() {
		w := f.app.NewWindow(title)
		w.Resize(windowSize)
		w.SetFixedSize(true)

		cards := make([]fyne.CanvasObject, 0, len(sources))
		for _, src := range sources {
			cards = append(cards, sourceCard(src, h.OnResult))
		}
		grid := container.NewVScroll(container.NewGridWrap(cardSize, cards...))

		heading := widget.NewLabelWithStyle("Choose what to share", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
		cancel := widget.NewButton("Cancel", func() { h.OnResult("") })
		footer := container.NewHBox(layout.NewSpacer(), cancel)

		w.SetContent(container.NewBorder(heading, footer, nil, nil, grid))
		w.SetOnClosed(func() {
			f.mu.Lock()
			f.win = nil
			f.mu.Unlock()
			h.OnClosed()
		})

		f.mu.Lock()
		f.win = w
		f.mu.Unlock()

		w.CenterOnScreen()
		w.Show()
		w.RequestFocus()
	})
	return nil
}

// Close hides and destroys the window. It is safe to call more than once and
// from inside a window callback.
func (f *FyneSurface) Close() {
	f.mu.Lock()
	w := f.win
	f.win = nil
	f.mu.Unlock()
	if w == nil {
		return
	}
	fyne.Do(w.Close)
}

func sourceCard(src capture.Source, onResult func(string)) fyne.CanvasObject {
	var preview fyne.CanvasObject
	if src.Thumbnail != nil {
		img := canvas.NewImageFromImage(src.Thumbnail)
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(thumbnailSize)
		preview = img
	} else {
		rect := canvas.NewRectangle(color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff})
		rect.SetMinSize(thumbnailSize)
		preview = rect
	}
	id := src.ID
	btn := widget.NewButton(src.Name, func() { onResult(id) })
	btn.Alignment = widget.ButtonAlignCenter
	return container.NewBorder(nil, btn, nil, nil, preview)
}
