package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
)

const iconSize = 16

var (
	brandBlue = color.RGBA{R: 0x1f, G: 0x6f, B: 0xd1, A: 0xff}
	alertRed  = color.RGBA{R: 0xe0, G: 0x2b, B: 0x2b, A: 0xff}
)

// loadIcon reads a PNG icon from path, or returns fallback when path is empty
// or unreadable.
func loadIcon(path string, fallback func() []byte) []byte {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			return data
		}
		log.Printf("tray: cannot read icon %s: %v; using built-in icon", path, err)
	}
	return fallback()
}

// NormalIcon is a filled blue disc.
func NormalIcon() []byte { return renderIcon(false) }

// AlertIcon is the normal icon with a red badge in the top right corner.
func AlertIcon() []byte { return renderIcon(true) }

func renderIcon(badge bool) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	paintDisc(img, 7.5, 7.5, 7, brandBlue)
	if badge {
		paintDisc(img, 11.5, 4.5, 4, alertRed)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Printf("tray: encode icon: %v", err)
		return nil
	}
	return buf.Bytes()
}

func paintDisc(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}
