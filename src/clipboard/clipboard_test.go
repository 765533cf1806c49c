package clipboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.design/x/clipboard"
)

type memClipboard struct {
	data       map[clipboard.Format][]byte
	dropImages bool
}

func (m *memClipboard) Write(format clipboard.Format, data []byte) {
	if m.data == nil {
		m.data = map[clipboard.Format][]byte{}
	}
	if format == clipboard.FmtImage && m.dropImages {
		return
	}
	m.data[format] = data
}

func (m *memClipboard) Read(format clipboard.Format) []byte { return m.data[format] }

type call struct {
	name string
	args []string
}

type fakeTools struct {
	installed map[string]bool
	fail      map[string]bool
	calls     []call
}

func (f *fakeTools) lookPath(name string) (string, error) {
	if f.installed[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("not found")
}

func (f *fakeTools) run(_ context.Context, _ []byte, name string, args ...string) error {
	f.calls = append(f.calls, call{name, args})
	if f.fail[name] {
		return errors.New(name + " failed")
	}
	return nil
}

func newTestManager(native System, tools *fakeTools, goos string) *Manager {
	m := New(nil)
	m.native = native
	m.run = tools.run
	m.lookPath = tools.lookPath
	m.goos = goos
	return m
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestDecodeImageDataURL(t *testing.T) {
	pngData := encodePNG(t, 4, 3)

	got, err := DecodeImageDataURL(dataURL("image/png", pngData))
	require.NoError(t, err)
	assert.Equal(t, pngData, got)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil))
	got, err = DecodeImageDataURL(dataURL("image/jpeg", jpg.Bytes()))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(got))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestDecodeImageDataURLRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not a data url": "https://example.com/a.png",
		"no payload":     "data:image/png;base64",
		"not an image":   "data:text/plain;base64,aGVsbG8=",
		"bad base64":     "data:image/png;base64,!!!",
		"empty payload":  "data:image/png;base64,",
		"garbage bytes":  dataURL("image/png", []byte("definitely not a png")),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeImageDataURL(in)
			assert.ErrorIs(t, err, ErrEmptyImage)
		})
	}
}

func TestWriteImageNative(t *testing.T) {
	mem := &memClipboard{}
	tools := &fakeTools{}
	m := newTestManager(mem, tools, "linux")

	res := m.WriteImageDataURL(context.Background(), dataURL("image/png", encodePNG(t, 2, 2)))
	assert.Equal(t, Result{Success: true, Method: MethodNative}, res)
	assert.Empty(t, tools.calls)
	assert.NotEmpty(t, mem.Read(clipboard.FmtImage))
}

func TestWriteImageFallsBackToXclip(t *testing.T) {
	tools := &fakeTools{installed: map[string]bool{"xclip": true, "wl-copy": true}}
	m := newTestManager(&memClipboard{dropImages: true}, tools, "linux")

	res := m.WriteImage(context.Background(), encodePNG(t, 2, 2))
	assert.Equal(t, Result{Success: true, Method: MethodSystem}, res)
	require.Len(t, tools.calls, 1)
	assert.Equal(t, "xclip", tools.calls[0].name)
	assert.Equal(t, []string{"-selection", "clipboard", "-t", "image/png"}, tools.calls[0].args)
}

func TestWriteImageFallsBackToWlCopy(t *testing.T) {
	tools := &fakeTools{
		installed: map[string]bool{"xclip": true, "wl-copy": true},
		fail:      map[string]bool{"xclip": true},
	}
	m := newTestManager(&memClipboard{dropImages: true}, tools, "linux")

	res := m.WriteImage(context.Background(), encodePNG(t, 2, 2))
	assert.True(t, res.Success)
	require.Len(t, tools.calls, 2)
	assert.Equal(t, "wl-copy", tools.calls[1].name)
}

func TestWriteImageNoTools(t *testing.T) {
	m := newTestManager(&memClipboard{dropImages: true}, &fakeTools{}, "linux")
	res := m.WriteImage(context.Background(), encodePNG(t, 2, 2))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "xclip or wl-clipboard")
}

func TestWriteImageNonLinuxFailure(t *testing.T) {
	tools := &fakeTools{installed: map[string]bool{"xclip": true}}
	m := newTestManager(&memClipboard{dropImages: true}, tools, "windows")
	res := m.WriteImage(context.Background(), encodePNG(t, 2, 2))
	assert.False(t, res.Success)
	assert.Empty(t, tools.calls)
}

func TestWriteImageDataURLInvalid(t *testing.T) {
	m := newTestManager(&memClipboard{}, &fakeTools{}, "linux")
	res := m.WriteImageDataURL(context.Background(), "data:image/png;base64,")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrEmptyImage.Error())
}

func TestTestRoundTrip(t *testing.T) {
	m := newTestManager(&memClipboard{}, &fakeTools{}, "linux")
	assert.Equal(t, Result{Success: true, Method: MethodNative, Text: testText}, m.Test())

	uninit := newTestManager(nil, &fakeTools{}, "linux")
	assert.False(t, uninit.Test().Success)
}
