package clipboard

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/url"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned for data URLs that do not hold a decodable,
// non-empty image.
var ErrEmptyImage = errors.New("image is empty or invalid")

// DecodeImageDataURL decodes a data:image/... URL and returns the image
// re-encoded as PNG, which is the only image format the clipboard accepts.
func DecodeImageDataURL(dataURL string) ([]byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data URL", ErrEmptyImage)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload", ErrEmptyImage)
	}
	params := strings.Split(meta, ";")
	if !strings.HasPrefix(params[0], "image/") {
		return nil, fmt.Errorf("%w: media type %q", ErrEmptyImage, params[0])
	}

	var raw []byte
	if params[len(params)-1] == "base64" {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmptyImage, err)
		}
		raw = b
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmptyImage, err)
		}
		raw = []byte(s)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyImage, err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if format == "png" {
		return raw, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
