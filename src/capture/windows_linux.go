//go:build linux

package capture

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// x11Lister reads the EWMH client list from the root window.
type x11Lister struct{}

func newWindowLister() WindowLister { return x11Lister{} }

func (x11Lister) ListWindows(ctx context.Context) ([]Window, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}
	defer conn.Close()

	root := xproto.Setup(conn).DefaultScreen(conn).Root
	clientList, err := internAtom(conn, "_NET_CLIENT_LIST")
	if err != nil {
		return nil, err
	}
	netWMName, err := internAtom(conn, "_NET_WM_NAME")
	if err != nil {
		return nil, err
	}
	utf8String, err := internAtom(conn, "UTF8_STRING")
	if err != nil {
		return nil, err
	}

	reply, err := xproto.GetProperty(conn, false, root, clientList, xproto.AtomWindow, 0, math.MaxUint32).Reply()
	if err != nil {
		return nil, fmt.Errorf("read _NET_CLIENT_LIST: %w", err)
	}

	var windows []Window
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		win := xproto.Window(xgb.Get32(reply.Value[i:]))
		title := windowTitle(conn, win, netWMName, utf8String)
		windows = append(windows, Window{
			ID:     uint32(win),
			Title:  title,
			Bounds: windowBounds(conn, root, win),
		})
	}
	return windows, nil
}

func internAtom(conn *xgb.Conn, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern atom %s: %w", name, err)
	}
	return reply.Atom, nil
}

func windowTitle(conn *xgb.Conn, win xproto.Window, netWMName, utf8String xproto.Atom) string {
	if reply, err := xproto.GetProperty(conn, false, win, netWMName, utf8String, 0, 1024).Reply(); err == nil && len(reply.Value) > 0 {
		return string(reply.Value)
	}
	if reply, err := xproto.GetProperty(conn, false, win, xproto.AtomWmName, xproto.AtomString, 0, 1024).Reply(); err == nil {
		return string(reply.Value)
	}
	return ""
}

// windowBounds returns the window rectangle in root coordinates, or an empty
// rectangle when the geometry is unavailable.
func windowBounds(conn *xgb.Conn, root, win xproto.Window) image.Rectangle {
	geom, err := xproto.GetGeometry(conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return image.Rectangle{}
	}
	pos, err := xproto.TranslateCoordinates(conn, win, root, 0, 0).Reply()
	if err != nil {
		return image.Rectangle{}
	}
	x, y := int(pos.DstX), int(pos.DstY)
	return image.Rect(x, y, x+int(geom.Width), y+int(geom.Height))
}
