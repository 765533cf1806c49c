package browser

// EventKind identifies what happened in the embedded page.
type EventKind int

const (
	// PageLoaded fires on every load event of a page.
	PageLoaded EventKind = iota
	TitleChanged
	Focused
	// ClipboardImage asks for an image copy; answer with Page.ReplyClipboard.
	ClipboardImage
	// ClipboardTest asks for a clipboard round trip; answer with Page.ReplyClipboard.
	ClipboardTest
	PageClosed
)

func (k EventKind) String() string {
	switch k {
	case PageLoaded:
		return "page-loaded"
	case TitleChanged:
		return "title-changed"
	case Focused:
		return "focused"
	case ClipboardImage:
		return "clipboard-image"
	case ClipboardTest:
		return "clipboard-test"
	case PageClosed:
		return "page-closed"
	default:
		return "unknown"
	}
}

// Event is posted on Shell.Events.
type Event struct {
	Kind    EventKind
	Page    *Page
	// Main is set for events from the app window.
	Main    bool
	Title   string
	DataURL string
	ReplyID string
}
