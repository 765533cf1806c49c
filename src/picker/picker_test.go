package picker

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackfield-desktop/src/capture"
)

// fakeSurface records calls and lets tests fire the result channel.
type fakeSurface struct {
	mu       sync.Mutex
	openErr  error
	handlers Handlers
	opened   int
	closed   int
}

func (f *fakeSurface) Open(title string, sources []capture.Source, h Handlers) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	if f.openErr != nil {
		return f.openErr
	}
	f.handlers = h
	return nil
}

// Close reports OnClosed synchronously, like a real window does.
func (f *fakeSurface) Close() {
	f.mu.Lock()
	f.closed++
	h := f.handlers
	f.mu.Unlock()
	if h.OnClosed != nil {
		h.OnClosed()
	}
}

func (f *fakeSurface) result(id string) { f.handlers.OnResult(id) }
func (f *fakeSurface) userClose()       { f.handlers.OnClosed() }

type recorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *recorder) onResult(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) all() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

var twoSources = []capture.Source{
	{ID: "screen:0", Name: "Main"},
	{ID: "window:12", Name: "Editor"},
}

func show(t *testing.T, surface *fakeSurface, sources []capture.Source) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	p := New(func() Surface { return surface }, nil)
	return p.Show(sources, rec.onResult), rec
}

func TestSelectWindow(t *testing.T) {
	surface := &fakeSurface{}
	s, rec := show(t, surface, twoSources)

	surface.result("window:12")

	got := rec.all()
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Video)
	assert.Equal(t, "window:12", got[0].Video.ID)
	assert.Equal(t, AudioLoopback, got[0].Audio)
	assert.Equal(t, 1, surface.closed)
	assert.Equal(t, 1, surface.opened)
	<-s.Done()
}

func TestDoubleClickIsIgnored(t *testing.T) {
	surface := &fakeSurface{}
	_, rec := show(t, surface, twoSources)

	surface.result("screen:0")
	surface.result("window:12")
	surface.userClose()

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, "screen:0", got[0].Video.ID)
	assert.Equal(t, 1, surface.closed)
}

func TestCancelButton(t *testing.T) {
	surface := &fakeSurface{}
	_, rec := show(t, surface, twoSources)

	surface.result("")

	require.Equal(t, []Result{{}}, rec.all())
}

func TestUnknownSourceResolvesEmpty(t *testing.T) {
	surface := &fakeSurface{}
	_, rec := show(t, surface, twoSources)

	surface.result("window:99")

	require.Equal(t, []Result{{}}, rec.all())
}

func TestWindowClosedThenStrayResult(t *testing.T) {
	surface := &fakeSurface{}
	s, rec := show(t, surface, twoSources)

	surface.userClose()
	surface.result("window:12")

	require.Equal(t, []Result{{}}, rec.all())
	assert.Equal(t, 1, surface.closed)
	<-s.Done()
}

func TestSessionCloseActsLikeWindowClose(t *testing.T) {
	surface := &fakeSurface{}
	s, rec := show(t, surface, twoSources)

	s.Close()
	s.Close()

	require.Equal(t, []Result{{}}, rec.all())
	assert.Equal(t, 1, surface.closed)
}

func TestRenderFailureFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		sources []capture.Source
		wantID  string
	}{
		{
			name:    "prefers first screen",
			sources: []capture.Source{{ID: "window:3", Name: "Chat"}, {ID: "screen:1", Name: "Second"}},
			wantID:  "screen:1",
		},
		{
			name:    "first window when no screen",
			sources: []capture.Source{{ID: "window:5", Name: "Only"}},
			wantID:  "window:5",
		},
		{
			name:    "empty list",
			sources: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := &fakeSurface{openErr: errors.New("missing asset")}
			s, rec := show(t, surface, tt.sources)

			got := rec.all()
			require.Len(t, got, 1)
			if tt.wantID == "" {
				assert.True(t, got[0].Empty())
			} else {
				require.NotNil(t, got[0].Video)
				assert.Equal(t, tt.wantID, got[0].Video.ID)
				assert.Equal(t, AudioLoopback, got[0].Audio)
			}
			assert.Equal(t, 1, surface.closed)
			<-s.Done()
		})
	}
}

func TestNoSurfaceFallsBack(t *testing.T) {
	rec := &recorder{}
	New(nil, nil).Show(twoSources, rec.onResult)

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, "screen:0", got[0].Video.ID)
}

func TestBindIsIdempotent(t *testing.T) {
	surface := &fakeSurface{}
	s, _ := show(t, surface, twoSources)

	_, ok := s.bind()
	assert.False(t, ok)
	assert.Equal(t, 1, surface.opened)
}

func TestConcurrentEventsResolveOnce(t *testing.T) {
	surface := &fakeSurface{}
	_, rec := show(t, surface, twoSources)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); surface.result("window:12") }()
		go func() { defer wg.Done(); surface.userClose() }()
	}
	wg.Wait()

	assert.Len(t, rec.all(), 1)
}

func TestResultJSON(t *testing.T) {
	b, err := json.Marshal(Select(capture.Source{ID: "window:12", Name: "Editor"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"video":{"id":"window:12","name":"Editor"},"audio":"loopback"}`, string(b))

	b, err = json.Marshal(Result{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestFyneSurfaceWithoutApp(t *testing.T) {
	s := NewFyneSurface(nil)()
	err := s.Open(Title, twoSources, Handlers{})
	assert.ErrorIs(t, err, errNoApp)
	s.Close()
}
