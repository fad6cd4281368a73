// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/doowops/internal/models"
)

// Tracks builds n distinct tracks named "Track 0" .. "Track n-1" with URIs spotify:track:t0 ..
func Tracks(n int) []models.Track {
	tracks := make([]models.Track, 0, n)
	for i := range n {
		id := fmt.Sprintf("t%d", i)
		tracks = append(tracks, models.Track{
			ID:         id,
			URI:        "spotify:track:" + id,
			Name:       fmt.Sprintf("Track %d", i),
			Artists:    []string{fmt.Sprintf("Artist %d", i)},
			Album:      "Album",
			Images:     []models.Image{{URL: fmt.Sprintf("https://img.example/%s.jpg", id), Height: 640, Width: 640}},
			DurationMS: 180000,
		})
	}
	return tracks
}

// StaticSource is a playlist source that serves fixed track lists and counts calls.
type StaticSource struct {
	mu     sync.Mutex
	tracks map[string][]models.Track
	calls  map[string]int
	err    error
	block  chan struct{}
	// entered receives once per fetch that waits on block
	entered chan struct{}
}

// NewStaticSource creates a source that serves tracks for playlist id.
func NewStaticSource(id string, tracks []models.Track) *StaticSource {
	return &StaticSource{
		tracks:  map[string][]models.Track{id: tracks},
		calls:   map[string]int{},
		entered: make(chan struct{}, 16),
	}
}

// Add serves tracks for another playlist id.
func (s *StaticSource) Add(id string, tracks []models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks[id] = tracks
}

// Fail makes every following fetch return err. A nil err restores normal behavior.
func (s *StaticSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Block makes fetches wait until the returned release func is called.
func (s *StaticSource) Block() (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.block = ch
	var once sync.Once
	return func() {
		once.Do(func() { close(ch) })
	}
}

// Entered receives once for every fetch that starts waiting on [StaticSource.Block].
func (s *StaticSource) Entered() <-chan struct{} {
	return s.entered
}

// Calls reports how many fetches were made for id.
func (s *StaticSource) Calls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func (s *StaticSource) PlaylistTracks(ctx context.Context, id string) ([]models.Track, error) {
	s.mu.Lock()
	s.calls[id]++
	block, err := s.block, s.err
	tracks, ok := s.tracks[id]
	s.mu.Unlock()

	if block != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("playlist %s not found", id)
	}
	out := make([]models.Track, len(tracks))
	copy(out, tracks)
	return out, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
