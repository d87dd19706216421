package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func ref(id string) string {
	return WatchURL(id)
}

func streamFor(id string) string {
	return "https://stream.example/" + id
}

type fakeResolver struct {
	mu      sync.Mutex
	results map[string]*Resolution
	calls   map[string]int
	delay   time.Duration
	block   chan struct{}
}

func newFakeResolver(playable ...string) *fakeResolver {
	r := &fakeResolver{
		results: make(map[string]*Resolution),
		calls:   make(map[string]int),
	}
	for _, id := range playable {
		r.results[ref(id)] = &Resolution{
			Title:      id,
			WebpageURL: ref(id),
			Formats: []Format{
				{ID: "251", AudioCodec: "opus", URL: streamFor(id), Protocol: "https", Bitrate: 160},
			},
		}
	}
	return r
}

func (r *fakeResolver) Resolve(ctx context.Context, reference string) (*Resolution, error) {
	r.mu.Lock()
	r.calls[reference]++
	res, ok := r.results[reference]
	delay, block := r.delay, r.block
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		return nil, errors.New("video unavailable")
	}
	return res, nil
}

func (r *fakeResolver) callsFor(reference string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[reference]
}

type fakeRelated struct {
	mu    sync.Mutex
	items map[string][]RelatedItem
	err   error
	calls int
}

func (f *fakeRelated) RelatedTo(_ context.Context, itemID string, maxResults int) ([]RelatedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	items := f.items[itemID]
	if len(items) > maxResults {
		items = items[:maxResults]
	}
	return items, nil
}

func (f *fakeRelated) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu         sync.Mutex
	connected  bool
	playing    bool
	paused     bool
	plays      []string
	overlaps   int
	failPlay   map[string]error
	onComplete func(error)
}

func newFakeSink() *fakeSink {
	return &fakeSink{connected: true, failPlay: make(map[string]error)}
}

func (s *fakeSink) Play(streamURL string, _ ReconnectPolicy, onComplete func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing || s.paused {
		s.overlaps++
	}
	if err := s.failPlay[streamURL]; err != nil {
		return err
	}
	s.playing = true
	s.plays = append(s.plays, streamURL)
	s.onComplete = onComplete
	return nil
}

// finish ends the current stream the way a real sink does: flags first,
// then the callback.
func (s *fakeSink) finish(err error) {
	s.mu.Lock()
	cb := s.onComplete
	s.onComplete = nil
	s.playing = false
	s.paused = false
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (s *fakeSink) Stop() { s.finish(nil) }

func (s *fakeSink) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return false
	}
	s.playing, s.paused = false, true
	return true
}

func (s *fakeSink) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return false
	}
	s.playing, s.paused = true, false
	return true
}

func (s *fakeSink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSink) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *fakeSink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSink) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plays)
}

func (s *fakeSink) overlapCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlaps
}

func (s *fakeSink) lastPlay() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plays) == 0 {
		return ""
	}
	return s.plays[len(s.plays)-1]
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) SendMessage(text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
