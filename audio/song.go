package audio

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var ErrUnrecognizedReference = errors.New("unrecognized video reference")

type AddedBy int

const (
	AddedByUser AddedBy = iota
	AddedByAutoplay
)

func (a AddedBy) String() string {
	if a == AddedByAutoplay {
		return "autoplay"
	}
	return "user"
}

// Song is one queued or playing item. Reference, Title, AddedBy and Context
// never change after creation; the stream fields are owned by the Preparer.
type Song struct {
	Reference string
	Title     string
	AddedBy   AddedBy
	Context   Notifier

	mu        sync.Mutex
	streamURL string
	prepared  bool
}

func NewSong(reference, title string, addedBy AddedBy, ctx Notifier) *Song {
	if title == "" {
		title = "Unknown Title"
	}
	return &Song{
		Reference: reference,
		Title:     title,
		AddedBy:   addedBy,
		Context:   ctx,
	}
}

// Prepared blocks while a resolution for this song is in flight.
func (s *Song) Prepared() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepared
}

func (s *Song) StreamURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamURL
}

// ID returns the video id embedded in the reference.
func (s *Song) ID() (string, bool) {
	return VideoID(s.Reference)
}

func (s *Song) String() string {
	return fmt.Sprintf("%s (%s)", s.Title, s.Reference)
}

var (
	watchIDRegex = regexp.MustCompile(`[?&]v=([\w-]+)`)
	pathIDRegex  = regexp.MustCompile(`(?:youtu\.be/|/shorts/|/embed/|/live/)([\w-]+)`)
)

// VideoID extracts a stable video id from a watch, short-link, shorts or
// embed URL. Anything else is unrecognized.
func VideoID(reference string) (string, bool) {
	if !strings.Contains(reference, "youtu") {
		return "", false
	}
	if m := watchIDRegex.FindStringSubmatch(reference); len(m) > 1 {
		return m[1], true
	}
	if m := pathIDRegex.FindStringSubmatch(reference); len(m) > 1 {
		return m[1], true
	}
	return "", false
}

func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
