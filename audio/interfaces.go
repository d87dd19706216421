package audio

import (
	"context"
	"time"
)

// Notifier is where status text for a request goes. Usually a text channel.
type Notifier interface {
	SendMessage(text string) error
}

// Format is one candidate stream returned by a StreamResolver.
type Format struct {
	ID         string
	AudioCodec string
	URL        string
	Protocol   string
	Bitrate    float64 // kbps, 0 when unknown
}

// HasAudio reports whether the format carries an audio track.
func (f Format) HasAudio() bool {
	return f.AudioCodec != "" && f.AudioCodec != "none"
}

type Resolution struct {
	Title      string
	WebpageURL string
	Formats    []Format
}

// StreamResolver turns a song reference into playable stream candidates.
type StreamResolver interface {
	Resolve(ctx context.Context, reference string) (*Resolution, error)
}

type RelatedItem struct {
	ID    string
	Title string
}

// RelatedLookup returns items related to the given video id. An empty
// result is not an error.
type RelatedLookup interface {
	RelatedTo(ctx context.Context, itemID string, maxResults int) ([]RelatedItem, error)
}

// ReconnectPolicy tells the sink how to survive transient network drops
// while reading a remote stream.
type ReconnectPolicy struct {
	Reconnect         bool
	ReconnectStreamed bool
	DelayMax          time.Duration
}

// DefaultReconnectPolicy matches ffmpeg's -reconnect 1 -reconnect_streamed 1
// -reconnect_delay_max 5.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Reconnect:         true,
		ReconnectStreamed: true,
		DelayMax:          5 * time.Second,
	}
}

// AudioSink plays one stream at a time on a guild's voice connection.
//
// Play must return quickly; onComplete is called exactly once per
// successful Play, from any goroutine, after IsPlaying and IsPaused have
// both gone false. Stop ends the current stream and still fires onComplete.
type AudioSink interface {
	Play(streamURL string, policy ReconnectPolicy, onComplete func(error)) error
	Stop()
	Pause() bool
	Resume() bool
	IsPlaying() bool
	IsPaused() bool
	Connected() bool
}
