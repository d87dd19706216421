package audio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultResolveTimeout = 15 * time.Second

var ErrNoPlayableFormat = errors.New("no playable audio format")

// Segmented and manifest transports cannot be resumed by a reconnecting
// reader, so they are never selected.
var unresumableProtocols = []string{"m3u8", "hls", "dash", "f4m", "ism"}

// Preparer resolves a queued song's stream URL in place.
type Preparer struct {
	resolver StreamResolver
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *Metrics
}

func NewPreparer(resolver StreamResolver, timeout time.Duration, logger *zap.Logger, metrics *Metrics) *Preparer {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Preparer{
		resolver: resolver,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Prepare makes song playable and reports success. It is idempotent and safe
// to call concurrently: a second caller waits for the first and reuses its
// result. Failures are logged and reported as false, never returned.
func (p *Preparer) Prepare(ctx context.Context, song *Song) bool {
	song.mu.Lock()
	defer song.mu.Unlock()

	if song.prepared {
		return true
	}

	log := p.logger.With(zap.String("title", song.Title), zap.String("reference", song.Reference))
	log.Info("Preparing song")

	start := time.Now()
	format, err := p.resolve(ctx, song.Reference)
	p.metrics.observePrepare(time.Since(start))
	if err != nil {
		log.Error("Failed to prepare song", zap.Error(err))
		song.prepared = false
		song.streamURL = ""
		return false
	}

	song.streamURL = format.URL
	song.prepared = true
	log.Info("Prepared song",
		zap.String("format_id", format.ID),
		zap.Float64("abr", format.Bitrate),
		zap.Duration("took", time.Since(start)))
	return true
}

func (p *Preparer) resolve(ctx context.Context, reference string) (format Format, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver panicked: %v", r)
		}
	}()

	res, err := p.resolver.Resolve(ctx, reference)
	if err != nil {
		return Format{}, fmt.Errorf("resolve %s: %w", reference, err)
	}
	if res == nil {
		return Format{}, ErrNoPlayableFormat
	}
	format, ok := SelectFormat(res.Formats)
	if !ok {
		return Format{}, ErrNoPlayableFormat
	}
	return format, nil
}

// SelectFormat picks the highest-bitrate audio format that has a URL and a
// resumable transport. Formats with an unknown bitrate rank last.
func SelectFormat(formats []Format) (Format, bool) {
	candidates := make([]Format, 0, len(formats))
	for _, f := range formats {
		if !f.HasAudio() || f.URL == "" || !resumable(f.Protocol) {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return Format{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Bitrate > candidates[j].Bitrate
	})
	return candidates[0], true
}

func resumable(protocol string) bool {
	protocol = strings.ToLower(protocol)
	for _, p := range unresumableProtocols {
		if strings.Contains(protocol, p) {
			return false
		}
	}
	return true
}
