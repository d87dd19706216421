package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("voice connection is not ready")

// completion is handed from a sink's playback goroutine to Run.
type completion struct {
	state    *GuildState
	song     *Song
	sink     AudioSink
	notifier Notifier
	err      error
}

// Coordinator drives each guild's queue: it pops the head, makes sure it is
// prepared, starts it on the sink and advances again when the sink reports
// completion. Failures skip to the next song instead of stopping.
type Coordinator struct {
	registry  *Registry
	preparer  *Preparer
	autoplay  *Autoplay
	reconnect ReconnectPolicy
	logger    *zap.Logger
	metrics   *Metrics

	completions chan completion

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(registry *Registry, preparer *Preparer, autoplay *Autoplay,
	reconnect ReconnectPolicy, logger *zap.Logger, metrics *Metrics) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		registry:    registry,
		preparer:    preparer,
		autoplay:    autoplay,
		reconnect:   reconnect,
		logger:      logger,
		metrics:     metrics,
		completions: make(chan completion, 64),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run consumes playback completions until ctx is done. Each completion
// records the finished song, applies the loop mode and starts the next
// advance for that guild.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("Playback coordinator started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Playback coordinator stopped")
			return nil
		case <-c.ctx.Done():
			return nil
		case done := <-c.completions:
			c.handleCompletion(done)
		}
	}
}

// Close cancels background work and waits for it to finish.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) handleCompletion(done completion) {
	log := c.logger.With(zap.String("guild_id", done.state.GuildID), zap.String("title", done.song.Title))
	if done.err != nil {
		log.Error("Playback ended with error", zap.Error(done.err))
	}
	if !c.registry.Live(done.state) {
		log.Debug("Dropping completion for a destroyed guild state")
		return
	}
	if done.err != nil {
		// A stream that broke mid-play is discarded even when looping, or
		// the same dead URL would be replayed forever.
		done.state.discard(done.song)
		c.metrics.songSkipped(skipPlayback)
		target := done.song.Context
		if target == nil {
			target = done.notifier
		}
		c.notify(target, fmt.Sprintf("⚠️ Something went wrong playing '%s', skipping.", done.song.Title))
	} else if done.state.finish(done.song) {
		log.Debug("Re-queued song", zap.Stringer("loop_mode", done.state.LoopMode()))
	}
	c.spawn(func() {
		c.advance(c.ctx, done.state, done.sink, done.notifier)
	})
}

// Advance plays the next song of the guild on sink if nothing is audible
// yet. Concurrent calls for one guild run one after another.
func (c *Coordinator) Advance(ctx context.Context, guildID string, sink AudioSink, notifier Notifier) {
	c.advance(ctx, c.registry.GetOrCreate(guildID), sink, notifier)
}

// AdvanceAsync runs Advance in the background under the coordinator's
// lifetime so a command can reply before the first song is resolved.
func (c *Coordinator) AdvanceAsync(guildID string, sink AudioSink, notifier Notifier) {
	c.spawn(func() {
		c.Advance(c.ctx, guildID, sink, notifier)
	})
}

func (c *Coordinator) advance(ctx context.Context, state *GuildState, sink AudioSink, notifier Notifier) {
	// Every retry discards one song, so the chain is bounded by the queue
	// plus whatever autoplay adds. The cap keeps an all-unplayable autoplay
	// chain from running forever.
	maxAttempts := 2*state.Limit() + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if !c.step(ctx, state, sink, notifier) {
			return
		}
	}
	c.logger.Warn("Giving up after repeated failures", zap.String("guild_id", state.GuildID))
	state.setIdle()
	c.notify(notifier, "Too many songs in a row could not be played. Stopping playback.")
}

// step runs one pop -> prepare -> play pass under the guild's advance lock
// and reports whether the caller should immediately try the next song.
func (c *Coordinator) step(ctx context.Context, state *GuildState, sink AudioSink, notifier Notifier) (retry bool) {
	if err := state.advance.Acquire(ctx, 1); err != nil {
		return false
	}
	defer state.advance.Release(1)

	log := c.logger.With(zap.String("guild_id", state.GuildID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic while advancing", zap.Any("panic", r))
			state.setIdle()
			retry = false
		}
	}()

	if sink == nil || !sink.Connected() {
		log.Info("No voice connection, stopping playback")
		state.setIdle()
		return false
	}
	if sink.IsPlaying() || sink.IsPaused() {
		log.Debug("Audio already playing, nothing to advance")
		return false
	}

	if state.Len() == 0 {
		c.autoplay.MaybeExtend(ctx, state, notifier)
		if state.Len() == 0 {
			log.Info("Stopping playback as queue is empty")
			state.setIdle()
			return false
		}
	}

	next := state.popHead()
	if next == nil {
		state.setIdle()
		return false
	}
	target := next.Context
	if target == nil {
		target = notifier
	}

	if !next.Prepared() {
		log.Info("Song not prepared, preparing now", zap.String("title", next.Title))
		if !c.preparer.Prepare(ctx, next) {
			c.metrics.songSkipped(skipResolve)
			c.notify(target, fmt.Sprintf("⚠️ Cannot play '%s', skipping.", next.Title))
			return true
		}
	}

	// The previous song stays current while advancing so that autoplay can
	// still seed from it if this one fails to start.
	prev := state.CurrentSong()
	state.setPlaying(next)
	if err := c.start(sink, state, next, notifier); err != nil {
		log.Error("Failed to start playback", zap.String("title", next.Title), zap.Error(err))
		c.metrics.songSkipped(skipPlayback)
		if prev != nil {
			state.setPlaying(prev)
		} else {
			state.setIdle()
		}
		c.notify(target, fmt.Sprintf("⚠️ Something went wrong playing '%s', skipping.", next.Title))
		return true
	}
	c.metrics.songStarted()
	log.Info("Now playing", zap.String("title", next.Title), zap.String("reference", next.Reference))
	c.notify(target, fmt.Sprintf("🎶 Now playing: %s\nURL: <%s>", next.Title, next.Reference))

	if head := state.head(); head != nil {
		c.spawn(func() { c.preparer.Prepare(c.ctx, head) })
	} else if state.AutoplayEnabled() {
		c.spawn(func() {
			c.autoplay.MaybeExtend(c.ctx, state, notifier)
			if head := state.head(); head != nil {
				c.preparer.Prepare(c.ctx, head)
			}
		})
	}
	return false
}

func (c *Coordinator) start(sink AudioSink, state *GuildState, song *Song, notifier Notifier) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	onComplete := func(playErr error) {
		select {
		case c.completions <- completion{state: state, song: song, sink: sink, notifier: notifier, err: playErr}:
		case <-c.ctx.Done():
		}
	}
	return sink.Play(song.StreamURL(), c.reconnect, onComplete)
}

// Skip stops the current song; the normal completion path advances.
func (c *Coordinator) Skip(sink AudioSink) bool {
	if sink == nil || !(sink.IsPlaying() || sink.IsPaused()) {
		return false
	}
	sink.Stop()
	return true
}

// Reset destroys the guild's state before stopping the sink so the stop's
// completion is dropped instead of advancing a dead session.
func (c *Coordinator) Reset(guildID string, sink AudioSink) {
	c.registry.Destroy(guildID)
	if sink != nil {
		sink.Stop()
	}
}

func (c *Coordinator) Registry() *Registry {
	return c.registry
}

func (c *Coordinator) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Recovered from panic in background task", zap.Any("panic", r))
			}
		}()
		fn()
	}()
}

func (c *Coordinator) notify(n Notifier, text string) {
	if n == nil {
		return
	}
	if err := n.SendMessage(text); err != nil {
		c.logger.Warn("Failed to send status message", zap.Error(err))
	}
}
