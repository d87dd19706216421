package audio

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultAutoplayCandidates = 10

// Autoplay appends one related song when a guild's queue runs dry.
type Autoplay struct {
	lookup     RelatedLookup
	candidates int
	logger     *zap.Logger
	metrics    *Metrics

	// Concurrent extensions of the same guild share one lookup and append once.
	inflight singleflight.Group
	pick     func(n int) int
}

func NewAutoplay(lookup RelatedLookup, candidates int, logger *zap.Logger, metrics *Metrics) *Autoplay {
	if candidates < 1 {
		candidates = DefaultAutoplayCandidates
	}
	return &Autoplay{
		lookup:     lookup,
		candidates: candidates,
		logger:     logger,
		metrics:    metrics,
		pick:       rand.IntN,
	}
}

// MaybeExtend appends a random related song that is not queued, current or
// recently played. It does nothing unless autoplay is on and a song is
// current, and it never reports an error: lookup failures are only logged.
// Only a disabled guild counts as "disabled"; a guild without a seed song is
// not recorded at all.
func (a *Autoplay) MaybeExtend(ctx context.Context, state *GuildState, notifier Notifier) {
	if !state.AutoplayEnabled() {
		a.metrics.autoplayResult(autoplayDisabled)
		return
	}
	current := state.CurrentSong()
	if current == nil {
		a.logger.Debug("Autoplay skipped, nothing to seed from", zap.String("guild_id", state.GuildID))
		return
	}
	id, ok := current.ID()
	if !ok {
		a.logger.Debug("Autoplay skipped, unrecognized reference",
			zap.String("guild_id", state.GuildID),
			zap.String("reference", current.Reference))
		return
	}

	key := fmt.Sprintf("%s/%p", state.GuildID, state)
	_, _, _ = a.inflight.Do(key, func() (interface{}, error) {
		a.extend(ctx, state, current, id, notifier)
		return nil, nil
	})
}

func (a *Autoplay) extend(ctx context.Context, state *GuildState, current *Song, id string, notifier Notifier) {
	log := a.logger.With(zap.String("guild_id", state.GuildID), zap.String("seed", current.Title))
	log.Info("Autoplay triggered")

	related, err := a.related(ctx, id)
	if err != nil {
		a.metrics.autoplayResult(autoplayError)
		log.Error("Autoplay lookup failed", zap.Error(err))
		return
	}

	excluded := state.excludedIDs()
	fresh := make([]RelatedItem, 0, len(related))
	for _, item := range related {
		if item.ID == "" {
			continue
		}
		if _, seen := excluded[item.ID]; seen {
			continue
		}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		a.metrics.autoplayResult(autoplayEmpty)
		log.Info("Autoplay found nothing new", zap.Int("related", len(related)))
		return
	}

	choice := fresh[a.pick(len(fresh))]
	song := NewSong(WatchURL(choice.ID), choice.Title, AddedByAutoplay, notifier)
	if err := state.Append(song); err != nil {
		a.metrics.autoplayResult(autoplayError)
		log.Warn("Autoplay could not queue song", zap.String("title", song.Title), zap.Error(err))
		return
	}
	a.metrics.autoplayResult(autoplayAdded)
	log.Info("Autoplay queued song", zap.String("title", song.Title), zap.String("reference", song.Reference))
}

func (a *Autoplay) related(ctx context.Context, id string) (items []RelatedItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("related lookup panicked: %v", r)
		}
	}()
	if a.lookup == nil {
		return nil, errors.New("no related lookup configured")
	}
	return a.lookup.RelatedTo(ctx, id, a.candidates)
}
