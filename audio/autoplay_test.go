package audio

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func newTestAutoplay(lookup RelatedLookup, metrics *Metrics) *Autoplay {
	a := NewAutoplay(lookup, DefaultAutoplayCandidates, zap.NewNop(), metrics)
	a.pick = func(int) int { return 0 }
	return a
}

func playingState(currentID string) *GuildState {
	state := newGuildState("g1", DefaultQueueLimit, DefaultHistorySize)
	state.setPlaying(userSong(currentID))
	return state
}

func TestMaybeExtendSkipsExcludedIDs(t *testing.T) {
	state := playingState("cur")
	_ = state.Append(userSong("queued"))
	state.history.Add("played")

	lookup := &fakeRelated{items: map[string][]RelatedItem{
		"cur": {
			{ID: "cur", Title: "Current"},
			{ID: "queued", Title: "Queued"},
			{ID: "played", Title: "Played"},
			{ID: "", Title: "Broken"},
			{ID: "fresh", Title: "Fresh"},
		},
	}}
	notifier := &fakeNotifier{}
	newTestAutoplay(lookup, nil).MaybeExtend(context.Background(), state, notifier)

	snap := state.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("queue = %+v, want one appended entry", snap)
	}
	added := snap[1]
	if added.Title != "Fresh" || added.Reference != ref("fresh") || added.AddedBy != AddedByAutoplay {
		t.Errorf("unexpected autoplay entry %+v", added)
	}
}

func TestMaybeExtendPicksWithinFreshCandidates(t *testing.T) {
	state := playingState("cur")
	lookup := &fakeRelated{items: map[string][]RelatedItem{
		"cur": {{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}},
	}}
	a := newTestAutoplay(lookup, nil)
	var offered int
	a.pick = func(n int) int {
		offered = n
		return n - 1
	}

	a.MaybeExtend(context.Background(), state, nil)

	if offered != 3 {
		t.Errorf("pick offered %d candidates, want 3", offered)
	}
	if snap := state.Snapshot(); len(snap) != 1 || snap[0].Title != "C" {
		t.Errorf("queue = %+v, want C", snap)
	}
}

func TestMaybeExtendNoOps(t *testing.T) {
	tests := []struct {
		name      string
		state     func() *GuildState
		lookup    *fakeRelated
		wantCalls int
	}{
		{
			name: "autoplay disabled",
			state: func() *GuildState {
				s := playingState("cur")
				s.SetAutoplay(false)
				return s
			},
			lookup:    &fakeRelated{items: map[string][]RelatedItem{"cur": {{ID: "x"}}}},
			wantCalls: 0,
		},
		{
			name:      "nothing current",
			state:     func() *GuildState { return newGuildState("g1", 30, 20) },
			lookup:    &fakeRelated{},
			wantCalls: 0,
		},
		{
			name: "unrecognized reference",
			state: func() *GuildState {
				s := newGuildState("g1", 30, 20)
				s.setPlaying(NewSong("https://example.com/track.mp3", "t", AddedByUser, nil))
				return s
			},
			lookup:    &fakeRelated{},
			wantCalls: 0,
		},
		{
			name:      "lookup error",
			state:     func() *GuildState { return playingState("cur") },
			lookup:    &fakeRelated{err: errors.New("quota exceeded")},
			wantCalls: 1,
		},
		{
			name:      "no related items",
			state:     func() *GuildState { return playingState("cur") },
			lookup:    &fakeRelated{},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.state()
			newTestAutoplay(tt.lookup, nil).MaybeExtend(context.Background(), state, nil)
			if state.Len() != 0 {
				t.Errorf("queue grew to %d", state.Len())
			}
			if got := tt.lookup.callCount(); got != tt.wantCalls {
				t.Errorf("lookup called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestMaybeExtendFullQueue(t *testing.T) {
	state := newGuildState("g1", 1, 20)
	state.setPlaying(userSong("cur"))
	_ = state.Append(userSong("queued"))
	lookup := &fakeRelated{items: map[string][]RelatedItem{"cur": {{ID: "new", Title: "New"}}}}

	metrics := NewMetrics(prometheus.NewRegistry())
	newTestAutoplay(lookup, metrics).MaybeExtend(context.Background(), state, nil)

	if state.Len() != 1 {
		t.Errorf("Len = %d, want 1", state.Len())
	}
	if got := testutil.ToFloat64(metrics.Autoplay.WithLabelValues(autoplayError)); got != 1 {
		t.Errorf("autoplay error count = %v, want 1", got)
	}
}

func TestMaybeExtendRecordsOutcomes(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	lookup := &fakeRelated{items: map[string][]RelatedItem{"cur": {{ID: "new", Title: "New"}}}}
	a := newTestAutoplay(lookup, metrics)

	disabled := playingState("cur")
	disabled.SetAutoplay(false)

	a.MaybeExtend(context.Background(), playingState("cur"), nil)
	a.MaybeExtend(context.Background(), disabled, nil)
	// Enabled but nothing current: not a disabled guild, so nothing is counted.
	a.MaybeExtend(context.Background(), newGuildState("g2", 30, 20), nil)

	want := map[string]float64{
		autoplayAdded:    1,
		autoplayDisabled: 1,
		autoplayEmpty:    0,
		autoplayError:    0,
	}
	for result, n := range want {
		if got := testutil.ToFloat64(metrics.Autoplay.WithLabelValues(result)); got != n {
			t.Errorf("%s = %v, want %v", result, got, n)
		}
	}
}
