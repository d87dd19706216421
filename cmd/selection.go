package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"jukebox/youtube"

	"go.uber.org/zap"
)

const (
	SelectionTimeout = 30 * time.Second

	// CancelChoice is the choice index of the cancel button.
	CancelChoice = -1

	SelectionTimedOut = "⌛ Song selection timed out."

	choicePrefix = "select"
	cancelSuffix = "cancel"
)

var (
	ErrSelectionExpired = errors.New("song selection expired")
	ErrNotYourSelection = errors.New("song selection belongs to another user")
)

// SelectionPrompt identifies an open picker and how many results it offers.
type SelectionPrompt struct {
	ID      string
	Choices int
}

type selection struct {
	guildID string
	userID  string
	entries []youtube.Entry
	expires time.Time
}

// Selections tracks open search pickers until they are answered, cancelled
// or expire.
type Selections struct {
	mu      sync.Mutex
	pending map[string]*selection
	timeout time.Duration
	seq     uint64
	now     func() time.Time
}

func NewSelections(timeout time.Duration) *Selections {
	if timeout <= 0 {
		timeout = SelectionTimeout
	}
	return &Selections{
		pending: make(map[string]*selection),
		timeout: timeout,
		now:     time.Now,
	}
}

func (s *Selections) Timeout() time.Duration {
	return s.timeout
}

func (s *Selections) open(guildID, userID string, entries []youtube.Entry) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, sel := range s.pending {
		if now.After(sel.expires) {
			delete(s.pending, id)
		}
	}

	s.seq++
	id := fmt.Sprintf("%s.%d", guildID, s.seq)
	s.pending[id] = &selection{
		guildID: guildID,
		userID:  userID,
		entries: entries,
		expires: now.Add(s.timeout),
	}
	return id
}

func (s *Selections) lookup(id, guildID, userID string) (*selection, error) {
	sel, ok := s.pending[id]
	if !ok || sel.guildID != guildID {
		return nil, ErrSelectionExpired
	}
	if s.now().After(sel.expires) {
		delete(s.pending, id)
		return nil, ErrSelectionExpired
	}
	if sel.userID != userID {
		return nil, ErrNotYourSelection
	}
	return sel, nil
}

func (s *Selections) check(id, guildID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.lookup(id, guildID, userID)
	return err
}

// take removes and returns the selection if userID may answer it.
func (s *Selections) take(id, guildID, userID string) (*selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, err := s.lookup(id, guildID, userID)
	if err != nil {
		return nil, err
	}
	delete(s.pending, id)
	return sel, nil
}

// Expire closes a selection and reports whether it was still open.
func (s *Selections) Expire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	delete(s.pending, id)
	return ok
}

// ChoiceID is the button custom id for choice index of selection id.
func ChoiceID(id string, index int) string {
	if index == CancelChoice {
		return choicePrefix + ":" + id + ":" + cancelSuffix
	}
	return choicePrefix + ":" + id + ":" + strconv.Itoa(index)
}

// ParseChoiceID reverses ChoiceID. ok is false for other components.
func ParseChoiceID(customID string) (id string, index int, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != choicePrefix || parts[1] == "" {
		return "", 0, false
	}
	if parts[2] == cancelSuffix {
		return parts[1], CancelChoice, true
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil || index < 0 {
		return "", 0, false
	}
	return parts[1], index, true
}

func (cmd *BotCommand) promptSelection(ctx context.Context, query string) Response {
	results, err := cmd.Catalog.Search(ctx, query, youtube.DefaultSearchResults)
	if err != nil || len(results) == 0 {
		cmd.log().Warn("Search failed", zap.String("query", query), zap.Error(err))
		return reply(fmt.Sprintf("❌ No results found for '%s'.", query))
	}
	if len(results) > youtube.DefaultSearchResults {
		results = results[:youtube.DefaultSearchResults]
	}

	id := cmd.Selections.open(cmd.GuildID, cmd.UserID, results)
	cmd.log().Info("Offered search results", zap.String("query", query), zap.String("selection_id", id), zap.Int("results", len(results)))

	var b strings.Builder
	b.WriteString("🔎 Choose a song to play:\n")
	for i, e := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(e.Title))
	}
	return Response{
		Content:   strings.TrimRight(b.String(), "\n"),
		Selection: &SelectionPrompt{ID: id, Choices: len(results)},
	}
}

func selectionError(err error) Response {
	if errors.Is(err, ErrNotYourSelection) {
		return private("❌ This selection is not for you.")
	}
	return private("⌛ This song selection has expired.")
}

// CheckSelection reports whether the caller may answer selection id, and
// the reply to send if not.
func (cmd *BotCommand) CheckSelection(id string) (Response, bool) {
	if cmd.Selections == nil {
		return selectionError(ErrSelectionExpired), false
	}
	if err := cmd.Selections.check(id, cmd.GuildID, cmd.UserID); err != nil {
		return selectionError(err), false
	}
	return Response{}, true
}

// Choose answers selection id with the result at index, or cancels it.
func (cmd *BotCommand) Choose(ctx context.Context, id string, index int) Response {
	if cmd.Selections == nil {
		return selectionError(ErrSelectionExpired)
	}
	sel, err := cmd.Selections.take(id, cmd.GuildID, cmd.UserID)
	if err != nil {
		return selectionError(err)
	}
	if index == CancelChoice {
		cmd.log().Info("Song selection cancelled", zap.String("selection_id", id))
		return reply("❌ Song selection cancelled.")
	}
	if index < 0 || index >= len(sel.entries) {
		return private("❌ Invalid choice.")
	}

	state := cmd.state()
	if state.Len() >= state.Limit() {
		return reply(fmt.Sprintf("❌ The queue is full! (max %d songs)", state.Limit()))
	}
	sink, err := cmd.joinCaller(ctx)
	if err != nil {
		return cmd.voiceError(err)
	}
	return cmd.enqueue(state, sink, sel.entries[index])
}
