package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jukebox/audio"
	"jukebox/vc"
	"jukebox/youtube"

	"go.uber.org/zap"
)

// Play queues query, or offers the search results to pick from when a picker
// is available, and starts playback if the guild is idle.
func (cmd *BotCommand) Play(ctx context.Context, query string) Response {
	query = strings.TrimSpace(query)
	if query == "" {
		return private("Usage: /play <url or search terms>")
	}

	state := cmd.state()
	cmd.preemptAutoplay(state)
	if state.Len() >= state.Limit() {
		return reply(fmt.Sprintf("❌ The queue is full! (max %d songs)", state.Limit()))
	}

	sink, err := cmd.joinCaller(ctx)
	if err != nil {
		return cmd.voiceError(err)
	}

	if cmd.Selections != nil && !isURL(query) {
		return cmd.promptSelection(ctx, query)
	}

	entry, err := cmd.lookup(ctx, query)
	if err != nil {
		cmd.log().Warn("Lookup failed", zap.String("query", query), zap.Error(err))
		return reply(fmt.Sprintf("❌ No results found for '%s'.", query))
	}
	return cmd.enqueue(state, sink, entry)
}

// enqueue appends entry and nudges the coordinator. The advance is a no-op
// while the sink is still busy.
func (cmd *BotCommand) enqueue(state *audio.GuildState, sink audio.AudioSink, entry youtube.Entry) Response {
	song := audio.NewSong(entry.URL, entry.Title, audio.AddedByUser, cmd.Notifier)
	if err := state.Append(song); err != nil {
		if errors.Is(err, audio.ErrQueueFull) {
			return reply(fmt.Sprintf("❌ The queue is full! (max %d songs)", state.Limit()))
		}
		return reply("❌ Could not add that song.")
	}
	cmd.log().Info("Queued song", zap.String("title", song.Title), zap.String("reference", song.Reference))

	cmd.Coordinator.AdvanceAsync(cmd.GuildID, sink, cmd.Notifier)
	return reply("✅ Added to queue: " + song.Title)
}

// Playlist queues the entries of a playlist until the queue is full.
func (cmd *BotCommand) Playlist(ctx context.Context, url string) Response {
	url = strings.TrimSpace(url)
	if url == "" {
		return private("Usage: /playlist <url>")
	}

	state := cmd.state()
	cmd.preemptAutoplay(state)

	sink, err := cmd.joinCaller(ctx)
	if err != nil {
		return cmd.voiceError(err)
	}

	entries, err := cmd.Catalog.Playlist(ctx, url, state.Limit(), cmd.PlaylistTimeout)
	if err != nil {
		cmd.log().Warn("Playlist extraction failed", zap.String("url", url), zap.Error(err))
		return reply("❌ Could not find that playlist, or it is empty.")
	}

	songs := make([]*audio.Song, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		songs = append(songs, audio.NewSong(audio.WatchURL(e.ID), e.Title, audio.AddedByUser, cmd.Notifier))
	}
	added := state.AppendMany(songs)
	cmd.log().Info("Queued playlist", zap.String("url", url), zap.Int("added", added), zap.Int("entries", len(entries)))

	if added > 0 {
		cmd.Coordinator.AdvanceAsync(cmd.GuildID, sink, cmd.Notifier)
	}
	return reply(fmt.Sprintf("✅ Added %d songs to the queue.", added))
}

// preemptAutoplay drops autoplay filler so the user's request plays next.
func (cmd *BotCommand) preemptAutoplay(state *audio.GuildState) {
	if n := state.DropAutoplayEntries(); n > 0 {
		cmd.log().Info("User interrupted autoplay", zap.Int("dropped", n))
		cmd.notify("🧹 Cleared autoplay songs, your request goes first.")
	}
}

// joinCaller connects to, or moves to, the caller's voice channel. A failed
// connection resets the guild so no stale playing state survives it.
func (cmd *BotCommand) joinCaller(ctx context.Context) (audio.AudioSink, error) {
	channelID, err := cmd.Voice.UserChannel(cmd.GuildID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	sink, err := cmd.Voice.Connect(ctx, cmd.GuildID, channelID)
	if err != nil {
		cmd.log().Error("Voice connection failed", zap.String("channel_id", channelID), zap.Error(err))
		cmd.registry().Destroy(cmd.GuildID)
		return nil, err
	}
	return sink, nil
}

func (cmd *BotCommand) voiceError(err error) Response {
	if errors.Is(err, vc.ErrNotInVoice) {
		return private("🔇 Join a voice channel first.")
	}
	return reply("❌ Failed to connect to the voice channel. Discord may be having trouble, please try again shortly.")
}

func (cmd *BotCommand) lookup(ctx context.Context, query string) (youtube.Entry, error) {
	if isURL(query) {
		return cmd.Catalog.Describe(ctx, query)
	}
	results, err := cmd.Catalog.Search(ctx, query, youtube.DefaultSearchResults)
	if err != nil {
		return youtube.Entry{}, err
	}
	if len(results) == 0 {
		return youtube.Entry{}, youtube.ErrNoResults
	}
	return results[0], nil
}

func isURL(query string) bool {
	return strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://")
}
