package commands

import (
	"errors"
	"fmt"
	"strings"

	"jukebox/audio"
)

const (
	queuePageSize = 10
	maxTitleRunes = 80
)

// Queue shows one page of the upcoming songs. Out of range pages are
// clamped.
func (cmd *BotCommand) Queue(page int) Response {
	state, ok := cmd.registry().Lookup(cmd.GuildID)
	if !ok || state.Len() == 0 {
		return private("🕳️ The queue is empty.")
	}
	return reply(renderQueue(state.CurrentSong(), state.Snapshot(), page))
}

func renderQueue(current *audio.Song, entries []audio.QueueEntry, page int) string {
	pages := (len(entries) + queuePageSize - 1) / queuePageSize
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	var b strings.Builder
	if current != nil {
		fmt.Fprintf(&b, "🎶 Now Playing: %s\n", truncate(current.Title))
	}
	fmt.Fprintf(&b, "🎼 Upcoming Queue (page %d/%d, %d songs):\n", page, pages, len(entries))

	start := (page - 1) * queuePageSize
	end := min(start+queuePageSize, len(entries))
	for i := start; i < end; i++ {
		e := entries[i]
		fmt.Fprintf(&b, "%d. %s", i+1, truncate(e.Title))
		if e.AddedBy == audio.AddedByAutoplay {
			b.WriteString(" (autoplay)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(title string) string {
	r := []rune(title)
	if len(r) <= maxTitleRunes {
		return title
	}
	return string(r[:maxTitleRunes-1]) + "…"
}

func (cmd *BotCommand) Remove(position int) Response {
	removed, err := cmd.state().RemoveAt(position)
	if errors.Is(err, audio.ErrInvalidPosition) {
		return private("❌ Invalid position.")
	}
	if err != nil {
		return private("❌ Could not remove that song.")
	}
	return reply("🗑️ Removed from queue: " + removed.Title)
}

func (cmd *BotCommand) Clear() Response {
	if cmd.state().Clear() == 0 {
		return private("🕳️ The queue is already empty.")
	}
	return reply("🧹 Cleared the queue.")
}

func (cmd *BotCommand) Shuffle() Response {
	if err := cmd.state().Shuffle(); err != nil {
		if errors.Is(err, audio.ErrTooFewToShuffle) {
			return private("❌ Need at least two songs in the queue to shuffle.")
		}
		return private("❌ Could not shuffle the queue.")
	}
	return reply("🔀 Shuffled the queue.")
}

func (cmd *BotCommand) Autoplay(mode string) Response {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "on":
		cmd.state().SetAutoplay(true)
		return reply("🔁 Autoplay is now on.")
	case "off":
		cmd.state().SetAutoplay(false)
		return reply("⏹️ Autoplay is now off.")
	}
	return private("Usage: /autoplay on or /autoplay off")
}

func (cmd *BotCommand) Loop(mode string) Response {
	parsed, err := audio.ParseLoopMode(mode)
	if err != nil {
		return private("Usage: /loop off, /loop current or /loop queue")
	}
	cmd.state().SetLoopMode(parsed)
	return reply(fmt.Sprintf("🔂 Loop mode set to '%s'.", parsed))
}
