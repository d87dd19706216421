package commands

import (
	"fmt"

	"go.uber.org/zap"
)

func (cmd *BotCommand) Skip() Response {
	if !cmd.Coordinator.Skip(cmd.Voice.Sink(cmd.GuildID)) {
		return private("❌ Nothing is currently playing.")
	}
	return private("⏭️ Skipped the current song.")
}

func (cmd *BotCommand) Pause() Response {
	sink := cmd.Voice.Sink(cmd.GuildID)
	if sink == nil || !sink.Pause() {
		return private("❌ Nothing is playing.")
	}
	return private("⏸️ Paused playback.")
}

func (cmd *BotCommand) Resume() Response {
	sink := cmd.Voice.Sink(cmd.GuildID)
	if sink == nil || !sink.Resume() {
		return private("❌ Nothing is paused.")
	}
	return private("▶️ Resumed playback.")
}

func (cmd *BotCommand) NowPlaying() Response {
	state, ok := cmd.registry().Lookup(cmd.GuildID)
	if !ok {
		return private("❌ Nothing is playing.")
	}
	song := state.CurrentSong()
	if song == nil {
		return private("❌ Nothing is playing.")
	}
	return reply(fmt.Sprintf("🎶 Now playing: %s\nURL: <%s>", song.Title, song.Reference))
}

// Leave resets the guild before disconnecting so the stopped song does not
// advance into a fresh session.
func (cmd *BotCommand) Leave() Response {
	sink := cmd.Voice.Sink(cmd.GuildID)
	if sink == nil || !sink.Connected() {
		return private("❌ I'm not connected to a voice channel.")
	}

	cmd.Coordinator.Reset(cmd.GuildID, sink)
	if err := cmd.Voice.Leave(cmd.GuildID); err != nil {
		cmd.log().Error("Failed to disconnect", zap.Error(err))
		return private("⚠️ Something went wrong leaving the voice channel. Playback state has been reset.")
	}
	return reply("👋 Disconnected from voice channel.")
}
