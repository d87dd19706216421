package commands

import (
	"context"
	"time"

	"jukebox/audio"
	"jukebox/youtube"

	"go.uber.org/zap"
)

// Voice is the part of the voice manager commands rely on.
type Voice interface {
	UserChannel(guildID, userID string) (string, error)
	Connect(ctx context.Context, guildID, channelID string) (audio.AudioSink, error)
	Sink(guildID string) audio.AudioSink
	Leave(guildID string) error
}

// Catalog finds songs to queue.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) ([]youtube.Entry, error)
	Describe(ctx context.Context, url string) (youtube.Entry, error)
	Playlist(ctx context.Context, url string, limit int, timeout time.Duration) ([]youtube.Entry, error)
}

// Deps are shared by every command invocation.
type Deps struct {
	Coordinator     *audio.Coordinator
	Voice           Voice
	Catalog         Catalog
	Logger          *zap.Logger
	PlaylistTimeout time.Duration
	// Selections holds open search pickers. Without it /play queues the top
	// search result directly.
	Selections *Selections
	// Latency reports the gateway heartbeat latency for /ping.
	Latency func() time.Duration
}

// Request identifies who invoked a command and where.
type Request struct {
	GuildID   string
	ChannelID string
	UserID    string
	// Notifier receives status messages outside the command's own reply.
	Notifier audio.Notifier
}

// Response is the reply to one command.
type Response struct {
	Content   string
	Ephemeral bool
	// Selection asks the caller to pick one of several search results.
	Selection *SelectionPrompt
}

func reply(text string) Response {
	return Response{Content: text}
}

func private(text string) Response {
	return Response{Content: text, Ephemeral: true}
}

type BotCommand struct {
	*Deps
	Request
}

func NewBotCommand(deps *Deps, req Request) *BotCommand {
	return &BotCommand{Deps: deps, Request: req}
}

func (cmd *BotCommand) registry() *audio.Registry {
	return cmd.Coordinator.Registry()
}

func (cmd *BotCommand) state() *audio.GuildState {
	return cmd.registry().GetOrCreate(cmd.GuildID)
}

func (cmd *BotCommand) log() *zap.Logger {
	return cmd.Logger.With(zap.String("guild_id", cmd.GuildID), zap.String("user_id", cmd.UserID))
}

func (cmd *BotCommand) notify(text string) {
	if cmd.Notifier == nil {
		return
	}
	if err := cmd.Notifier.SendMessage(text); err != nil {
		cmd.log().Warn("Failed to send channel message", zap.Error(err))
	}
}
