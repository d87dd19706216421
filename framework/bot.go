package framework

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"jukebox/audio"
	commands "jukebox/cmd"
	"jukebox/config"
	"jukebox/vc"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Bot owns the gateway session and routes interactions to commands.
type Bot struct {
	session  *discordgo.Session
	voice    *vc.VoiceManager
	deps     *commands.Deps
	guildIDs []string
	logger   *zap.Logger

	ctx   context.Context
	ready atomic.Bool
}

func NewBot(cfg *config.Config, coordinator *audio.Coordinator, catalog commands.Catalog, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	voice := vc.NewVoiceManager(session, cfg.Playback.VoiceTimeout, cfg.Playback.FFmpegPath, logger.Named("voice"))
	b := &Bot{
		session: session,
		voice:   voice,
		deps: &commands.Deps{
			Coordinator:     coordinator,
			Voice:           voice,
			Catalog:         catalog,
			Logger:          logger.Named("commands"),
			PlaylistTimeout: cfg.Playback.PlaylistTimeout,
			Selections:      commands.NewSelections(cfg.Playback.SelectionTimeout),
			Latency:         session.HeartbeatLatency,
		},
		guildIDs: cfg.Discord.GuildIDs,
		logger:   logger,
		ctx:      context.Background(),
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteractionCreate)
	session.AddHandler(b.onVoiceStateUpdate)
	return b, nil
}

// Ready reports whether the gateway session is open.
func (b *Bot) Ready() bool {
	return b.ready.Load()
}

// Run opens the gateway, registers the slash commands and blocks until ctx
// is done. Voice connections and the session are closed on return.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	b.ready.Store(true)

	if err := b.registerCommands(); err != nil {
		b.shutdown()
		return err
	}
	b.logger.Info("Bot is running", zap.Int("commands", len(slashCommands)))

	<-ctx.Done()
	b.shutdown()
	return nil
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	targets := b.guildIDs
	if len(targets) == 0 {
		targets = []string{""}
	}
	for _, guildID := range targets {
		start := time.Now()
		if _, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, slashCommands); err != nil {
			return fmt.Errorf("registering commands (guild %q): %w", guildID, err)
		}
		b.logger.Info("Registered slash commands",
			zap.String("guild_id", guildID),
			zap.Duration("took", time.Since(start)))
	}
	return nil
}

func (b *Bot) shutdown() {
	b.ready.Store(false)
	b.logger.Info("Disconnecting from voice channels")
	b.voice.Close()
	if err := b.session.Close(); err != nil {
		b.logger.Warn("Failed to close discord session", zap.Error(err))
	}
}
