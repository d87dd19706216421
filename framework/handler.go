package framework

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	commands "jukebox/cmd"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const unexpectedError = "❌ An unexpected error occurred. Please try again later."

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func (o options) str(name string) string {
	if opt, ok := o[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (o options) integer(name string, fallback int) int {
	if opt, ok := o[name]; ok {
		return int(opt.IntValue())
	}
	return fallback
}

func (o options) String() string {
	parts := make([]string, 0, len(o))
	for name, opt := range o {
		parts = append(parts, fmt.Sprintf("%s=%v", name, opt.Value))
	}
	return strings.Join(parts, " ")
}

// deferred commands acknowledge first because resolving a song or a
// playlist can outlast the interaction's three second reply window.
var deferred = map[string]bool{
	"play":     true,
	"playlist": true,
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.onCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.onComponent(s, i)
	}
}

func interactionUser(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}

func (b *Bot) onCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()

	if i.GuildID == "" {
		b.respond(s, i, commands.Response{Content: "This command only works in a server.", Ephemeral: true})
		return
	}
	userID := interactionUser(i)

	opts := make(options, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}

	log := b.logger.With(
		zap.String("command", data.Name),
		zap.String("guild_id", i.GuildID),
		zap.String("user_id", userID))
	log.Info("Command invoked", zap.Stringer("options", opts))

	isDeferred := deferred[data.Name]
	if isDeferred {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		})
		if err != nil {
			log.Error("Failed to defer response", zap.Error(err))
			return
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic in command", zap.Any("panic", r))
			b.finish(s, i, isDeferred, commands.Response{Content: unexpectedError, Ephemeral: true}, log)
		}
	}()

	cmd := commands.NewBotCommand(b.deps, commands.Request{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		UserID:    userID,
		Notifier:  commands.NewChannelNotifier(s, i.ChannelID),
	})
	resp := dispatch(b.ctx, cmd, data.Name, opts)
	b.finish(s, i, isDeferred, resp, log)
}

// dispatch runs the named command.
func dispatch(ctx context.Context, cmd *commands.BotCommand, name string, opts options) commands.Response {
	switch name {
	case "play":
		return cmd.Play(ctx, opts.str("query"))
	case "playlist":
		return cmd.Playlist(ctx, opts.str("url"))
	case "skip":
		return cmd.Skip()
	case "pause":
		return cmd.Pause()
	case "resume":
		return cmd.Resume()
	case "nowplaying":
		return cmd.NowPlaying()
	case "queue":
		return cmd.Queue(opts.integer("page", 1))
	case "remove":
		return cmd.Remove(opts.integer("position", 0))
	case "clear":
		return cmd.Clear()
	case "shuffle":
		return cmd.Shuffle()
	case "autoplay":
		return cmd.Autoplay(opts.str("mode"))
	case "loop":
		return cmd.Loop(opts.str("mode"))
	case "leave":
		return cmd.Leave()
	case "ping":
		return cmd.Ping()
	case "help":
		return cmd.Help(helpEntries())
	default:
		return commands.Response{Content: "Unknown command. Type `/help` for available commands.", Ephemeral: true}
	}
}

// onComponent answers a search result button. Only the user who ran /play
// may pick, and the picker message loses its buttons once answered.
func (b *Bot) onComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	id, index, ok := commands.ParseChoiceID(data.CustomID)
	if !ok || i.GuildID == "" {
		return
	}

	log := b.logger.With(
		zap.String("selection_id", id),
		zap.String("guild_id", i.GuildID),
		zap.String("user_id", interactionUser(i)))
	log.Info("Selection clicked", zap.Int("choice", index))

	cmd := commands.NewBotCommand(b.deps, commands.Request{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		UserID:    interactionUser(i),
		Notifier:  commands.NewChannelNotifier(s, i.ChannelID),
	})
	if resp, ok := cmd.CheckSelection(id); !ok {
		b.respond(s, i, resp)
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		log.Error("Failed to defer selection update", zap.Error(err))
		return
	}

	resp := commands.Response{Content: unexpectedError}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic in selection", zap.Any("panic", r))
		}
		b.closeSelection(s, i.Interaction, resp.Content, log)
	}()
	resp = cmd.Choose(b.ctx, id, index)
}

// closeSelection replaces the picker message and removes its buttons.
func (b *Bot) closeSelection(s *discordgo.Session, interaction *discordgo.Interaction, content string, log *zap.Logger) {
	_, err := s.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &[]discordgo.MessageComponent{},
	})
	if err != nil {
		log.Error("Failed to update selection message", zap.Error(err))
	}
}

// selectionButtons lays out one numbered button per result with cancel on
// its own row, as a row holds at most five buttons.
func selectionButtons(p *commands.SelectionPrompt) []discordgo.MessageComponent {
	choices := make([]discordgo.MessageComponent, 0, p.Choices)
	for n := 0; n < p.Choices; n++ {
		choices = append(choices, discordgo.Button{
			Label:    strconv.Itoa(n + 1),
			Style:    discordgo.PrimaryButton,
			CustomID: commands.ChoiceID(p.ID, n),
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: choices},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Cancel",
				Style:    discordgo.DangerButton,
				CustomID: commands.ChoiceID(p.ID, commands.CancelChoice),
			},
		}},
	}
}

// expireSelection closes the picker once nobody answered it in time.
func (b *Bot) expireSelection(s *discordgo.Session, interaction *discordgo.Interaction, p *commands.SelectionPrompt, log *zap.Logger) {
	time.AfterFunc(b.deps.Selections.Timeout(), func() {
		if b.deps.Selections.Expire(p.ID) {
			log.Info("Song selection timed out", zap.String("selection_id", p.ID))
			b.closeSelection(s, interaction, commands.SelectionTimedOut, log)
		}
	})
}

func (b *Bot) finish(s *discordgo.Session, i *discordgo.InteractionCreate, isDeferred bool, resp commands.Response, log *zap.Logger) {
	if !isDeferred {
		b.respond(s, i, resp)
		return
	}
	content := resp.Content
	edit := &discordgo.WebhookEdit{Content: &content}
	if resp.Selection != nil {
		buttons := selectionButtons(resp.Selection)
		edit.Components = &buttons
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		log.Error("Failed to edit deferred response", zap.Error(err))
		return
	}
	if resp.Selection != nil && b.deps.Selections != nil {
		b.expireSelection(s, i.Interaction, resp.Selection, log)
	}
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, resp commands.Response) {
	data := &discordgo.InteractionResponseData{Content: resp.Content}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if resp.Selection != nil {
		data.Components = selectionButtons(resp.Selection)
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Error("Failed to respond to interaction", zap.String("guild_id", i.GuildID), zap.Error(err))
	}
}

// onVoiceStateUpdate leaves a guild once the bot is alone in its channel.
func (b *Bot) onVoiceStateUpdate(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || !b.voice.Alone(v.GuildID) {
		return
	}
	log := b.logger.With(zap.String("guild_id", v.GuildID))
	log.Info("Alone in voice channel, leaving")

	b.deps.Coordinator.Reset(v.GuildID, b.voice.Sink(v.GuildID))
	if err := b.voice.Leave(v.GuildID); err != nil {
		log.Warn("Failed to leave voice channel", zap.Error(err))
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("Connected to Discord",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}
