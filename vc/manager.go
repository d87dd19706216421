package vc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jukebox/audio"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const DefaultJoinTimeout = 15 * time.Second

var (
	ErrNotInVoice   = errors.New("user is not in a voice channel")
	ErrVoiceTimeout = errors.New("timed out connecting to voice")
)

// VoiceManager owns one Streamer per guild.
type VoiceManager struct {
	session    *discordgo.Session
	timeout    time.Duration
	ffmpegPath string
	logger     *zap.Logger

	mu        sync.RWMutex
	streamers map[string]*Streamer // guildID → streamer
}

func NewVoiceManager(session *discordgo.Session, timeout time.Duration, ffmpegPath string, logger *zap.Logger) *VoiceManager {
	if timeout <= 0 {
		timeout = DefaultJoinTimeout
	}
	return &VoiceManager{
		session:    session,
		timeout:    timeout,
		ffmpegPath: ffmpegPath,
		logger:     logger,
		streamers:  make(map[string]*Streamer),
	}
}

// Join makes sure the bot sits in channelID. A healthy connection in another
// channel is moved, a broken one is dropped and replaced.
func (vm *VoiceManager) Join(ctx context.Context, guildID, channelID string) (*Streamer, error) {
	log := vm.logger.With(zap.String("guild_id", guildID), zap.String("channel_id", channelID))

	if existing, ok := vm.Get(guildID); ok {
		if existing.Connected() {
			if existing.ChannelID() == channelID {
				return existing, nil
			}
			log.Info("Moving to user's channel")
			if err := existing.voice.ChangeChannel(channelID, false, true); err != nil {
				return nil, fmt.Errorf("moving to channel %s: %w", channelID, err)
			}
			return existing, nil
		}
		log.Warn("Found a lingering voice connection, cleaning up")
		vm.drop(guildID, existing)
	}

	log.Info("Connecting to voice channel")
	voice, err := vm.connect(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	streamer := NewStreamer(voice, vm.ffmpegPath, vm.logger.Named("streamer").With(zap.String("guild_id", guildID)))

	vm.mu.Lock()
	vm.streamers[guildID] = streamer
	vm.mu.Unlock()
	return streamer, nil
}

// Connect is Join for callers that only need the sink.
func (vm *VoiceManager) Connect(ctx context.Context, guildID, channelID string) (audio.AudioSink, error) {
	streamer, err := vm.Join(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	return streamer, nil
}

// connect bounds discordgo's blocking join by the configured timeout. A join
// that completes after the deadline is disconnected.
func (vm *VoiceManager) connect(ctx context.Context, guildID, channelID string) (*discordgo.VoiceConnection, error) {
	ctx, cancel := context.WithTimeout(ctx, vm.timeout)
	defer cancel()

	type joined struct {
		voice *discordgo.VoiceConnection
		err   error
	}
	result := make(chan joined, 1)
	go func() {
		voice, err := vm.session.ChannelVoiceJoin(guildID, channelID, false, true)
		result <- joined{voice, err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			if r.voice != nil {
				_ = r.voice.Disconnect()
			}
			return nil, fmt.Errorf("joining voice channel %s: %w", channelID, r.err)
		}
		return r.voice, nil
	case <-ctx.Done():
		go func() {
			if r := <-result; r.voice != nil {
				_ = r.voice.Disconnect()
			}
		}()
		return nil, ErrVoiceTimeout
	}
}

// Leave stops playback and disconnects.
func (vm *VoiceManager) Leave(guildID string) error {
	streamer, ok := vm.Get(guildID)
	if !ok {
		return nil
	}
	return vm.drop(guildID, streamer)
}

func (vm *VoiceManager) drop(guildID string, streamer *Streamer) error {
	vm.mu.Lock()
	if vm.streamers[guildID] == streamer {
		delete(vm.streamers, guildID)
	}
	vm.mu.Unlock()

	streamer.Stop()
	if streamer.voice == nil {
		return nil
	}
	return streamer.voice.Disconnect()
}

// Get returns the guild's streamer, if it exists.
func (vm *VoiceManager) Get(guildID string) (*Streamer, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	streamer, ok := vm.streamers[guildID]
	return streamer, ok
}

// Sink returns the guild's streamer as an audio.AudioSink, or nil.
func (vm *VoiceManager) Sink(guildID string) audio.AudioSink {
	if streamer, ok := vm.Get(guildID); ok {
		return streamer
	}
	return nil
}

// UserChannel returns the voice channel userID is connected to.
func (vm *VoiceManager) UserChannel(guildID, userID string) (string, error) {
	state, err := vm.session.State.VoiceState(guildID, userID)
	if err != nil || state == nil || state.ChannelID == "" {
		return "", ErrNotInVoice
	}
	return state.ChannelID, nil
}

// Alone reports whether the bot is connected in guildID with nobody else in
// its channel.
func (vm *VoiceManager) Alone(guildID string) bool {
	streamer, ok := vm.Get(guildID)
	if !ok {
		return false
	}
	channelID := streamer.ChannelID()
	if channelID == "" {
		return false
	}
	guild, err := vm.session.State.Guild(guildID)
	if err != nil {
		return false
	}
	return aloneIn(guild, channelID, vm.session.State.User.ID)
}

func aloneIn(guild *discordgo.Guild, channelID, selfID string) bool {
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID && vs.UserID != selfID {
			return false
		}
	}
	return true
}

// Close disconnects every guild.
func (vm *VoiceManager) Close() {
	vm.mu.RLock()
	guildIDs := make([]string, 0, len(vm.streamers))
	for id := range vm.streamers {
		guildIDs = append(guildIDs, id)
	}
	vm.mu.RUnlock()

	for _, id := range guildIDs {
		if err := vm.Leave(id); err != nil {
			vm.logger.Warn("Failed to disconnect", zap.String("guild_id", id), zap.Error(err))
		}
	}
}
