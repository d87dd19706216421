package vc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"jukebox/audio"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"layeh.com/gopus"
)

const (
	channels  = 2
	frameRate = 48000
	frameSize = 960
	maxBytes  = (frameSize * 2) * 2

	// Loudness normalisation keeps consecutive songs at a similar volume.
	loudnorm = "loudnorm=I=-16:TP=-1.5:LRA=11"
)

var ErrAlreadyPlaying = errors.New("song already playing")

type playback int

const (
	idle playback = iota
	playing
	paused
)

// Streamer plays one remote stream at a time on a voice connection:
// ffmpeg decodes to PCM, gopus encodes Opus frames for discordgo.
// It implements audio.AudioSink.
type Streamer struct {
	voice      *discordgo.VoiceConnection
	ffmpegPath string
	logger     *zap.Logger

	lock  sync.Mutex
	state playback
	stop  chan struct{}
	cmd   *exec.Cmd
}

func NewStreamer(voice *discordgo.VoiceConnection, ffmpegPath string, logger *zap.Logger) *Streamer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Streamer{
		voice:      voice,
		ffmpegPath: ffmpegPath,
		logger:     logger,
	}
}

// ffmpegArgs builds the decoder command line. Reconnect options only apply
// to the network input, so they come before -i.
func ffmpegArgs(streamURL string, policy audio.ReconnectPolicy) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if policy.Reconnect {
		args = append(args, "-reconnect", "1")
	}
	if policy.ReconnectStreamed {
		args = append(args, "-reconnect_streamed", "1")
	}
	if policy.DelayMax > 0 {
		args = append(args, "-reconnect_delay_max", strconv.Itoa(int(policy.DelayMax/time.Second)))
	}
	args = append(args,
		"-analyzeduration", "8M",
		"-probesize", "32M",
		"-i", streamURL,
		"-vn",
		"-af", loudnorm,
		"-f", "s16le",
		"-ar", strconv.Itoa(frameRate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	)
	return args
}

// Play starts decoding streamURL and returns once ffmpeg is running.
// onComplete fires from the playback goroutine after the stream ends, fails
// or is stopped.
func (s *Streamer) Play(streamURL string, policy audio.ReconnectPolicy, onComplete func(error)) error {
	if !s.Connected() {
		return audio.ErrNotConnected
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != idle {
		return ErrAlreadyPlaying
	}

	ffmpeg := exec.Command(s.ffmpegPath, ffmpegArgs(streamURL, policy)...)
	out, err := ffmpeg.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	stop := make(chan struct{})
	s.state = playing
	s.stop = stop
	s.cmd = ffmpeg

	go s.stream(ffmpeg, bufio.NewReaderSize(out, 16384), stop, onComplete)
	return nil
}

func (s *Streamer) stream(ffmpeg *exec.Cmd, pcm io.Reader, stop chan struct{}, onComplete func(error)) {
	err := s.sendPCM(pcm, stop)

	stopped := false
	select {
	case <-stop:
		stopped = true
	default:
	}

	_ = ffmpeg.Process.Kill()
	waitErr := ffmpeg.Wait()
	if err == nil && waitErr != nil && !stopped && !isKilled(waitErr) {
		err = fmt.Errorf("ffmpeg: %w", waitErr)
	}
	if stopped {
		err = nil
	}

	s.lock.Lock()
	s.state = idle
	s.stop = nil
	s.cmd = nil
	s.lock.Unlock()

	if onComplete != nil {
		onComplete(err)
	}
}

func (s *Streamer) sendPCM(pcm io.Reader, stop <-chan struct{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered in sendPCM: %v", r)
		}
	}()

	encoder, err := gopus.NewEncoder(frameRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}

	_ = s.voice.Speaking(true)
	defer func() { _ = s.voice.Speaking(false) }()

	frame := make([]int16, frameSize*channels)
	for {
		if !s.waitWhilePaused(stop) {
			return nil
		}

		err := binary.Read(pcm, binary.LittleEndian, &frame)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading pcm: %w", err)
		}

		opus, err := encoder.Encode(frame, frameSize, maxBytes)
		if err != nil {
			return fmt.Errorf("encoding opus: %w", err)
		}
		if !s.Connected() || s.voice.OpusSend == nil {
			return audio.ErrNotConnected
		}
		select {
		case s.voice.OpusSend <- opus:
		case <-stop:
			return nil
		}
	}
}

// waitWhilePaused blocks until playback is resumed and reports false if the
// stream was stopped meanwhile.
func (s *Streamer) waitWhilePaused(stop <-chan struct{}) bool {
	for s.IsPaused() {
		select {
		case <-stop:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
	select {
	case <-stop:
		return false
	default:
		return true
	}
}

// Stop ends the current stream. The completion callback still fires.
func (s *Streamer) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.stop == nil {
		return
	}
	select {
	case <-s.stop:
		return
	default:
	}
	close(s.stop)
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

func (s *Streamer) Pause() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != playing {
		return false
	}
	s.state = paused
	return true
}

func (s *Streamer) Resume() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != paused {
		return false
	}
	s.state = playing
	return true
}

func (s *Streamer) IsPlaying() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state == playing
}

func (s *Streamer) IsPaused() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state == paused
}

func (s *Streamer) Connected() bool {
	if s == nil || s.voice == nil {
		return false
	}
	s.voice.RLock()
	defer s.voice.RUnlock()
	return s.voice.Ready
}

// ChannelID is the voice channel the connection currently sits in.
func (s *Streamer) ChannelID() string {
	if s.voice == nil {
		return ""
	}
	s.voice.RLock()
	defer s.voice.RUnlock()
	return s.voice.ChannelID
}

func isKilled(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && !exitErr.Exited()
}
