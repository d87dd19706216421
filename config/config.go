package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const EnvPrefix = "JUKEBOX"

var ErrMissingToken = errors.New("discord token is required (set JUKEBOX_DISCORD_TOKEN or DISCORD_TOKEN)")

type Config struct {
	Discord  DiscordConfig
	Log      LogConfig
	Server   ServerConfig
	Playback PlaybackConfig
	YouTube  YouTubeConfig
}

type DiscordConfig struct {
	Token string
	// GuildIDs limits slash command registration; empty registers globally.
	GuildIDs []string
}

type LogConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	// MetricsAddr serves /metrics and /healthz; empty disables it.
	MetricsAddr string
}

type PlaybackConfig struct {
	QueueLimit         int
	HistorySize        int
	AutoplayCandidates int
	ResolveTimeout     time.Duration
	PlaylistTimeout    time.Duration
	SelectionTimeout   time.Duration
	VoiceTimeout       time.Duration
	ReconnectDelayMax  time.Duration
	FFmpegPath         string
}

type YouTubeConfig struct {
	Executable string
	CookieFile string
	Proxy      string
	Rate       float64
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			MetricsAddr: ":9090",
		},
		Playback: PlaybackConfig{
			QueueLimit:         30,
			HistorySize:        20,
			AutoplayCandidates: 10,
			ResolveTimeout:     15 * time.Second,
			PlaylistTimeout:    30 * time.Second,
			SelectionTimeout:   30 * time.Second,
			VoiceTimeout:       15 * time.Second,
			ReconnectDelayMax:  5 * time.Second,
			FFmpegPath:         "ffmpeg",
		},
		YouTube: YouTubeConfig{
			CookieFile: "./cookies.txt",
			Rate:       2,
		},
	}
}

// RegisterFlags adds every setting as a persistent flag of cmd. Bind them
// with viper.BindPFlags before calling Load.
func RegisterFlags(cmd *cobra.Command) {
	d := DefaultConfig()
	f := cmd.PersistentFlags()
	f.String("env-file", ".env", "dotenv file to load before reading the environment")
	f.String("discord-token", "", "Discord bot token")
	f.String("guild-ids", "", "comma separated guild IDs for command registration (empty = global)")
	f.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	f.String("log-format", d.Log.Format, "log format (json, console)")
	f.String("metrics-addr", d.Server.MetricsAddr, "address for /metrics and /healthz (empty disables)")
	f.Int("queue-limit", d.Playback.QueueLimit, "maximum queued songs per guild")
	f.Int("history-size", d.Playback.HistorySize, "recently played songs remembered for autoplay")
	f.Int("autoplay-candidates", d.Playback.AutoplayCandidates, "related songs considered per autoplay pick")
	f.Duration("resolve-timeout", d.Playback.ResolveTimeout, "timeout for resolving one song")
	f.Duration("playlist-timeout", d.Playback.PlaylistTimeout, "timeout for reading a playlist")
	f.Duration("selection-timeout", d.Playback.SelectionTimeout, "how long a search result picker stays open")
	f.Duration("voice-timeout", d.Playback.VoiceTimeout, "timeout for joining a voice channel")
	f.Duration("reconnect-delay-max", d.Playback.ReconnectDelayMax, "maximum ffmpeg reconnect delay")
	f.String("ffmpeg-path", d.Playback.FFmpegPath, "ffmpeg binary")
	f.String("ytdlp-path", "", "yt-dlp binary (empty = look up on PATH)")
	f.String("cookie-file", d.YouTube.CookieFile, "cookies passed to yt-dlp when the file exists")
	f.String("proxy", "", "proxy for yt-dlp")
	f.Float64("ytdlp-rate", d.YouTube.Rate, "yt-dlp invocations per second")
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("env-file", ".env")
	v.SetDefault("log-level", d.Log.Level)
	v.SetDefault("log-format", d.Log.Format)
	v.SetDefault("metrics-addr", d.Server.MetricsAddr)
	v.SetDefault("queue-limit", d.Playback.QueueLimit)
	v.SetDefault("history-size", d.Playback.HistorySize)
	v.SetDefault("autoplay-candidates", d.Playback.AutoplayCandidates)
	v.SetDefault("resolve-timeout", d.Playback.ResolveTimeout)
	v.SetDefault("playlist-timeout", d.Playback.PlaylistTimeout)
	v.SetDefault("selection-timeout", d.Playback.SelectionTimeout)
	v.SetDefault("voice-timeout", d.Playback.VoiceTimeout)
	v.SetDefault("reconnect-delay-max", d.Playback.ReconnectDelayMax)
	v.SetDefault("ffmpeg-path", d.Playback.FFmpegPath)
	v.SetDefault("cookie-file", d.YouTube.CookieFile)
	v.SetDefault("ytdlp-rate", d.YouTube.Rate)
}

// Load reads the dotenv file, then flags and JUKEBOX_* environment
// variables, and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := godotenv.Load(v.GetString("env-file")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", v.GetString("env-file"), err)
	}

	cfg := &Config{
		Discord: DiscordConfig{
			Token:    v.GetString("discord-token"),
			GuildIDs: splitList(v.GetString("guild-ids")),
		},
		Log: LogConfig{
			Level:  v.GetString("log-level"),
			Format: v.GetString("log-format"),
		},
		Server: ServerConfig{
			MetricsAddr: v.GetString("metrics-addr"),
		},
		Playback: PlaybackConfig{
			QueueLimit:         v.GetInt("queue-limit"),
			HistorySize:        v.GetInt("history-size"),
			AutoplayCandidates: v.GetInt("autoplay-candidates"),
			ResolveTimeout:     v.GetDuration("resolve-timeout"),
			PlaylistTimeout:    v.GetDuration("playlist-timeout"),
			SelectionTimeout:   v.GetDuration("selection-timeout"),
			VoiceTimeout:       v.GetDuration("voice-timeout"),
			ReconnectDelayMax:  v.GetDuration("reconnect-delay-max"),
			FFmpegPath:         v.GetString("ffmpeg-path"),
		},
		YouTube: YouTubeConfig{
			Executable: v.GetString("ytdlp-path"),
			CookieFile: v.GetString("cookie-file"),
			Proxy:      v.GetString("proxy"),
			Rate:       v.GetFloat64("ytdlp-rate"),
		},
	}
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("DISCORD_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return ErrMissingToken
	}
	positive := map[string]int{
		"queue-limit":         c.Playback.QueueLimit,
		"history-size":        c.Playback.HistorySize,
		"autoplay-candidates": c.Playback.AutoplayCandidates,
	}
	for key, val := range positive {
		if val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, val)
		}
	}
	durations := map[string]time.Duration{
		"resolve-timeout":   c.Playback.ResolveTimeout,
		"playlist-timeout":  c.Playback.PlaylistTimeout,
		"selection-timeout": c.Playback.SelectionTimeout,
		"voice-timeout":     c.Playback.VoiceTimeout,
	}
	for key, val := range durations {
		if val <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, val)
		}
	}
	if c.YouTube.Rate <= 0 {
		return fmt.Errorf("ytdlp-rate must be positive, got %v", c.YouTube.Rate)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
