package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func noEnvFile(t *testing.T, v *viper.Viper) {
	t.Helper()
	v.Set("env-file", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JUKEBOX_DISCORD_TOKEN", "secret")
	v := viper.New()
	noEnvFile(t, v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := DefaultConfig()
	want.Discord.Token = "secret"
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("Load() =\n%+v\nwant\n%+v", cfg, want)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JUKEBOX_DISCORD_TOKEN", "secret")
	t.Setenv("JUKEBOX_GUILD_IDS", " 111, 222 ,,")
	t.Setenv("JUKEBOX_QUEUE_LIMIT", "50")
	t.Setenv("JUKEBOX_RESOLVE_TIMEOUT", "20s")
	t.Setenv("JUKEBOX_LOG_FORMAT", "console")
	t.Setenv("JUKEBOX_YTDLP_RATE", "0.5")
	v := viper.New()
	noEnvFile(t, v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg.Discord.GuildIDs, []string{"111", "222"}) {
		t.Errorf("GuildIDs = %q", cfg.Discord.GuildIDs)
	}
	if cfg.Playback.QueueLimit != 50 {
		t.Errorf("QueueLimit = %d", cfg.Playback.QueueLimit)
	}
	if cfg.Playback.ResolveTimeout != 20*time.Second {
		t.Errorf("ResolveTimeout = %s", cfg.Playback.ResolveTimeout)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("Log.Format = %q", cfg.Log.Format)
	}
	if cfg.YouTube.Rate != 0.5 {
		t.Errorf("Rate = %v", cfg.YouTube.Rate)
	}
}

func TestLoadUnprefixedToken(t *testing.T) {
	t.Setenv("JUKEBOX_DISCORD_TOKEN", "")
	t.Setenv("DISCORD_TOKEN", "plain")
	v := viper.New()
	noEnvFile(t, v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.Token != "plain" {
		t.Errorf("Token = %q", cfg.Discord.Token)
	}
}

func TestLoadDotenvFile(t *testing.T) {
	t.Setenv("JUKEBOX_DISCORD_TOKEN", "")
	t.Setenv("DISCORD_TOKEN", "")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("JUKEBOX_HISTORY_SIZE=7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("JUKEBOX_HISTORY_SIZE") })
	v := viper.New()
	v.Set("env-file", path)
	v.Set("discord-token", "from-flag")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Playback.HistorySize != 7 {
		t.Errorf("HistorySize = %d, want 7", cfg.Playback.HistorySize)
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("JUKEBOX_DISCORD_TOKEN", "")
	t.Setenv("DISCORD_TOKEN", "")
	v := viper.New()
	noEnvFile(t, v)

	if _, err := Load(v); !errors.Is(err, ErrMissingToken) {
		t.Errorf("err = %v, want ErrMissingToken", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"zero queue limit", func(c *Config) { c.Playback.QueueLimit = 0 }, false},
		{"negative history", func(c *Config) { c.Playback.HistorySize = -1 }, false},
		{"zero candidates", func(c *Config) { c.Playback.AutoplayCandidates = 0 }, false},
		{"zero resolve timeout", func(c *Config) { c.Playback.ResolveTimeout = 0 }, false},
		{"negative selection timeout", func(c *Config) { c.Playback.SelectionTimeout = -time.Second }, false},
		{"zero rate", func(c *Config) { c.YouTube.Rate = 0 }, false},
		{"blank token", func(c *Config) { c.Discord.Token = "  " }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Discord.Token = "secret"
			tt.mutate(cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestRegisterFlagsBindsToViper(t *testing.T) {
	t.Setenv("JUKEBOX_DISCORD_TOKEN", "secret")
	cmd := &cobra.Command{Use: "test"}
	RegisterFlags(cmd)
	if err := cmd.PersistentFlags().Parse([]string{"--queue-limit", "12", "--env-file", filepath.Join(t.TempDir(), "none")}); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Playback.QueueLimit != 12 {
		t.Errorf("QueueLimit = %d, want 12", cfg.Playback.QueueLimit)
	}
	if cfg.Playback.VoiceTimeout != 15*time.Second {
		t.Errorf("VoiceTimeout = %s", cfg.Playback.VoiceTimeout)
	}
}
