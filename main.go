package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"jukebox/audio"
	"jukebox/config"
	"jukebox/framework"
	"jukebox/youtube"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:   "jukebox",
	Short: "jukebox - Discord music bot",
	Long: `jukebox joins Discord voice channels and plays YouTube audio from a
per-server queue, with looping, autoplay of related songs and slash commands.`,
	SilenceUsage: true,
	RunE:         run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("Failed to bind flags: %v", err))
	}
}

func buildLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}
	return logger
}

type services struct {
	coordinator *audio.Coordinator
	bot         *framework.Bot
	httpServer  *framework.Server
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logger := buildLogger(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting jukebox",
		zap.Int("queue_limit", cfg.Playback.QueueLimit),
		zap.Strings("guild_ids", cfg.Discord.GuildIDs),
		zap.String("metrics_addr", cfg.Server.MetricsAddr))

	svcs, err := initializeServices(cfg, logger)
	if err != nil {
		return err
	}
	return runServices(ctx, svcs, logger)
}

func initializeServices(cfg *config.Config, logger *zap.Logger) (*services, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := audio.NewMetrics(reg)

	yt := youtube.New(youtube.Options{
		Executable: cfg.YouTube.Executable,
		CookieFile: cfg.YouTube.CookieFile,
		Proxy:      cfg.YouTube.Proxy,
		Rate:       cfg.YouTube.Rate,
	}, logger.Named("youtube"))

	reconnect := audio.DefaultReconnectPolicy()
	reconnect.DelayMax = cfg.Playback.ReconnectDelayMax

	coordinator := audio.NewCoordinator(
		audio.NewRegistry(cfg.Playback.QueueLimit, cfg.Playback.HistorySize, metrics),
		audio.NewPreparer(yt, cfg.Playback.ResolveTimeout, logger.Named("preparer"), metrics),
		audio.NewAutoplay(yt, cfg.Playback.AutoplayCandidates, logger.Named("autoplay"), metrics),
		reconnect,
		logger.Named("coordinator"),
		metrics,
	)

	bot, err := framework.NewBot(cfg, coordinator, yt, logger.Named("bot"))
	if err != nil {
		coordinator.Close()
		return nil, err
	}

	svcs := &services{coordinator: coordinator, bot: bot}
	if cfg.Server.MetricsAddr != "" {
		svcs.httpServer = framework.NewServer(cfg.Server.MetricsAddr, reg, bot.Ready, logger.Named("http"))
	}
	return svcs, nil
}

func runServices(ctx context.Context, svcs *services, logger *zap.Logger) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.coordinator.Run(gCtx)
	})

	g.Go(func() error {
		return svcs.bot.Run(gCtx)
	})

	if svcs.httpServer != nil {
		g.Go(func() error {
			return svcs.httpServer.Start(gCtx)
		})
	}

	err := g.Wait()
	svcs.coordinator.Close()
	if err != nil {
		logger.Error("jukebox stopped with error", zap.Error(err))
		return err
	}
	logger.Info("jukebox stopped gracefully")
	return nil
}
