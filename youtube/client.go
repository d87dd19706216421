package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"jukebox/audio"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultRate  = 2
	DefaultBurst = 4

	socketTimeout = 10
)

var ErrNoResults = errors.New("no results")

type Options struct {
	// Executable overrides the yt-dlp binary; empty uses the PATH lookup.
	Executable string
	// CookieFile is passed to yt-dlp only when the file exists.
	CookieFile string
	Proxy      string
	// Rate caps how many yt-dlp processes are started per second.
	Rate  float64
	Burst int
}

// Client talks to YouTube through yt-dlp and the native search client.
type Client struct {
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger

	// native is the fast search path; tests replace it.
	native func(ctx context.Context, query string) ([]Entry, error)
}

// Entry is one video as seen by search, playlist and related lookups.
type Entry struct {
	ID       string
	Title    string
	URL      string
	Channel  string
	Duration string
}

func New(opts Options, logger *zap.Logger) *Client {
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}
	if opts.Burst < 1 {
		opts.Burst = DefaultBurst
	}
	return &Client{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		logger:  logger,
		native:  nativeSearch,
	}
}

// command waits for a rate-limit token and returns a yt-dlp invocation with
// the shared options applied.
func (c *Client) command(ctx context.Context) (*ytdlp.Command, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for yt-dlp slot: %w", err)
	}
	return c.newCommand(), nil
}

func (c *Client) newCommand() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		SocketTimeout(socketTimeout).
		ForceIPv4()
	if c.opts.Executable != "" {
		cmd.SetExecutable(c.opts.Executable)
	}
	if c.opts.Proxy != "" {
		cmd.Proxy(c.opts.Proxy)
	}
	// A missing cookie file makes yt-dlp fail outright.
	if c.opts.CookieFile != "" {
		if _, err := os.Stat(c.opts.CookieFile); err == nil {
			cmd.Cookies(c.opts.CookieFile)
		}
	}
	return cmd
}

func (c *Client) run(ctx context.Context, cmd *ytdlp.Command, args ...string) (string, error) {
	start := time.Now()
	res, err := cmd.Run(ctx, args...)
	if err != nil {
		stderr := ""
		if res != nil {
			stderr = strings.TrimSpace(res.Stderr)
		}
		c.logger.Debug("yt-dlp failed",
			zap.Strings("args", args),
			zap.String("stderr", stderr),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	c.logger.Debug("yt-dlp finished", zap.Strings("args", args), zap.Duration("took", time.Since(start)))
	return res.Stdout, nil
}

// flatList prints id and title of up to limit entries of a playlist-like
// target without resolving each video.
func (c *Client) flatList(ctx context.Context, target string, limit int) ([]Entry, error) {
	cmd, err := c.command(ctx)
	if err != nil {
		return nil, err
	}
	cmd.FlatPlaylist().
		Print("%(id)s\t%(title)s\t%(channel)s\t%(duration_string)s")
	if limit > 0 {
		cmd.PlaylistItems(fmt.Sprintf("1-%d", limit))
	}
	out, err := c.run(ctx, cmd, target)
	if err != nil {
		return nil, err
	}
	return parseFlatEntries(out), nil
}

// parseFlatEntries reads the tab separated lines printed by flatList.
// Lines without an id are dropped.
func parseFlatEntries(out string) []Entry {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		parts := strings.Split(line, "\t")
		id := strings.TrimSpace(parts[0])
		if id == "" || id == "NA" {
			continue
		}
		e := Entry{ID: id, URL: audio.WatchURL(id)}
		if len(parts) > 1 && parts[1] != "NA" {
			e.Title = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 && parts[2] != "NA" {
			e.Channel = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 && parts[3] != "NA" {
			e.Duration = strings.TrimSpace(parts[3])
		}
		entries = append(entries, e)
	}
	return entries
}
