package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"jukebox/audio"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

// Resolve implements audio.StreamResolver with `yt-dlp --dump-single-json`.
func (c *Client) Resolve(ctx context.Context, reference string) (*audio.Resolution, error) {
	cmd, err := c.command(ctx)
	if err != nil {
		return nil, err
	}
	cmd.DumpSingleJSON().
		NoPlaylist().
		SkipDownload()
	out, err := c.run(ctx, cmd, reference)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", reference, err)
	}
	res, err := parseResolution([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", reference, err)
	}
	c.logger.Debug("Resolved reference",
		zap.String("reference", reference),
		zap.String("title", res.Title),
		zap.Int("formats", len(res.Formats)))
	return res, nil
}

func parseResolution(data []byte) (*audio.Resolution, error) {
	raw := json.RawMessage(data)
	info, err := ytdlp.ParseExtractedInfo(&raw)
	if err != nil {
		return nil, fmt.Errorf("decoding yt-dlp output: %w", err)
	}

	res := &audio.Resolution{
		Title:      deref(info.Title),
		WebpageURL: deref(info.WebpageURL),
	}
	if res.WebpageURL == "" && info.ID != "" {
		res.WebpageURL = audio.WatchURL(info.ID)
	}

	res.Formats = make([]audio.Format, 0, len(info.Formats)+1)
	for _, f := range info.Formats {
		if f == nil {
			continue
		}
		res.Formats = append(res.Formats, toFormat(f, f.URL))
	}
	// Sites that expose a single stream report it at the top level.
	if len(res.Formats) == 0 && info.ExtractedFormat != nil && deref(info.URL) != "" {
		res.Formats = append(res.Formats, toFormat(info.ExtractedFormat, deref(info.URL)))
	}
	return res, nil
}

func toFormat(f *ytdlp.ExtractedFormat, url string) audio.Format {
	format := audio.Format{
		ID:         deref(f.FormatID),
		AudioCodec: strings.TrimSpace(deref(f.ACodec)),
		URL:        url,
		Protocol:   deref(f.Protocol),
	}
	if f.ABR != nil {
		format.Bitrate = *f.ABR
	}
	return format
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Describe returns the title and canonical page URL of a single video
// without resolving its streams.
func (c *Client) Describe(ctx context.Context, url string) (Entry, error) {
	cmd, err := c.command(ctx)
	if err != nil {
		return Entry{}, err
	}
	cmd.Print("%(id)s\t%(title)s\t%(channel)s\t%(duration_string)s\t%(webpage_url)s").
		NoPlaylist().
		SkipDownload()
	out, err := c.run(ctx, cmd, url)
	if err != nil {
		return Entry{}, fmt.Errorf("describe %s: %w", url, err)
	}
	return parseDescription(out, url)
}

func parseDescription(out, fallbackURL string) (Entry, error) {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	if line == "" {
		return Entry{}, ErrNoResults
	}
	parts := strings.Split(line, "\t")
	for len(parts) < 5 {
		parts = append(parts, "")
	}
	for i := range parts {
		if parts[i] == "NA" {
			parts[i] = ""
		}
	}
	e := Entry{
		ID:       parts[0],
		Title:    parts[1],
		Channel:  parts[2],
		Duration: parts[3],
		URL:      parts[4],
	}
	if e.URL == "" {
		if e.ID != "" {
			e.URL = audio.WatchURL(e.ID)
		} else {
			e.URL = fallbackURL
		}
	}
	return e, nil
}
