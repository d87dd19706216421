package youtube

import (
	"context"
	"fmt"
	"strings"

	"jukebox/audio"

	"github.com/ppalone/ytsearch"
	"go.uber.org/zap"
)

const DefaultSearchResults = 5

// Search returns up to limit videos for a free-text query. The native client
// is tried first; yt-dlp's ytsearch extractor is the fallback.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoResults
	}
	if limit < 1 {
		limit = DefaultSearchResults
	}

	entries, err := c.native(ctx, query)
	if err != nil {
		c.logger.Warn("Native search failed, falling back to yt-dlp", zap.String("query", query), zap.Error(err))
	}
	if len(entries) == 0 {
		entries, err = c.flatList(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query), limit)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
	}
	if len(entries) == 0 {
		return nil, ErrNoResults
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func nativeSearch(ctx context.Context, query string) ([]Entry, error) {
	res, err := ytsearch.NewClient(nil).Search(ctx, query)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(res.Results))
	for _, v := range res.Results {
		if v.VideoID == "" {
			continue
		}
		entries = append(entries, Entry{
			ID:    v.VideoID,
			Title: v.Title,
			URL:   audio.WatchURL(v.VideoID),
		})
	}
	return entries, nil
}
