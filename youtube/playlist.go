package youtube

import (
	"context"
	"fmt"
	"time"
)

const DefaultPlaylistTimeout = 30 * time.Second

// Playlist flat-extracts up to limit entries of a playlist URL. Entries
// without an id are skipped.
func (c *Client) Playlist(ctx context.Context, url string, limit int, timeout time.Duration) ([]Entry, error) {
	if timeout <= 0 {
		timeout = DefaultPlaylistTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries, err := c.flatList(ctx, url, limit)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", url, err)
	}
	if len(entries) == 0 {
		return nil, ErrNoResults
	}
	return entries, nil
}
