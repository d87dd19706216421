package youtube

import (
	"context"

	"jukebox/audio"

	"go.uber.org/zap"
)

// mixURL is YouTube's auto-generated radio playlist seeded by one video.
func mixURL(id string) string {
	return audio.WatchURL(id) + "&list=RD" + id
}

// RelatedTo implements audio.RelatedLookup. It reads the seed's mix
// playlist and falls back to a search for the id when the mix is empty.
func (c *Client) RelatedTo(ctx context.Context, itemID string, maxResults int) ([]audio.RelatedItem, error) {
	if itemID == "" {
		return nil, audio.ErrUnrecognizedReference
	}

	// The mix starts with the seed itself.
	entries, err := c.flatList(ctx, mixURL(itemID), maxResults+1)
	if err != nil || len(entries) == 0 {
		c.logger.Debug("Mix playlist unavailable, searching instead", zap.String("id", itemID), zap.Error(err))
		entries, err = c.native(ctx, itemID)
		if err != nil {
			return nil, err
		}
	}
	return relatedItems(itemID, entries, maxResults), nil
}

func relatedItems(seed string, entries []Entry, limit int) []audio.RelatedItem {
	items := make([]audio.RelatedItem, 0, limit)
	seen := map[string]struct{}{seed: {}}
	for _, e := range entries {
		if len(items) >= limit {
			break
		}
		if _, dup := seen[e.ID]; dup || e.ID == "" {
			continue
		}
		seen[e.ID] = struct{}{}
		items = append(items, audio.RelatedItem{ID: e.ID, Title: e.Title})
	}
	return items
}
