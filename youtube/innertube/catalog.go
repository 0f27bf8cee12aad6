package innertube

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/ytget/musicd/types"
)

const (
	trendingBrowseID    = "FEtrending"
	defaultCatalogLimit = 20
	musicSearchParams   = "EgWKAQIIAWoKEAkQBRAKEAMQBA%3D%3D" // filter: songs
)

// Search queries the Innertube /search endpoint and returns matching tracks.
func (c *Client) Search(query string, limit int) ([]types.Track, error) {
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	ctxMap, _ := contextFor(c.profile)
	reqBody := map[string]any{
		"context": ctxMap,
		"query":   query,
	}
	if strings.EqualFold(c.profile.Name, "WEB_REMIX") {
		reqBody["params"] = musicSearchParams
	}
	body, err := c.call(searchPath, reqBody)
	if err != nil {
		return nil, err
	}
	return tracksFromJSON(body, limit)
}

// Trending fetches the trending feed via the /browse endpoint.
func (c *Client) Trending(limit int) ([]types.Track, error) {
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	ctxMap, _ := contextFor(c.profile)
	body, err := c.call(browsePath, map[string]any{
		"context":  ctxMap,
		"browseId": trendingBrowseID,
	})
	if err != nil {
		return nil, err
	}
	return tracksFromJSON(body, limit)
}

// Related fetches the watch-next feed for a video via the /next endpoint,
// which is what powers recommendations.
func (c *Client) Related(videoID string, limit int) ([]types.Track, error) {
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	ctxMap, _ := contextFor(c.profile)
	body, err := c.call(nextPath, map[string]any{
		"context": ctxMap,
		"videoId": videoID,
	})
	if err != nil {
		return nil, err
	}
	tracks, err := tracksFromJSON(body, limit+1)
	if err != nil {
		return nil, err
	}
	// The watch-next feed usually leads with the video itself.
	filtered := tracks[:0]
	for _, t := range tracks {
		if t.VideoID == videoID {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func tracksFromJSON(body []byte, limit int) ([]types.Track, error) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, err
	}
	tracks := make([]types.Track, 0, limit)
	seen := make(map[string]bool)
	collectTrackRenderers(root, &tracks, seen, limit)
	return tracks, nil
}

// trackRendererKeys are the renderer node names that describe a playable video
// across search, browse, and next responses.
var trackRendererKeys = []string{
	"videoRenderer",
	"compactVideoRenderer",
	"gridVideoRenderer",
	"playlistVideoRenderer",
	"musicResponsiveListItemRenderer",
}

// collectTrackRenderers walks the response tree depth-first and extracts
// track entries from any known renderer node, deduplicating by video ID.
func collectTrackRenderers(node any, out *[]types.Track, seen map[string]bool, limit int) {
	if len(*out) >= limit {
		return
	}
	switch v := node.(type) {
	case map[string]any:
		for _, key := range trackRendererKeys {
			if r, ok := v[key].(map[string]any); ok {
				if t, ok := trackFromRenderer(r); ok && !seen[t.VideoID] {
					seen[t.VideoID] = true
					*out = append(*out, t)
				}
				if len(*out) >= limit {
					return
				}
			}
		}
		// Walk keys in sorted order so truncation by limit is deterministic.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectTrackRenderers(v[k], out, seen, limit)
			if len(*out) >= limit {
				return
			}
		}
	case []any:
		for _, val := range v {
			collectTrackRenderers(val, out, seen, limit)
			if len(*out) >= limit {
				return
			}
		}
	}
}

func trackFromRenderer(r map[string]any) (types.Track, bool) {
	var t types.Track
	if s, ok := r["videoId"].(string); ok {
		t.VideoID = s
	}
	if t.VideoID == "" {
		// musicResponsiveListItemRenderer nests the ID under playlistItemData.
		if pd, ok := r["playlistItemData"].(map[string]any); ok {
			if s, ok := pd["videoId"].(string); ok {
				t.VideoID = s
			}
		}
	}
	if t.VideoID == "" {
		return types.Track{}, false
	}
	t.Title = textOf(r["title"])
	if t.Title == "" {
		// Music renderers carry the title in the first flex column.
		if cols, ok := r["flexColumns"].([]any); ok && len(cols) > 0 {
			if col, ok := cols[0].(map[string]any); ok {
				if inner, ok := col["musicResponsiveListItemFlexColumnRenderer"].(map[string]any); ok {
					t.Title = textOf(inner["text"])
				}
			}
		}
	}
	for _, key := range []string{"longBylineText", "shortBylineText", "ownerText"} {
		if t.Artist = textOf(r[key]); t.Artist != "" {
			break
		}
	}
	t.Duration = textOf(r["lengthText"])
	t.Thumbnail = thumbnailOf(r["thumbnail"])
	return t, true
}

// textOf extracts plain text from a simpleText or runs node.
func textOf(node any) string {
	m, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := m["simpleText"].(string); ok {
		return s
	}
	runs, ok := m["runs"].([]any)
	if !ok || len(runs) == 0 {
		return ""
	}
	first, ok := runs[0].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := first["text"].(string)
	return s
}

// thumbnailOf returns the highest-resolution thumbnail URL, which renderer
// nodes list last.
func thumbnailOf(node any) string {
	m, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	// Some renderers nest another thumbnail object.
	if inner, ok := m["musicThumbnailRenderer"].(map[string]any); ok {
		return thumbnailOf(inner["thumbnail"])
	}
	list, ok := m["thumbnails"].([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	last, ok := list[len(list)-1].(map[string]any)
	if !ok {
		return ""
	}
	u, _ := last["url"].(string)
	return u
}
