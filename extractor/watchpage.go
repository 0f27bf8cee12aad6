package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/ytget/musicd/errs"
	"github.com/ytget/musicd/types"
	"github.com/ytget/musicd/youtube/formats"
	"github.com/ytget/musicd/youtube/innertube"
)

var playerResponseRe = regexp.MustCompile(`(?s)ytInitialPlayerResponse\s*=\s*(\{.+?\});`)

// fromWatchPage is the last-resort strategy: fetch the watch page HTML and
// scrape the embedded ytInitialPlayerResponse. URLs obtained this way are
// only trusted when they point at a googlevideo host.
func (e *Extractor) fromWatchPage(ctx context.Context, videoID string, quality types.Quality) (*types.StreamInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.watchURL(videoID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	origin := e.watchBase
	if origin == "" {
		origin = watchBaseURL
	}
	e.jar.Apply(req, origin)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	pr, err := parseWatchPage(body)
	if err != nil {
		return nil, err
	}
	info, err := e.streamFromPlayerResponse(pr, "watch_page", videoID, quality)
	if err != nil {
		return nil, err
	}
	if !formats.IsGoogleVideoURL(info.URL) {
		return nil, fmt.Errorf("%w: scraped url host not trusted", errs.ErrNoAudioFormat)
	}
	return info, nil
}

func parseWatchPage(body []byte) (*innertube.PlayerResponse, error) {
	m := playerResponseRe.FindSubmatch(body)
	if len(m) < 2 {
		return nil, fmt.Errorf("%w: ytInitialPlayerResponse not found", errs.ErrVideoUnavailable)
	}
	var pr innertube.PlayerResponse
	if err := json.Unmarshal(m[1], &pr); err != nil {
		return nil, fmt.Errorf("watch page: parse player response: %v", err)
	}
	return &pr, nil
}
