// Package extractor resolves playable audio stream URLs for YouTube videos.
//
// Resolution walks an ordered strategy chain: the YouTube Music player API
// first, then the standard player API with the ANDROID and WEB clients, and
// finally a watch-page HTML scrape. The first strategy that yields a usable
// audio URL wins; errors tied to the video itself stop the chain early.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/ytget/musicd/cookies"
	"github.com/ytget/musicd/errs"
	"github.com/ytget/musicd/internal/botguard"
	"github.com/ytget/musicd/internal/logger"
	"github.com/ytget/musicd/internal/streamcache"
	"github.com/ytget/musicd/types"
	"github.com/ytget/musicd/youtube/cipher"
	"github.com/ytget/musicd/youtube/formats"
	"github.com/ytget/musicd/youtube/innertube"
)

const (
	defaultAttempts = 2
	defaultCacheTTL = 5 * time.Hour
	watchBaseURL    = "https://www.youtube.com"
)

// Extractor resolves audio stream URLs through a chain of strategies.
type Extractor struct {
	httpClient *http.Client
	jar        *cookies.Jar
	cache      streamcache.Cache
	cacheTTL   time.Duration
	quality    types.Quality
	attempts   uint
	log        *logger.ComponentLogger

	bg struct {
		solver botguard.Solver
		mode   botguard.Mode
		cache  botguard.Cache
	}

	// test overrides
	apiBase   string
	watchBase string
}

// New creates an Extractor using the provided HTTP client.
func New(httpClient *http.Client) *Extractor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Extractor{
		httpClient: httpClient,
		cacheTTL:   defaultCacheTTL,
		quality:    types.QualityHigh,
		attempts:   defaultAttempts,
		log:        logger.WithComponent(logger.ComponentExtractor),
	}
}

// WithCookies attaches a cookie jar that every strategy sends upstream.
func (e *Extractor) WithCookies(jar *cookies.Jar) *Extractor {
	e.jar = jar
	return e
}

// WithCache attaches a resolved-URL cache. The TTL is the fallback lifetime
// for URLs that do not carry their own expiry.
func (e *Extractor) WithCache(cache streamcache.Cache, ttl time.Duration) *Extractor {
	e.cache = cache
	if ttl > 0 {
		e.cacheTTL = ttl
	}
	return e
}

// WithBotguard attaches a Botguard solver that every Innertube strategy uses
// for player-call attestation.
func (e *Extractor) WithBotguard(solver botguard.Solver, mode botguard.Mode, cache botguard.Cache) *Extractor {
	e.bg.solver = solver
	e.bg.mode = mode
	e.bg.cache = cache
	return e
}

// WithQuality sets the default quality used when Resolve receives an empty one.
func (e *Extractor) WithQuality(q types.Quality) *Extractor {
	e.quality = q
	return e
}

// WithAttempts sets per-strategy attempts for transient failures.
func (e *Extractor) WithAttempts(n uint) *Extractor {
	if n > 0 {
		e.attempts = n
	}
	return e
}

// WithAPIBase overrides the Innertube endpoint base URL.
func (e *Extractor) WithAPIBase(base string) *Extractor {
	e.apiBase = base
	return e
}

// WithWatchBase overrides the watch-page base URL.
func (e *Extractor) WithWatchBase(base string) *Extractor {
	e.watchBase = base
	return e
}

type strategy struct {
	name string
	run  func(ctx context.Context, videoID string, q types.Quality) (*types.StreamInfo, error)
}

func (e *Extractor) strategies() []strategy {
	return []strategy{
		{"music_api", func(ctx context.Context, id string, q types.Quality) (*types.StreamInfo, error) {
			return e.fromInnertube(ctx, innertube.ProfileWebRemix, "music_api", id, q)
		}},
		{"android_api", func(ctx context.Context, id string, q types.Quality) (*types.StreamInfo, error) {
			return e.fromInnertube(ctx, innertube.ProfileAndroid, "android_api", id, q)
		}},
		{"web_api", func(ctx context.Context, id string, q types.Quality) (*types.StreamInfo, error) {
			return e.fromInnertube(ctx, innertube.ProfileWeb, "web_api", id, q)
		}},
		{"watch_page", e.fromWatchPage},
	}
}

// StrategyNames lists the strategies in chain order.
func (e *Extractor) StrategyNames() []string {
	all := e.strategies()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.name
	}
	return names
}

// ProbeStrategy runs a single strategy by name, once, bypassing the cache.
// Used by auth diagnostics to report which strategies currently work.
func (e *Extractor) ProbeStrategy(ctx context.Context, name, videoID string, quality types.Quality) (*types.StreamInfo, error) {
	if quality == "" {
		quality = e.quality
	}
	for _, s := range e.strategies() {
		if s.name == name {
			return s.run(ctx, videoID, quality)
		}
	}
	return nil, fmt.Errorf("extractor: unknown strategy %q", name)
}

// Resolve returns a playable audio stream descriptor for the video. Strategies
// are tried in order; transient failures are retried per strategy, permanent
// ones abort the chain.
func (e *Extractor) Resolve(ctx context.Context, videoID string, quality types.Quality) (*types.StreamInfo, error) {
	if videoID == "" {
		return nil, fmt.Errorf("extractor: video id is required")
	}
	if quality == "" {
		quality = e.quality
	}

	if e.cache != nil {
		if info, ok := e.cache.Get(ctx, videoID, quality); ok {
			e.log.Debug("cache hit", map[string]interface{}{"video_id": videoID, "quality": string(quality)})
			return &info, nil
		}
	}

	var lastErr error
	for _, s := range e.strategies() {
		info, err := retry.DoWithData(
			func() (*types.StreamInfo, error) { return s.run(ctx, videoID, quality) },
			retry.Context(ctx),
			retry.Attempts(e.attempts),
			retry.Delay(300*time.Millisecond),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(isTransient),
		)
		if err == nil {
			e.log.Info("stream resolved", map[string]interface{}{
				"video_id": videoID,
				"strategy": s.name,
				"bitrate":  info.Bitrate,
			})
			if e.cache != nil {
				e.cache.Set(ctx, quality, *info, streamcache.ExpiryOf(info.URL, e.cacheTTL, time.Now()))
			}
			return info, nil
		}
		if errs.IsPermanent(err) {
			e.log.Warn("permanent extraction failure", map[string]interface{}{
				"video_id": videoID,
				"strategy": s.name,
				"error":    err.Error(),
			})
			return nil, err
		}
		e.log.Debug("strategy failed", map[string]interface{}{
			"video_id": videoID,
			"strategy": s.name,
			"error":    err.Error(),
		})
		lastErr = err
	}
	return nil, fmt.Errorf("%w: last error: %v", errs.ErrAllStrategiesFailed, lastErr)
}

// isTransient gates per-strategy retries: video-level failures and absent
// audio formats will not improve on a second attempt against the same client.
func isTransient(err error) bool {
	if errs.IsPermanent(err) {
		return false
	}
	switch {
	case errors.Is(err, errs.ErrLoginRequired),
		errors.Is(err, errs.ErrNoAudioFormat),
		errors.Is(err, errs.ErrCipherFailed):
		return false
	}
	return true
}

func (e *Extractor) fromInnertube(ctx context.Context, profile innertube.Profile, source, videoID string, quality types.Quality) (*types.StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := innertube.New(e.httpClient, profile)
	if e.apiBase != "" {
		c = c.WithBaseURL(e.apiBase)
	}
	if e.jar != nil {
		c = c.WithCookies(e.jar)
	}
	if e.bg.solver != nil {
		c = c.WithBotguard(e.bg.solver, e.bg.mode, e.bg.cache)
	}
	pr, err := c.GetPlayerResponse(videoID)
	if err != nil {
		return nil, err
	}
	return e.streamFromPlayerResponse(pr, source, videoID, quality)
}

func (e *Extractor) streamFromPlayerResponse(pr *innertube.PlayerResponse, source, videoID string, quality types.Quality) (*types.StreamInfo, error) {
	if err := playabilityError(pr); err != nil {
		return nil, err
	}
	fmts, err := formats.ParseFormats(pr)
	if err != nil {
		return nil, err
	}
	f, err := formats.SelectAudioFormat(fmts, quality)
	if err != nil {
		return nil, err
	}

	streamURL := f.URL
	if formats.NeedsResolution(*f) {
		playerJSURL, err := cipher.FetchPlayerJS(e.httpClient, e.watchURL(videoID))
		if err != nil {
			return nil, fmt.Errorf("%w: player.js lookup: %v", errs.ErrCipherFailed, err)
		}
		streamURL, err = formats.ResolveFormatURL(e.httpClient, *f, playerJSURL)
		if err != nil {
			return nil, err
		}
	}

	return &types.StreamInfo{
		VideoID: videoID,
		Title:   pr.VideoDetails.Title,
		URL:     streamURL,
		Mime:    f.MimeType,
		Bitrate: f.Bitrate,
		Itag:    f.Itag,
		Source:  source,
	}, nil
}

func (e *Extractor) watchURL(videoID string) string {
	base := e.watchBase
	if base == "" {
		base = watchBaseURL
	}
	return base + "/watch?v=" + videoID
}
