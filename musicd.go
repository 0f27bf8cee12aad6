// Package musicd provides a high-level API for the YouTube audio streaming
// backend: stream URL resolution, catalog queries, proxy downloads, and the
// HTTP server wiring.
package musicd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ytget/musicd/client"
	"github.com/ytget/musicd/cookies"
	"github.com/ytget/musicd/downloader"
	"github.com/ytget/musicd/extractor"
	"github.com/ytget/musicd/internal/botguard"
	"github.com/ytget/musicd/internal/config"
	"github.com/ytget/musicd/internal/logger"
	"github.com/ytget/musicd/internal/mimeext"
	"github.com/ytget/musicd/internal/sanitize"
	"github.com/ytget/musicd/internal/streamcache"
	"github.com/ytget/musicd/server"
	"github.com/ytget/musicd/types"
	"github.com/ytget/musicd/youtube/innertube"
)

// Service assembles the streaming backend from its parts. Zero-value options
// fall back to config defaults; use the chainable setters to override.
type Service struct {
	cfg        config.Config
	httpClient *http.Client
	jar        *cookies.Jar
	cache      streamcache.Cache
	log        *logger.ComponentLogger

	bg struct {
		solver botguard.Solver
		mode   botguard.Mode
		cache  botguard.Cache
	}

	built *extractor.Extractor
}

// New creates a Service from configuration.
func New(cfg config.Config) *Service {
	return &Service{
		cfg: cfg,
		log: logger.WithComponent(logger.ComponentApp),
	}
}

// WithHTTPClient overrides the upstream HTTP client.
func (s *Service) WithHTTPClient(httpClient *http.Client) *Service {
	s.httpClient = httpClient
	return s
}

// WithCookies attaches an already-loaded cookie jar, skipping file loading.
func (s *Service) WithCookies(jar *cookies.Jar) *Service {
	s.jar = jar
	return s
}

// WithCache overrides the stream-URL cache.
func (s *Service) WithCache(cache streamcache.Cache) *Service {
	s.cache = cache
	return s
}

// WithBotguard configures Botguard attestation for Innertube calls.
func (s *Service) WithBotguard(mode botguard.Mode, solver botguard.Solver, cache botguard.Cache) *Service {
	s.bg.mode = mode
	s.bg.solver = solver
	s.bg.cache = cache
	return s
}

// Init loads cookies and opens the cache. It is called implicitly by the
// other methods; calling it directly surfaces setup errors early.
func (s *Service) Init() error {
	if s.httpClient == nil {
		s.httpClient = client.NewWith(client.Config{
			Timeout:  s.cfg.HTTPTimeout,
			ProxyURL: s.cfg.ProxyURL,
		}).HTTPClient
	}

	if s.jar == nil {
		path := s.cfg.CookiesFile
		if path == "" {
			path = cookies.DefaultPath()
		}
		jar, err := cookies.Load(path)
		if err != nil {
			return fmt.Errorf("load cookies: %w", err)
		}
		if jar != nil {
			s.log.Info("cookies loaded", map[string]interface{}{
				"path":     path,
				"count":    jar.Len(),
				"has_auth": jar.HasAuth(),
			})
			if jar.Expired() {
				s.log.Warn("all auth cookies are expired, re-export youtube_cookies.txt")
			}
		} else {
			s.log.Info("no cookie file, running anonymously", map[string]interface{}{"path": path})
		}
		s.jar = jar
	}

	if s.cache == nil {
		if s.cfg.CachePath != "" {
			sqliteCache, err := streamcache.OpenSQLite(s.cfg.CachePath)
			if err != nil {
				return fmt.Errorf("open stream cache: %w", err)
			}
			s.cache = sqliteCache
		} else {
			s.cache = streamcache.NewMemory()
		}
	}

	s.built = extractor.New(s.httpClient).
		WithCookies(s.jar).
		WithBotguard(s.bg.solver, s.bg.mode, s.bg.cache).
		WithCache(s.cache, s.cfg.CacheTTL).
		WithQuality(types.ParseQuality(s.cfg.Quality))
	return nil
}

// Close releases held resources.
func (s *Service) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

func (s *Service) extractor() (*extractor.Extractor, error) {
	if s.built == nil {
		if err := s.Init(); err != nil {
			return nil, err
		}
	}
	return s.built, nil
}

// Resolve returns a playable stream descriptor for the video.
func (s *Service) Resolve(ctx context.Context, videoID string, quality types.Quality) (*types.StreamInfo, error) {
	e, err := s.extractor()
	if err != nil {
		return nil, err
	}
	return e.Resolve(ctx, videoID, quality)
}

// Catalog returns the Innertube-backed catalog client (search, trending,
// recommendations), sharing the service's cookies and botguard setup.
func (s *Service) Catalog() (*innertube.Client, error) {
	if _, err := s.extractor(); err != nil {
		return nil, err
	}
	c := innertube.New(s.httpClient, innertube.ProfileWebRemix)
	if s.jar != nil {
		c = c.WithCookies(s.jar)
	}
	if s.bg.solver != nil {
		c = c.WithBotguard(s.bg.solver, s.bg.mode, s.bg.cache)
	}
	return c, nil
}

// Download resolves the stream and saves it to outputPath. An empty path
// derives a safe filename from the track title.
func (s *Service) Download(ctx context.Context, videoID string, quality types.Quality, outputPath string) (string, error) {
	info, err := s.Resolve(ctx, videoID, quality)
	if err != nil {
		return "", err
	}
	if outputPath == "" {
		title := info.Title
		if title == "" {
			title = info.VideoID
		}
		outputPath = sanitize.ToSafeFilename(title, mimeext.ExtFromMime(info.Mime))
	}
	dl := downloader.New(s.httpClient, nil, s.cfg.RateLimitBps)
	if err := dl.Download(ctx, info.URL, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// Serve runs the HTTP API until ctx is cancelled.
func (s *Service) Serve(ctx context.Context) error {
	e, err := s.extractor()
	if err != nil {
		return err
	}
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}
	srv := server.New(s.cfg, e).
		WithCatalog(catalog).
		WithStreamer(downloader.New(s.httpClient, nil, s.cfg.RateLimitBps))
	return srv.Run(ctx)
}

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID accepts a bare video ID or any common YouTube URL form
// (watch, youtu.be, shorts, music.youtube.com) and returns the video ID.
func ExtractVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if videoIDRe.MatchString(input) {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("not a video id or url: %q", input)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		if videoIDRe.MatchString(id) {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); videoIDRe.MatchString(id) {
			return id, nil
		}
		if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok {
			id := strings.Trim(rest, "/")
			if videoIDRe.MatchString(id) {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("no video id in %q", input)
}

// ProbeResult reports the outcome of a single extraction strategy probe.
type ProbeResult struct {
	Strategy string
	Err      error
	Elapsed  time.Duration
}

// Probe runs each extraction strategy in isolation against the video and
// reports which ones currently work. Used by `auth check`.
func (s *Service) Probe(ctx context.Context, videoID string) ([]ProbeResult, error) {
	e, err := s.extractor()
	if err != nil {
		return nil, err
	}
	names := e.StrategyNames()
	results := make([]ProbeResult, 0, len(names))
	for _, name := range names {
		start := time.Now()
		_, err := e.ProbeStrategy(ctx, name, videoID, types.QualityMedium)
		results = append(results, ProbeResult{Strategy: name, Err: err, Elapsed: time.Since(start)})
	}
	return results, nil
}
