// Package innertube implements the YouTube InnerTube API client used for
// player, search, browse, and watch-next requests.
package innertube

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/ytget/musicd/cookies"
	"github.com/ytget/musicd/errs"
	"github.com/ytget/musicd/internal/botguard"
	"github.com/ytget/musicd/internal/logger"
)

const (
	userAgentValue        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
	headerContentTypeJSON = "application/json"
	playerPath            = "/youtubei/v1/player"
	searchPath            = "/youtubei/v1/search"
	browsePath            = "/youtubei/v1/browse"
	nextPath              = "/youtubei/v1/next"
	visitorIdMaxAge       = 10 * time.Hour
)

var (
	apiKeyRe = regexp.MustCompile(`"INNERTUBE_API_KEY":"([^"]+)"`)
)

// Client for interacting with the YouTube InnerTube API.
type Client struct {
	HTTPClient *http.Client
	profile    Profile
	jar        *cookies.Jar
	apiKey     string
	baseURL    string
	log        *logger.ComponentLogger
	visitorId  struct {
		value   string
		updated time.Time
	}
	// Optional Botguard integration
	bg struct {
		solver botguard.Solver
		mode   botguard.Mode
		cache  botguard.Cache
		ttl    time.Duration
		debug  bool
	}
}

// New creates a new InnerTube client for the given profile.
func New(httpClient *http.Client, profile Profile) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				ReadBufferSize:        16 * 1024,
				WriteBufferSize:       16 * 1024,
			},
			Timeout: 30 * time.Second,
		}
	}
	if profile.Host == "" {
		profile = ProfileWeb
	}
	return &Client{
		HTTPClient: httpClient,
		profile:    profile,
		log:        logger.WithComponent(logger.ComponentInnerTube),
	}
}

// Profile returns the client's Innertube profile.
func (c *Client) Profile() Profile { return c.profile }

// WithBaseURL overrides the API base URL. Used for tests and API-compatible
// frontends; normal operation derives the base from the profile host.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimSuffix(base, "/")
	return c
}

// WithCookies attaches a loaded cookie jar. Nil disables authentication.
func (c *Client) WithCookies(jar *cookies.Jar) *Client {
	c.jar = jar
	return c
}

// WithBotguard configures an optional Botguard solver and mode.
func (c *Client) WithBotguard(solver botguard.Solver, mode botguard.Mode, cache botguard.Cache) *Client {
	c.bg.solver = solver
	c.bg.mode = mode
	c.bg.cache = cache
	return c
}

// WithBotguardDebug enables Botguard debug logging.
func (c *Client) WithBotguardDebug(debug bool) *Client {
	c.bg.debug = debug
	return c
}

// WithBotguardTTL sets a default TTL to apply when solver does not specify ExpiresAt.
func (c *Client) WithBotguardTTL(ttl time.Duration) *Client {
	c.bg.ttl = ttl
	return c
}

// PlayerResponse represents a response from the InnerTube /player endpoint.
type PlayerResponse struct {
	StreamingData struct {
		Formats         []any `json:"formats"`
		AdaptiveFormats []any `json:"adaptiveFormats"`
	} `json:"streamingData"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// ensureKey tries to scrape an API key from the profile's host pages. Modern
// Innertube accepts keyless calls, so a missing key is not fatal.
func (c *Client) ensureKey(videoID string) {
	if c.apiKey != "" || c.baseURL != "" {
		return
	}
	base := c.profile.Origin()
	sources := []string{base + "/watch?v=" + videoID, base}
	for _, source := range sources {
		if c.apiKey != "" {
			break
		}
		req, err := http.NewRequest("GET", source, nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", userAgentValue)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")
		req.Header.Set("Accept-Encoding", "identity")
		c.jar.Apply(req, base)

		resp, err := c.HTTPClient.Do(req)
		if err != nil || resp == nil {
			continue
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			continue
		}
		if m := apiKeyRe.FindSubmatch(body); len(m) == 2 {
			c.apiKey = string(m[1])
		}
	}
}

// endpointURL builds the API URL for the given path, appending the scraped key
// when one is known.
func (c *Client) endpointURL(path string) string {
	base := c.baseURL
	if base == "" {
		base = c.profile.Origin()
	}
	u := base + path
	if c.apiKey != "" {
		u += "?key=" + c.apiKey
	}
	return u
}

// call performs a POST to an Innertube endpoint with the standard header set,
// cookie authentication, Botguard retry, and response decompression.
func (c *Client) call(path string, body map[string]any) ([]byte, error) {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	_, ua := contextFor(c.profile)

	req, err := http.NewRequest("POST", c.endpointURL(path), bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, err
	}
	origin := c.profile.Origin()
	req.Header.Set("Content-Type", headerContentTypeJSON)
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Referer", origin+"/")
	req.Header.Set("Origin", origin)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Cache-Control", "no-cache")
	if code := clientCodeFromName(c.profile.Name); code != "" {
		req.Header.Set("X-YouTube-Client-Name", code)
	}
	req.Header.Set("X-YouTube-Client-Version", c.profile.Version)
	if visitorId, err := c.getVisitorId(); err == nil && visitorId != "" {
		req.Header.Set("x-goog-visitor-id", visitorId)
	}
	c.jar.Apply(req, origin)

	resp, err := c.doWithBotguardRetry(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("innertube response", map[string]interface{}{
		"path":   path,
		"client": c.profile.Name,
		"status": resp.StatusCode,
	})
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("innertube %s: %w", path, errs.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("innertube %s: status %d", path, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %v", err)
		}
		defer gzReader.Close()
		reader = gzReader
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		// deflate is raw DEFLATE data, no wrapper
		reader = resp.Body
	case "bzip2":
		reader = bzip2.NewReader(resp.Body)
	}

	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	return out, nil
}

// GetPlayerResponse fetches playback data for the provided video ID using the
// InnerTube /player endpoint.
func (c *Client) GetPlayerResponse(videoID string) (*PlayerResponse, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, errors.New("innertube: video id is required")
	}
	c.ensureKey(videoID)

	ctxMap, _ := contextFor(c.profile)
	body, err := c.call(playerPath, map[string]any{
		"context": ctxMap,
		"videoId": videoID,
	})
	if err != nil {
		return nil, err
	}

	var playerResponse PlayerResponse
	if err := json.Unmarshal(body, &playerResponse); err != nil {
		return nil, fmt.Errorf("failed to parse player response: %v", err)
	}
	return &playerResponse, nil
}

// getVisitorId returns the current visitor ID, refreshing it if necessary
func (c *Client) getVisitorId() (string, error) {
	if c.baseURL != "" {
		return c.visitorId.value, nil
	}
	var err error
	if c.visitorId.value == "" || time.Since(c.visitorId.updated) > visitorIdMaxAge {
		err = c.refreshVisitorId()
	}
	return c.visitorId.value, err
}

// refreshVisitorId fetches a new visitor ID from the profile host's main page
func (c *Client) refreshVisitorId() error {
	const sep = "\nytcfg.set("

	req, err := http.NewRequest(http.MethodGet, c.profile.Origin(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgentValue)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	c.jar.Apply(req, c.profile.Origin())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	_, data1, found := strings.Cut(string(data), sep)
	if !found {
		return errors.New("visitor ID not found in response")
	}

	var value struct {
		InnertubeContext struct {
			Client struct {
				VisitorData string `json:"visitorData"`
			} `json:"client"`
		} `json:"INNERTUBE_CONTEXT"`
	}
	if err := json.NewDecoder(strings.NewReader(data1)).Decode(&value); err != nil {
		return err
	}

	c.visitorId.value = strings.ReplaceAll(value.InnertubeContext.Client.VisitorData, "%3D", "=")
	c.visitorId.updated = time.Now()
	return nil
}

// doWithBotguardRetry executes the request and, if configured in Auto/Force mode,
// attempts a single Botguard attestation on 403 to retry the same request with
// the obtained token applied as needed.
func (c *Client) doWithBotguardRetry(req *http.Request) (*http.Response, error) {
	// Fast path: Botguard disabled
	if c.bg.solver == nil || c.bg.mode == botguard.Off {
		return c.HTTPClient.Do(req)
	}

	// Optionally run preflight attestation in Force mode
	if c.bg.mode == botguard.Force {
		if c.bg.debug {
			c.log.Debug("botguard force mode preflight attestation")
		}
		_ = c.maybeApplyBotguard(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		return resp, err
	}
	_ = resp.Body.Close()

	// Auto mode: perform attestation and retry once
	if c.bg.mode == botguard.Auto || c.bg.mode == botguard.Force {
		if c.bg.debug {
			c.log.Debug("botguard 403 detected, attempting attestation and retry")
		}
		if err := c.maybeApplyBotguard(req); err == nil {
			return c.HTTPClient.Do(req)
		}
	}
	return resp, err
}

// maybeApplyBotguard runs the solver and applies the token to request headers.
func (c *Client) maybeApplyBotguard(req *http.Request) error {
	if c.bg.solver == nil {
		return nil
	}
	in := botguard.Input{
		UserAgent:     req.Header.Get("User-Agent"),
		PageURL:       c.profile.Origin() + "/",
		ClientName:    c.profile.Name,
		ClientVersion: c.profile.Version,
		VisitorID:     req.Header.Get("x-goog-visitor-id"),
	}
	key := botguard.KeyFromInput(in)
	if c.bg.cache != nil {
		if out, ok := c.bg.cache.Get(key); ok && (out.ExpiresAt.IsZero() || time.Until(out.ExpiresAt) > 0) {
			if c.bg.debug {
				c.log.Debug("botguard cache hit: applying cached token")
			}
			if out.Token != "" {
				req.Header.Set("x-goog-ext-123-botguard", out.Token)
			}
			return nil
		}
		if c.bg.debug {
			c.log.Debug("botguard cache miss: computing token")
		}
	}
	out, err := c.bg.solver.Attest(req.Context(), in)
	if err != nil {
		if c.bg.debug {
			c.log.Debug("botguard attestation error", map[string]interface{}{"error": err.Error()})
		}
		return err
	}
	if out.ExpiresAt.IsZero() && c.bg.ttl > 0 {
		out.ExpiresAt = time.Now().Add(c.bg.ttl)
	}
	if out.Token != "" {
		req.Header.Set("x-goog-ext-123-botguard", out.Token)
	}
	if c.bg.cache != nil {
		c.bg.cache.Set(key, out)
	}
	return nil
}
