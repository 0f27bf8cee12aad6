package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ytget/musicd/errs"
	"github.com/ytget/musicd/internal/config"
	"github.com/ytget/musicd/types"
)

type stubResolver struct {
	info *types.StreamInfo
	err  error
}

func (r *stubResolver) Resolve(_ context.Context, videoID string, quality types.Quality) (*types.StreamInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	info := *r.info
	info.VideoID = videoID
	return &info, nil
}

type stubCatalog struct {
	tracks   []types.Track
	err      error
	searches int
}

func (c *stubCatalog) Search(string, int) ([]types.Track, error) {
	c.searches++
	return c.tracks, c.err
}
func (c *stubCatalog) Trending(int) ([]types.Track, error)        { return c.tracks, c.err }
func (c *stubCatalog) Related(string, int) ([]types.Track, error) { return c.tracks, c.err }

type stubStreamer struct {
	payload []byte
}

func (s *stubStreamer) Stream(_ context.Context, _ string, w io.Writer) (int64, error) {
	n, err := w.Write(s.payload)
	return int64(n), err
}

func testServer(resolver Resolver) *Server {
	return New(config.Config{Port: 10000}, resolver)
}

func okResolver() *stubResolver {
	return &stubResolver{info: &types.StreamInfo{
		Title:   "Test Track",
		URL:     "https://rr1---sn-test.googlevideo.com/videoplayback?itag=251",
		Mime:    `audio/webm; codecs="opus"`,
		Bitrate: 192000,
		Itag:    251,
		Source:  "music_api",
	}}
}

func doRequest(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStream_OK(t *testing.T) {
	h := testServer(okResolver()).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/stream?videoId=abc123&quality=high")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin header = %q, want *", got)
	}
	var info types.StreamInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if info.VideoID != "abc123" || info.Itag != 251 || info.Source != "music_api" {
		t.Errorf("unexpected payload: %+v", info)
	}
}

func TestStream_MissingVideoID(t *testing.T) {
	h := testServer(okResolver()).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/stream")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStream_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"login required", errs.ErrLoginRequired, http.StatusForbidden},
		{"private", errs.ErrPrivate, http.StatusForbidden},
		{"geo blocked", errs.ErrGeoBlocked, http.StatusUnavailableForLegalReasons},
		{"rate limited", errs.ErrRateLimited, http.StatusTooManyRequests},
		{"unavailable", errs.ErrVideoUnavailable, http.StatusNotFound},
		{"all failed", errs.ErrAllStrategiesFailed, http.StatusBadGateway},
		{"wrapped", fmt.Errorf("music_api: %w", errs.ErrGeoBlocked), http.StatusUnavailableForLegalReasons},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testServer(&stubResolver{err: tt.err}).Handler()
			rec := doRequest(t, h, http.MethodGet, "/api/stream?videoId=abc123")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestStream_ForbiddenCarriesAuthHint(t *testing.T) {
	h := testServer(&stubResolver{err: errs.ErrLoginRequired}).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/stream?videoId=abc123")

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if !strings.Contains(resp.Hint, "auth setup") {
		t.Errorf("hint = %q, want auth setup reference", resp.Hint)
	}
}

func TestPreflight(t *testing.T) {
	h := testServer(okResolver()).Handler()
	rec := doRequest(t, h, http.MethodOptions, "/api/stream")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "OPTIONS") {
		t.Errorf("methods header = %q", got)
	}
}

func TestSearch_EmptyQueryServesDemo(t *testing.T) {
	// The upstream catalog must not be consulted for an empty query.
	catalog := &stubCatalog{err: errors.New("must not be called")}
	h := testServer(okResolver()).WithCatalog(catalog).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/search")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp catalogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Source != sourceDemo || len(resp.Results) == 0 {
		t.Errorf("expected demo catalog, got: %+v", resp)
	}
	if catalog.searches != 0 {
		t.Errorf("upstream searched %d times for empty query", catalog.searches)
	}
}

func TestSearch_Upstream(t *testing.T) {
	catalog := &stubCatalog{tracks: []types.Track{{VideoID: "v1", Title: "Song", Artist: "Artist"}}}
	h := testServer(okResolver()).WithCatalog(catalog).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/search?q=song")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp catalogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Source != sourceInnertube || len(resp.Results) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSearch_DemoFallback(t *testing.T) {
	catalog := &stubCatalog{err: errors.New("upstream down")}
	h := testServer(okResolver()).WithCatalog(catalog).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/search?q=song")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp catalogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Source != sourceDemo || len(resp.Results) != 3 {
		t.Errorf("expected demo catalog, got: %+v", resp)
	}
}

func TestTrending_NilCatalogServesDemo(t *testing.T) {
	h := testServer(okResolver()).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/trending")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp catalogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Source != sourceDemo {
		t.Errorf("source = %q, want demo", resp.Source)
	}
}

func TestRecommendations_MissingVideoID(t *testing.T) {
	h := testServer(okResolver()).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/recommendations")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRecommendations_Upstream(t *testing.T) {
	catalog := &stubCatalog{tracks: []types.Track{{VideoID: "v2"}, {VideoID: "v3"}}}
	h := testServer(okResolver()).WithCatalog(catalog).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/recommendations?videoId=v1")

	var resp catalogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("results = %d, want 2", len(resp.Results))
	}
}

func TestProxy(t *testing.T) {
	payload := []byte("fake audio bytes")
	h := testServer(okResolver()).WithStreamer(&stubStreamer{payload: payload}).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/proxy?videoId=abc123")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/webm" {
		t.Errorf("Content-Type = %q, want audio/webm", got)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "Test Track.webm") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != string(payload) {
		t.Errorf("body mismatch")
	}
}

func TestProxy_Disabled(t *testing.T) {
	h := testServer(okResolver()).Handler()
	rec := doRequest(t, h, http.MethodGet, "/api/proxy?videoId=abc123")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := testServer(okResolver()).Handler()
	rec := doRequest(t, h, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
