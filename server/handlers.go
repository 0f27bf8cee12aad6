package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ytget/musicd/errs"
	"github.com/ytget/musicd/internal/mimeext"
	"github.com/ytget/musicd/internal/sanitize"
	"github.com/ytget/musicd/types"
)

const (
	defaultCatalogLimit = 25

	sourceInnertube = "innertube"
	sourceDemo      = "demo"
)

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

type catalogResponse struct {
	Results []types.Track `json:"results"`
	Source  string        `json:"source"`
}

func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response write failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, hint := statusFor(err)
	s.log.Warn("request failed", map[string]interface{}{
		"path":   r.URL.Path,
		"status": status,
		"error":  err.Error(),
	})
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Hint: hint})
}

// statusFor maps extraction sentinels onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrLoginRequired), errors.Is(err, errs.ErrPrivate):
		return http.StatusForbidden, "run `musicd auth setup` to configure YouTube cookies"
	case errors.Is(err, errs.ErrGeoBlocked):
		return http.StatusUnavailableForLegalReasons, ""
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, ""
	case errors.Is(err, errs.ErrVideoUnavailable):
		return http.StatusNotFound, ""
	case errors.Is(err, errs.ErrAllStrategiesFailed):
		return http.StatusBadGateway, ""
	}
	return http.StatusInternalServerError, ""
}

func (s *Server) resolveFromRequest(r *http.Request) (*types.StreamInfo, error) {
	videoID := r.URL.Query().Get("videoId")
	if videoID == "" {
		return nil, errMissingVideoID
	}
	quality := types.ParseQuality(r.URL.Query().Get("quality"))
	return s.resolver.Resolve(r.Context(), videoID, quality)
}

var errMissingVideoID = errors.New("videoId query parameter is required")

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	info, err := s.resolveFromRequest(r)
	if err != nil {
		if errors.Is(err, errMissingVideoID) {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		// An empty query is still answered; the demo catalog stands in.
		s.writeJSON(w, http.StatusOK, catalogResponse{Results: demoCatalog(), Source: sourceDemo})
		return
	}
	s.serveCatalog(w, r, func(c Catalog) ([]types.Track, error) {
		return c.Search(query, defaultCatalogLimit)
	})
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	s.serveCatalog(w, r, func(c Catalog) ([]types.Track, error) {
		return c.Trending(defaultCatalogLimit)
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("videoId")
	if videoID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: errMissingVideoID.Error()})
		return
	}
	s.serveCatalog(w, r, func(c Catalog) ([]types.Track, error) {
		return c.Related(videoID, defaultCatalogLimit)
	})
}

// serveCatalog runs the upstream catalog query and falls back to the built-in
// demo catalog when upstream fails; catalog browsing keeps working even when
// YouTube is unreachable.
func (s *Server) serveCatalog(w http.ResponseWriter, r *http.Request, query func(Catalog) ([]types.Track, error)) {
	if s.catalog != nil {
		tracks, err := query(s.catalog)
		if err == nil && len(tracks) > 0 {
			s.writeJSON(w, http.StatusOK, catalogResponse{Results: tracks, Source: sourceInnertube})
			return
		}
		if err != nil {
			s.log.Warn("catalog upstream failed, serving demo catalog", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
		}
	}
	s.writeJSON(w, http.StatusOK, catalogResponse{Results: demoCatalog(), Source: sourceDemo})
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if s.streamer == nil {
		s.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "proxy streaming is disabled"})
		return
	}
	info, err := s.resolveFromRequest(r)
	if err != nil {
		if errors.Is(err, errMissingVideoID) {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.writeError(w, r, err)
		return
	}

	title := info.Title
	if title == "" {
		title = info.VideoID
	}
	filename := sanitize.ToSafeFilename(title, mimeext.ExtFromMime(info.Mime))

	w.Header().Set("Content-Type", mimeext.BaseMime(info.Mime))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	n, err := s.streamer.Stream(r.Context(), info.URL, w)
	if err != nil {
		// Headers are gone; just log the broken transfer.
		s.log.Warn("proxy stream aborted", map[string]interface{}{
			"video_id": info.VideoID,
			"written":  n,
			"error":    err.Error(),
		})
		return
	}
	s.log.Info("proxy stream complete", map[string]interface{}{
		"video_id": info.VideoID,
		"written":  n,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
