// Package server exposes the streaming HTTP API.
//
// Endpoints:
//
//	GET /api/stream?videoId=&quality=   resolved audio stream descriptor
//	GET /api/search?q=                  catalog search
//	GET /api/trending                   trending feed
//	GET /api/recommendations?videoId=   watch-next recommendations
//	GET /api/proxy?videoId=&quality=    audio streamed through the server
//	GET /healthz                        liveness
//
// Every API response carries permissive CORS headers; OPTIONS preflight is
// answered without touching upstream.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ytget/musicd/internal/config"
	"github.com/ytget/musicd/internal/logger"
	"github.com/ytget/musicd/types"
)

const shutdownTimeout = 10 * time.Second

// Resolver turns a video ID into a playable stream descriptor.
type Resolver interface {
	Resolve(ctx context.Context, videoID string, quality types.Quality) (*types.StreamInfo, error)
}

// Catalog serves search, trending and recommendation queries.
type Catalog interface {
	Search(query string, limit int) ([]types.Track, error)
	Trending(limit int) ([]types.Track, error)
	Related(videoID string, limit int) ([]types.Track, error)
}

// Streamer copies a remote stream to a writer. Implemented by the downloader.
type Streamer interface {
	Stream(ctx context.Context, urlStr string, w io.Writer) (int64, error)
}

// Server is the HTTP front end.
type Server struct {
	cfg      config.Config
	resolver Resolver
	catalog  Catalog
	streamer Streamer
	log      *logger.ComponentLogger
}

// New creates a Server. resolver is required; catalog and streamer may be nil,
// which disables the catalog endpoints' upstream path and the proxy endpoint
// respectively.
func New(cfg config.Config, resolver Resolver) *Server {
	return &Server{
		cfg:      cfg,
		resolver: resolver,
		log:      logger.WithComponent(logger.ComponentServer),
	}
}

// WithCatalog attaches the catalog backend.
func (s *Server) WithCatalog(c Catalog) *Server {
	s.catalog = c
	return s
}

// WithStreamer attaches the proxy stream transport.
func (s *Server) WithStreamer(st Streamer) *Server {
	s.streamer = st
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stream", s.withCORS(s.handleStream))
	mux.HandleFunc("/api/search", s.withCORS(s.handleSearch))
	mux.HandleFunc("/api/trending", s.withCORS(s.handleTrending))
	mux.HandleFunc("/api/recommendations", s.withCORS(s.handleRecommendations))
	mux.HandleFunc("/api/proxy", s.withCORS(s.handleProxy))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", map[string]interface{}{"addr": httpServer.Addr})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	err := <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
