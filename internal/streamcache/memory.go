package streamcache

import (
	"context"
	"sync"
	"time"

	"github.com/ytget/musicd/types"
)

type memoryEntry struct {
	info      types.StreamInfo
	expiresAt time.Time
}

// Memory is a simple in-memory stream cache.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

// NewMemory creates a new in-memory cache.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]memoryEntry)}
}

func cacheKey(videoID string, quality types.Quality) string {
	return videoID + "|" + string(quality)
}

// Get retrieves a cached stream descriptor. Expired entries are misses.
func (m *Memory) Get(_ context.Context, videoID string, quality types.Quality) (types.StreamInfo, bool) {
	m.mu.RLock()
	e, ok := m.data[cacheKey(videoID, quality)]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return types.StreamInfo{}, false
	}
	return e.info, true
}

// Set stores a stream descriptor until expiresAt.
func (m *Memory) Set(_ context.Context, quality types.Quality, info types.StreamInfo, expiresAt time.Time) {
	m.mu.Lock()
	m.data[cacheKey(info.VideoID, quality)] = memoryEntry{info: info, expiresAt: expiresAt}
	m.mu.Unlock()
}

// Close is a no-op for the in-memory cache.
func (m *Memory) Close() error { return nil }
