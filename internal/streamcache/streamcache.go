// Package streamcache caches resolved stream URLs keyed by video ID and
// quality. Entries expire with the googlevideo URL itself, so a hit can be
// returned to clients without touching YouTube again.
package streamcache

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/ytget/musicd/types"
)

// Cache stores resolved stream descriptors with a TTL.
type Cache interface {
	Get(ctx context.Context, videoID string, quality types.Quality) (types.StreamInfo, bool)
	Set(ctx context.Context, quality types.Quality, info types.StreamInfo, expiresAt time.Time)
	Close() error
}

// ExpiryOf derives the usable lifetime of a stream URL. googlevideo URLs carry
// an `expire` unix-seconds parameter; when present it wins (minus a safety
// margin), otherwise defaultTTL from now is used.
func ExpiryOf(streamURL string, defaultTTL time.Duration, now time.Time) time.Time {
	const margin = 5 * time.Minute
	if u, err := url.Parse(streamURL); err == nil {
		if raw := u.Query().Get("expire"); raw != "" {
			if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
				exp := time.Unix(sec, 0).Add(-margin)
				if exp.After(now) {
					return exp
				}
			}
		}
	}
	return now.Add(defaultTTL)
}
