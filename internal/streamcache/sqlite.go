package streamcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ytget/musicd/internal/logger"
	"github.com/ytget/musicd/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS stream_urls (
	video_id   TEXT NOT NULL,
	quality    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL,
	mime       TEXT NOT NULL DEFAULT '',
	bitrate    INTEGER NOT NULL DEFAULT 0,
	itag       INTEGER NOT NULL DEFAULT 0,
	source     TEXT NOT NULL DEFAULT '',
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (video_id, quality)
);
CREATE INDEX IF NOT EXISTS idx_stream_urls_expires ON stream_urls (expires_at);
`

// SQLite persists resolved stream URLs across restarts.
type SQLite struct {
	sqlDB *sql.DB
	log   *logger.ComponentLogger
}

// OpenSQLite opens (or creates) the cache database and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{sqlDB: sqlDB, log: logger.WithComponent(logger.ComponentCache)}, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get returns an unexpired cached stream descriptor.
func (s *SQLite) Get(ctx context.Context, videoID string, quality types.Quality) (types.StreamInfo, bool) {
	if s == nil || s.sqlDB == nil {
		return types.StreamInfo{}, false
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT title, url, mime, bitrate, itag, source, expires_at FROM stream_urls WHERE video_id = ? AND quality = ?`,
		videoID, string(quality))
	var info types.StreamInfo
	var expiresAt int64
	if err := row.Scan(&info.Title, &info.URL, &info.Mime, &info.Bitrate, &info.Itag, &info.Source, &expiresAt); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("cache read failed", map[string]interface{}{"videoId": videoID, "error": err.Error()})
		}
		return types.StreamInfo{}, false
	}
	if time.Now().UnixMilli() >= expiresAt {
		// Lazy expiry; the row is replaced on the next Set.
		return types.StreamInfo{}, false
	}
	info.VideoID = videoID
	return info, true
}

// Set upserts a stream descriptor.
func (s *SQLite) Set(ctx context.Context, quality types.Quality, info types.StreamInfo, expiresAt time.Time) {
	if s == nil || s.sqlDB == nil {
		return
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO stream_urls (video_id, quality, title, url, mime, bitrate, itag, source, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (video_id, quality) DO UPDATE SET
			title = excluded.title, url = excluded.url, mime = excluded.mime, bitrate = excluded.bitrate,
			itag = excluded.itag, source = excluded.source, expires_at = excluded.expires_at`,
		info.VideoID, string(quality), info.Title, info.URL, info.Mime, info.Bitrate, info.Itag, info.Source,
		expiresAt.UnixMilli())
	if err != nil {
		s.log.Warn("cache write failed", map[string]interface{}{"videoId": info.VideoID, "error": err.Error()})
	}
}

// Purge removes expired rows. Safe to call periodically.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, nil
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM stream_urls WHERE expires_at <= ?`, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
