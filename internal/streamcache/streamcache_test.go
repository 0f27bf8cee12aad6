package streamcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ytget/musicd/types"
)

func sampleInfo() types.StreamInfo {
	return types.StreamInfo{
		VideoID: "abc123",
		URL:     "https://rr1---sn-test.googlevideo.com/videoplayback?itag=140",
		Mime:    "audio/mp4",
		Bitrate: 128,
		Itag:    140,
		Source:  "youtube_music_api",
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	info := sampleInfo()

	if _, ok := c.Get(ctx, info.VideoID, types.QualityHigh); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set(ctx, types.QualityHigh, info, time.Now().Add(time.Hour))
	got, ok := c.Get(ctx, info.VideoID, types.QualityHigh)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.URL != info.URL || got.Itag != info.Itag {
		t.Fatalf("got %+v", got)
	}
	// Quality is part of the key.
	if _, ok := c.Get(ctx, info.VideoID, types.QualityLow); ok {
		t.Fatal("hit for different quality")
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	info := sampleInfo()
	c.Set(ctx, types.QualityHigh, info, time.Now().Add(-time.Second))
	if _, ok := c.Get(ctx, info.VideoID, types.QualityHigh); ok {
		t.Fatal("expired entry returned")
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = c.Close() }()

	info := sampleInfo()
	if _, ok := c.Get(ctx, info.VideoID, types.QualityHigh); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set(ctx, types.QualityHigh, info, time.Now().Add(time.Hour))
	got, ok := c.Get(ctx, info.VideoID, types.QualityHigh)
	if !ok {
		t.Fatal("expected hit")
	}
	if got != info {
		t.Fatalf("got %+v, want %+v", got, info)
	}

	// Upsert replaces.
	info.URL = "https://rr2---sn-test.googlevideo.com/videoplayback?itag=251"
	info.Itag = 251
	c.Set(ctx, types.QualityHigh, info, time.Now().Add(time.Hour))
	got, ok = c.Get(ctx, info.VideoID, types.QualityHigh)
	if !ok || got.Itag != 251 {
		t.Fatalf("upsert failed: %+v", got)
	}
}

func TestSQLiteExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = c.Close() }()

	info := sampleInfo()
	c.Set(ctx, types.QualityHigh, info, time.Now().Add(-time.Minute))
	if _, ok := c.Get(ctx, info.VideoID, types.QualityHigh); ok {
		t.Fatal("expired entry returned")
	}
	n, err := c.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d rows, want 1", n)
	}
}

func TestSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestExpiryOf(t *testing.T) {
	now := time.Unix(1700000000, 0)

	// URL expire param wins, minus the safety margin.
	u := "https://rr1---sn-test.googlevideo.com/videoplayback?expire=1700010000&itag=140"
	got := ExpiryOf(u, time.Hour, now)
	want := time.Unix(1700010000, 0).Add(-5 * time.Minute)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// Already-expired param falls back to default TTL.
	u = "https://host/videoplayback?expire=1600000000"
	got = ExpiryOf(u, time.Hour, now)
	if !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("got %v, want now+1h", got)
	}

	// No param falls back to default TTL.
	got = ExpiryOf("https://host/videoplayback", 30*time.Minute, now)
	if !got.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("got %v, want now+30m", got)
	}
}
