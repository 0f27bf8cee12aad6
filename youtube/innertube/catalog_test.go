package innertube

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const searchFixture = `{
  "contents": {
    "sectionListRenderer": {
      "contents": [
        {
          "itemSectionRenderer": {
            "contents": [
              {
                "videoRenderer": {
                  "videoId": "vid-1",
                  "title": {"runs": [{"text": "First Song"}]},
                  "longBylineText": {"runs": [{"text": "Artist One"}]},
                  "lengthText": {"simpleText": "3:45"},
                  "thumbnail": {"thumbnails": [
                    {"url": "https://i.ytimg.com/vi/vid-1/small.jpg"},
                    {"url": "https://i.ytimg.com/vi/vid-1/large.jpg"}
                  ]}
                }
              },
              {
                "videoRenderer": {
                  "videoId": "vid-1",
                  "title": {"runs": [{"text": "Duplicate Entry"}]}
                }
              },
              {
                "compactVideoRenderer": {
                  "videoId": "vid-2",
                  "title": {"simpleText": "Second Song"},
                  "shortBylineText": {"runs": [{"text": "Artist Two"}]},
                  "lengthText": {"simpleText": "4:12"}
                }
              },
              {"shelfRenderer": {"title": {"simpleText": "not a video"}}}
            ]
          }
        }
      ]
    }
  }
}`

const musicFixture = `{
  "contents": [{
    "musicResponsiveListItemRenderer": {
      "playlistItemData": {"videoId": "music-1"},
      "flexColumns": [{
        "musicResponsiveListItemFlexColumnRenderer": {
          "text": {"runs": [{"text": "Music Title"}]}
        }
      }],
      "thumbnail": {
        "musicThumbnailRenderer": {
          "thumbnail": {"thumbnails": [{"url": "https://i.ytimg.com/music.jpg"}]}
        }
      }
    }
  }]
}`

func TestTracksFromJSON(t *testing.T) {
	tracks, err := tracksFromJSON([]byte(searchFixture), 10)
	if err != nil {
		t.Fatalf("tracksFromJSON: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2 (dedup applied): %+v", len(tracks), tracks)
	}
	first := tracks[0]
	if first.VideoID != "vid-1" || first.Title != "First Song" || first.Artist != "Artist One" {
		t.Fatalf("first = %+v", first)
	}
	if first.Duration != "3:45" {
		t.Fatalf("duration = %q", first.Duration)
	}
	if first.Thumbnail != "https://i.ytimg.com/vi/vid-1/large.jpg" {
		t.Fatalf("thumbnail should be the last (largest) entry, got %q", first.Thumbnail)
	}
	if tracks[1].VideoID != "vid-2" || tracks[1].Title != "Second Song" {
		t.Fatalf("second = %+v", tracks[1])
	}
}

func TestTracksFromJSONLimit(t *testing.T) {
	tracks, err := tracksFromJSON([]byte(searchFixture), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
}

func TestTracksFromJSONDeterministicOrder(t *testing.T) {
	// Renderer nodes under sibling object keys must come out in a stable
	// order even when limit truncates the walk.
	fixture := `{
		"zTab": {"videoRenderer": {"videoId": "vid-z", "title": {"simpleText": "Z"}}},
		"aTab": {"videoRenderer": {"videoId": "vid-a", "title": {"simpleText": "A"}}},
		"mTab": {"videoRenderer": {"videoId": "vid-m", "title": {"simpleText": "M"}}}
	}`
	for i := 0; i < 10; i++ {
		tracks, err := tracksFromJSON([]byte(fixture), 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(tracks) != 2 {
			t.Fatalf("got %d tracks, want 2", len(tracks))
		}
		if tracks[0].VideoID != "vid-a" || tracks[1].VideoID != "vid-m" {
			t.Fatalf("run %d: got %q, %q; want vid-a, vid-m", i, tracks[0].VideoID, tracks[1].VideoID)
		}
	}
}

func TestTracksFromJSONMusicRenderer(t *testing.T) {
	tracks, err := tracksFromJSON([]byte(musicFixture), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
	got := tracks[0]
	if got.VideoID != "music-1" || got.Title != "Music Title" {
		t.Fatalf("track = %+v", got)
	}
	if got.Thumbnail != "https://i.ytimg.com/music.jpg" {
		t.Fatalf("thumbnail = %q", got.Thumbnail)
	}
}

func TestSearchEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchFixture))
	}))
	defer server.Close()

	c := New(server.Client(), ProfileWeb).WithBaseURL(server.URL)
	tracks, err := c.Search("test songs", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotPath != searchPath {
		t.Errorf("path = %q", gotPath)
	}
	if len(tracks) != 2 {
		t.Errorf("got %d tracks", len(tracks))
	}
}

func TestTrendingEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchFixture))
	}))
	defer server.Close()

	c := New(server.Client(), ProfileWeb).WithBaseURL(server.URL)
	if _, err := c.Trending(5); err != nil {
		t.Fatalf("Trending: %v", err)
	}
	if gotPath != browsePath {
		t.Errorf("path = %q", gotPath)
	}
}

func TestRelatedFiltersSelf(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchFixture))
	}))
	defer server.Close()

	c := New(server.Client(), ProfileWeb).WithBaseURL(server.URL)
	tracks, err := c.Related("vid-1", 5)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	for _, tr := range tracks {
		if tr.VideoID == "vid-1" {
			t.Fatal("watch-next should not include the seed video")
		}
	}
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
}
