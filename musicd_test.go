package musicd

import (
	"strings"
	"testing"

	"github.com/ytget/musicd/cookies"
	"github.com/ytget/musicd/internal/config"
	"github.com/ytget/musicd/internal/streamcache"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?app=desktop&v=dQw4w9WgXcQ&feature=youtu.be", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=token", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/brZCOVlyPPo", "brZCOVlyPPo"},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ&list=RDAMVM", "dQw4w9WgXcQ"},
		{"  dQw4w9WgXcQ  ", "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		got, err := ExtractVideoID(tc.input)
		if err != nil {
			t.Fatalf("%s -> error: %v (want %s)", tc.input, err, tc.want)
		}
		if got != tc.want {
			t.Fatalf("%s -> got %s (want %s)", tc.input, got, tc.want)
		}
	}
}

func TestExtractVideoID_Invalid(t *testing.T) {
	cases := []string{
		"",
		"short",
		"https://www.youtube.com/watch?foo=bar",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/playlist?list=PLxxxx",
		"not a url at all",
	}
	for _, input := range cases {
		got, err := ExtractVideoID(input)
		if got != "" || err == nil {
			t.Fatalf("%s -> got=%q err=%v; want empty id and error", input, got, err)
		}
	}
}

func TestService_InitAnonymous(t *testing.T) {
	cfg := config.Config{
		Port:        10000,
		Quality:     "high",
		CookiesFile: t.TempDir() + "/missing_cookies.txt",
	}
	s := New(cfg).WithCache(streamcache.NewMemory())
	if err := s.Init(); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	defer func() { _ = s.Close() }()
}

func TestService_InitWithCookies(t *testing.T) {
	jar, err := cookies.Parse(strings.NewReader(
		"# Netscape HTTP Cookie File\n" +
			".youtube.com\tTRUE\t/\tTRUE\t9999999999\tSAPISID\tvalue123\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	cfg := config.Config{Port: 10000, Quality: "medium"}
	s := New(cfg).WithCookies(jar).WithCache(streamcache.NewMemory())
	if err := s.Init(); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	defer func() { _ = s.Close() }()
}
