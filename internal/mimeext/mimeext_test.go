package mimeext

import "testing"

func TestExtFromMime(t *testing.T) {
	cases := []struct {
		mime string
		want string
	}{
		{"", DefaultExt},
		{"audio/mp4", "m4a"},
		{`audio/mp4; codecs="mp4a.40.2"`, "m4a"},
		{`audio/webm; codecs="opus"`, "webm"},
		{"video/webm", "webm"},
		{"video/mp4", "mp4"},
		{"audio/ogg", "ogg"},
		{"garbage", DefaultExt},
	}
	for _, tc := range cases {
		if got := ExtFromMime(tc.mime); got != tc.want {
			t.Fatalf("ExtFromMime(%q) = %q, want %q", tc.mime, got, tc.want)
		}
	}
}

func TestBaseMime(t *testing.T) {
	cases := []struct {
		mime string
		want string
	}{
		{`audio/mp4; codecs="mp4a.40.2"`, "audio/mp4"},
		{"audio/webm", "audio/webm"},
		{"  audio/mp4 ; codecs=x", "audio/mp4"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := BaseMime(tc.mime); got != tc.want {
			t.Fatalf("BaseMime(%q) = %q, want %q", tc.mime, got, tc.want)
		}
	}
}
