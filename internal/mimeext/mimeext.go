package mimeext

import (
	"strings"
)

const (
	// DefaultExt is the extension used when MIME is unknown or empty.
	DefaultExt = "m4a"

	// ExtM4A is the file extension for MP4 audio.
	ExtM4A = "m4a"
	// ExtWebM is the file extension for WebM media.
	ExtWebM = "webm"
	// ExtMP4 is the file extension for MP4 video.
	ExtMP4 = "mp4"

	// MimeAudioMP4 is the MIME type for MP4 audio.
	MimeAudioMP4 = "audio/mp4"
	// MimeAudioWebM is the MIME type for WebM audio.
	MimeAudioWebM = "audio/webm"
	// MimeVideoMP4 is the MIME type for MP4 video.
	MimeVideoMP4 = "video/mp4"
	// MimeVideoWebM is the MIME type for WebM video.
	MimeVideoWebM = "video/webm"
)

// ExtFromMime returns file extension (without dot) for given mime type.
// Falls back to subtype or m4a if unknown.
func ExtFromMime(mime string) string {
	mime = strings.TrimSpace(mime)
	if mime == "" {
		return DefaultExt
	}
	base := mime
	if i := strings.Index(mime, ";"); i >= 0 {
		base = strings.TrimSpace(mime[:i])
	}
	switch base {
	case MimeAudioMP4:
		return ExtM4A
	case MimeAudioWebM, MimeVideoWebM:
		return ExtWebM
	case MimeVideoMP4:
		return ExtMP4
	}
	// Try subtype
	parts := strings.Split(base, "/")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}
	return DefaultExt
}

// BaseMime strips codec parameters from a MIME type, e.g.
// `audio/mp4; codecs="mp4a.40.2"` becomes `audio/mp4`.
func BaseMime(mime string) string {
	mime = strings.TrimSpace(mime)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}
