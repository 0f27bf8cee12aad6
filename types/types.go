package types

import "strings"

// Format describes an available media format.
type Format struct {
	Itag            int
	URL             string
	MimeType        string
	AudioQuality    string
	Bitrate         int
	Size            int64
	SignatureCipher string
}

// IsAudio reports whether the format carries an audio-only stream.
func (f Format) IsAudio() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.MimeType)), "audio/")
}

// StreamInfo is the resolved playback descriptor returned to API clients.
type StreamInfo struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url"`
	Mime    string `json:"mime"`
	Bitrate int    `json:"bitrate"`
	Itag    int    `json:"itag"`
	Source  string `json:"source"`
}

// Track describes a catalog entry (search result, trending item, recommendation).
type Track struct {
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Thumbnail string `json:"thumbnail"`
	Duration  string `json:"duration"`
}

// Quality is a coarse audio quality level requested by API clients.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// TargetBitrate returns the target bitrate in kbps for the quality level.
// Unknown values fall back to medium.
func (q Quality) TargetBitrate() int {
	switch q {
	case QualityHigh:
		return 192
	case QualityLow:
		return 96
	default:
		return 128
	}
}

// ParseQuality normalizes a user-provided quality string. Empty input means high,
// matching the default the streaming API advertises.
func ParseQuality(s string) Quality {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "high":
		return QualityHigh
	case "low":
		return QualityLow
	default:
		return QualityMedium
	}
}
