package errs

import (
	"errors"
)

var (
	// ErrVideoUnavailable indicates that the requested video cannot be accessed.
	ErrVideoUnavailable = errors.New("video unavailable")
	// ErrPrivate indicates that the video is private and cannot be streamed.
	ErrPrivate = errors.New("video is private")
	// ErrLoginRequired indicates the video demands an authenticated session.
	// Loading a youtube_cookies.txt file usually clears this.
	ErrLoginRequired = errors.New("login required")
	// ErrCipherFailed indicates failure during signature deciphering.
	ErrCipherFailed = errors.New("cipher failed")
	// ErrGeoBlocked indicates the video is not available in the current region.
	ErrGeoBlocked = errors.New("geo blocked")
	// ErrRateLimited indicates throttling or rate limiting by the remote service.
	ErrRateLimited = errors.New("rate limited")
	// ErrNoAudioFormat indicates that no usable audio format was offered.
	ErrNoAudioFormat = errors.New("no audio format available")
	// ErrAllStrategiesFailed indicates that every extraction strategy was exhausted.
	ErrAllStrategiesFailed = errors.New("all extraction strategies failed")
	// ErrCookiesInvalid indicates that the cookie file could not be parsed.
	ErrCookiesInvalid = errors.New("cookie file invalid")
)

// IsPermanent reports whether an extraction error is tied to the video itself
// rather than to the strategy that produced it. Permanent errors short-circuit
// the fallback chain because every strategy would fail the same way.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrVideoUnavailable) ||
		errors.Is(err, ErrPrivate) ||
		errors.Is(err, ErrGeoBlocked)
}
