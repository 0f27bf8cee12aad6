// Package formats parses and selects audio formats from InnerTube player responses.
package formats

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ytget/musicd/errs"
	"github.com/ytget/musicd/types"
	"github.com/ytget/musicd/youtube/cipher"
	"github.com/ytget/musicd/youtube/innertube"
)

// ParseFormats parses the InnerTube player response and returns a list of
// available media formats (both progressive and adaptive) with minimal fields.
func ParseFormats(data *innertube.PlayerResponse) ([]types.Format, error) {
	var formats []types.Format
	allFormats := append(data.StreamingData.Formats, data.StreamingData.AdaptiveFormats...)

	for _, formatData := range allFormats {
		f, ok := formatData.(map[string]any)
		if !ok {
			continue
		}

		var itag int
		if v, ok := f["itag"].(float64); ok {
			itag = int(v)
		}

		var bitrate int
		if v, ok := f["bitrate"].(float64); ok {
			bitrate = int(v)
		}

		var size int64
		if v, ok := f["contentLength"].(string); ok {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
				size = parsed
			}
		}

		mimeType, _ := f["mimeType"].(string)
		audioQuality, _ := f["audioQuality"].(string)

		format := types.Format{
			Itag:         itag,
			MimeType:     mimeType,
			AudioQuality: audioQuality,
			Bitrate:      bitrate,
			Size:         size,
		}

		if urlVal, ok := f["url"].(string); ok {
			format.URL = urlVal
		} else if sc, ok := f["signatureCipher"].(string); ok {
			format.SignatureCipher = sc
		}

		formats = append(formats, format)
	}
	return formats, nil
}

// kbps normalizes a format bitrate to kilobits per second. Innertube reports
// bits per second; a few test fixtures and older responses already use kbps.
func kbps(bitrate int) int {
	if bitrate > 10000 {
		return bitrate / 1000
	}
	return bitrate
}

// SelectAudioFormat picks the audio-only format whose bitrate sits closest to
// the target for the requested quality level. Formats without a direct URL or
// a signatureCipher to resolve one are skipped. Returns ErrNoAudioFormat when
// nothing qualifies.
func SelectAudioFormat(formats []types.Format, quality types.Quality) (*types.Format, error) {
	target := quality.TargetBitrate()
	var best *types.Format
	bestDiff := 1 << 30
	for i := range formats {
		f := &formats[i]
		if !f.IsAudio() {
			continue
		}
		if strings.TrimSpace(f.URL) == "" && strings.TrimSpace(f.SignatureCipher) == "" {
			continue
		}
		diff := kbps(f.Bitrate) - target
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best = f
			bestDiff = diff
		}
	}
	if best == nil {
		return nil, errs.ErrNoAudioFormat
	}
	return best, nil
}

// NeedsResolution reports whether the format's URL requires cipher work before
// it can be fetched: either there is no direct URL, or the URL carries an
// n-parameter that throttles undeciphered downloads.
func NeedsResolution(f types.Format) bool {
	u := strings.TrimSpace(f.URL)
	if u == "" {
		return true
	}
	return strings.Contains(u, "&n=") || strings.Contains(u, "?n=")
}

// ResolveFormatURL builds the final downloadable URL for a selected format.
// If URL is present, optionally decodes 'n'. If signatureCipher is present,
// deciphers 's' and builds the URL.
func ResolveFormatURL(httpClient *http.Client, f types.Format, playerJSURL string) (string, error) {
	if strings.TrimSpace(f.URL) != "" {
		u, err := url.Parse(f.URL)
		if err != nil {
			return "", fmt.Errorf("parse direct url failed: %v", err)
		}
		q := u.Query()
		if nval := q.Get("n"); nval != "" {
			if nout, err := cipher.DecipherN(httpClient, playerJSURL, nval); err == nil && nout != "" {
				q.Set("n", nout)
			}
		}
		ensureStreamParams(q)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	if strings.TrimSpace(f.SignatureCipher) == "" {
		return "", fmt.Errorf("no url or signatureCipher for selected format")
	}
	parsed, err := url.ParseQuery(f.SignatureCipher)
	if err != nil {
		return "", fmt.Errorf("parse signatureCipher failed: %v", err)
	}
	sig := parsed.Get("s")
	sp := parsed.Get("sp")
	if sp == "" {
		sp = "signature"
	}
	cipherURL := parsed.Get("url")
	if cipherURL == "" || sig == "" {
		return "", fmt.Errorf("signatureCipher missing signature or url")
	}
	decodedSig, err := cipher.Decipher(httpClient, playerJSURL, sig)
	if err != nil {
		return "", fmt.Errorf("decipher signature failed: %w", errs.ErrCipherFailed)
	}
	u, err := url.Parse(cipherURL)
	if err != nil {
		return "", fmt.Errorf("parse cipher url failed: %v", err)
	}
	q := u.Query()
	q.Set(sp, decodedSig)
	if nval := q.Get("n"); nval != "" {
		if nout, err := cipher.DecipherN(httpClient, playerJSURL, nval); err == nil && nout != "" {
			q.Set("n", nout)
		}
	}
	ensureStreamParams(q)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ensureStreamParams sets the query parameters that keep googlevideo from
// throttling ranged requests or bouncing to alternate hosts.
func ensureStreamParams(q url.Values) {
	if q.Get("ratebypass") == "" {
		q.Set("ratebypass", "yes")
	}
	if q.Get("alr") == "" {
		q.Set("alr", "yes")
	}
}

// IsGoogleVideoURL reports whether the URL points at a googlevideo.com host.
// Scraped URLs from the watch page are only trusted on that host.
func IsGoogleVideoURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	h := strings.ToLower(u.Hostname())
	return h == "googlevideo.com" || strings.HasSuffix(h, ".googlevideo.com")
}
