package extractor

import (
	"fmt"
	"strings"

	"github.com/ytget/musicd/errs"
	"github.com/ytget/musicd/youtube/innertube"
)

// playabilityError maps an Innertube playability status onto the sentinel
// error taxonomy. A nil return means the video is playable.
func playabilityError(pr *innertube.PlayerResponse) error {
	status := strings.ToUpper(strings.TrimSpace(pr.PlayabilityStatus.Status))
	reason := pr.PlayabilityStatus.Reason
	lower := strings.ToLower(reason)

	switch status {
	case "", "OK":
		return nil
	case "LOGIN_REQUIRED", "AGE_CHECK_REQUIRED", "CONTENT_CHECK_REQUIRED":
		if strings.Contains(lower, "private") {
			return fmt.Errorf("%w: %s", errs.ErrPrivate, reason)
		}
		return fmt.Errorf("%w: %s", errs.ErrLoginRequired, reason)
	case "UNPLAYABLE", "ERROR":
		switch {
		case strings.Contains(lower, "private"):
			return fmt.Errorf("%w: %s", errs.ErrPrivate, reason)
		case strings.Contains(lower, "country") || strings.Contains(lower, "region"):
			return fmt.Errorf("%w: %s", errs.ErrGeoBlocked, reason)
		case strings.Contains(lower, "rate") || strings.Contains(lower, "quota"):
			return fmt.Errorf("%w: %s", errs.ErrRateLimited, reason)
		}
		return fmt.Errorf("%w: %s", errs.ErrVideoUnavailable, reason)
	}
	return fmt.Errorf("%w: status %s: %s", errs.ErrVideoUnavailable, status, reason)
}
