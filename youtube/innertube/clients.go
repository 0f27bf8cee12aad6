package innertube

import "strings"

// Profile describes an Innertube client identity. YouTube shapes playback
// URLs and gating differently per client, which is what makes client rotation
// a useful fallback when one of them is blocked.
type Profile struct {
	Name    string
	Version string
	// Host is the API host, www.youtube.com or music.youtube.com.
	Host string
	// UserAgent overrides the request User-Agent when non-empty.
	UserAgent string
	// AndroidSDK enriches the client context for the ANDROID client.
	AndroidSDK int
}

// Origin returns the Origin/Referer base for this profile's host.
func (p Profile) Origin() string {
	return "https://" + p.Host
}

// Well-known client profiles, ordered roughly by extraction reliability for
// audio streams.
var (
	// ProfileWebRemix is the YouTube Music web client.
	ProfileWebRemix = Profile{
		Name:    "WEB_REMIX",
		Version: "1.20240401.01.00",
		Host:    "music.youtube.com",
	}
	// ProfileAndroid is the Android app client; its formats usually come with
	// direct URLs that need no signature deciphering.
	ProfileAndroid = Profile{
		Name:       "ANDROID",
		Version:    "19.09.37",
		Host:       "www.youtube.com",
		AndroidSDK: 30,
	}
	// ProfileWeb is the desktop web client.
	ProfileWeb = Profile{
		Name:    "WEB",
		Version: "2.20240401.01.00",
		Host:    "www.youtube.com",
	}
	// ProfileIOS is the iOS app client, a secondary rotation target.
	ProfileIOS = Profile{
		Name:      "IOS",
		Version:   "19.09.3",
		Host:      "www.youtube.com",
		UserAgent: "com.google.ios.youtube/19.09.3 (iPhone14,3; U; CPU iOS 15_6 like Mac OS X)",
	}
)

// clientCodeFromName returns the numeric X-YouTube-Client-Name code for known clients.
func clientCodeFromName(name string) string {
	switch strings.ToUpper(name) {
	case "WEB":
		return "1"
	case "MWEB":
		return "2"
	case "ANDROID":
		return "3"
	case "IOS":
		return "5"
	case "TVHTML5":
		return "7"
	case "WEB_EMBEDDED_PLAYER":
		return "56"
	case "WEB_CREATOR":
		return "62"
	case "WEB_REMIX":
		return "67"
	default:
		return ""
	}
}

// contextFor builds the Innertube request context for a profile, and returns
// the User-Agent the HTTP request should carry.
func contextFor(p Profile) (map[string]any, string) {
	clientMap := map[string]any{
		"clientName":    p.Name,
		"clientVersion": p.Version,
	}
	ua := p.UserAgent
	if strings.EqualFold(p.Name, "ANDROID") {
		clientMap["androidSdkVersion"] = p.AndroidSDK
		clientMap["osName"] = "Android"
		clientMap["osVersion"] = "11"
		ua = "com.google.android.youtube/" + p.Version + " (Linux; U; Android 11) gzip"
	}
	if ua == "" {
		ua = userAgentValue
	}
	clientMap["userAgent"] = ua
	return map[string]any{"client": clientMap}, ua
}
