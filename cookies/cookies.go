// Package cookies loads YouTube session cookies exported from a browser in the
// Netscape cookies.txt format and makes them usable for Innertube requests.
package cookies

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/musicd/errs"
	"github.com/ytget/musicd/internal/logger"
)

// DefaultFilename is the conventional cookie file name, expected to sit next
// to the server binary.
const DefaultFilename = "youtube_cookies.txt"

const (
	httpOnlyPrefix = "#HttpOnly_"
	fieldCount     = 7
)

// authCookieNames are the session cookies that mark a logged-in YouTube
// account. SAPISID additionally drives the SAPISIDHASH authorization header.
var authCookieNames = []string{"SAPISID", "SID", "__Secure-1PSID", "__Secure-3PSID"}

// cookieDomainSuffixes limits loaded cookies to hosts YouTube playback touches.
// Auth cookies typically live on google.com while playback happens on youtube.com.
var cookieDomainSuffixes = []string{"youtube.com", "google.com"}

// Jar holds cookies parsed from a cookies.txt export.
type Jar struct {
	cookies []*http.Cookie
	// domains mirrors cookies[i] with the domain column of the source line,
	// kept separately because http.Cookie only carries Domain for Set-Cookie.
	domains []string
	sapisid string
}

// DefaultPath returns the conventional cookie file location: DefaultFilename in
// the directory of the running executable, falling back to the working directory.
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultFilename
	}
	return filepath.Join(filepath.Dir(exe), DefaultFilename)
}

// Load reads and parses a Netscape-format cookie file. A missing file is not an
// error: streaming falls back to anonymous requests, so (nil, nil) is returned.
func Load(path string) (*Jar, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse parses Netscape cookies.txt content. Lines are tab-separated with seven
// fields: domain, include-subdomains flag, path, secure flag, expiry (unix),
// name, value. Comment and blank lines are skipped; the #HttpOnly_ prefix used
// by browser exporters is honored. Malformed lines are skipped with a warning
// rather than failing the whole file; a file with no valid cookie lines at all
// is invalid.
func Parse(r io.Reader) (*Jar, error) {
	jar := &Jar{}
	log := logger.WithComponent(logger.ComponentCookies)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sawLine := false
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if strings.HasPrefix(line, "#") {
			continue
		}
		sawLine = true
		fields := strings.Split(line, "\t")
		if len(fields) != fieldCount {
			log.Warn("skipping malformed cookie line", map[string]interface{}{
				"line": lineNo, "fields": len(fields),
			})
			continue
		}
		domain := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(fields[0])), ".")
		if !domainAllowed(domain) {
			continue
		}
		expiry, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if err != nil {
			log.Warn("skipping cookie line with bad expiry", map[string]interface{}{
				"line": lineNo, "expiry": fields[4],
			})
			continue
		}
		name := strings.TrimSpace(fields[5])
		if name == "" {
			log.Warn("skipping cookie line with empty name", map[string]interface{}{
				"line": lineNo,
			})
			continue
		}
		c := &http.Cookie{
			Name:     name,
			Value:    fields[6],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if expiry > 0 {
			c.Expires = time.Unix(expiry, 0)
		}
		jar.cookies = append(jar.cookies, c)
		jar.domains = append(jar.domains, domain)
		if name == "SAPISID" || (jar.sapisid == "" && name == "__Secure-3PAPISID") {
			jar.sapisid = c.Value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	if sawLine && len(jar.cookies) == 0 {
		return nil, errs.ErrCookiesInvalid
	}
	if len(jar.cookies) == 0 {
		return nil, nil
	}
	return jar, nil
}

func domainAllowed(domain string) bool {
	for _, suffix := range cookieDomainSuffixes {
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return true
		}
	}
	return false
}

// Len returns the number of loaded cookies.
func (j *Jar) Len() int {
	if j == nil {
		return 0
	}
	return len(j.cookies)
}

// HasAuth reports whether the jar contains at least one unexpired YouTube
// session cookie.
func (j *Jar) HasAuth() bool {
	if j == nil {
		return false
	}
	now := time.Now()
	for _, c := range j.cookies {
		if !isAuthCookie(c.Name) {
			continue
		}
		if c.Expires.IsZero() || c.Expires.After(now) {
			return true
		}
	}
	return false
}

// Expired reports whether the jar holds auth cookies but all of them expired.
func (j *Jar) Expired() bool {
	if j == nil {
		return false
	}
	hasAny := false
	for _, c := range j.cookies {
		if isAuthCookie(c.Name) {
			hasAny = true
			break
		}
	}
	return hasAny && !j.HasAuth()
}

func isAuthCookie(name string) bool {
	for _, n := range authCookieNames {
		if name == n {
			return true
		}
	}
	return false
}

// CookiesFor returns the cookies applicable to the host of the given URL.
func (j *Jar) CookiesFor(u *url.URL) []*http.Cookie {
	if j == nil || u == nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	now := time.Now()
	var out []*http.Cookie
	for i, c := range j.cookies {
		d := j.domains[i]
		if host != d && !strings.HasSuffix(host, "."+d) {
			continue
		}
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Header renders the Cookie request header value for the given URL.
func (j *Jar) Header(u *url.URL) string {
	cs := j.CookiesFor(u)
	if len(cs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// SAPISIDHash computes the SAPISIDHASH authorization value YouTube expects for
// authenticated API calls: SHA1("<unix ts> <SAPISID> <origin>") prefixed with
// the timestamp. Returns "" when no SAPISID cookie is loaded.
func (j *Jar) SAPISIDHash(origin string, now time.Time) string {
	if j == nil || j.sapisid == "" {
		return ""
	}
	ts := strconv.FormatInt(now.Unix(), 10)
	sum := sha1.Sum([]byte(ts + " " + j.sapisid + " " + origin))
	return "SAPISIDHASH " + ts + "_" + hex.EncodeToString(sum[:])
}

// Apply sets the Cookie header and, for authenticated sessions, the
// Authorization and X-Origin headers on an Innertube request.
func (j *Jar) Apply(req *http.Request, origin string) {
	if j == nil || req == nil || req.URL == nil {
		return
	}
	if h := j.Header(req.URL); h != "" {
		req.Header.Set("Cookie", h)
	}
	if auth := j.SAPISIDHash(origin, time.Now()); auth != "" {
		req.Header.Set("Authorization", auth)
		req.Header.Set("X-Origin", origin)
	}
}

// StdJar copies the loaded cookies into a standard http.CookieJar scoped to
// the YouTube and Google origins, for callers that prefer client-level jars.
func (j *Jar) StdJar() (http.CookieJar, error) {
	std, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return std, nil
	}
	for i, c := range j.cookies {
		u := &url.URL{Scheme: "https", Host: j.domains[i], Path: "/"}
		std.SetCookies(u, []*http.Cookie{c})
	}
	return std, nil
}
