package cipher

import (
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/robertkrimen/otto"

	"github.com/ytget/musicd/internal/logger"
)

const (
	userAgentValue   = "Mozilla/5.0"
	ytBase           = "https://www.youtube.com"
	playerJSURLRe    = `"jsUrl":"([^"]+)"`
	decipherFuncName = "decipher"
	ncodeFuncName    = "ncode"
	jsURLGroupIndex  = 1 // capture group index for jsUrl
)

var (
	playerJSURLRegex = regexp.MustCompile(playerJSURLRe)
)

// player.js and deciphered-signature caches, keyed by URL and raw signature.
var (
	playerJSCache   = make(map[string]playerJSCacheEntry)
	playerJSCacheMu sync.Mutex

	signatureCache   = make(map[string]signatureCacheEntry)
	signatureCacheMu sync.Mutex
)

type playerJSCacheEntry struct {
	body  []byte
	expAt time.Time
}

type signatureCacheEntry struct {
	value string
	expAt time.Time
}

const (
	playerJSTTL     = 10 * time.Minute
	signatureTTL    = 30 * time.Minute
	cleanupInterval = 5 * time.Minute
)

var metrics = struct {
	totalRequests     int64
	cacheHits         int64
	cacheMisses       int64
	avgDecipherTime   time.Duration
	totalDecipherTime time.Duration
	mu                sync.Mutex
}{}

var cleanupOnce sync.Once

func startCleanup() {
	cleanupOnce.Do(func() {
		go func() {
			for range time.Tick(cleanupInterval) {
				now := time.Now()
				playerJSCacheMu.Lock()
				for url, entry := range playerJSCache {
					if now.After(entry.expAt) {
						delete(playerJSCache, url)
					}
				}
				playerJSCacheMu.Unlock()
				signatureCacheMu.Lock()
				for sig, entry := range signatureCache {
					if now.After(entry.expAt) {
						delete(signatureCache, sig)
					}
				}
				signatureCacheMu.Unlock()
			}
		}()
	})
}

func recordDecipherTime(d time.Duration) {
	metrics.mu.Lock()
	metrics.totalDecipherTime += d
	if metrics.totalRequests > 0 {
		metrics.avgDecipherTime = metrics.totalDecipherTime / time.Duration(metrics.totalRequests)
	}
	metrics.mu.Unlock()
}

func getPlayerJS(httpClient *http.Client, playerJSURL string) ([]byte, error) {
	playerJSCacheMu.Lock()
	entry, ok := playerJSCache[playerJSURL]
	if ok && time.Now().Before(entry.expAt) {
		body := entry.body
		playerJSCacheMu.Unlock()
		return body, nil
	}
	playerJSCacheMu.Unlock()

	req, err := http.NewRequest("GET", playerJSURL, nil)
	if err != nil {
		return nil, NewError(ErrCodePlayerJSDownload, "failed to create request for player.js", err.Error())
	}
	req.Header.Set("User-Agent", userAgentValue)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, NewError(ErrCodePlayerJSDownload, "failed to download player.js", err.Error())
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(ErrCodePlayerJSDownload, "failed to read player.js content", err.Error())
	}

	playerJSCacheMu.Lock()
	playerJSCache[playerJSURL] = playerJSCacheEntry{body: body, expAt: time.Now().Add(playerJSTTL)}
	playerJSCacheMu.Unlock()
	return body, nil
}

// FetchPlayerJS finds the player.js URL by requesting the provided video page URL
// and scraping the "jsUrl" field from the response.
func FetchPlayerJS(httpClient *http.Client, videoURL string) (string, error) {
	req, err := http.NewRequest("GET", videoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgentValue)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	matches := playerJSURLRegex.FindSubmatch(body)
	if len(matches) <= jsURLGroupIndex || len(matches[jsURLGroupIndex]) == 0 {
		return "", NewError(ErrCodePlayerJSNotFound, "could not find player js url in video page")
	}

	playerJSURL := strings.Replace(string(matches[jsURLGroupIndex]), `\/`, `/`, -1)

	return ytBase + playerJSURL, nil
}

// Decipher decrypts a signature. Deciphered values are cached per raw
// signature; the regex parser is tried first, then otto execution.
func Decipher(httpClient *http.Client, playerJSURL string, signature string) (string, error) {
	startCleanup()
	start := time.Now()
	log := logger.WithComponent(logger.ComponentCipher)

	metrics.mu.Lock()
	metrics.totalRequests++
	metrics.mu.Unlock()

	signatureCacheMu.Lock()
	if entry, ok := signatureCache[signature]; ok && time.Now().Before(entry.expAt) {
		value := entry.value
		signatureCacheMu.Unlock()
		metrics.mu.Lock()
		metrics.cacheHits++
		metrics.mu.Unlock()
		return value, nil
	}
	signatureCacheMu.Unlock()

	metrics.mu.Lock()
	metrics.cacheMisses++
	metrics.mu.Unlock()

	playerJSContent, err := getPlayerJS(httpClient, playerJSURL)
	if err != nil {
		return "", err
	}

	// Fast path: regex parser
	if out, ok := tryRegexDecipher(string(playerJSContent), signature); ok {
		cacheSignature(signature, out)
		recordDecipherTime(time.Since(start))
		return out, nil
	}
	log.Debug("regex decipher failed, falling back to otto")

	vm := otto.New()
	_, err = vm.Run(string(playerJSContent))
	if err != nil {
		return "", NewError(ErrCodeJSExecutionFailed, "failed to run player.js in otto", err.Error())
	}

	value, err := vm.Call(decipherFuncName, nil, signature)
	if err != nil {
		return "", NewError(ErrCodeSignatureDecipher, "failed to call decipher function", err.Error())
	}

	result, err := value.ToString()
	if err != nil {
		return "", NewError(ErrCodeSignatureDecipher, "decipher function did not return a string", err.Error())
	}

	cacheSignature(signature, result)
	recordDecipherTime(time.Since(start))
	return result, nil
}

func cacheSignature(signature, value string) {
	signatureCacheMu.Lock()
	signatureCache[signature] = signatureCacheEntry{value: value, expAt: time.Now().Add(signatureTTL)}
	signatureCacheMu.Unlock()
}

// DecipherN decodes the n-parameter (throttling) if player.js contains ncode().
func DecipherN(httpClient *http.Client, playerJSURL string, nval string) (string, error) {
	playerJSContent, err := getPlayerJS(httpClient, playerJSURL)
	if err != nil {
		return "", err
	}
	vm := otto.New()
	_, err = vm.Run(string(playerJSContent))
	if err != nil {
		return "", NewError(ErrCodeJSExecutionFailed, "failed to run player.js in otto", err.Error())
	}
	// Try to call ncode; if absent return the original value
	fn, err := vm.Get(ncodeFuncName)
	if err != nil || !fn.IsFunction() {
		return nval, nil
	}
	value, err := vm.Call(ncodeFuncName, nil, nval)
	if err != nil {
		return "", NewError(ErrCodeSignatureDecipher, "failed to call ncode function", err.Error())
	}
	result, err := value.ToString()
	if err != nil {
		return "", NewError(ErrCodeSignatureDecipher, "ncode did not return a string", err.Error())
	}
	return result, nil
}
