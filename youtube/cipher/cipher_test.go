package cipher

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func reverseRunes(r []rune) []rune {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return r
}

func spliceRunes(r []rune, n int) []rune {
	if n < 0 || n > len(r) {
		return r
	}
	return r[n:]
}

func TestFetchPlayerJS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>var cfg = {"jsUrl":"\/s\/player\/abc123\/base.js"};</html>`))
	}))
	defer server.Close()

	got, err := FetchPlayerJS(server.Client(), server.URL)
	if err != nil {
		t.Fatalf("FetchPlayerJS error: %v", err)
	}
	want := ytBase + "/s/player/abc123/base.js"
	if got != want {
		t.Errorf("FetchPlayerJS() = %q, want %q", got, want)
	}
}

func TestFetchPlayerJS_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>no player here</html>`))
	}))
	defer server.Close()

	_, err := FetchPlayerJS(server.Client(), server.URL)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !IsNotFound(err) {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestDecipherWithOtto(t *testing.T) {
	playerJSContent, err := os.ReadFile("testdata/player.js")
	if err != nil {
		t.Fatalf("Failed to read test player.js: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(playerJSContent)
	}))
	defer server.Close()

	// Example of an encrypted signature
	encryptedSig := "ABCDEFGHIJKLMNabcdefghijklmnopqrstuvwxyz0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqr"

	// Compute the expected value using the same steps: reverse -> splice(26) -> reverse
	r := []rune(encryptedSig)
	r = reverseRunes(r)
	r = spliceRunes(r, 26)
	r = reverseRunes(r)
	expectedSig := string(r)

	deciphered, err := Decipher(server.Client(), server.URL, encryptedSig)
	if err != nil {
		t.Fatalf("Decipher returned an error: %v", err)
	}

	if deciphered != expectedSig {
		t.Errorf("Decipher() got = %v, want %v", deciphered, expectedSig)
	}

	// Second call comes from the signature cache
	cached, err := Decipher(server.Client(), server.URL, encryptedSig)
	if err != nil {
		t.Fatalf("Decipher (cached) returned an error: %v", err)
	}
	if cached != expectedSig {
		t.Errorf("Decipher (cached) got = %v, want %v", cached, expectedSig)
	}
}

func TestDecipherN(t *testing.T) {
	playerJSContent, err := os.ReadFile("testdata/player.js")
	if err != nil {
		t.Fatalf("Failed to read test player.js: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(playerJSContent)
	}))
	defer server.Close()

	in := "abcdef"
	want := "fedcba"
	got, err := DecipherN(server.Client(), server.URL, in)
	if err != nil {
		t.Fatalf("DecipherN error: %v", err)
	}
	if got != want {
		t.Fatalf("DecipherN got=%q want=%q", got, want)
	}
}

func TestDecipherN_NoNcode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`function other(a){return a};`))
	}))
	defer server.Close()

	in := "nvalue123"
	got, err := DecipherN(server.Client(), server.URL, in)
	if err != nil {
		t.Fatalf("DecipherN error: %v", err)
	}
	if got != in {
		t.Fatalf("DecipherN without ncode should return input unchanged, got %q", got)
	}
}

func TestHTTPClientCreation(t *testing.T) {
	// Test that HTTP client is created with HTTP/1.1 transport
	client := &http.Client{
		Transport: &http.Transport{
			ForceAttemptHTTP2: false,
		},
		Timeout: 30 * time.Second,
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("Transport is not *http.Transport")
	}

	if transport.ForceAttemptHTTP2 {
		t.Error("HTTP/2 should be disabled")
	}
}

func TestFallbackPatterns(t *testing.T) {
	// Test fallback pattern detection
	playerJS := `
		function decipher(a) {
			a = a.split("");
			a.reverse();
			a.splice(0, 2);
			return a.join("");
		}
	`

	steps := detectFallbackPatterns(playerJS)
	if len(steps) == 0 {
		t.Error("Expected fallback patterns to be detected")
	}

	// Check that reverse pattern was detected
	foundReverse := false
	for _, step := range steps {
		if step.op == "rev" {
			foundReverse = true
			break
		}
	}
	if !foundReverse {
		t.Error("Expected reverse pattern to be detected")
	}
}

func TestRegexSwap(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		n        int
		expected string
	}{
		{
			name:     "Swap with n=0",
			input:    "abcdef",
			n:        0,
			expected: "abcdef",
		},
		{
			name:     "Swap with n=1",
			input:    "abcdef",
			n:        1,
			expected: "bacdef",
		},
		{
			name:     "Swap with n=3",
			input:    "abcdef",
			n:        3,
			expected: "dbcaef",
		},
		{
			name:     "Swap with n > len",
			input:    "abc",
			n:        10,
			expected: "bac",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := string(regexSwap([]rune(tt.input), tt.n))
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestDetectFallbackPatterns(t *testing.T) {
	tests := []struct {
		name     string
		playerJS string
		expected int // Expected number of steps
	}{
		{
			name:     "Empty player JS",
			playerJS: "",
			expected: 3, // Function returns 3 steps for empty string
		},
		{
			name:     "Player JS with reverse and join",
			playerJS: "function test(a) { a.reverse(); a.join(''); }",
			expected: 1,
		},
		{
			name:     "Player JS with splice call-site",
			playerJS: "function test(a) { a.splice(param, 3); }",
			expected: 1,
		},
		{
			name:     "Player JS with splice object form",
			playerJS: "function test(a) { a.splice(0, 5); }",
			expected: 1,
		},
		{
			name:     "Player JS with swap pattern",
			playerJS: "a[0]=a[2]%a.length",
			expected: 1,
		},
		{
			name:     "Player JS with charCodeAt",
			playerJS: "function test(a) { a.charCodeAt(0); }",
			expected: 1,
		},
		{
			name:     "Player JS with fromCharCode",
			playerJS: "function test(a) { String.fromCharCode(65); }",
			expected: 1,
		},
		{
			name:     "Player JS with multiple patterns",
			playerJS: "function test(a) { a.reverse(); a.splice(param, 2); a.charCodeAt(0); }",
			expected: 2,
		},
		{
			name:     "Player JS with splice but no valid pattern",
			playerJS: "function test(a) { a.splice(); }",
			expected: 10, // Should add 10 fallback splice steps
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := detectFallbackPatterns(tt.playerJS)
			if len(steps) != tt.expected {
				t.Errorf("Expected %d steps, got %d", tt.expected, len(steps))
			}
		})
	}
}
