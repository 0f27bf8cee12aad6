/*
Package cipher implements YouTube signature decryption.

Stream URLs returned by the player API may carry an encrypted signature
(signatureCipher) or a throttled n-parameter. Both are transformed by
functions defined in the page's player.js; this package fetches that
script, derives the transforms and applies them.

# Architecture

1. Cache Layer
  - Deciphered signatures are cached with TTL to avoid repeated work
  - player.js content is cached to reduce network requests
  - Periodic cleanup removes expired entries

2. Decryption Layer
  - Regex-based parser (fast path, no JS execution)
  - Full otto execution (fallback)
  - Pattern-based detection (last resort inside the regex parser)

3. Error Handling
  - Structured errors with codes and details
  - Helper functions for error type checking

# Usage

	client := &http.Client{}

	playerJSURL, err := cipher.FetchPlayerJS(client, watchURL)
	if err != nil {
		return err
	}
	deciphered, err := cipher.Decipher(client, playerJSURL, signature)
	if err != nil {
		switch {
		case cipher.IsNotFound(err):
			// player.js or signature not found
		case cipher.IsJSError(err):
			// JS execution error
		default:
			// other errors
		}
		return err
	}

# Caching

1. player.js cache: keyed by URL, TTL 10 minutes.
2. Signature cache: keyed by raw signature, TTL 30 minutes.

Cache cleanup runs every 5 minutes to remove expired entries.

# Thread Safety

All cache and metrics operations are protected by mutexes. The provided
HTTP client is shared across calls and must itself be safe for
concurrent use.
*/
package cipher
