// Package downloader fetches audio streams with chunked ranged HTTP requests,
// simple retry/backoff, and optional rate limiting. Streams can be written to
// any io.Writer (the server proxy path) or saved to a file with resume
// support.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/musicd/internal/logger"
)

const (
	defaultChunkSizeBytes  = 1 << 20 // 1MB
	defaultMaxRetries      = 3       // chunk retries
	temporaryFileSuffix    = ".tmp"  // suffix for temp download
	initialBackoffDuration = 200 * time.Millisecond
	maxBackoffDuration     = 3 * time.Second
	copyBufferSizeBytes    = 32 * 1024 // 32KB

	headerRange          = "Range"
	headerContentRange   = "Content-Range"
	headerContentLength  = "Content-Length"
	headerUserAgent      = "User-Agent"
	headerAccept         = "Accept"
	headerAcceptLanguage = "Accept-Language"
	headerAcceptEncoding = "Accept-Encoding"
	headerConnection     = "Connection"
	headerCacheControl   = "Cache-Control"

	successMinHTTPStatusCode      = 200
	successMaxHTTPStatusExclusive = 400

	userAgentValue = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
)

// Progress holds information about download progress.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// Downloader fetches media with chunked HTTP requests.
type Downloader struct {
	Client       *http.Client
	ProgressFunc func(Progress)

	chunkSize    int64
	maxRetries   int
	rateLimitBps int64
	log          *logger.ComponentLogger
}

// New creates a new downloader instance with sane defaults.
// If client is nil, a default http.Client is used. rateLimitBps=0 disables limiting.
func New(client *http.Client, progressFunc func(Progress), rateLimitBps int64) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	return &Downloader{
		Client:       client,
		ProgressFunc: progressFunc,
		chunkSize:    defaultChunkSizeBytes,
		maxRetries:   defaultMaxRetries,
		rateLimitBps: rateLimitBps,
		log:          logger.WithComponent(logger.ComponentDownloader),
	}
}

func isGoogleVideoHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	h := strings.ToLower(u.Host)
	return strings.HasSuffix(h, ".googlevideo.com") || h == "googlevideo.com"
}

func sizeFromHeaders(h http.Header) (int64, bool) {
	if cr := h.Get(headerContentRange); cr != "" {
		parts := strings.Split(cr, "/")
		if len(parts) == 2 {
			if v, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				return v, true
			}
		}
	}
	if cl := h.Get(headerContentLength); cl != "" {
		if v, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func (d *Downloader) probeRequest(ctx context.Context, method, urlStr string) *http.Request {
	req, _ := http.NewRequestWithContext(ctx, method, urlStr, nil)
	req.Header.Set(headerUserAgent, userAgentValue)
	req.Header.Set(headerAccept, "*/*")
	req.Header.Set(headerAcceptEncoding, "identity")
	req.Header.Set(headerConnection, "keep-alive")
	req.Header.Set(headerCacheControl, "no-cache")
	req.Header.Set(headerRange, "bytes=0-1")
	if !isGoogleVideoHost(urlStr) {
		req.Header.Set(headerAcceptLanguage, "en-US,en;q=0.9")
	}
	return req
}

// DetectTotalSize tries HEAD first, then GET range 0-1 to infer total size.
// googlevideo hosts reject HEAD, so the GET probe goes first there.
func (d *Downloader) DetectTotalSize(ctx context.Context, urlStr string) (int64, error) {
	if !isGoogleVideoHost(urlStr) {
		headResp, err := d.Client.Do(d.probeRequest(ctx, "HEAD", urlStr))
		if err == nil && headResp != nil {
			defer func() { _ = headResp.Body.Close() }()
			d.log.Debug("HEAD probe", map[string]interface{}{"status": headResp.StatusCode})
			if v, ok := sizeFromHeaders(headResp.Header); ok {
				return v, nil
			}
		}
	}

	getResp, err := d.Client.Do(d.probeRequest(ctx, "GET", urlStr))
	if err != nil {
		return 0, err
	}
	defer func() { _ = getResp.Body.Close() }()
	d.log.Debug("GET range probe", map[string]interface{}{"status": getResp.StatusCode})
	if v, ok := sizeFromHeaders(getResp.Header); ok {
		return v, nil
	}
	return 0, errors.New("cannot determine total size")
}

// sleepForRate enforces simple rate limit based on bytes written in this step.
func (d *Downloader) sleepForRate(written int64) {
	if d.rateLimitBps <= 0 || written <= 0 {
		return
	}
	dur := time.Duration(int64(time.Second) * written / d.rateLimitBps)
	if dur > 0 {
		time.Sleep(dur)
	}
}

// Stream fetches the media at urlStr and writes it to w, starting at offset
// zero. It is the transport behind the server's proxy endpoint.
func (d *Downloader) Stream(ctx context.Context, urlStr string, w io.Writer) (int64, error) {
	totalSize, err := d.DetectTotalSize(ctx, urlStr)
	if err != nil {
		d.log.Warn("could not determine total size", map[string]interface{}{"error": err.Error()})
		totalSize = 0
	}
	return d.copyChunks(ctx, urlStr, w, 0, totalSize)
}

// copyChunks transfers [offset, totalSize) in ranged chunks. totalSize==0
// means unknown size; chunks continue until the server stops returning
// partial content.
func (d *Downloader) copyChunks(ctx context.Context, urlStr string, w io.Writer, offset, totalSize int64) (int64, error) {
	downloaded := offset
	for downloaded < totalSize || totalSize == 0 {
		start := downloaded
		end := start + d.chunkSize - 1
		if totalSize > 0 && end >= totalSize {
			end = totalSize - 1
		}

		resp, err := d.fetchChunk(ctx, urlStr, start, end)
		if err != nil {
			return downloaded - offset, err
		}

		buf := make([]byte, copyBufferSizeBytes)
		totalRead := int64(0)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					_ = resp.Body.Close()
					return downloaded - offset, fmt.Errorf("failed to write chunk: %v", werr)
				}
				downloaded += int64(n)
				totalRead += int64(n)
				if d.ProgressFunc != nil {
					p := Progress{TotalSize: totalSize, DownloadedSize: downloaded}
					if totalSize > 0 {
						p.Percent = float64(downloaded) / float64(totalSize) * 100
					}
					d.ProgressFunc(p)
				}
				d.sleepForRate(int64(n))
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				_ = resp.Body.Close()
				return downloaded - offset, fmt.Errorf("failed to read response body: %v", rerr)
			}
		}
		partial := resp.StatusCode == http.StatusPartialContent
		_ = resp.Body.Close()

		if totalSize == 0 {
			// Unknown size: a full (200) response or a short chunk means the
			// server sent everything it had.
			if !partial || totalRead < d.chunkSize {
				break
			}
			continue
		}
		if downloaded >= totalSize {
			break
		}
		if totalRead == 0 {
			return downloaded - offset, fmt.Errorf("no data for range %d-%d", start, end)
		}
	}
	return downloaded - offset, nil
}

// fetchChunk requests a byte range with retry/backoff.
func (d *Downloader) fetchChunk(ctx context.Context, urlStr string, start, end int64) (*http.Response, error) {
	var resp *http.Response
	var lastErr error
	backoff := initialBackoffDuration
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		req, _ := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		req.Header.Set(headerUserAgent, userAgentValue)
		req.Header.Set(headerAccept, "*/*")
		req.Header.Set(headerAcceptEncoding, "identity")
		req.Header.Set(headerConnection, "keep-alive")
		req.Header.Set(headerCacheControl, "no-cache")
		if !isGoogleVideoHost(urlStr) {
			req.Header.Set(headerAcceptLanguage, "en-US,en;q=0.9")
		}
		req.Header.Set(headerRange, fmt.Sprintf("bytes=%d-%d", start, end))

		resp, lastErr = d.Client.Do(req)
		if lastErr == nil && resp != nil && resp.StatusCode >= successMinHTTPStatusCode && resp.StatusCode < successMaxHTTPStatusExclusive {
			return resp, nil
		}
		if resp != nil {
			if resp.Body != nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			}
			lastErr = fmt.Errorf("HTTP status %d", resp.StatusCode)
		}
		d.log.Debug("chunk request failed", map[string]interface{}{
			"attempt": attempt + 1,
			"range":   fmt.Sprintf("%d-%d", start, end),
			"error":   lastErr.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoffDuration {
			backoff = maxBackoffDuration
		}
	}
	return nil, fmt.Errorf("download chunk failed: %v", lastErr)
}

// Download downloads a file by URL and saves it to outputPath. It supports
// resuming from an existing temporary file and reports progress periodically.
func (d *Downloader) Download(ctx context.Context, urlStr string, outputPath string) error {
	d.log.Info("starting download", map[string]interface{}{"output": outputPath})

	tmpPath := outputPath + temporaryFileSuffix
	var outFile *os.File
	var err error
	if _, statErr := os.Stat(tmpPath); statErr == nil {
		outFile, err = os.OpenFile(tmpPath, os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open tmp for append: %v", err)
		}
		d.log.Debug("resuming from existing temp file")
	} else {
		outFile, err = os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %v", err)
		}
	}
	defer func() { _ = outFile.Close() }()

	currentInfo, _ := outFile.Stat()
	downloaded := currentInfo.Size()

	totalSize, err := d.DetectTotalSize(ctx, urlStr)
	if err != nil {
		d.log.Warn("could not determine total size", map[string]interface{}{"error": err.Error()})
		totalSize = 0
	}

	if _, err := d.copyChunks(ctx, urlStr, outFile, downloaded, totalSize); err != nil {
		return err
	}

	if fi, err := os.Stat(tmpPath); err == nil {
		if fi.Size() == 0 {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("empty download: 0 bytes written")
		}
	}

	return os.Rename(tmpPath, outputPath)
}
