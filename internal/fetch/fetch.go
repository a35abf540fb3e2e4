// Package fetch streams remote byte streams to local temp files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/LuneZ99/bili-downloader/internal/model"
)

// ProgressFunc receives the byte count written so far and the total when a
// length hint exists (total is 0 otherwise). Callers derive a monotonic
// fraction from it.
type ProgressFunc func(written, total int64)

const (
	defaultAttempts = 3
	defaultBackoff  = 2 * time.Second
	copyBufSize     = 32 * 1024
)

type Client struct {
	HTTP     *http.Client
	Attempts int
	// Backoff grows linearly: attempt n waits n*Backoff before retrying.
	Backoff time.Duration

	log *logrus.Entry
}

func New(logger *logrus.Logger) *Client {
	return &Client{
		HTTP: &http.Client{
			// No overall deadline: stream sizes vary wildly. The header
			// timeout catches dead connections instead.
			Transport: &http.Transport{ResponseHeaderTimeout: 30 * time.Second},
		},
		Attempts: defaultAttempts,
		Backoff:  defaultBackoff,
		log:      logger.WithField("component", "fetch"),
	}
}

// Fetch downloads one stream to dest, never holding the payload in memory.
// Transport failures are retried with linear backoff; the partial file is
// discarded before every retry, on cancellation, and on final failure.
func (c *Client) Fetch(ctx context.Context, name string, h model.StreamHandle, dest string, progress ProgressFunc) (model.DownloadResult, error) {
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := time.Duration(attempt-1) * c.Backoff
			c.log.WithField("stream", name).Warnf("retrying in %s (attempt %d/%d): %v", wait, attempt, attempts, lastErr)
			select {
			case <-ctx.Done():
				return model.DownloadResult{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		written, err := c.attempt(ctx, h, dest, progress)
		if err == nil {
			c.log.WithField("stream", name).Debugf("fetched %s", humanize.Bytes(uint64(written)))
			return model.DownloadResult{Path: dest, Bytes: written}, nil
		}

		_ = os.Remove(dest)
		if ctx.Err() != nil {
			return model.DownloadResult{}, ctx.Err()
		}
		var fsErr *model.FilesystemError
		if errors.As(err, &fsErr) {
			// A local write failure will not heal on retry.
			return model.DownloadResult{}, err
		}
		lastErr = err
	}

	return model.DownloadResult{}, &model.TransportError{
		Stream:   name,
		URL:      h.URL,
		Attempts: attempts,
		Err:      lastErr,
	}
}

func (c *Client) attempt(ctx context.Context, h model.StreamHandle, dest string, progress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return 0, err
	}
	for name, value := range h.Headers {
		req.Header.Set(name, value)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	total := h.Length
	if total == 0 && resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, &model.FilesystemError{Path: dest, Err: err}
	}

	var written int64
	buf := make([]byte, copyBufSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				_ = f.Close()
				return written, &model.FilesystemError{Path: dest, Err: writeErr}
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			_ = f.Close()
			return written, readErr
		}
	}

	if err := f.Close(); err != nil {
		return written, &model.FilesystemError{Path: dest, Err: err}
	}
	if total > 0 && written < total {
		return written, fmt.Errorf("short read: got %d of %d bytes", written, total)
	}
	return written, nil
}
