package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LuneZ99/bili-downloader/internal/model"
)

func testFetcher(t *testing.T) *Client {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	c := New(logger)
	c.Backoff = time.Millisecond
	return c
}

func TestFetch_StreamsToDestWithProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 16*1024) // 128 KiB, multiple copy buffers
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Referer"); got != "https://www.bilibili.com" {
			t.Errorf("referer header = %q", got)
		}
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "stream.m4s")
	var lastWritten, lastTotal int64
	var monotonic = true

	handle := model.StreamHandle{
		URL:     srv.URL,
		Headers: map[string]string{"Referer": "https://www.bilibili.com"},
		Length:  int64(len(payload)),
	}
	res, err := testFetcher(t).Fetch(context.Background(), "P01 video", handle, dest, func(written, total int64) {
		if written < lastWritten {
			monotonic = false
		}
		lastWritten, lastTotal = written, total
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Bytes != int64(len(payload)) {
		t.Fatalf("bytes = %d, want %d", res.Bytes, len(payload))
	}
	if !monotonic || lastWritten != int64(len(payload)) || lastTotal != int64(len(payload)) {
		t.Fatalf("progress not monotonic to completion: written=%d total=%d", lastWritten, lastTotal)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %d bytes on disk", len(got))
	}
}

func TestFetch_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok-payload"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "stream.flv")
	res, err := testFetcher(t).Fetch(context.Background(), "P01", model.StreamHandle{URL: srv.URL}, dest, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if res.Bytes != int64(len("ok-payload")) {
		t.Fatalf("bytes = %d", res.Bytes)
	}
}

func TestFetch_FailsAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "stream.flv")
	_, err := testFetcher(t).Fetch(context.Background(), "P02 audio", model.StreamHandle{URL: srv.URL}, dest, nil)

	var transport *model.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transport.Attempts != 3 || calls.Load() != 3 {
		t.Fatalf("attempts = %d, calls = %d, want 3", transport.Attempts, calls.Load())
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("partial file left on disk after failure")
	}
}

func TestFetch_CancellationRemovesPartialFile(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 64*1024))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	dest := filepath.Join(t.TempDir(), "stream.m4s")

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := testFetcher(t).Fetch(ctx, "P01", model.StreamHandle{URL: srv.URL}, dest, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("partial file left on disk after cancellation")
	}
}

func TestFetch_FilesystemFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "missing-dir", "stream.m4s")
	_, err := testFetcher(t).Fetch(context.Background(), "P01 video", model.StreamHandle{URL: srv.URL}, dest, nil)

	var fsErr *model.FilesystemError
	if !errors.As(err, &fsErr) {
		t.Fatalf("expected FilesystemError, got %v", err)
	}
	var transport *model.TransportError
	if errors.As(err, &transport) {
		t.Fatalf("filesystem failure wrapped as TransportError: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestFetch_ShortBodyIsRetriedAsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("short"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "stream.flv")
	_, err := testFetcher(t).Fetch(context.Background(), "P01", model.StreamHandle{URL: srv.URL, Length: 1000}, dest, nil)

	var transport *model.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError for short body, got %v", err)
	}
}
