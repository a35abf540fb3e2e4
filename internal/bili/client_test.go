package bili

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	c := NewClient(Credential{}, logger)
	c.base = srv.URL
	c.retryWait = time.Millisecond
	return c
}

func TestVideoView_ParsesEnvelopeAndKeepsRaw(t *testing.T) {
	payload := `{"code":0,"message":"0","data":{"bvid":"BV1xx411c7mD","aid":42,"title":"t","owner":{"mid":7,"name":"up"},"pages":[{"cid":100,"page":1,"part":"P1"},{"cid":101,"page":2,"part":"P2"}],"future_field":"kept"}}`
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x/web-interface/view" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("bvid"); got != "BV1xx411c7mD" {
			t.Fatalf("bvid = %q", got)
		}
		fmt.Fprint(w, payload)
	}))

	view, err := c.VideoView(context.Background(), "BV1xx411c7mD")
	if err != nil {
		t.Fatalf("VideoView: %v", err)
	}
	if view.Title != "t" || len(view.Pages) != 2 || view.Pages[1].CID != 101 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if len(view.Raw) == 0 {
		t.Fatalf("raw manifest payload not preserved")
	}
}

func TestGet_RetriesRateLimitedCalls(t *testing.T) {
	var calls atomic.Int64
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			fmt.Fprint(w, `{"code":-412,"message":"request blocked"}`)
			return
		}
		fmt.Fprint(w, `{"code":0,"message":"0","data":{"ok":true}}`)
	}))
	c.limiter.SetLimit(1e6)

	if _, err := c.get(context.Background(), "/anything", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestGet_DoesNotRetryBusinessErrors(t *testing.T) {
	var calls atomic.Int64
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"code":-404,"message":"video not found"}`)
	}))
	c.limiter.SetLimit(1e6)

	_, err := c.get(context.Background(), "/x/web-interface/view", nil)
	if err == nil {
		t.Fatalf("expected error for code -404")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want no retry", got)
	}
}

func TestUserVideos_WalksPagination(t *testing.T) {
	pages := map[string]string{
		"1": `{"code":0,"data":{"list":{"vlist":[` + manyVideos(30, 0) + `]}}}`,
		"2": `{"code":0,"data":{"list":{"vlist":[{"bvid":"BVlast","title":"last","created":1,"play":2}]}}}`,
	}
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pages[r.URL.Query().Get("pn")])
	}))
	c.limiter.SetLimit(1e6)

	videos, err := c.UserVideos(context.Background(), 477317922)
	if err != nil {
		t.Fatalf("UserVideos: %v", err)
	}
	if len(videos) != 31 {
		t.Fatalf("videos = %d, want 31", len(videos))
	}
	if videos[30].BVID != "BVlast" {
		t.Fatalf("last entry = %+v", videos[30])
	}
}

func manyVideos(n, offset int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"bvid":"BV%04d","title":"v%d","created":%d,"play":0}`, offset+i, offset+i, offset+i)
	}
	return out
}

func TestStreamHeaders_CarriesRefererAndCookie(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	anon := NewClient(Credential{}, logger)
	h := anon.StreamHeaders()
	if h["Referer"] != referer || h["User-Agent"] == "" {
		t.Fatalf("headers missing referer or user agent: %v", h)
	}
	if _, ok := h["Cookie"]; ok {
		t.Fatalf("anonymous client must not send a cookie")
	}

	authed := NewClient(Credential{SESSDATA: "abc", BiliJCT: "jct"}, logger)
	cookie := authed.StreamHeaders()["Cookie"]
	if cookie != "SESSDATA=abc; bili_jct=jct" {
		t.Fatalf("cookie = %q", cookie)
	}
}
