// Package bili talks to the bilibili web API: video manifests, play URLs,
// user/series listings, and danmaku sidecar data.
//
// The package is a read-only collaborator for the download engine. It owns
// request throttling and the retry policy for rate-limited API calls;
// stream payload fetching lives in internal/fetch.
package bili

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	apiBase   = "https://api.bilibili.com"
	referer   = "https://www.bilibili.com"
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	pageSize = 30
	// pageDelay keeps paginated listing calls polite.
	pageDelay = 500 * time.Millisecond

	apiAttempts = 5
)

// APIError is a non-zero business code in the API envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bilibili api error %d: %s", e.Code, e.Message)
}

// rateLimited reports whether the failure is the site telling us to slow
// down (HTTP 412 or envelope code -412).
func rateLimited(status int, err error) bool {
	if status == http.StatusPreconditionFailed {
		return true
	}
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Code == -412
	}
	return false
}

type Client struct {
	http    *http.Client
	cred    Credential
	limiter *rate.Limiter
	log     *logrus.Entry

	base      string
	retryWait time.Duration
}

func NewClient(cred Credential, logger *logrus.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		cred:      cred,
		limiter:   rate.NewLimiter(rate.Every(350*time.Millisecond), 1),
		log:       logger.WithField("component", "bili"),
		base:      apiBase,
		retryWait: 3 * time.Second,
	}
}

// StreamHeaders returns the request headers every stream fetch needs.
// Bilibili CDNs reject requests without the referer.
func (c *Client) StreamHeaders() map[string]string {
	h := map[string]string{
		"Referer":    referer,
		"User-Agent": userAgent,
	}
	if !c.cred.Empty() {
		h["Cookie"] = c.cred.Cookie()
	}
	return h
}

// get performs one API call with throttling and rate-limit retry, and
// returns the envelope's data field verbatim.
func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	wait := c.retryWait
	var lastErr error

	for attempt := 1; attempt <= apiAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		status, data, err := c.getOnce(ctx, path, query)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !rateLimited(status, err) {
			return nil, err
		}
		c.log.WithFields(logrus.Fields{"path": path, "attempt": attempt}).
			Warnf("rate limited, backing off %s", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return nil, fmt.Errorf("giving up on %s after %d attempts: %w", path, apiAttempts, lastErr)
}

func (c *Client) getOnce(ctx context.Context, path string, query url.Values) (int, json.RawMessage, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	if !c.cred.Empty() {
		req.Header.Set("Cookie", c.cred.Cookie())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("parse %s response: %w", path, err)
	}
	if envelope.Code != 0 {
		return resp.StatusCode, nil, &APIError{Code: envelope.Code, Message: envelope.Message}
	}
	return resp.StatusCode, envelope.Data, nil
}

// VideoView is the resolved manifest of one video: identity, stats, and
// the ordered page list.
type VideoView struct {
	BVID     string `json:"bvid"`
	AID      int64  `json:"aid"`
	Title    string `json:"title"`
	Duration int64  `json:"duration"`
	Owner    struct {
		Mid  int64  `json:"mid"`
		Name string `json:"name"`
	} `json:"owner"`
	Stat struct {
		View    int64 `json:"view"`
		Danmaku int64 `json:"danmaku"`
	} `json:"stat"`
	Pages []struct {
		CID  int64  `json:"cid"`
		Page int    `json:"page"`
		Part string `json:"part"`
	} `json:"pages"`

	// Raw is the untouched data payload, preserved for metadata dumps.
	Raw json.RawMessage `json:"-"`
}

func (c *Client) VideoView(ctx context.Context, bvid string) (*VideoView, error) {
	data, err := c.get(ctx, "/x/web-interface/view", url.Values{"bvid": {bvid}})
	if err != nil {
		return nil, err
	}
	var view VideoView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("parse video view for %s: %w", bvid, err)
	}
	view.Raw = data
	return &view, nil
}

// PlayURL is the stream manifest of one page: the offered quality tiers
// plus either a direct (durl) stream or split DASH streams.
type PlayURL struct {
	Quality       int    `json:"quality"`
	AcceptQuality []int  `json:"accept_quality"`
	Durl          []Durl `json:"durl"`
	Dash          *Dash  `json:"dash"`
}

type Durl struct {
	Order int    `json:"order"`
	URL   string `json:"url"`
	Size  int64  `json:"size"`
}

type Dash struct {
	Video []DashStream `json:"video"`
	Audio []DashStream `json:"audio"`
}

type DashStream struct {
	ID        int    `json:"id"`
	BaseURL   string `json:"base_url"`
	Bandwidth int64  `json:"bandwidth"`
	MimeType  string `json:"mime_type"`
	Codecs    string `json:"codecs"`
}

func (c *Client) PlayURL(ctx context.Context, bvid string, cid int64) (*PlayURL, error) {
	query := url.Values{
		"bvid":  {bvid},
		"cid":   {strconv.FormatInt(cid, 10)},
		"qn":    {strconv.Itoa(127)},
		"fnval": {strconv.Itoa(4048)}, // DASH + HDR + 4K + dolby + 8K
		"fnver": {"0"},
		"fourk": {"1"},
	}
	data, err := c.get(ctx, "/x/player/playurl", query)
	if err != nil {
		return nil, err
	}
	var p PlayURL
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse play url for %s cid=%d: %w", bvid, cid, err)
	}
	return &p, nil
}

// VideoSummary is one entry in a user or series listing.
type VideoSummary struct {
	BVID    string `json:"bvid"`
	Title   string `json:"title"`
	Created int64  `json:"created"`
	Play    int64  `json:"play"`
}

// UserName resolves a display name for the output folder of user batch
// downloads.
func (c *Client) UserName(ctx context.Context, mid int64) (string, error) {
	data, err := c.get(ctx, "/x/web-interface/card", url.Values{"mid": {strconv.FormatInt(mid, 10)}})
	if err != nil {
		return "", err
	}
	var card struct {
		Card struct {
			Name string `json:"name"`
		} `json:"card"`
	}
	if err := json.Unmarshal(data, &card); err != nil {
		return "", fmt.Errorf("parse user card for mid=%d: %w", mid, err)
	}
	return card.Card.Name, nil
}

// UserVideos lists every upload of a user, newest first, walking the
// paginated archive endpoint with a polite delay between pages.
func (c *Client) UserVideos(ctx context.Context, mid int64) ([]VideoSummary, error) {
	var all []VideoSummary
	for pn := 1; ; pn++ {
		query := url.Values{
			"mid":   {strconv.FormatInt(mid, 10)},
			"pn":    {strconv.Itoa(pn)},
			"ps":    {strconv.Itoa(pageSize)},
			"order": {"pubdate"},
		}
		data, err := c.get(ctx, "/x/space/arc/search", query)
		if err != nil {
			return nil, fmt.Errorf("list videos for mid=%d page %d: %w", mid, pn, err)
		}
		var page struct {
			List struct {
				Vlist []VideoSummary `json:"vlist"`
			} `json:"list"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("parse video list for mid=%d page %d: %w", mid, pn, err)
		}
		if len(page.List.Vlist) == 0 {
			break
		}
		all = append(all, page.List.Vlist...)
		if len(page.List.Vlist) < pageSize {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pageDelay):
		}
	}
	return all, nil
}

// SeriesSummary is one collection owned by a user. Kind is "series" or
// "season"; the two flavors live behind different archive endpoints.
type SeriesSummary struct {
	ID    int64
	Title string
	Kind  string
	Total int
}

func (c *Client) UserSeries(ctx context.Context, mid int64) ([]SeriesSummary, error) {
	query := url.Values{
		"mid":       {strconv.FormatInt(mid, 10)},
		"page_num":  {"1"},
		"page_size": {"50"},
	}
	data, err := c.get(ctx, "/x/polymer/web-space/seasons_series_list", query)
	if err != nil {
		return nil, fmt.Errorf("list series for mid=%d: %w", mid, err)
	}
	var payload struct {
		ItemsLists struct {
			SeasonsList []struct {
				Meta struct {
					SeasonID int64  `json:"season_id"`
					Title    string `json:"title"`
					Total    int    `json:"total"`
				} `json:"meta"`
			} `json:"seasons_list"`
			SeriesList []struct {
				Meta struct {
					SeriesID int64  `json:"series_id"`
					Name     string `json:"name"`
					Total    int    `json:"total"`
				} `json:"meta"`
			} `json:"series_list"`
		} `json:"items_lists"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse series list for mid=%d: %w", mid, err)
	}

	var all []SeriesSummary
	for _, s := range payload.ItemsLists.SeasonsList {
		all = append(all, SeriesSummary{ID: s.Meta.SeasonID, Title: s.Meta.Title, Kind: "season", Total: s.Meta.Total})
	}
	for _, s := range payload.ItemsLists.SeriesList {
		all = append(all, SeriesSummary{ID: s.Meta.SeriesID, Title: s.Meta.Name, Kind: "series", Total: s.Meta.Total})
	}
	return all, nil
}

// SeriesVideos lists the archives of one collection. kind selects the
// endpoint flavor ("series" or "season").
func (c *Client) SeriesVideos(ctx context.Context, mid, id int64, kind string) ([]VideoSummary, error) {
	var all []VideoSummary
	for pn := 1; ; pn++ {
		var (
			path  string
			query = url.Values{"mid": {strconv.FormatInt(mid, 10)}}
		)
		switch kind {
		case "season":
			path = "/x/polymer/web-space/seasons_archives_list"
			query.Set("season_id", strconv.FormatInt(id, 10))
			query.Set("page_num", strconv.Itoa(pn))
			query.Set("page_size", strconv.Itoa(pageSize))
		case "series":
			path = "/x/series/archives"
			query.Set("series_id", strconv.FormatInt(id, 10))
			query.Set("pn", strconv.Itoa(pn))
			query.Set("ps", strconv.Itoa(pageSize))
		default:
			return nil, fmt.Errorf("unknown series kind %q (expected series or season)", kind)
		}

		data, err := c.get(ctx, path, query)
		if err != nil {
			return nil, fmt.Errorf("list %s %d page %d: %w", kind, id, pn, err)
		}
		var page struct {
			Archives []struct {
				BVID    string `json:"bvid"`
				Title   string `json:"title"`
				Pubdate int64  `json:"pubdate"`
				Stat    struct {
					View int64 `json:"view"`
				} `json:"stat"`
			} `json:"archives"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("parse %s %d page %d: %w", kind, id, pn, err)
		}
		if len(page.Archives) == 0 {
			break
		}
		for _, a := range page.Archives {
			all = append(all, VideoSummary{BVID: a.BVID, Title: a.Title, Created: a.Pubdate, Play: a.Stat.View})
		}
		if len(page.Archives) < pageSize {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pageDelay):
		}
	}
	return all, nil
}
