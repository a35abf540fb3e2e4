package bili

import (
	"bytes"
	"compress/flate"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/LuneZ99/bili-downloader/internal/model"
)

// danmaku attribute order in the legacy list.so "p" field.
var danmakuFields = []string{
	"progress", "mode", "fontsize", "color", "send_time", "pool", "mid_hash", "dmid",
}

// Danmaku fetches the danmaku track for one page and maps every entry to a
// sidecar record. Entries from the special pool (BAS and advanced danmaku)
// get the "special" kind; everything else is "regular".
func (c *Client) Danmaku(ctx context.Context, cid int64) ([]model.SidecarEntry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.base + "/x/v1/dm/list.so?oid=" + strconv.FormatInt(cid, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	if !c.cred.Empty() {
		req.Header.Set("Cookie", c.cred.Cookie())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch danmaku for cid=%d: %w", cid, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch danmaku for cid=%d: unexpected status %d", cid, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read danmaku for cid=%d: %w", cid, err)
	}
	// list.so serves raw-deflate XML unless a proxy already inflated it.
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
		inflated, err := io.ReadAll(flate.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("inflate danmaku for cid=%d: %w", cid, err)
		}
		body = inflated
	}

	return parseDanmakuXML(body)
}

func parseDanmakuXML(data []byte) ([]model.SidecarEntry, error) {
	var doc struct {
		Entries []struct {
			P    string `xml:"p,attr"`
			Text string `xml:",chardata"`
		} `xml:"d"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse danmaku xml: %w", err)
	}

	entries := make([]model.SidecarEntry, 0, len(doc.Entries))
	for _, d := range doc.Entries {
		fields := map[string]any{"text": d.Text}
		attrs := strings.Split(d.P, ",")
		for i, name := range danmakuFields {
			if i >= len(attrs) {
				break
			}
			fields[name] = attrValue(name, attrs[i])
		}
		// Attributes beyond the known set ride through untouched.
		for i := len(danmakuFields); i < len(attrs); i++ {
			fields[fmt.Sprintf("extra_%d", i-len(danmakuFields))] = attrs[i]
		}

		kind := "regular"
		if pool, ok := fields["pool"].(int64); ok && pool == 2 {
			kind = "special"
		}
		entries = append(entries, model.SidecarEntry{Kind: kind, Fields: fields})
	}
	return entries, nil
}

func attrValue(name, raw string) any {
	switch name {
	case "progress":
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	case "mode", "fontsize", "color", "send_time", "pool", "dmid":
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	}
	return raw
}
