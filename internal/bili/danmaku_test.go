package bili

import (
	"bytes"
	"compress/flate"
	"context"
	"net/http"
	"testing"
)

const danmakuXML = `<?xml version="1.0" encoding="UTF-8"?><i>
<d p="12.5,1,25,16777215,1700000000,0,abcd1234,99887766">前排</d>
<d p="30.0,7,25,16711680,1700000001,2,ffff0000,99887767,futureattr">BAS弹幕</d>
</i>`

func TestParseDanmakuXML(t *testing.T) {
	entries, err := parseDanmakuXML([]byte(danmakuXML))
	if err != nil {
		t.Fatalf("parseDanmakuXML: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	regular := entries[0]
	if regular.Kind != "regular" {
		t.Fatalf("kind = %q, want regular", regular.Kind)
	}
	if regular.Fields["text"] != "前排" {
		t.Fatalf("text = %v", regular.Fields["text"])
	}
	if regular.Fields["progress"] != 12.5 {
		t.Fatalf("progress = %v", regular.Fields["progress"])
	}
	if regular.Fields["color"] != int64(16777215) {
		t.Fatalf("color = %v", regular.Fields["color"])
	}

	special := entries[1]
	if special.Kind != "special" {
		t.Fatalf("kind = %q, want special for pool 2", special.Kind)
	}
	// Attributes beyond the known set must survive, not be dropped.
	if special.Fields["extra_0"] != "futureattr" {
		t.Fatalf("extra attr lost: %v", special.Fields)
	}
}

func TestDanmaku_InflatesDeflateBody(t *testing.T) {
	var deflated bytes.Buffer
	fw, _ := flate.NewWriter(&deflated, flate.DefaultCompression)
	if _, err := fw.Write([]byte(danmakuXML)); err != nil {
		t.Fatalf("compress fixture: %v", err)
	}
	fw.Close()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("oid") != "100" {
			t.Fatalf("oid = %q", r.URL.Query().Get("oid"))
		}
		w.Write(deflated.Bytes())
	}))
	c.limiter.SetLimit(1e6)

	entries, err := c.Danmaku(context.Background(), 100)
	if err != nil {
		t.Fatalf("Danmaku: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
}
