package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/LuneZ99/bili-downloader/internal/model"
)

// WriteSidecar writes one JSON object per line: the entry's source fields
// verbatim plus a "type" discriminant. Unknown fields the source grows in
// the future pass through untouched because the field set is never
// filtered here.
func WriteSidecar(path string, entries []model.SidecarEntry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, entry := range entries {
		record := make(map[string]any, len(entry.Fields)+1)
		for k, v := range entry.Fields {
			record[k] = v
		}
		record["type"] = entry.Kind
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encode sidecar entry for %s: %w", path, err)
		}
	}
	return WriteBytes(path, buf.Bytes())
}
