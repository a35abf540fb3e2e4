package store

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/LuneZ99/bili-downloader/internal/model"
)

const (
	MetadataFile = "metadata.json"

	downloaderVersion = "bili-downloader/1.0"
)

// Metadata is the per-video manifest dump. Crawl holds the only
// crawl-time varying fields; everything else is a function of the source
// manifest, so re-runs against an unchanged video produce equivalent
// files.
type Metadata struct {
	Crawl             CrawlInfo              `json:"crawl"`
	DownloaderVersion string                 `json:"downloader_version"`
	VideoInfo         json.RawMessage        `json:"video_info"`
	Pages             []model.PageDescriptor `json:"pages_info"`
}

type CrawlInfo struct {
	ID   string `json:"id"`
	Time string `json:"time"`
}

// WriteMetadata writes metadata.json into the video folder. Called exactly
// once per video job, before any page work, so the record exists even when
// every page fails.
func WriteMetadata(dir string, video *model.VideoDescriptor) error {
	meta := Metadata{
		Crawl: CrawlInfo{
			ID:   uuid.New().String(),
			Time: time.Now().UTC().Format(time.RFC3339),
		},
		DownloaderVersion: downloaderVersion,
		VideoInfo:         video.Info,
		Pages:             video.Pages,
	}
	return WriteJSON(filepath.Join(dir, MetadataFile), meta)
}
