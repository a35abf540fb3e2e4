// Package download runs the per-video acquisition pipeline: resolve each
// page's stream plan, fetch the streams, and mux them into playable files.
package download

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/LuneZ99/bili-downloader/internal/bili"
	"github.com/LuneZ99/bili-downloader/internal/fetch"
	"github.com/LuneZ99/bili-downloader/internal/model"
	"github.com/LuneZ99/bili-downloader/internal/mux"
	"github.com/LuneZ99/bili-downloader/internal/quality"
	"github.com/LuneZ99/bili-downloader/internal/sanitize"
)

// Source resolves manifests and sidecar data for the pipeline. Satisfied
// by *bili.Client.
type Source interface {
	VideoView(ctx context.Context, bvid string) (*bili.VideoView, error)
	PlayURL(ctx context.Context, bvid string, cid int64) (*bili.PlayURL, error)
	Danmaku(ctx context.Context, cid int64) ([]model.SidecarEntry, error)
	StreamHeaders() map[string]string
}

// Fetcher downloads one stream to a temp path. Satisfied by *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, name string, h model.StreamHandle, dest string, progress fetch.ProgressFunc) (model.DownloadResult, error)
}

// Muxer assembles fetched inputs into the output container. Satisfied by
// *mux.Adapter.
type Muxer interface {
	Mux(ctx context.Context, plan *model.StreamPlan, inputs map[string]string, output string) error
}

// Event is a progress notification for UIs. Phase mirrors the page state
// machine; Written/Total are only set while fetching.
type Event struct {
	BVID    string
	Title   string
	Page    int
	Pages   int
	Phase   string
	Written int64
	Total   int64
}

// Options tune one video job.
type Options struct {
	Auth     quality.AuthLevel
	Override quality.Tier
	// Danmaku enables best-effort sidecar retrieval per page.
	Danmaku bool
	// PageWorkers > 1 opts in to concurrent pages within one video.
	// Videos, not pages, stay the unit of outer concurrency.
	PageWorkers int
	// Events receives progress notifications; may be nil. Must be safe
	// for concurrent use when PageWorkers > 1.
	Events func(Event)
}

func (o Options) notify(ev Event) {
	if o.Events != nil {
		o.Events(ev)
	}
}

// FolderName builds the per-video output folder segment, leaving room for
// the identifier suffix inside common filename limits.
func FolderName(title, bvid string) string {
	return sanitize.Name(title, sanitize.FolderTitleLen) + "_" + bvid
}

// OutputName builds the page's output filename. Single-page videos use the
// bare title; multi-page videos append the zero-padded part number and the
// part title.
func OutputName(videoTitle string, page model.PageDescriptor, pageCount int) string {
	main := sanitize.Name(videoTitle, sanitize.MaxTitleLen)
	if pageCount <= 1 {
		return main + mux.OutputExt
	}
	part := sanitize.Name(page.Title, sanitize.MaxPartLen)
	return fmt.Sprintf("%s_P%02d_%s%s", main, page.Index, part, mux.OutputExt)
}

// SidecarName is the danmaku sidecar filename matching OutputName's stem.
func SidecarName(videoTitle string, page model.PageDescriptor, pageCount int) string {
	out := OutputName(videoTitle, page, pageCount)
	return out[:len(out)-len(mux.OutputExt)] + "_danmaku.jsonl"
}

func tempName(dir string, pageIndex int, role, container string) string {
	return filepath.Join(dir, fmt.Sprintf(".tmp_P%02d_%s.%s", pageIndex, role, container))
}
