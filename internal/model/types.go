package model

import (
	"encoding/json"

	"github.com/LuneZ99/bili-downloader/internal/quality"
)

// StreamKind tags how a page's media is packaged.
type StreamKind string

const (
	// StreamDirect is a single muxed audio+video stream (FLV/MP4 durl).
	StreamDirect StreamKind = "direct"
	// StreamSplit is independent DASH audio and video streams that need
	// external interleaving.
	StreamSplit StreamKind = "split"
)

// StreamHandle locates one elementary or combined byte stream.
type StreamHandle struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"-"`
	// Length is a byte size hint, 0 when the manifest does not say.
	Length int64 `json:"length,omitempty"`
}

// StreamPlan is the resolved download plan for one page. It is computed
// once during page resolution and never re-resolved mid-job.
//
// Invariant: StreamDirect has only Video set; StreamSplit has both Video
// and Audio set.
type StreamPlan struct {
	Kind      StreamKind    `json:"kind"`
	Video     StreamHandle  `json:"video"`
	Audio     *StreamHandle `json:"audio,omitempty"`
	Tier      quality.Tier  `json:"tier"`
	Container string        `json:"container"`
}

// PageDescriptor is one part of a (possibly multi-part) video, ordered as
// the source manifest lists it. The index is 1-based and determines output
// part numbering.
type PageDescriptor struct {
	Index int    `json:"page"`
	CID   int64  `json:"cid"`
	Title string `json:"part"`
}

// VideoDescriptor is built once per job from resolved manifest data and is
// read-only afterwards.
type VideoDescriptor struct {
	BVID  string
	Title string
	Pages []PageDescriptor
	// Info is the full manifest payload as returned by the source, dumped
	// verbatim into metadata.json.
	Info json.RawMessage
}

// DownloadResult is the outcome of fetching one stream to a temp path.
type DownloadResult struct {
	Path  string
	Bytes int64
}

// PageOutcome is the terminal state of a page job. Never mutated after
// being recorded.
type PageOutcome struct {
	Page       int
	Title      string
	OutputPath string
	Err        error
}

// Completed reports whether the page produced its output file.
func (o PageOutcome) Completed() bool { return o.Err == nil }

// AggregateStatus classifies a whole video job.
type AggregateStatus string

const (
	AllOk     AggregateStatus = "all_ok"
	PartialOk AggregateStatus = "partial_ok"
	AllFailed AggregateStatus = "all_failed"
)

// JobResult is the terminal state of a video job. A video job never raises
// past its boundary; every failure mode collapses into one of these.
type JobResult struct {
	BVID   string
	Title  string
	Folder string
	Pages  []PageOutcome
	Status AggregateStatus
	// Err is the video-fatal cause when the job failed before any page
	// work (folder creation, manifest resolution), nil otherwise.
	Err error
}

// Aggregate derives the job status from its page outcomes.
func Aggregate(pages []PageOutcome) AggregateStatus {
	done := 0
	for _, p := range pages {
		if p.Completed() {
			done++
		}
	}
	switch {
	case len(pages) == 0 || done == 0:
		return AllFailed
	case done == len(pages):
		return AllOk
	default:
		return PartialOk
	}
}

// SidecarEntry is one timed-text/overlay record attached to a page. Fields
// carries the source's field set verbatim; Kind distinguishes entry types
// in the written sidecar.
type SidecarEntry struct {
	Kind   string
	Fields map[string]any
}
