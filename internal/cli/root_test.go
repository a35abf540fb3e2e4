package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/LuneZ99/bili-downloader/internal/batch"
	"github.com/LuneZ99/bili-downloader/internal/model"
)

func TestRun_UnknownCommand(t *testing.T) {
	err := Run([]string{"frobnicate"})
	if err == nil {
		t.Fatalf("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "frobnicate") {
		t.Fatalf("error does not name the command: %v", err)
	}
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	if err := Run(nil); err != nil {
		t.Fatalf("bare invocation should not fail: %v", err)
	}
}

func TestDownloadVideo_RequiresBVID(t *testing.T) {
	if err := runDownloadVideo(nil); err == nil {
		t.Fatalf("expected error without identifiers")
	}
	err := runDownloadVideo([]string{"av12345"})
	if err == nil || !strings.Contains(err.Error(), "BV") {
		t.Fatalf("av identifiers should be rejected, got %v", err)
	}
}

func TestDownloadUser_RequiresMid(t *testing.T) {
	if err := runDownloadUser(nil); err == nil {
		t.Fatalf("expected error without --mid")
	}
}

func TestDownloadSeries_ValidatesKind(t *testing.T) {
	err := runDownloadSeries([]string{"--mid", "1", "--series-id", "2", "--kind", "playlist"})
	if err == nil || !strings.Contains(err.Error(), "kind") {
		t.Fatalf("bad kind should be rejected, got %v", err)
	}
}

func TestPrintSummary_ListsFailedPagesOfPartialVideos(t *testing.T) {
	summary := batch.Summary{
		Results: []model.JobResult{
			{BVID: "BV1a", Title: "lecture", Status: model.AllOk},
			{
				BVID:   "BV2b",
				Title:  "course",
				Status: model.PartialOk,
				Pages: []model.PageOutcome{
					{Page: 1, Title: "intro"},
					{Page: 2, Title: "outro", Err: errors.New("audio stream unavailable")},
				},
			},
		},
		Ok:      1,
		Partial: 1,
	}

	var out bytes.Buffer
	if err := printSummary(&out, summary); err != nil {
		t.Fatalf("printSummary: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "P02: audio stream unavailable") {
		t.Fatalf("failed page not listed:\n%s", got)
	}
	if strings.Contains(got, "P01") {
		t.Fatalf("completed page listed as failed:\n%s", got)
	}
	if !strings.Contains(got, "total: 1 ok, 1 partial, 0 failed") {
		t.Fatalf("totals line wrong:\n%s", got)
	}
}

func TestPrintSummary_AllFailedReturnsError(t *testing.T) {
	summary := batch.Summary{
		Results: []model.JobResult{
			{BVID: "BV1a", Status: model.AllFailed, Err: errors.New("api down")},
		},
		Failed: 1,
	}
	var out bytes.Buffer
	if err := printSummary(&out, summary); err == nil {
		t.Fatalf("expected error when every download failed")
	}
	if !strings.Contains(out.String(), "api down") {
		t.Fatalf("failure reason missing:\n%s", out.String())
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "b", "c"); got != "b" {
		t.Fatalf("firstNonEmpty = %q", got)
	}
	if got := firstNonEmpty("", " "); got != "" {
		t.Fatalf("firstNonEmpty = %q, want empty", got)
	}
}
