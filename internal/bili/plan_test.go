package bili

import (
	"errors"
	"testing"

	"github.com/LuneZ99/bili-downloader/internal/model"
	"github.com/LuneZ99/bili-downloader/internal/quality"
)

var testHeaders = map[string]string{"Referer": referer}

func TestBuildPlan_DirectStream(t *testing.T) {
	p := &PlayURL{
		AcceptQuality: []int{16, 32, 64},
		Durl: []Durl{
			{Order: 1, URL: "https://cdn.example.com/stream/123.flv?token=x", Size: 4096},
		},
	}

	plan, err := BuildPlan(p, testHeaders, quality.AuthNone, quality.TierNone)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Kind != model.StreamDirect {
		t.Fatalf("kind = %s, want direct", plan.Kind)
	}
	if plan.Tier != quality.Tier720p {
		t.Fatalf("tier = %s, want 720p", plan.Tier)
	}
	if plan.Audio != nil {
		t.Fatalf("direct plan must not carry an audio handle")
	}
	if plan.Video.Length != 4096 {
		t.Fatalf("length hint = %d, want 4096", plan.Video.Length)
	}
	if plan.Container != "flv" {
		t.Fatalf("container = %q, want flv", plan.Container)
	}
}

func TestBuildPlan_DirectMP4Container(t *testing.T) {
	p := &PlayURL{
		AcceptQuality: []int{16},
		Durl:          []Durl{{URL: "https://cdn.example.com/v/abc.mp4", Size: 1}},
	}
	plan, err := BuildPlan(p, testHeaders, quality.AuthNone, quality.TierNone)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Container != "mp4" {
		t.Fatalf("container = %q, want mp4", plan.Container)
	}
}

func TestBuildPlan_SplitPicksTierAndBestAudio(t *testing.T) {
	p := &PlayURL{
		AcceptQuality: []int{16, 64, 80, 120},
		Dash: &Dash{
			Video: []DashStream{
				{ID: 16, BaseURL: "https://cdn/v16", Bandwidth: 300_000},
				{ID: 80, BaseURL: "https://cdn/v80-avc", Bandwidth: 2_000_000},
				{ID: 80, BaseURL: "https://cdn/v80-hevc", Bandwidth: 2_400_000},
				{ID: 120, BaseURL: "https://cdn/v120", Bandwidth: 6_000_000},
			},
			Audio: []DashStream{
				{ID: 30216, BaseURL: "https://cdn/a-low", Bandwidth: 67_000},
				{ID: 30280, BaseURL: "https://cdn/a-high", Bandwidth: 320_000},
			},
		},
	}

	plan, err := BuildPlan(p, testHeaders, quality.AuthNone, quality.TierNone)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Kind != model.StreamSplit {
		t.Fatalf("kind = %s, want split", plan.Kind)
	}
	// Anonymous caller: 4k is inadmissible, 1080p wins, and within the
	// tier the higher bandwidth rendition is taken.
	if plan.Tier != quality.Tier1080p {
		t.Fatalf("tier = %s, want 1080p", plan.Tier)
	}
	if plan.Video.URL != "https://cdn/v80-hevc" {
		t.Fatalf("video url = %q, want the higher bandwidth 1080p rendition", plan.Video.URL)
	}
	if plan.Audio == nil || plan.Audio.URL != "https://cdn/a-high" {
		t.Fatalf("audio handle = %+v, want the max bitrate stream", plan.Audio)
	}
}

func TestBuildPlan_SplitMissingAudioIsIncomplete(t *testing.T) {
	p := &PlayURL{
		AcceptQuality: []int{64},
		Dash: &Dash{
			Video: []DashStream{{ID: 64, BaseURL: "https://cdn/v", Bandwidth: 1}},
		},
	}
	_, err := BuildPlan(p, testHeaders, quality.AuthMember, quality.TierNone)
	var incomplete *model.IncompleteManifestError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteManifestError, got %v", err)
	}
	if incomplete.Missing != "audio" {
		t.Fatalf("missing = %q, want audio", incomplete.Missing)
	}
}

func TestBuildPlan_SplitMissingVideoIsIncomplete(t *testing.T) {
	p := &PlayURL{
		AcceptQuality: []int{64},
		Dash: &Dash{
			Audio: []DashStream{{ID: 30280, BaseURL: "https://cdn/a", Bandwidth: 1}},
		},
	}
	_, err := BuildPlan(p, testHeaders, quality.AuthMember, quality.TierNone)
	var incomplete *model.IncompleteManifestError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteManifestError, got %v", err)
	}
	if incomplete.Missing != "video" {
		t.Fatalf("missing = %q, want video", incomplete.Missing)
	}
}

func TestBuildPlan_EmptyManifestIsNoStreams(t *testing.T) {
	if _, err := BuildPlan(&PlayURL{}, testHeaders, quality.AuthMember, quality.TierNone); !errors.Is(err, quality.ErrNoStreamsOffered) {
		t.Fatalf("expected ErrNoStreamsOffered, got %v", err)
	}
}

func TestBuildPlan_OverrideSelectsOfferedDashTier(t *testing.T) {
	p := &PlayURL{
		Dash: &Dash{
			Video: []DashStream{
				{ID: 16, BaseURL: "https://cdn/v16", Bandwidth: 1},
				{ID: 64, BaseURL: "https://cdn/v64", Bandwidth: 2},
			},
			Audio: []DashStream{{ID: 30280, BaseURL: "https://cdn/a", Bandwidth: 1}},
		},
	}
	plan, err := BuildPlan(p, testHeaders, quality.AuthMember, quality.Tier360p)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Tier != quality.Tier360p || plan.Video.URL != "https://cdn/v16" {
		t.Fatalf("override ignored: tier=%s url=%s", plan.Tier, plan.Video.URL)
	}
}
