package bili

import (
	"net/url"
	"path"
	"strings"

	"github.com/LuneZ99/bili-downloader/internal/model"
	"github.com/LuneZ99/bili-downloader/internal/quality"
)

// BuildPlan classifies a page's stream manifest and resolves exactly one
// download plan from it.
//
// A manifest exposing a durl entry is a direct (already muxed) stream; one
// exposing DASH video/audio sets is split. For split manifests the quality
// resolver runs against the video set and the audio handle is the highest
// bitrate on offer (audio has no tiering).
func BuildPlan(p *PlayURL, headers map[string]string, auth quality.AuthLevel, override quality.Tier) (*model.StreamPlan, error) {
	if p.Dash != nil {
		return buildSplitPlan(p.Dash, headers, auth, override)
	}
	if len(p.Durl) > 0 {
		return buildDirectPlan(p, headers, auth, override)
	}
	if len(offeredTiers(p.AcceptQuality)) == 0 {
		return nil, quality.ErrNoStreamsOffered
	}
	return nil, &model.IncompleteManifestError{Missing: "video"}
}

func buildDirectPlan(p *PlayURL, headers map[string]string, auth quality.AuthLevel, override quality.Tier) (*model.StreamPlan, error) {
	tier, err := quality.Resolve(offeredTiers(p.AcceptQuality), auth, override)
	if err != nil {
		return nil, err
	}
	first := p.Durl[0]
	return &model.StreamPlan{
		Kind: model.StreamDirect,
		Video: model.StreamHandle{
			URL:     first.URL,
			Headers: headers,
			Length:  first.Size,
		},
		Tier:      tier,
		Container: containerOf(first.URL),
	}, nil
}

func buildSplitPlan(d *Dash, headers map[string]string, auth quality.AuthLevel, override quality.Tier) (*model.StreamPlan, error) {
	if len(d.Video) == 0 {
		return nil, &model.IncompleteManifestError{Missing: "video"}
	}
	if len(d.Audio) == 0 {
		return nil, &model.IncompleteManifestError{Missing: "audio"}
	}

	// DASH stream IDs are quality codes; the offer is whatever IDs the
	// video set actually carries.
	var offered []quality.Tier
	seen := map[quality.Tier]bool{}
	for _, s := range d.Video {
		t := quality.Tier(s.ID)
		if quality.Known(t) && !seen[t] {
			offered = append(offered, t)
			seen[t] = true
		}
	}
	tier, err := quality.Resolve(offered, auth, override)
	if err != nil {
		return nil, err
	}

	var video *DashStream
	for i := range d.Video {
		s := &d.Video[i]
		if quality.Tier(s.ID) != tier {
			continue
		}
		if video == nil || s.Bandwidth > video.Bandwidth {
			video = s
		}
	}

	var audio *DashStream
	for i := range d.Audio {
		s := &d.Audio[i]
		if audio == nil || s.Bandwidth > audio.Bandwidth {
			audio = s
		}
	}

	return &model.StreamPlan{
		Kind: model.StreamSplit,
		Video: model.StreamHandle{
			URL:     video.BaseURL,
			Headers: headers,
		},
		Audio: &model.StreamHandle{
			URL:     audio.BaseURL,
			Headers: headers,
		},
		Tier:      tier,
		Container: "m4s",
	}, nil
}

func offeredTiers(codes []int) []quality.Tier {
	var offered []quality.Tier
	for _, code := range codes {
		if t := quality.Tier(code); quality.Known(t) {
			offered = append(offered, t)
		}
	}
	return offered
}

func containerOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "flv"
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), ".")) {
	case "mp4":
		return "mp4"
	default:
		return "flv"
	}
}
