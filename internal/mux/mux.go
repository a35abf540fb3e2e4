// Package mux wraps the external ffmpeg process for container work. No
// stream is ever re-encoded; everything is stream-copied.
package mux

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/LuneZ99/bili-downloader/internal/model"
)

// Input roles in a mux invocation.
const (
	RoleVideo = "video"
	RoleAudio = "audio"
)

// OutputExt is the container extension every plan lands in. FLV and DASH
// inputs are both repackaged into mp4.
const OutputExt = ".mp4"

type DependencyReport struct {
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

func DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

func CheckDependencies() error {
	if !DependencyStatus().FFmpegFound {
		return fmt.Errorf("missing dependency: ffmpeg is not installed or not on PATH")
	}
	return nil
}

type Adapter struct {
	// FFmpeg overrides the binary path; empty means PATH lookup.
	FFmpeg string

	log *logrus.Entry
}

func New(logger *logrus.Logger) *Adapter {
	return &Adapter{log: logger.WithField("component", "mux")}
}

// Mux repackages the fetched inputs into output without re-encoding. A
// direct plan remuxes the single video input; a split plan interleaves the
// video and audio inputs. On confirmed success the adapter deletes its
// temporary inputs; on failure cleanup stays with the caller and any
// partial output file is removed.
//
// Mux failures are terminal: the caller must not retry on the same inputs.
func (a *Adapter) Mux(ctx context.Context, plan *model.StreamPlan, inputs map[string]string, output string) error {
	args, err := muxArgs(plan, inputs, output)
	if err != nil {
		return err
	}

	binary := a.FFmpeg
	if binary == "" {
		binary = "ffmpeg"
	}

	// Always an explicit argv: titles flow into paths and must never hit
	// a shell.
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if a.log != nil {
		a.log.WithField("output", output).Debugf("ffmpeg %s", strings.Join(args, " "))
	}
	if err := cmd.Run(); err != nil {
		_ = os.Remove(output)
		return &model.MuxError{
			Output: output,
			Detail: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	for _, input := range inputs {
		_ = os.Remove(input)
	}
	return nil
}

func muxArgs(plan *model.StreamPlan, inputs map[string]string, output string) ([]string, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}

	switch plan.Kind {
	case model.StreamDirect:
		video, ok := inputs[RoleVideo]
		if !ok {
			return nil, fmt.Errorf("direct mux needs a %s input", RoleVideo)
		}
		args = append(args, "-i", video)
	case model.StreamSplit:
		video, ok := inputs[RoleVideo]
		if !ok {
			return nil, fmt.Errorf("split mux needs a %s input", RoleVideo)
		}
		audio, ok := inputs[RoleAudio]
		if !ok {
			return nil, fmt.Errorf("split mux needs an %s input", RoleAudio)
		}
		args = append(args, "-i", video, "-i", audio)
	default:
		return nil, fmt.Errorf("unknown stream kind %q", plan.Kind)
	}

	return append(args, "-c", "copy", output), nil
}
