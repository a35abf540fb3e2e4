package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/LuneZ99/bili-downloader/internal/bili"
	"github.com/LuneZ99/bili-downloader/internal/model"
	"github.com/LuneZ99/bili-downloader/internal/mux"
	"github.com/LuneZ99/bili-downloader/internal/store"
)

// PageJob downloads one part of a video: resolve the stream plan, fetch
// the stream(s), mux, and best-effort danmaku. Its outcome is terminal.
type PageJob struct {
	Video   *model.VideoDescriptor
	Page    model.PageDescriptor
	Dir     string
	Source  Source
	Fetcher Fetcher
	Muxer   Muxer
	Opts    Options
	Log     *logrus.Entry

	state string
}

func (j *PageJob) label(role string) string {
	return fmt.Sprintf("P%02d %s", j.Page.Index, role)
}

func (j *PageJob) to(state string) {
	if err := model.TransitionPage(&j.state, state); err != nil {
		// The state machine is driven only from Run; a bad move is a bug.
		panic(err)
	}
}

func (j *PageJob) fail(err error) model.PageOutcome {
	j.to(model.PageFailed)
	j.Log.WithField("page", j.Page.Index).Warnf("page failed: %v", err)
	return model.PageOutcome{Page: j.Page.Index, Title: j.Page.Title, Err: err}
}

func (j *PageJob) done(outputPath string) model.PageOutcome {
	return model.PageOutcome{Page: j.Page.Index, Title: j.Page.Title, OutputPath: outputPath}
}

func (j *PageJob) notify(phase string, written, total int64) {
	j.Opts.notify(Event{
		BVID:    j.Video.BVID,
		Title:   j.Video.Title,
		Page:    j.Page.Index,
		Pages:   len(j.Video.Pages),
		Phase:   phase,
		Written: written,
		Total:   total,
	})
}

// Run executes the page state machine. It never returns an error: every
// failure mode collapses into a Failed outcome.
func (j *PageJob) Run(ctx context.Context) model.PageOutcome {
	outPath := filepath.Join(j.Dir, OutputName(j.Video.Title, j.Page, len(j.Video.Pages)))

	j.to(model.PageResolving)
	j.notify(model.PageResolving, 0, 0)

	if _, err := os.Stat(outPath); err == nil {
		// Already downloaded. Still backfill a missing sidecar.
		if j.Opts.Danmaku {
			j.fetchSidecar(ctx, false)
		}
		j.to(model.PageDone)
		j.Log.WithField("page", j.Page.Index).Info("output already exists, skipping")
		return j.done(outPath)
	}

	playURL, err := j.Source.PlayURL(ctx, j.Video.BVID, j.Page.CID)
	if err != nil {
		return j.fail(err)
	}
	plan, err := bili.BuildPlan(playURL, j.Source.StreamHeaders(), j.Opts.Auth, j.Opts.Override)
	if err != nil {
		return j.fail(err)
	}
	j.Log.WithFields(logrus.Fields{"page": j.Page.Index, "kind": plan.Kind, "tier": plan.Tier.String()}).
		Info("resolved stream plan")

	j.to(model.PageFetching)
	inputs, err := j.fetchStreams(ctx, plan)
	if err != nil {
		return j.fail(err)
	}

	j.to(model.PageMuxing)
	j.notify(model.PageMuxing, 0, 0)
	if err := j.Muxer.Mux(ctx, plan, inputs, outPath); err != nil {
		// The adapter only cleans up after itself on success.
		for _, input := range inputs {
			_ = os.Remove(input)
		}
		return j.fail(err)
	}

	if j.Opts.Danmaku {
		j.to(model.PageSidecar)
		j.notify(model.PageSidecar, 0, 0)
		j.fetchSidecar(ctx, true)
		j.to(model.PageDone)
	} else {
		j.to(model.PageDone)
	}
	return j.done(outPath)
}

// fetchStreams downloads the plan's one or two streams to temp paths. For
// split plans both run concurrently and the first failure aborts the
// sibling; any surviving temp file is removed before the error returns.
func (j *PageJob) fetchStreams(ctx context.Context, plan *model.StreamPlan) (map[string]string, error) {
	if plan.Kind == model.StreamDirect {
		dest := tempName(j.Dir, j.Page.Index, mux.RoleVideo, plan.Container)
		res, err := j.Fetcher.Fetch(ctx, j.label("video"), plan.Video, dest, j.progressFunc())
		if err != nil {
			return nil, err
		}
		return map[string]string{mux.RoleVideo: res.Path}, nil
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type part struct {
		role   string
		handle model.StreamHandle
		dest   string
	}
	parts := []part{
		{mux.RoleVideo, plan.Video, tempName(j.Dir, j.Page.Index, mux.RoleVideo, plan.Container)},
		{mux.RoleAudio, *plan.Audio, tempName(j.Dir, j.Page.Index, mux.RoleAudio, plan.Container)},
	}

	errs := make([]error, len(parts))
	var wg sync.WaitGroup
	for i, p := range parts {
		wg.Add(1)
		go func(i int, p part) {
			defer wg.Done()
			var progress func(written, total int64)
			if p.role == mux.RoleVideo {
				progress = j.progressFunc()
			}
			_, err := j.Fetcher.Fetch(fetchCtx, j.label(p.role), p.handle, p.dest, progress)
			if err != nil {
				errs[i] = err
				cancel()
			}
		}(i, p)
	}
	wg.Wait()

	if err := firstRealError(errs); err != nil {
		// The failed fetch already discarded its own partial; the
		// successful sibling's temp file goes too.
		for _, p := range parts {
			_ = os.Remove(p.dest)
		}
		return nil, err
	}

	return map[string]string{
		mux.RoleVideo: parts[0].dest,
		mux.RoleAudio: parts[1].dest,
	}, nil
}

// firstRealError prefers a concrete transport failure over the
// cancellation it caused in the sibling.
func firstRealError(errs []error) error {
	var fallback error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
		fallback = err
	}
	return fallback
}

func (j *PageJob) progressFunc() func(written, total int64) {
	if j.Opts.Events == nil {
		return nil
	}
	return func(written, total int64) {
		j.notify(model.PageFetching, written, total)
	}
}

// fetchSidecar retrieves the page's danmaku track. A failure is logged
// as a warning and never downgrades the page outcome.
func (j *PageJob) fetchSidecar(ctx context.Context, overwrite bool) {
	path := filepath.Join(j.Dir, SidecarName(j.Video.Title, j.Page, len(j.Video.Pages)))
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return
		}
	}

	entries, err := j.Source.Danmaku(ctx, j.Page.CID)
	if err != nil {
		j.Log.WithField("page", j.Page.Index).Warnf("danmaku fetch failed: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	if err := store.WriteSidecar(path, entries); err != nil {
		j.Log.WithField("page", j.Page.Index).Warnf("danmaku write failed: %v", err)
		return
	}
	j.Log.WithFields(logrus.Fields{"page": j.Page.Index, "count": len(entries)}).Info("danmaku saved")
}
