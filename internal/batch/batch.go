// Package batch runs many video jobs under a fixed concurrency bound.
// One failed video never stops the others; results come back in the
// order the identifiers were submitted.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/LuneZ99/bili-downloader/internal/model"
)

// DefaultWorkers bounds concurrent video jobs when the caller does not
// choose a limit.
const DefaultWorkers = 3

// JobFunc executes one video job. Implementations must not panic; the
// runner still recovers and converts a panic into a failed result so a
// single broken video cannot take down the batch.
type JobFunc func(ctx context.Context, bvid string) model.JobResult

// Runner fans a list of video identifiers out to a bounded worker pool.
type Runner struct {
	// Workers is the maximum number of jobs in flight. Values below 1
	// fall back to DefaultWorkers.
	Workers int
	Log     *logrus.Logger
}

// Summary aggregates a finished batch.
type Summary struct {
	Results []model.JobResult
	Ok      int
	Partial int
	Failed  int
}

// Run executes fn for every identifier and returns per-video results in
// submission order. Cancelling ctx stops dispatching new jobs; already
// running jobs observe the cancellation through their own context, and
// never-started jobs are reported as failed with the context error.
func (r *Runner) Run(ctx context.Context, bvids []string, fn JobFunc) Summary {
	workers := r.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	if workers > len(bvids) {
		workers = len(bvids)
	}
	log := r.Log.WithField("component", "batch")
	log.WithFields(logrus.Fields{"videos": len(bvids), "workers": workers}).Info("starting batch")

	results := make([]model.JobResult, len(bvids))
	for i, bvid := range bvids {
		results[i] = model.JobResult{BVID: bvid, Status: model.AllFailed}
	}

	jobCh := make(chan int)
	var wg sync.WaitGroup

	workerFn := func(workerID int) {
		defer wg.Done()
		for i := range jobCh {
			if ctx.Err() != nil {
				results[i].Err = ctx.Err()
				continue
			}
			results[i] = r.runOne(ctx, workerID, bvids[i], fn)
		}
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go workerFn(w)
	}

	dispatched := len(bvids)
dispatch:
	for i := range bvids {
		select {
		case jobCh <- i:
		case <-ctx.Done():
			dispatched = i
			break dispatch
		}
	}
	close(jobCh)
	wg.Wait()

	for i := dispatched; i < len(bvids); i++ {
		results[i].Err = ctx.Err()
	}

	summary := Summary{Results: results}
	for _, res := range results {
		switch res.Status {
		case model.AllOk:
			summary.Ok++
		case model.PartialOk:
			summary.Partial++
		default:
			summary.Failed++
		}
	}
	log.WithFields(logrus.Fields{
		"ok": summary.Ok, "partial": summary.Partial, "failed": summary.Failed,
	}).Info("batch finished")
	return summary
}

func (r *Runner) runOne(ctx context.Context, workerID int, bvid string, fn JobFunc) (res model.JobResult) {
	defer func() {
		if p := recover(); p != nil {
			r.Log.WithFields(logrus.Fields{"worker": workerID, "bvid": bvid}).
				Errorf("job panicked: %v", p)
			res = model.JobResult{
				BVID:   bvid,
				Status: model.AllFailed,
				Err:    fmt.Errorf("job panicked: %v", p),
			}
		}
	}()
	r.Log.WithFields(logrus.Fields{"worker": workerID, "bvid": bvid}).Debug("job start")
	return fn(ctx, bvid)
}
