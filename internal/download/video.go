package download

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/LuneZ99/bili-downloader/internal/model"
	"github.com/LuneZ99/bili-downloader/internal/store"
)

// VideoJob owns every page of one video identifier. It creates the output
// folder, writes metadata once, runs the page jobs, and folds their
// outcomes into a single JobResult. It never raises past its boundary.
type VideoJob struct {
	Source  Source
	Fetcher Fetcher
	Muxer   Muxer
	Opts    Options
	// Root is the parent directory the per-video folder is created in.
	Root string
	Log  *logrus.Logger
}

func (j *VideoJob) Run(ctx context.Context, bvid string) model.JobResult {
	log := j.Log.WithFields(logrus.Fields{"component": "video", "bvid": bvid})

	view, err := j.Source.VideoView(ctx, bvid)
	if err != nil {
		log.Errorf("manifest resolution failed: %v", err)
		return model.JobResult{BVID: bvid, Status: model.AllFailed, Err: err}
	}

	video := &model.VideoDescriptor{
		BVID:  bvid,
		Title: view.Title,
		Info:  view.Raw,
	}
	for _, p := range view.Pages {
		video.Pages = append(video.Pages, model.PageDescriptor{Index: p.Page, CID: p.CID, Title: p.Part})
	}

	result := model.JobResult{BVID: bvid, Title: view.Title}

	dir, err := j.prepareFolder(video)
	if err != nil {
		log.Errorf("output folder setup failed: %v", err)
		result.Status = model.AllFailed
		result.Err = err
		return result
	}
	result.Folder = dir

	lock, err := store.AcquireFolderLock(dir, bvid)
	if err != nil {
		log.Errorf("folder lock: %v", err)
		result.Status = model.AllFailed
		result.Err = err
		return result
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warnf("folder lock release: %v", err)
		}
	}()

	log.WithFields(logrus.Fields{"title": view.Title, "pages": len(video.Pages)}).Info("starting video job")
	result.Pages = j.runPages(ctx, video, dir)
	result.Status = model.Aggregate(result.Pages)
	log.WithField("status", string(result.Status)).Info("video job finished")
	return result
}

// prepareFolder creates the video folder and writes metadata.json exactly
// once, before any page work, so the record exists even when every page
// fails. Either failure is video-fatal.
func (j *VideoJob) prepareFolder(video *model.VideoDescriptor) (string, error) {
	dir := filepath.Join(j.Root, FolderName(video.Title, video.BVID))
	if err := store.Mkdir(dir); err != nil {
		return "", &model.FilesystemError{Path: dir, Err: err}
	}
	if err := store.WriteMetadata(dir, video); err != nil {
		return "", &model.FilesystemError{Path: dir, Err: err}
	}
	return dir, nil
}

func (j *VideoJob) runPages(ctx context.Context, video *model.VideoDescriptor, dir string) []model.PageOutcome {
	newJob := func(page model.PageDescriptor) *PageJob {
		return &PageJob{
			Video:   video,
			Page:    page,
			Dir:     dir,
			Source:  j.Source,
			Fetcher: j.Fetcher,
			Muxer:   j.Muxer,
			Opts:    j.Opts,
			Log:     j.Log.WithFields(logrus.Fields{"component": "page", "bvid": video.BVID}),
		}
	}

	outcomes := make([]model.PageOutcome, len(video.Pages))

	workers := j.Opts.PageWorkers
	if workers <= 1 || len(video.Pages) == 1 {
		// Pages run sequentially by default: video jobs, not pages, are
		// the unit of outer concurrency.
		for i, page := range video.Pages {
			outcomes[i] = newJob(page).Run(ctx)
		}
		return outcomes
	}
	if workers > len(video.Pages) {
		workers = len(video.Pages)
	}

	pageCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range pageCh {
				outcomes[i] = newJob(video.Pages[i]).Run(ctx)
			}
		}()
	}
	for i := range video.Pages {
		pageCh <- i
	}
	close(pageCh)
	wg.Wait()

	return outcomes
}
