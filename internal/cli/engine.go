package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/LuneZ99/bili-downloader/internal/batch"
	"github.com/LuneZ99/bili-downloader/internal/bili"
	"github.com/LuneZ99/bili-downloader/internal/config"
	"github.com/LuneZ99/bili-downloader/internal/download"
	"github.com/LuneZ99/bili-downloader/internal/fetch"
	"github.com/LuneZ99/bili-downloader/internal/model"
	"github.com/LuneZ99/bili-downloader/internal/mux"
	"github.com/LuneZ99/bili-downloader/internal/quality"
	"github.com/LuneZ99/bili-downloader/internal/tui"
)

// engineFlags are the flags every download command shares.
type engineFlags struct {
	dir         *string
	concurrent  *int
	pageWorkers *int
	qualityName *string
	authName    *string
	credentials *string
	noDanmaku   *bool
	noProgress  *bool
}

func addEngineFlags(fs *flag.FlagSet) *engineFlags {
	return &engineFlags{
		dir:         fs.String("dir", "", "output directory (default: BILI_OUTPUT_DIR or .)"),
		concurrent:  fs.Int("concurrent", 0, "max videos downloading at once (default: BILI_CONCURRENT or 3)"),
		pageWorkers: fs.Int("page-workers", 0, "max pages of one video downloading at once (default 1)"),
		qualityName: fs.String("quality", "", "quality tier: auto|360p|480p|720p|1080p|1080p+|1080p60|4k|hdr|dolby|8k"),
		authName:    fs.String("auth", "", "override detected auth level: none|logged-in|member"),
		credentials: fs.String("credentials", "", "path to a JSON credential file"),
		noDanmaku:   fs.Bool("no-danmaku", false, "skip danmaku sidecar downloads"),
		noProgress:  fs.Bool("no-progress", false, "disable the live dashboard and progress bars"),
	}
}

// engine bundles the collaborators a download command needs.
type engine struct {
	cfg      *config.Config
	client   *bili.Client
	fetcher  *fetch.Client
	muxer    *mux.Adapter
	log      *logrus.Logger
	auth     quality.AuthLevel
	override quality.Tier

	outputDir   string
	concurrent  int
	pageWorkers int
	danmaku     bool
	progress    bool
}

func (f *engineFlags) buildEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	cred := cfg.Credential()
	if path := strings.TrimSpace(*f.credentials); path != "" {
		cred, err = config.LoadCredentialFile(path, cred)
		if err != nil {
			return nil, err
		}
	}

	override, err := quality.ParseTier(firstNonEmpty(*f.qualityName, cfg.Quality))
	if err != nil {
		return nil, err
	}

	auth := cred.AuthLevel()
	if lvl, ok, err := quality.ParseAuthLevel(firstNonEmpty(*f.authName, cfg.AuthLevel)); err != nil {
		return nil, err
	} else if ok {
		auth = lvl
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	e := &engine{
		cfg:         cfg,
		client:      bili.NewClient(cred, log),
		fetcher:     fetch.New(log),
		muxer:       mux.New(log),
		log:         log,
		auth:        auth,
		override:    override,
		outputDir:   firstNonEmpty(*f.dir, cfg.OutputDir),
		concurrent:  cfg.Concurrent,
		pageWorkers: cfg.PageWorkers,
		danmaku:     !*f.noDanmaku,
		progress:    !*f.noProgress && stdoutIsTTY(),
	}
	if *f.concurrent > 0 {
		e.concurrent = *f.concurrent
	}
	if *f.pageWorkers > 0 {
		e.pageWorkers = *f.pageWorkers
	}

	if !cred.Empty() {
		log.WithField("credential", cred.Masked()).Debug("using credential")
	}
	return e, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// signalContext cancels on SIGINT/SIGTERM so in-flight downloads clean
// up their temp files before the process exits.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// downloadAll runs every identifier through the batch runner, rendering
// either the live dashboard, a single progress bar, or plain logs.
func (e *engine) downloadAll(ctx context.Context, bvids []string) error {
	if err := mux.CheckDependencies(); err != nil {
		return err
	}
	if len(bvids) == 0 {
		return fmt.Errorf("nothing to download")
	}

	var events func(download.Event)
	var onDone func(model.JobResult)
	var finish func() error

	switch {
	case e.progress && (e.concurrent > 1 && len(bvids) > 1):
		dash := tui.New(len(bvids))
		// The dashboard owns the terminal while it runs.
		e.log.SetOutput(io.Discard)
		dash.Start()
		events = dash.HandleEvent
		onDone = dash.JobFinished
		finish = func() error {
			err := dash.Finish()
			e.log.SetOutput(os.Stderr)
			return err
		}
	case e.progress:
		events = newBarRenderer().handle
	}

	runner := &batch.Runner{Workers: e.concurrent, Log: e.log}
	summary := runner.Run(ctx, bvids, func(ctx context.Context, bvid string) model.JobResult {
		job := &download.VideoJob{
			Source:  e.client,
			Fetcher: e.fetcher,
			Muxer:   e.muxer,
			Root:    e.outputDir,
			Log:     e.log,
			Opts: download.Options{
				Auth:        e.auth,
				Override:    e.override,
				Danmaku:     e.danmaku,
				PageWorkers: e.pageWorkers,
				Events:      events,
			},
		}
		res := job.Run(ctx, bvid)
		if onDone != nil {
			onDone(res)
		}
		return res
	})

	if finish != nil {
		if err := finish(); err != nil {
			fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
		}
	}
	return printSummary(os.Stdout, summary)
}

func printSummary(w io.Writer, s batch.Summary) error {
	for _, res := range s.Results {
		switch res.Status {
		case model.AllOk:
			fmt.Fprintf(w, "ok       %s  %s\n", res.BVID, res.Title)
		case model.PartialOk:
			fmt.Fprintf(w, "partial  %s  %s\n", res.BVID, res.Title)
			for _, page := range res.Pages {
				if !page.Completed() {
					fmt.Fprintf(w, "           P%02d: %v\n", page.Page, page.Err)
				}
			}
		default:
			detail := res.Title
			if res.Err != nil {
				detail = res.Err.Error()
			}
			fmt.Fprintf(w, "failed   %s  %s\n", res.BVID, detail)
		}
	}
	fmt.Fprintf(w, "total: %d ok, %d partial, %d failed\n", s.Ok, s.Partial, s.Failed)

	if s.Failed > 0 && s.Ok == 0 && s.Partial == 0 {
		return fmt.Errorf("all downloads failed")
	}
	return nil
}

// barRenderer shows one byte-progress bar at a time for sequential
// downloads.
type barRenderer struct {
	bar   *progressbar.ProgressBar
	label string
}

func newBarRenderer() *barRenderer {
	return &barRenderer{}
}

func (r *barRenderer) handle(ev download.Event) {
	if ev.Total <= 0 {
		return
	}
	label := fmt.Sprintf("%s P%d %s", ev.BVID, ev.Page, ev.Phase)
	if r.bar == nil || r.label != label {
		r.bar = progressbar.DefaultBytes(ev.Total, label)
		r.label = label
	}
	_ = r.bar.Set64(ev.Written)
}
