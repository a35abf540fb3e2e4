package cli

import (
	"flag"
	"fmt"
	"strings"
)

func runDownloadVideo(args []string) error {
	fs := flag.NewFlagSet("download-video", flag.ContinueOnError)
	ef := addEngineFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	bvids := fs.Args()
	if len(bvids) == 0 {
		return fmt.Errorf("download-video requires at least one BV identifier")
	}
	for _, bvid := range bvids {
		if !strings.HasPrefix(bvid, "BV") {
			return fmt.Errorf("%q does not look like a BV identifier", bvid)
		}
	}

	engine, err := ef.buildEngine()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return engine.downloadAll(ctx, bvids)
}

func runDownloadUser(args []string) error {
	fs := flag.NewFlagSet("download-user", flag.ContinueOnError)
	ef := addEngineFlags(fs)
	mid := fs.Int64("mid", 0, "user id (the number in space.bilibili.com/<mid>)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mid <= 0 {
		return fmt.Errorf("download-user requires --mid")
	}

	engine, err := ef.buildEngine()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	name, err := engine.client.UserName(ctx, *mid)
	if err != nil {
		return fmt.Errorf("resolve user %d: %w", *mid, err)
	}
	videos, err := engine.client.UserVideos(ctx, *mid)
	if err != nil {
		return fmt.Errorf("list videos of user %d: %w", *mid, err)
	}
	if len(videos) == 0 {
		fmt.Printf("user %s (%d) has no videos\n", name, *mid)
		return nil
	}
	fmt.Printf("downloading %d videos of %s\n", len(videos), name)

	bvids := make([]string, 0, len(videos))
	for _, v := range videos {
		bvids = append(bvids, v.BVID)
	}
	return engine.downloadAll(ctx, bvids)
}

func runDownloadSeries(args []string) error {
	fs := flag.NewFlagSet("download-series", flag.ContinueOnError)
	ef := addEngineFlags(fs)
	mid := fs.Int64("mid", 0, "user id owning the series")
	seriesID := fs.Int64("series-id", 0, "series or collection id")
	kind := fs.String("kind", "series", "series kind: series|season")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mid <= 0 || *seriesID <= 0 {
		return fmt.Errorf("download-series requires --mid and --series-id")
	}
	if *kind != "series" && *kind != "season" {
		return fmt.Errorf("unknown series kind %q (expected series or season)", *kind)
	}

	engine, err := ef.buildEngine()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	videos, err := engine.client.SeriesVideos(ctx, *mid, *seriesID, *kind)
	if err != nil {
		return fmt.Errorf("list series %d: %w", *seriesID, err)
	}
	if len(videos) == 0 {
		fmt.Printf("series %d is empty\n", *seriesID)
		return nil
	}
	fmt.Printf("downloading %d videos from series %d\n", len(videos), *seriesID)

	bvids := make([]string, 0, len(videos))
	for _, v := range videos {
		bvids = append(bvids, v.BVID)
	}
	return engine.downloadAll(ctx, bvids)
}
