package cli

import (
	"flag"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

func runListVideos(args []string) error {
	fs := flag.NewFlagSet("list-videos", flag.ContinueOnError)
	ef := addEngineFlags(fs)
	mid := fs.Int64("mid", 0, "user id")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mid <= 0 {
		return fmt.Errorf("list-videos requires --mid")
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
		return err
	}
	if *jsonOut {
		return printJSON(videos)
	}

	fmt.Printf("%s (%d): %d videos\n", name, *mid, len(videos))
	for _, v := range videos {
		published := time.Unix(v.Created, 0).Format("2006-01-02")
		fmt.Printf("  %s  %s  %s plays  %s\n", v.BVID, published, humanize.Comma(v.Play), v.Title)
	}
	return nil
}

func runListSeries(args []string) error {
	fs := flag.NewFlagSet("list-series", flag.ContinueOnError)
	ef := addEngineFlags(fs)
	mid := fs.Int64("mid", 0, "user id")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mid <= 0 {
		return fmt.Errorf("list-series requires --mid")
	}

	engine, err := ef.buildEngine()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	series, err := engine.client.UserSeries(ctx, *mid)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(series)
	}

	fmt.Printf("user %d: %d series\n", *mid, len(series))
	for _, s := range series {
		fmt.Printf("  %d  %-6s  %3d videos  %s\n", s.ID, s.Kind, s.Total, s.Title)
	}
	return nil
}

func runListSeriesVideos(args []string) error {
	fs := flag.NewFlagSet("list-series-videos", flag.ContinueOnError)
	ef := addEngineFlags(fs)
	mid := fs.Int64("mid", 0, "user id owning the series")
	seriesID := fs.Int64("series-id", 0, "series or collection id")
	kind := fs.String("kind", "series", "series kind: series|season")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mid <= 0 || *seriesID <= 0 {
		return fmt.Errorf("list-series-videos requires --mid and --series-id")
	}

	engine, err := ef.buildEngine()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	videos, err := engine.client.SeriesVideos(ctx, *mid, *seriesID, *kind)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(videos)
	}

	fmt.Printf("series %d: %d videos\n", *seriesID, len(videos))
	for _, v := range videos {
		fmt.Printf("  %s  %s\n", v.BVID, v.Title)
	}
	return nil
}
