package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "download-video":
		return runDownloadVideo(args[1:])
	case "download-user":
		return runDownloadUser(args[1:])
	case "download-series":
		return runDownloadSeries(args[1:])
	case "list-videos":
		return runListVideos(args[1:])
	case "list-series":
		return runListSeries(args[1:])
	case "list-series-videos":
		return runListSeriesVideos(args[1:])
	case "formats":
		return runFormats(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("bili-downloader: bilibili video acquisition and assembly")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  bili-downloader doctor")
	fmt.Println("  bili-downloader download-video BV1xx411c7mD")
	fmt.Println("  bili-downloader download-user --mid 123456")
	fmt.Println()
	fmt.Println("Download Commands:")
	fmt.Println("  download-video   download one or more videos by BV identifier")
	fmt.Println("  download-user    download every video a user published")
	fmt.Println("  download-series  download every video in a series or collection")
	fmt.Println()
	fmt.Println("Listing Commands:")
	fmt.Println("  list-videos         list a user's published videos")
	fmt.Println("  list-series         list a user's series and collections")
	fmt.Println("  list-series-videos  list the videos inside one series")
	fmt.Println()
	fmt.Println("Other Commands:")
	fmt.Println("  formats  show quality tiers and their login requirements")
	fmt.Println("  doctor   run dependency preflight checks")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on listing commands for machine-readable output")
	fmt.Println("  - Credentials come from BILI_SESSDATA/BILI_JCT env vars, a .env")
	fmt.Println("    file, or --credentials <file.json>")
}
