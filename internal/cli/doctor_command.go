package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/LuneZ99/bili-downloader/internal/config"
	"github.com/LuneZ99/bili-downloader/internal/mux"
	"github.com/LuneZ99/bili-downloader/internal/quality"
)

type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type doctorReport struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	outputDir := fs.String("dir", "", "output directory to check (default: BILI_OUTPUT_DIR or .)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir := firstNonEmpty(*outputDir, cfg.OutputDir)

	report := doctorReport{OK: true}
	add := func(name string, ok bool, message string) {
		report.Checks = append(report.Checks, doctorCheck{Name: name, OK: ok, Message: message})
		if !ok {
			report.OK = false
		}
	}

	dep := mux.DependencyStatus()
	if dep.FFmpegFound {
		add("ffmpeg", true, dep.FFmpegPath)
	} else {
		add("ffmpeg", false, "not found in PATH; muxing is impossible without it")
	}

	if info, err := os.Stat(dir); err != nil {
		add("output-dir", false, fmt.Sprintf("%s: %v", dir, err))
	} else if !info.IsDir() {
		add("output-dir", false, dir+" is not a directory")
	} else if probeWritable(dir) {
		add("output-dir", true, dir)
	} else {
		add("output-dir", false, dir+" is not writable")
	}

	cred := cfg.Credential()
	if cred.Empty() {
		add("credential", true, "none configured; qualities above 1080p are unavailable")
	} else {
		add("credential", true, "configured ("+cred.Masked()+")")
	}

	if *jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		for _, c := range report.Checks {
			status := "ok"
			if !c.OK {
				status = "fail"
			}
			fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
		}
	}
	if !report.OK {
		return errors.New("doctor checks failed")
	}
	if !*jsonOut {
		fmt.Println("doctor: all checks passed")
	}
	return nil
}

func probeWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".doctor-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

func runFormats(args []string) error {
	fs := flag.NewFlagSet("formats", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	type row struct {
		Code     int    `json:"code"`
		Name     string `json:"name"`
		Requires string `json:"requires"`
	}
	rows := make([]row, 0)
	for _, t := range quality.Table() {
		rows = append(rows, row{Code: int(t), Name: t.String(), Requires: t.MinAuth().String()})
	}
	if *jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-5s %-9s %s\n", "code", "quality", "requires")
	for _, r := range rows {
		fmt.Printf("%-5d %-9s %s\n", r.Code, r.Name, r.Requires)
	}
	return nil
}
