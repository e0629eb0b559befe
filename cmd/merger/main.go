// merger reads one or more digest manifests and coalesces byte-identical
// files via hard-linking and/or kernel-level extent deduplication (C2-C6).
// Built with kingpin, following the teacher's cli/main.go CLI framework.
package main

import (
	"fmt"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/buytenh/mksums/internal/config"
	"github.com/buytenh/mksums/internal/manifest"
	"github.com/buytenh/mksums/internal/merge"
	"github.com/buytenh/mksums/internal/progress"
	"github.com/buytenh/mksums/internal/rlimit"
)

var (
	app = kingpin.New("merger", "Coalesce byte-identical files named by one or more digest manifests.")

	sumfiles = app.Arg("sumfile", "manifest file to ingest (- for standard input)").Required().Strings()

	link  = app.Flag("link", "coalesce equivalent objects by hard-linking").Bool()
	dedup = app.Flag("dedup", "coalesce equivalent objects via kernel extent deduplication").Bool()

	configPath = app.Flag("config", "YAML file supplying flag defaults").String()
)

func main() {
	os.Exit(run())
}

func run() int {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "merger: %s\n", err)
		return 1
	}

	doLink, doDedup := *link, *dedup
	if !doLink && !doDedup {
		doLink, doDedup = cfg.Link, cfg.Dedup
	}
	if !doLink && !doDedup {
		// spec.md §6: if neither flag is given, default to --link.
		doLink = true
	}

	if _, err := rlimit.RaiseNoFile(); err != nil {
		fmt.Fprintf(os.Stderr, "merger: could not raise open file limit: %s\n", err)
	}

	reader := manifest.NewReader()
	for _, path := range *sumfiles {
		if err := reader.ReadFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "merger: %s\n", err)
			return 1
		}
	}
	for _, diag := range reader.Diagnostics {
		fmt.Fprintf(os.Stderr, "merger: %s\n", diag)
	}

	groups := reader.Groups()
	digests := reader.Digests()
	reporter := progress.New(os.Stderr, len(digests))

	opts := merge.Options{Link: doLink, Dedup: doDedup}
	for _, digestHex := range digests {
		g := groups[digestHex]
		events, err := merge.Group(g.Dentries, opts)
		if err != nil {
			reporter.Event("merger: digest %s: %s", digestHex, err)
			reporter.Tick()
			continue
		}
		for _, ev := range events {
			reportEvent(reporter, digestHex, ev)
		}
		reporter.Tick()
	}

	reporter.Done()
	return 0
}

func reportEvent(r *progress.Reporter, digestHex string, ev merge.Event) {
	switch ev.Kind {
	case "linked":
		r.Event("  %s: linked %s onto %s", digestHex, ev.Other, ev.Leader)
	case "deduped":
		r.Event("  %s: deduped %s onto %s", digestHex, ev.Other, ev.Leader)
	case "skipped":
		r.Event("  %s: skipped %s: %s", digestHex, ev.Other, ev.Message)
	case "abandoned":
		r.Event("  %s: abandoned %s / %s: %s", digestHex, ev.Leader, ev.Other, ev.Message)
	}
}
