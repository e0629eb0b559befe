// Package progress implements the merger's user-visible progress reporting
// contract (spec.md §7): carriage-return-overwritten progress lines, a
// newline preserved in scrollback on each substantive per-group message,
// and a mandated final "merging done" line. Wraps
// github.com/schollz/progressbar/v3, grounded in ivoronin-dupedog, a
// sibling duplicate-file tool in the example pack that drives the same
// library for exactly this kind of long-running scan progress.
package progress

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Reporter tracks progress across digest groups as the merger processes a
// manifest, emitting carriage-return-overwritten status and newline-
// terminated event lines to w.
type Reporter struct {
	bar    *progressbar.ProgressBar
	w      io.Writer
	needNL bool
}

// New returns a Reporter that will track total digest groups, writing to w
// (typically os.Stderr, per spec.md §7).
func New(w io.Writer, total int) *Reporter {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("merging"),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
	)
	return &Reporter{bar: bar, w: w}
}

// Tick advances the progress bar by one digest group.
func (r *Reporter) Tick() {
	r.bar.Add(1)
	r.needNL = true
}

// Event emits a substantive per-group message (a coalescing event, an
// abandoned pair, ...). A newline is inserted first whenever a progress
// line is still live, preserving scrollback as spec.md §7 requires.
func (r *Reporter) Event(format string, args ...interface{}) {
	if r.needNL {
		fmt.Fprintln(r.w)
		r.needNL = false
	}
	fmt.Fprintf(r.w, format+"\n", args...)
}

// Bytes formats a byte count for human-readable event messages (e.g.
// dedup savings), mirroring the teacher's cli/auxiliary.go
// humanReadableBytes helper but backed by the pack's go-humanize library.
func Bytes(n uint64) string {
	return humanize.Bytes(n)
}

// Done finishes the progress bar and emits the mandated final line.
func (r *Reporter) Done() {
	r.bar.Finish()
	if r.needNL {
		fmt.Fprintln(r.w)
	}
	fmt.Fprintln(r.w, "merging done")
}
