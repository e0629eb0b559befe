// Package merge drives one digest group through the segmenter with the
// linking and/or dedup policy packs, tying together internal/object,
// internal/segment, internal/linker and internal/dedupe into the merger's
// per-group processing step. Grounded in the teacher's run.FindDuplicates
// (src/.../run/package.go), which plays the same "glue one digest group's
// worth of work together" role over the teacher's own match/traversal
// packages.
package merge

import (
	"fmt"

	"github.com/buytenh/mksums/internal/dedupe"
	"github.com/buytenh/mksums/internal/linker"
	"github.com/buytenh/mksums/internal/object"
	"github.com/buytenh/mksums/internal/segment"
)

// Event describes one coalescing action (or abandonment) the caller should
// report to the user.
type Event struct {
	Kind    string // "linked", "deduped", "skipped", "abandoned"
	Leader  string
	Other   string
	Message string
}

// Options selects which of link/dedup to perform for a digest group. Both
// may be set — link runs first (collapsing same-attribute duplicates to a
// single inode), then dedup runs over whatever distinct objects remain.
type Options struct {
	Link  bool
	Dedup bool
}

// Group resolves dentries to objects and performs the requested
// coalescing, returning one Event per action taken or abandoned.
func Group(dentries []string, opts Options) ([]Event, error) {
	set, err := object.Resolve(dentries)
	if err != nil {
		return nil, err
	}
	if set.Len() < 2 {
		return nil, nil
	}

	var events []Event

	if opts.Link {
		events = append(events, runLink(set)...)
	}
	if opts.Dedup {
		events = append(events, runDedup(set)...)
	}
	return events, nil
}

func runLink(set *object.Set) []Event {
	var events []Event
	policy := linker.Policy{
		OnFound: func(leader, x *object.Object) {
			before := len(x.Dentries)
			leaderPath := leader.Dentries[0]
			linker.Link(leader, x)
			linked := before - len(x.Dentries)
			if linked > 0 {
				events = append(events, Event{
					Kind:   "linked",
					Leader: leaderPath,
					Other:  fmt.Sprintf("%d dentries", linked),
				})
			}
		},
	}
	segment.Run(set, policy)
	return events
}

func runDedup(set *object.Set) []Event {
	var events []Event

	// Open every object's fd + extent map up-front; exclude any that
	// cannot be opened at all from segmentation entirely.
	g := &dedupe.Group{}
	usable := make([]*object.Object, 0, set.Len())
	for _, o := range set.Objects() {
		if len(o.Dentries) == 0 {
			continue // fully absorbed by a prior link pass
		}
		if err := g.Open(o); err != nil {
			events = append(events, Event{Kind: "skipped", Other: o.Dentries[0], Message: err.Error()})
			continue
		}
		if err := dedupe.BuildExtents(o); err != nil {
			events = append(events, Event{Kind: "skipped", Other: o.Dentries[0], Message: err.Error()})
			dedupe.Close(o)
			continue
		}
		usable = append(usable, o)
	}
	defer func() {
		for _, o := range usable {
			dedupe.Close(o)
		}
	}()

	if len(usable) < 2 {
		return events
	}

	dedupSet := object.NewSetFromObjects(usable)
	policy := dedupe.Policy{
		OnFound: func(leader, x *object.Object) {
			if err := dedupe.Dedup(leader, x); err != nil {
				events = append(events, Event{
					Kind: "abandoned", Leader: leader.Dentries[0], Other: x.Dentries[0],
					Message: err.Error(),
				})
				return
			}
			events = append(events, Event{Kind: "deduped", Leader: leader.Dentries[0], Other: x.Dentries[0]})
		},
	}
	segment.Run(dedupSet, policy)
	return events
}
