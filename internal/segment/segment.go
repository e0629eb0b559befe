// Package segment implements the equivalence-class segmentation and
// coalescing engine (C4) — the heart of mksums. It is deliberately generic
// over a caller-supplied Policy so that the same algorithm drives both the
// linker and the deduper (spec.md §4.3). Modeled as Design Note §9
// recommends: a small interface rather than nested procedures closing over
// outer state, with the per-call object set and visited bookkeeping carried
// explicitly instead of through globals.
package segment

import "github.com/buytenh/mksums/internal/object"

// Policy is the function-valued policy pack a segmentation run is
// parameterized by (spec.md §4.3).
type Policy interface {
	// Equiv is a symmetric, reflexive equivalence predicate between two
	// objects.
	Equiv(a, b *object.Object) bool
	// BetterLeader is a strict preference: "a should be preferred as
	// leader over b". Only ever evaluated between equivalent objects,
	// and need not define a total order.
	BetterLeader(a, b *object.Object) bool
	// CanPair is an additional admission test applied when attempting to
	// coalesce a non-leader x with leader, finer-grained than Equiv. A
	// policy with nothing further to check (e.g. the linker) simply
	// always returns true.
	CanPair(leader, x *object.Object) bool
	// FoundEquiv is invoked for each non-leader x admitted into the
	// leader's class.
	FoundEquiv(leader, x *object.Object)
}

// Run segments set under policy, as described in spec.md §4.3:
//
//  1. Clear every object's visited flag.
//  2. Repeatedly pick a leader: among unvisited objects, the one with no
//     strictly better, equivalent peer. Mark it visited.
//  3. For every remaining unvisited object equivalent to the leader, mark
//     it visited, and if CanPair admits it, invoke FoundEquiv.
//  4. Terminate when no unvisited object remains.
//
// Every object is visited exactly once across the whole run. An object
// rejected by CanPair is not visited again in a later pass: equiv already
// defines the class boundary, and CanPair is a finer admission within it,
// not a reclassification (spec.md §4.3, Design Note §9's first Open
// Question — preserved exactly as observed).
func Run(set *object.Set, policy Policy) {
	set.ResetVisited()
	objs := set.Objects()

	for {
		leader := pickLeader(objs, policy)
		if leader == nil {
			return
		}
		leader.Visited = true

		for _, x := range objs {
			if x.Visited || x == leader {
				continue
			}
			if !policy.Equiv(leader, x) {
				continue
			}
			x.Visited = true
			if !policy.CanPair(leader, x) {
				continue
			}
			policy.FoundEquiv(leader, x)
		}
	}
}

// pickLeader scans objs for an unvisited object with no strictly better,
// equivalent peer, in (device, object-id) order — giving deterministic
// behavior when BetterLeader does not impose a total order (ties are
// broken stably by enumeration order).
func pickLeader(objs []*object.Object, policy Policy) *object.Object {
	var candidate *object.Object
	for _, o := range objs {
		if o.Visited {
			continue
		}
		if candidate == nil {
			candidate = o
			continue
		}
		if !policy.Equiv(candidate, o) || !policy.BetterLeader(o, candidate) {
			continue
		}
		candidate = o
	}
	return candidate
}
