// Package object implements the inode aggregator (C3): given a digest
// group's dentries, resolve each to the underlying storage object it names
// and group dentries by (device, object-id). Grounded in the dev+ino keyed
// grouping chadnetzer-hardlinkable's internal/inode package performs and the
// stat-based resolution opencoff-go-fio's walker uses, both built on
// golang.org/x/sys/unix.
package object

import (
	"os"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/buytenh/mksums/internal/extent"
)

// Key identifies an underlying storage object by device and object id.
type Key struct {
	Dev uint64
	Ino uint64
}

// Object is the underlying storage entity 1..N dentries resolve to.
// Mutable fields (Visited, ReadOnly, FD, Extents) are set during
// segmentation/coalescing and are only meaningful while that digest
// group's processing is in flight.
type Object struct {
	Key

	Mode      os.FileMode
	UID, GID  uint32
	Size      int64
	LinkCount uint64

	// Dentries are the paths, from the current digest group, known to
	// point at this object — not necessarily all of them (LinkCount may
	// exceed len(Dentries) if other dentries live outside this group).
	Dentries []string

	// Visited marks this object as having been considered by the
	// segmenter exactly once during the current segmentation run.
	Visited bool
	// ReadOnly is set by the deduper's read-only fallback (at most once
	// per digest group).
	ReadOnly bool

	FD      *os.File
	Extents *extent.Map
}

// MissingReferences is link count minus the number of dentries this digest
// group observed for the object — a proxy for "has dentries elsewhere",
// used by the linker's leader-preference policy.
func (o *Object) MissingReferences() int64 {
	return int64(o.LinkCount) - int64(len(o.Dentries))
}

// Set is a uniquely-keyed collection of Objects, keyed by (device,
// object-id), in ascending key order to give the segmenter deterministic
// enumeration (spec.md §4.3's tie-break rule).
type Set struct {
	order []Key
	byKey map[Key]*Object
}

// NewSet returns an empty, ready-to-populate Set.
func NewSet() *Set {
	return &Set{byKey: make(map[Key]*Object)}
}

// NewSetFromObjects builds a Set containing exactly objs, preserving their
// relative order. Callers use this to re-run segmentation (spec.md §4.3)
// over a filtered subset of an already-resolved Set — e.g. the deduper
// excluding objects whose file descriptor could not be opened.
func NewSetFromObjects(objs []*Object) *Set {
	s := NewSet()
	for _, o := range objs {
		s.byKey[o.Key] = o
		s.order = append(s.order, o.Key)
	}
	return s
}

// Objects returns every Object in (device, object-id) key order.
func (s *Set) Objects() []*Object {
	out := make([]*Object, len(s.order))
	for i, k := range s.order {
		out[i] = s.byKey[k]
	}
	return out
}

// Len returns the number of distinct objects in the set.
func (s *Set) Len() int { return len(s.order) }

// ResetVisited clears the Visited flag on every object, as required at the
// start of each segmentation pass (spec.md §4.3 step "Clear every object's
// visited flag").
func (s *Set) ResetVisited() {
	for _, o := range s.byKey {
		o.Visited = false
	}
}

// Resolve stats each dentry in dentries and groups them by (device,
// object-id) into a new Set. Entries that fail resolution with ENOENT are
// silently skipped (they may have been removed or coalesced since the
// manifest was written). Zero-size objects are excluded entirely — they
// carry no content worth deduplicating.
func Resolve(dentries []string) (*Set, error) {
	s := NewSet()
	for _, path := range dentries {
		var st unix.Stat_t
		if err := unix.Stat(path, &st); err != nil {
			if err == unix.ENOENT {
				continue
			}
			return nil, err
		}
		if st.Size == 0 {
			continue
		}

		key := Key{Dev: uint64(st.Dev), Ino: st.Ino}
		obj, ok := s.byKey[key]
		if !ok {
			obj = &Object{
				Key:       key,
				Mode:      os.FileMode(st.Mode & 0777),
				UID:       st.Uid,
				GID:       st.Gid,
				Size:      st.Size,
				LinkCount: uint64(st.Nlink),
			}
			s.byKey[key] = obj
			s.order = append(s.order, key)
		}
		obj.Dentries = append(obj.Dentries, path)
	}
	sort.Slice(s.order, func(i, j int) bool {
		if s.order[i].Dev != s.order[j].Dev {
			return s.order[i].Dev < s.order[j].Dev
		}
		return s.order[i].Ino < s.order[j].Ino
	})
	return s, nil
}
