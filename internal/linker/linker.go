// Package linker implements the linking policy pack and the linker itself
// (C5): replacing a dentry with a hard link to the chosen leader's path.
// Grounded in the teacher's fstree.Build-style path bookkeeping and in how
// chadnetzer-hardlinkable's inode package tracks per-object dentry lists,
// adapted to the link()+rename() atomic-replace protocol spec.md §4.4
// mandates.
package linker

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/buytenh/mksums/internal/object"
)

// Policy is the segment.Policy for link-based coalescing (spec.md §4.3):
// equiv requires identical (device, mode, uid, gid, size); better_leader
// prefers the object with the most missing references, tie-breaking by
// higher link count then lower object-id; can_pair is not supplied.
type Policy struct {
	// OnFound is invoked for every leader/non-leader pair the segmenter
	// admits; it performs the actual link+rename protocol.
	OnFound func(leader, x *object.Object)
}

func (p Policy) Equiv(a, b *object.Object) bool {
	return a.Dev == b.Dev && a.Mode == b.Mode && a.UID == b.UID && a.GID == b.GID && a.Size == b.Size
}

func (p Policy) BetterLeader(a, b *object.Object) bool {
	am, bm := a.MissingReferences(), b.MissingReferences()
	if am != bm {
		return am > bm
	}
	if a.LinkCount != b.LinkCount {
		return a.LinkCount > b.LinkCount
	}
	return a.Ino < b.Ino
}

func (p Policy) CanPair(leader, x *object.Object) bool { return true }

func (p Policy) FoundEquiv(leader, x *object.Object) {
	p.OnFound(leader, x)
}

// Link replaces every dentry of x with a hard link to leader's first
// dentry, one dentry at a time (the operation is not atomic across
// multiple dentries — spec.md §4.4). Successfully linked dentries are
// transferred into leader.Dentries.
func Link(leader, x *object.Object) {
	if len(leader.Dentries) == 0 || len(x.Dentries) == 0 {
		return
	}
	target := leader.Dentries[0]

	remaining := x.Dentries[:0]
	for _, d := range x.Dentries {
		if linkOne(target, d) {
			leader.Dentries = append(leader.Dentries, d)
		} else {
			remaining = append(remaining, d)
		}
	}
	x.Dentries = remaining
}

// linkOne performs the atomic-link protocol for a single dentry d against
// target: create a hard link from target to a process-unique temporary
// name in d's directory, then rename the temporary over d. Link creation
// failure and rename failure are both non-fatal and skip this dentry; an
// unexpected topology (the temporary surviving an ostensibly successful
// rename) is fatal.
func linkOne(target, d string) bool {
	dir := filepath.Dir(d)
	tmp := filepath.Join(dir, tempName())

	if err := os.Link(target, tmp); err != nil {
		log.Printf("link: could not create temporary link for %s: %s", d, err)
		return false
	}

	if err := os.Rename(tmp, d); err != nil {
		log.Printf("link: rename %s -> %s failed: %s", tmp, d, err)
		if unlinkErr := os.Remove(tmp); unlinkErr != nil {
			log.Printf("link: could not remove stale temporary %s: %s", tmp, unlinkErr)
		}
		return false
	}

	// If the temporary is still unlinkable after a "successful" rename,
	// the rename did not actually replace d — an unexpected filesystem
	// topology that spec.md §4.4/§7 treats as fatal.
	if err := os.Remove(tmp); err == nil {
		log.Fatalf("link: temporary %s survived rename onto %s — unexpected filesystem topology", tmp, d)
	}

	return true
}

func tempName() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing indicates a broken system entropy source;
		// fall back to the PID, which is still unique enough to avoid
		// colliding with a concurrent invocation's temporary.
		return fmt.Sprintf(".mksums-tmp-%d", os.Getpid())
	}
	return ".mksums-tmp-" + hex.EncodeToString(buf[:])
}
