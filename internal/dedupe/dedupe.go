// Package dedupe implements the dedup policy pack and the deduper (C6):
// requesting that the kernel share underlying storage extents between a
// leader object and each admitted non-leader. Grounded in the teacher's
// per-concern file split (one responsibility per file) and in how
// filesystem-facing pack tools drive ioctls through golang.org/x/sys/unix.
package dedupe

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"

	"github.com/buytenh/mksums/internal/extent"
	"github.com/buytenh/mksums/internal/mkerrors"
	"github.com/buytenh/mksums/internal/object"
)

// Policy is the segment.Policy for dedup-based coalescing (spec.md §4.3):
// equiv requires identical device; better_leader prefers writable over
// read-only, tie-breaking by lower object-id; can_pair admits a pair only
// if their extent maps still differ over [0, leader.size).
type Policy struct {
	OnFound func(leader, x *object.Object)
}

func (p Policy) Equiv(a, b *object.Object) bool {
	return a.Dev == b.Dev
}

func (p Policy) BetterLeader(a, b *object.Object) bool {
	if a.ReadOnly != b.ReadOnly {
		return !a.ReadOnly // prefer writable (ReadOnly == false)
	}
	return a.Ino < b.Ino
}

func (p Policy) CanPair(leader, x *object.Object) bool {
	if x.ReadOnly {
		return false
	}
	if leader.Extents == nil || x.Extents == nil {
		return true
	}
	return leader.Extents.DiffersWithin(x.Extents, uint64(leader.Size))
}

func (p Policy) FoundEquiv(leader, x *object.Object) {
	p.OnFound(leader, x)
}

// Group tracks whether a digest group has already consumed
// its single permitted read-only fallback (spec.md §4.5: "at most one
// read-only fallback is permitted per group").
type Group struct {
	readOnlyUsed bool
}

// Open opens one dentry of obj read-write; on EACCES, if this group has not
// yet used its one read-only fallback, retries read-only and flags obj
// ReadOnly. Any other failure is returned to the caller to log and skip.
func (g *Group) Open(obj *object.Object) error {
	if len(obj.Dentries) == 0 {
		return fmt.Errorf("object has no known dentries")
	}
	path := obj.Dentries[0]

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err == nil {
		obj.FD = f
		return nil
	}
	if !os.IsPermission(err) {
		return &mkerrors.IoError{Op: "open", Path: path, Err: err}
	}
	if g.readOnlyUsed {
		return &mkerrors.PermissionError{Path: path, Err: err}
	}

	f, roErr := os.OpenFile(path, os.O_RDONLY, 0)
	if roErr != nil {
		return &mkerrors.IoError{Op: "open", Path: path, Err: roErr}
	}
	obj.FD = f
	obj.ReadOnly = true
	g.readOnlyUsed = true
	return nil
}

// BuildExtents populates obj.Extents from its currently open file descriptor.
func BuildExtents(obj *object.Object) error {
	m, err := extent.Build(int(obj.FD.Fd()), obj.Size)
	if err != nil {
		return &mkerrors.IoError{Op: "fiemap", Path: obj.Dentries[0], Err: err}
	}
	obj.Extents = m
	return nil
}

// Close releases obj's file descriptor and extent map, as required when
// the group's processing completes (spec.md §4.5).
func Close(obj *object.Object) {
	if obj.FD != nil {
		obj.FD.Close()
		obj.FD = nil
	}
	obj.Extents = nil
}

// Dedup issues the kernel dedup-range ioctl in a loop, advancing by the
// reported bytes-deduped each iteration, until leader.Size is fully
// covered or an error/zero-progress/DIFFERS status aborts the pair
// (spec.md §4.5). Read-only objects are never passed as x — callers should
// have excluded them via Policy.CanPair already.
func Dedup(leader, x *object.Object) error {
	if x.ReadOnly {
		return fmt.Errorf("refusing to dedup into read-only object")
	}

	var off int64
	for off < leader.Size {
		n, status, err := dedupRangeOnce(leader.FD, off, leader.Size-off, x.FD)
		if err != nil {
			return &mkerrors.IoError{Op: "fidedup", Path: x.Dentries[0], Err: err}
		}
		switch status {
		case unix.FILE_DEDUPE_RANGE_DIFFERS:
			return &mkerrors.Corruption{
				LeaderPath: leader.Dentries[0],
				OtherPath:  x.Dentries[0],
				Reason:     "kernel reports ranges differ despite matching digest",
			}
		case unix.FILE_DEDUPE_RANGE_SAME:
			// progress below
		default:
			return fmt.Errorf("dedup range returned unexpected status %d", status)
		}
		if n == 0 {
			return fmt.Errorf("dedup range made zero progress at offset %d", off)
		}
		off += n
	}
	return nil
}

// dedupRangeOnce issues a single FIDEDUPERANGE ioctl with one destination:
// source = leader at off, length bytes, target = x at off.
func dedupRangeOnce(leader *os.File, off, length int64, x *os.File) (int64, int32, error) {
	req := unix.FileDedupeRange{
		Src_offset: uint64(off),
		Src_length: uint64(length),
		Info: []unix.FileDedupeRangeInfo{
			{
				Dest_fd:     int64(x.Fd()),
				Dest_offset: uint64(off),
			},
		},
	}
	if err := unix.IoctlFileDedupeRange(int(leader.Fd()), &req); err != nil {
		return 0, 0, err
	}
	info := req.Info[0]
	if info.Status < 0 {
		return 0, 0, fmt.Errorf("dedup ioctl error status %d", info.Status)
	}
	if info.Bytes_deduped == 0 {
		log.Printf("dedup: zero bytes deduped at offset %d (status %d)", off, info.Status)
	}
	return int64(info.Bytes_deduped), info.Status, nil
}
