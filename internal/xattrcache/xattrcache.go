// Package xattrcache implements the optional stored-on-file hash cache
// (spec.md §4.7's cache contract), keyed on the user.sha512 extended
// attribute. Grounded in the pack's xattr-based filesystem tools —
// chadnetzer-hardlinkable, opencoff-go-fio and diskfs-go-diskfs all drive
// github.com/pkg/xattr for exactly this kind of per-file metadata sidecar.
package xattrcache

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/pkg/xattr"
)

// AttrName is the extended attribute spec.md §6 assigns this cache.
const AttrName = "user.sha512"

// headerSize is the width of the record's fixed header: mtime_sec (8
// bytes, BE), mtime_nsec (4 bytes, BE). The digest itself follows it.
const headerSize = 8 + 4

// Lookup returns the cached digest for path if a user.sha512 attribute is
// present and its stored mtime matches the file's current modification
// time exactly. digestSize is the expected width of the cached digest
// (H bytes); a record of any other size is treated as a miss.
func Lookup(path string, digestSize int, mtime time.Time) ([]byte, bool) {
	raw, err := xattr.Get(path, AttrName)
	if err != nil || len(raw) != headerSize+digestSize {
		return nil, false
	}

	sec := int64(binary.BigEndian.Uint64(raw[0:8]))
	nsec := int64(binary.BigEndian.Uint32(raw[8:12]))
	stored := time.Unix(sec, nsec)
	if !stored.Equal(mtime) {
		return nil, false
	}

	digest := make([]byte, digestSize)
	copy(digest, raw[headerSize:])
	return digest, true
}

// Store writes digest to path's user.sha512 attribute tagged with mtime.
// Callers must only call Store when the file's modification time sampled
// before and after hashing was unchanged — a changed mtime between samples
// means the file was mid-flux and the attribute write is skipped by the
// caller instead.
func Store(path string, digest []byte, mtime time.Time) error {
	raw := make([]byte, headerSize+len(digest))
	binary.BigEndian.PutUint64(raw[0:8], uint64(mtime.Unix()))
	binary.BigEndian.PutUint32(raw[8:12], uint32(mtime.Nanosecond()))
	copy(raw[headerSize:], digest)
	return xattr.Set(path, AttrName, raw)
}

// Mtime is a small convenience wrapper so callers needn't import os
// themselves just to sample a file's modification time twice.
func Mtime(fi os.FileInfo) time.Time {
	return fi.ModTime()
}
