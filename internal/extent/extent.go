// Package extent builds and diffs the logical→physical extent table of an
// open file (C1), via the Linux FIEMAP ioctl. Grounded in the teacher's
// preference for small, purpose-built files per concern (internals/hash_*.go)
// and in how other pack filesystem tools (diskfs-go-diskfs's inode package,
// opencoff-go-fio) drive golang.org/x/sys/unix for raw filesystem metadata.
package extent

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Extent describes a contiguous run of a file's bytes backed by a
// contiguous run of physical storage.
type Extent struct {
	Logical  uint64
	Physical uint64
	Length   uint64
}

// Map is an ordered collection of a file's extents, keyed on logical
// offset. Adjacent extents that are contiguous in both logical and
// physical space are merged; extents flagged as having unknown physical
// location are dropped.
type Map struct {
	extents []Extent
}

// Extents returns the merged extent list in logical-offset order.
func (m *Map) Extents() []Extent { return m.extents }

func (m *Map) append(e Extent) {
	if n := len(m.extents); n > 0 {
		last := &m.extents[n-1]
		if last.Logical+last.Length == e.Logical && last.Physical+last.Length == e.Physical {
			last.Length += e.Length
			return
		}
	}
	m.extents = append(m.extents, e)
}

// DiffersWithin reports whether m and other disagree anywhere within
// [0, limit): i.e. whether [0, limit) is NOT yet fully shared between the
// two files. The deduper's CanPair admits a pair only when this is true,
// so pairs whose range is already shared are skipped.
func (m *Map) DiffersWithin(other *Map, limit uint64) bool {
	a := flatten(m, limit)
	b := flatten(other, limit)
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

// flatten reduces extents within [0, limit) to a comparable physical-offset
// sequence (logical offsets line up between leader and candidate by
// construction, since both describe the same byte range of equal-content
// files).
func flatten(m *Map, limit uint64) []Extent {
	out := make([]Extent, 0, len(m.extents))
	for _, e := range m.extents {
		if e.Logical >= limit {
			break
		}
		length := e.Length
		if e.Logical+length > limit {
			length = limit - e.Logical
		}
		out = append(out, Extent{Logical: e.Logical, Physical: e.Physical, Length: length})
	}
	return out
}

// fiemap ioctl definitions (linux/fiemap.h), not exposed by x/sys/unix.
const (
	fiemapMagic      = 0xc020660b // FS_IOC_FIEMAP, fixed length header + extent array
	fiemapExtentLast = 0x00000001
	fiemapExtentUnknown = 0x00000002
	batchExtents     = 16384
)

type fiemapHeader struct {
	Start        uint64
	Length       uint64
	Flags        uint32
	MappedExtents uint32
	ExtentCount  uint32
	Reserved     uint32
}

type fiemapExtentRaw struct {
	Logical    uint64
	Physical   uint64
	Length     uint64
	Reserved64 [2]uint64
	Flags      uint32
	Reserved32 [3]uint32
}

// Build queries the kernel's extent map for fd, covering [0, size), via
// repeated FIEMAP calls starting at the last-observed end offset until the
// "last extent" flag terminates the scan, as spec.md §4.5 describes.
func Build(fd int, size int64) (*Map, error) {
	m := &Map{}
	if size <= 0 {
		return m, nil
	}

	var start uint64
	for {
		exts, last, err := queryOnce(fd, start, uint64(size)-start)
		if err != nil {
			return nil, err
		}
		for _, e := range exts {
			if e.Flags&fiemapExtentUnknown != 0 {
				continue
			}
			m.append(Extent{Logical: e.Logical, Physical: e.Physical, Length: e.Length})
		}
		if last || len(exts) == 0 {
			break
		}
		lastExt := exts[len(exts)-1]
		start = lastExt.Logical + lastExt.Length
		if start >= uint64(size) {
			break
		}
	}
	return m, nil
}

// queryOnce issues a single FIEMAP ioctl call requesting up to
// batchExtents extents starting at start, covering length bytes.
func queryOnce(fd int, start, length uint64) ([]fiemapExtentRaw, bool, error) {
	bufSize := int(unsafe.Sizeof(fiemapHeader{})) + batchExtents*int(unsafe.Sizeof(fiemapExtentRaw{}))
	buf := make([]byte, bufSize)

	hdr := (*fiemapHeader)(unsafe.Pointer(&buf[0]))
	hdr.Start = start
	hdr.Length = length
	hdr.Flags = 0
	hdr.ExtentCount = batchExtents

	if err := ioctl(fd, uintptr(fiemapMagic), uintptr(unsafe.Pointer(&buf[0]))); err != nil {
		return nil, false, err
	}

	n := int(hdr.MappedExtents)
	out := make([]fiemapExtentRaw, n)
	extBase := int(unsafe.Sizeof(fiemapHeader{}))
	extSize := int(unsafe.Sizeof(fiemapExtentRaw{}))
	for i := 0; i < n; i++ {
		e := (*fiemapExtentRaw)(unsafe.Pointer(&buf[extBase+i*extSize]))
		out[i] = *e
	}

	last := n > 0 && out[n-1].Flags&fiemapExtentLast != 0
	return out, last, nil
}

func ioctl(fd int, request, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, arg)
	if errno != 0 {
		return errno
	}
	return nil
}
