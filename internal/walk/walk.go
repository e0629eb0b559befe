// Package walk implements the concurrent directory walker (C7): a pool of
// worker goroutines cooperatively enumerates one or more directory subtrees
// into a single, order-preserving list of regular-file records. Grounded in
// the teacher's internals/walk.go (shared mutable state behind one lock,
// channel-fed traversal units) but restructured around the shared
// directories-to-scan set and threads-scanning counter spec.md §4.6/§5
// describe, rather than the teacher's channel pipeline. The ordered output
// list itself is modeled directly on original_source/scan_tree.c's
// iv_list_head of dir_to_scan/file_to_hash placeholders: each directory
// occupies its own slot in the shared list at the position it sorted to
// among its siblings, and scanning that directory splices its own
// name-sorted children in at that exact slot before removing it.
package walk

import (
	"container/list"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sys/unix"
)

// File is a regular-file record in the flat, ordered output list.
type File struct {
	Path string
	Ino  uint64
	Dev  uint64
	Size int64
}

// Workers is the default directory-walker pool size: spec.md §5 sizes it
// for I/O concurrency, not CPU parallelism.
const Workers = 128

// pendingDir is a directory still awaiting scan. elem is this directory's
// own placeholder slot in the shared ordered list — scanning it splices its
// children in immediately before elem, then removes elem.
type pendingDir struct {
	path string
	ino  uint64
	elem *list.Element
}

// slot is one entry in the shared, ordered output list: either a resolved
// file record or a directory still awaiting scan.
type slot struct {
	file *File
	dir  *pendingDir
}

// childEntry is one name-sorted child of a scanned directory, combining
// files and subdirectories into a single ordering so their relative
// position among siblings is never lost (unlike splitting them into two
// separate slices up front).
type childEntry struct {
	isDir bool
	path  string
	ino   uint64
	dev   uint64
	size  int64
}

// Walk concurrently enumerates every root in roots and returns the flat,
// depth-first pre-order list of regular-file records spec.md §4.6's
// ordering contract defines: within one directory, name-sorted; globally,
// the pre-order interleaving implied by each directory's slot position.
func Walk(roots []string) ([]File, error) {
	w := &walker{order: list.New()}
	w.cond = sync.NewCond(&w.mu)

	for _, r := range roots {
		var st unix.Stat_t
		if err := unix.Lstat(r, &st); err != nil {
			return nil, err
		}
		pd := &pendingDir{path: r, ino: st.Ino}
		pd.elem = w.order.PushBack(&slot{dir: pd})
		w.pending = append(w.pending, pd)
	}

	n := Workers
	if n > len(roots)*4+1 {
		// no point oversubscribing a handful of roots with 128 workers
		n = len(roots)*4 + 1
	}
	if n < 1 {
		n = 1
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			w.runWorker()
		}()
	}
	wg.Wait()

	if w.err != nil {
		return nil, w.err
	}

	files := make([]File, 0, w.order.Len())
	for e := w.order.Front(); e != nil; e = e.Next() {
		if f := e.Value.(*slot).file; f != nil {
			files = append(files, *f)
		}
	}
	return files, nil
}

// walker holds the state shared across the worker pool: the
// directories-to-scan set, the ordered output slot list, and the
// scanning-worker counter, all behind one mutex plus a condition variable
// (spec.md §5).
type walker struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending       []*pendingDir
	scanning      int
	order         *list.List
	lastInoPicked uint64 // object-id order key of the last directory picked
	err           error
}

func (w *walker) runWorker() {
	for {
		w.mu.Lock()
		for len(w.pending) == 0 && w.scanning > 0 {
			w.cond.Wait()
		}
		if len(w.pending) == 0 && w.scanning == 0 {
			w.mu.Unlock()
			return
		}

		idx := w.pickNext()
		pd := w.pending[idx]
		w.pending = append(w.pending[:idx], w.pending[idx+1:]...)
		w.scanning++
		w.mu.Unlock()

		children, err := scanOneDir(pd.path)

		w.mu.Lock()
		w.scanning--
		if err != nil {
			if w.err == nil {
				w.err = err
			}
		} else {
			// Splice this directory's name-sorted children in right
			// before its own placeholder slot, preserving their
			// interleaved order, then remove the now-expanded
			// placeholder.
			for _, c := range children {
				if c.isDir {
					childPD := &pendingDir{path: c.path, ino: c.ino}
					childPD.elem = w.order.InsertBefore(&slot{dir: childPD}, pd.elem)
					w.pending = append(w.pending, childPD)
				} else {
					f := File{Path: c.path, Ino: c.ino, Dev: c.dev, Size: c.size}
					w.order.InsertBefore(&slot{file: &f}, pd.elem)
				}
			}
			w.order.Remove(pd.elem)
		}
		w.cond.Broadcast()
		w.mu.Unlock()
	}
}

// pickNext selects, among w.pending, the entry whose object-id sorts as the
// next-greater one after lastInoPicked, wrapping around — an
// elevator-style selection approximating disk-seek-friendly traversal
// order across concurrent workers (spec.md §4.6).
func (w *walker) pickNext() int {
	best := -1
	for i, pd := range w.pending {
		if pd.ino > w.lastInoPicked {
			if best == -1 || pd.ino < w.pending[best].ino {
				best = i
			}
		}
	}
	if best == -1 {
		for i, pd := range w.pending {
			if best == -1 || pd.ino < w.pending[best].ino {
				best = i
			}
		}
	}
	w.lastInoPicked = w.pending[best].ino
	return best
}

// scanOneDir enumerates one directory's entries in name-sorted order,
// resolving each via Lstat. Only regular files and directories are kept;
// everything else (devices, sockets, pipes, symlinks) is excluded per
// spec.md §1's Non-goals. Files and subdirectories are returned in a
// single combined, name-sorted slice so their relative order among
// siblings is preserved for the caller's splice step.
func scanOneDir(path string) ([]childEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	children := make([]childEntry, 0, len(names))
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		full := filepath.Join(path, name)

		var st unix.Stat_t
		if err := unix.Lstat(full, &st); err != nil {
			continue
		}
		switch st.Mode & unix.S_IFMT {
		case unix.S_IFDIR:
			children = append(children, childEntry{isDir: true, path: full, ino: st.Ino, dev: uint64(st.Dev)})
		case unix.S_IFREG:
			children = append(children, childEntry{path: full, ino: st.Ino, dev: uint64(st.Dev), size: st.Size})
		default:
			// symlinks, devices, sockets, pipes: not candidates.
		}
	}
	return children, nil
}
