// Package hashpipeline implements the parallel hash pipeline (C8) and the
// hard-link pre-grouper that feeds it (C9). Grounded in the teacher's
// internals/walk.go producer/consumer channel pipeline, but restructured
// around the two-cursor, single-mutex design spec.md §4.7/§5 specifies:
// hashing proceeds out of order behind a shared "prehash" cursor, printing
// is strictly in order behind a trailing "preprint" cursor, so that output
// order never depends on which worker happened to hash which file.
package hashpipeline

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/buytenh/mksums/internal/digest"
	"github.com/buytenh/mksums/internal/walk"
	"github.com/buytenh/mksums/internal/xattrcache"
)

type state int

const (
	statePending state = iota
	stateOK
	stateFailed
	stateBackref
)

type entry struct {
	walk.File
	state     state
	backrefTo int
	digest    []byte
}

// Options configures a pipeline run.
type Options struct {
	Algorithm digest.Algorithm
	Workers   int  // defaults to 2x NumCPU, per spec.md §5
	UseCache  bool // consult/refresh the user.sha512 xattr cache
}

// Run pre-groups files so that every object sharing a device+inode is
// hashed at most once (C9), then hashes every "pending" file across a
// worker pool sized for CPU parallelism (C8), emitting one manifest line
// per file to out, in the original file-list order, regardless of hashing
// completion order.
func Run(files []walk.File, out io.Writer, opts Options) {
	algo := opts.Algorithm
	if algo == nil {
		algo = digest.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 2 * runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}

	entries := preGroup(files)

	p := &pipeline{
		entries: entries,
		algo:    algo,
		cache:   opts.UseCache,
		out:     out,
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			p.worker()
		}()
	}
	wg.Wait()

	p.mu.Lock()
	p.flush()
	p.mu.Unlock()
}

// preGroup scans files once, keyed on (dev, ino): the first file seen for
// an object is marked pending; subsequent files sharing that object-id are
// marked backref, pointing at the first (spec.md §4.8).
func preGroup(files []walk.File) []entry {
	entries := make([]entry, len(files))
	first := make(map[walk.File]int, len(files))

	for i, f := range files {
		key := walk.File{Dev: f.Dev, Ino: f.Ino}
		if j, ok := first[key]; ok {
			entries[i] = entry{File: f, state: stateBackref, backrefTo: j}
			continue
		}
		first[key] = i
		entries[i] = entry{File: f, state: statePending}
	}
	return entries
}

type pipeline struct {
	mu       sync.Mutex
	entries  []entry
	prehash  int
	preprint int

	algo  digest.Algorithm
	cache bool
	out   io.Writer
}

func (p *pipeline) worker() {
	for {
		p.mu.Lock()
		if p.prehash >= len(p.entries) {
			p.mu.Unlock()
			return
		}
		i := p.prehash
		p.prehash++
		p.mu.Unlock()

		e := &p.entries[i]
		if e.state == statePending {
			d, err := hashFile(e.Path, p.algo, p.cache)
			if err != nil {
				log.Printf("hash: %s: %s", e.Path, err)
				e.state = stateFailed
			} else {
				e.digest = d
				e.state = stateOK
			}
		}

		p.mu.Lock()
		p.flush()
		p.mu.Unlock()
	}
}

// flush advances preprint as far as the entries' resolved state allows,
// emitting one manifest line per non-failed file. Printing a file blocks
// behind any earlier file still pending, which is why flush always runs
// under p.mu rather than relying on each worker to print only its own
// work.
func (p *pipeline) flush() {
	for p.preprint < len(p.entries) {
		e := &p.entries[p.preprint]
		switch e.state {
		case statePending:
			return
		case stateOK:
			fmt.Fprintf(p.out, "%x  %s\n", e.digest, e.Path)
		case stateBackref:
			target := &p.entries[e.backrefTo]
			if target.state == stateOK {
				fmt.Fprintf(p.out, "%x  %s\n", target.digest, e.Path)
			}
			// if the target failed, this dentry is silently omitted too
		case stateFailed:
			// diagnostic already logged to stderr by the worker
		}
		p.preprint++
	}
}

// hashFile computes digest algorithm a's digest of path's contents,
// consulting and (on a cache miss, or on recompute) refreshing the
// user.sha512 xattr cache when useCache is set and a is sha-512; for any
// other algorithm the cache is neither read nor written.
func hashFile(path string, a digest.Algorithm, useCache bool) ([]byte, error) {
	if useCache && a.Name() == "sha-512" {
		if fi, err := os.Stat(path); err == nil {
			if d, ok := xattrcache.Lookup(path, a.Size(), xattrcache.Mtime(fi)); ok {
				return d, nil
			}
		}
	}

	before, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := a.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	d := h.Sum(nil)

	if useCache && a.Name() == "sha-512" {
		after, err := os.Stat(path)
		if err == nil && after.ModTime().Equal(before.ModTime()) {
			if err := xattrcache.Store(path, d, after.ModTime()); err != nil {
				log.Printf("hash: could not refresh xattr cache for %s: %s", path, err)
			}
		}
	}

	return d, nil
}
