// Package rlimit raises process resource limits at startup: the open-file
// limit toward its hard cap, so the hash pipeline and deduper's worker
// pools don't starve for descriptors under wide fan-out. Grounded in the
// teacher's cli/auxiliary.go countCPUs()-style startup helpers, generalized
// to cover the one further limit spec.md §5 calls out, via
// golang.org/x/sys/unix (already a dependency of internal/object,
// internal/walk and internal/dedupe).
package rlimit

import "golang.org/x/sys/unix"

// RaiseNoFile raises RLIMIT_NOFILE to its hard cap and returns the
// resulting soft limit. Errors are non-fatal: a process that can't raise
// its limit simply runs with whatever the environment already grants it.
func RaiseNoFile() (uint64, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, err
	}
	rl.Cur = rl.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, err
	}
	return rl.Cur, nil
}
