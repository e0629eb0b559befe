// scanner walks one or more directory subtrees and emits a digest
// manifest to standard output (C7/C8/C9). Built with kingpin, following
// the teacher's cli/main.go CLI framework and cli/auxiliary.go's
// envOr/envToBool/envToInt environment-fallback convention.
package main

import (
	"fmt"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/buytenh/mksums/internal/config"
	"github.com/buytenh/mksums/internal/digest"
	"github.com/buytenh/mksums/internal/hashpipeline"
	"github.com/buytenh/mksums/internal/rlimit"
	"github.com/buytenh/mksums/internal/walk"
)

var (
	app = kingpin.New("scanner", "Walk directory trees and emit a digest manifest.")

	dirs = app.Arg("dir", "directory to scan").Required().Strings()

	xattrCacheHash = app.Flag("xattr-cache-hash", "consult and refresh the user.sha512 extended attribute cache").
			Envar("MKSUMS_XATTR_CACHE_HASH").Bool()
	hashAlgorithm = app.Flag("hash-algorithm", "digest algorithm to use ("+joinNames()+")").
			Envar("MKSUMS_HASH_ALGORITHM").Default("sha-512").String()
	workers = app.Flag("workers", "number of concurrent hashing workers").
		Envar("MKSUMS_WORKERS").Int()
	configPath = app.Flag("config", "YAML file supplying flag defaults").String()
)

func joinNames() string {
	names := digest.Names()
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

func main() {
	os.Exit(run())
}

func run() int {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scanner: %s\n", err)
		return 1
	}

	algoName := *hashAlgorithm
	if algoName == "sha-512" && cfg.HashAlgorithm != "" {
		algoName = cfg.HashAlgorithm
	}
	algo, err := digest.ByName(algoName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scanner: %s\n", err)
		return 1
	}

	w := *workers
	if w == 0 {
		w = cfg.Workers
	}

	useCache := *xattrCacheHash || cfg.XattrCache

	if _, err := rlimit.RaiseNoFile(); err != nil {
		fmt.Fprintf(os.Stderr, "scanner: could not raise open file limit: %s\n", err)
	}

	files, err := walk.Walk(*dirs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scanner: %s\n", err)
		return 1
	}

	hashpipeline.Run(files, os.Stdout, hashpipeline.Options{
		Algorithm: algo,
		Workers:   w,
		UseCache:  useCache,
	})

	return 0
}
