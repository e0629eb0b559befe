// Package config loads the optional YAML defaults file both CLIs accept
// via --config, supplying fallback values for flags not given on the
// command line. This is the "configuration" ambient layer spec.md §1 names
// as an external collaborator at its interface: its existence and the
// fields it can set are in scope, its own file-format parsing internals
// are not the point of this spec. Grounded in gopkg.in/yaml.v2, already a
// teacher dependency (tests/cli/spec.go).
package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// File is the shape of the optional configuration file. Zero values mean
// "no default supplied" — the CLI's own flag defaults/env fallback still
// apply.
type File struct {
	HashAlgorithm    string   `yaml:"hash-algorithm"`
	Workers          int      `yaml:"workers"`
	WalkWorkers      int      `yaml:"walk-workers"`
	XattrCache       bool     `yaml:"xattr-cache-hash"`
	ExcludeBasename  []string `yaml:"exclude-basename"`
	Link             bool     `yaml:"link"`
	Dedup            bool     `yaml:"dedup"`
}

// Load reads and parses a YAML configuration file. A path of "" is treated
// as "no configuration file given" and returns a zero File.
func Load(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, err
	}
	return f, nil
}
