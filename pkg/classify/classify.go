// Package classify loads the operator-maintained failure classification
// file that reclassifies individual CI runs.
package classify

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Classification is an operator-assigned outcome for a run.
type Classification string

const (
	// None means the run has no override entry.
	None Classification = ""
	// GenuineFailure marks a run that really failed.
	GenuineFailure Classification = "genuine_failure"
	// EarlyFail marks a run that failed before doing meaningful work.
	EarlyFail Classification = "early_fail"
)

// Key identifies a single run across repositories and platforms.
type Key struct {
	Repo     string
	Platform string
	Commit   string
}

// Overrides is an immutable lookup of classified runs. The zero value
// classifies nothing.
type Overrides struct {
	genuine map[Key]struct{}
	early   map[Key]struct{}
}

// Entry is one block of the override file.
type Entry struct {
	Repo     string   `yaml:"repo"`
	Platform string   `yaml:"platform"`
	Commits  []string `yaml:"commits"`
}

// File is the on-disk shape of the override file.
type File struct {
	GenuineFailures []Entry `yaml:"genuine_failures"`
	EarlyFail       []Entry `yaml:"early_fail"`
}

// New builds Overrides from a decoded file.
func New(f File) Overrides {
	return Overrides{
		genuine: keySet(f.GenuineFailures),
		early:   keySet(f.EarlyFail),
	}
}

func keySet(entries []Entry) map[Key]struct{} {
	set := make(map[Key]struct{})

	for _, e := range entries {
		for _, c := range e.Commits {
			set[Key{Repo: e.Repo, Platform: e.Platform, Commit: c}] = struct{}{}
		}
	}

	return set
}

// Parse decodes an override document.
func Parse(data []byte) (Overrides, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Overrides{}, fmt.Errorf("parsing overrides: %w", err)
	}

	return New(f), nil
}

// Load reads the override file at path. A missing file yields empty
// overrides. A malformed file is logged and also yields empty overrides,
// so that a bad edit never blocks dashboard generation.
func Load(log logrus.FieldLogger, path string) Overrides {
	log = log.WithField("overrides_file", path)

	if path == "" {
		log.Debug("No overrides file configured")

		return Overrides{}
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info("Overrides file not found, using no overrides")
		} else {
			log.WithError(err).Warn("Could not read overrides file, using no overrides")
		}

		return Overrides{}
	}

	o, err := Parse(data)
	if err != nil {
		log.WithError(err).Warn("Malformed overrides file, using no overrides")

		return Overrides{}
	}

	log.WithFields(logrus.Fields{
		"genuine_failures": len(o.genuine),
		"early_fail":       len(o.early),
	}).Info("Loaded failure overrides")

	return o
}

// Lookup returns the classification of a run. Genuine failures take
// precedence when a run is listed in both sets.
func (o Overrides) Lookup(k Key) Classification {
	if _, ok := o.genuine[k]; ok {
		return GenuineFailure
	}

	if _, ok := o.early[k]; ok {
		return EarlyFail
	}

	return None
}

// Len returns the number of classified runs across both sets.
func (o Overrides) Len() int {
	return len(o.genuine) + len(o.early)
}
