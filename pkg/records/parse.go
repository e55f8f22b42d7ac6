package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/ethpandaops/buildtimes/pkg/classify"
)

// ErrInvalidFilename is returned for files not named <index>_<hash>.json.
var ErrInvalidFilename = errors.New("invalid record filename")

const (
	fileExt     = ".json"
	indexSep    = "_"
	branchField = "branchName"
	msPerMinute = 60 * 1000
)

// rawRecord is the subset of a CI timing file that is read. Fields are
// decoded weakly so that numeric strings are accepted for time.
type rawRecord struct {
	Time       float64 `mapstructure:"time"`
	BranchName string  `mapstructure:"branchName"`
	Status     string  `mapstructure:"status"`
}

// ParseFilename extracts the sequence index and commit hash from a name of
// the form <index>_<hash>.json.
func ParseFilename(name string) (int, string, error) {
	base := strings.TrimSuffix(name, fileExt)

	prefix, hash, found := strings.Cut(base, indexSep)
	if !found {
		return 0, "", fmt.Errorf("%w %q: missing %q separator",
			ErrInvalidFilename, name, indexSep)
	}

	index, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", fmt.Errorf("%w %q: index %q is not numeric",
			ErrInvalidFilename, name, prefix)
	}

	return index, hash, nil
}

// Parse builds a Record from the body of one timing file.
func Parse(
	repo, platform, filename string,
	body []byte,
	overrides classify.Overrides,
) (Record, error) {
	index, hash, err := ParseFilename(filename)
	if err != nil {
		return Record{}, err
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return Record{}, fmt.Errorf("decoding %s: %w", filename, err)
	}

	if doc == nil {
		return Record{}, fmt.Errorf("decoding %s: not a JSON object", filename)
	}

	var raw rawRecord
	if err := mapstructure.WeakDecode(doc, &raw); err != nil {
		return Record{}, fmt.Errorf("reading fields of %s: %w", filename, err)
	}

	if math.IsNaN(raw.Time) || math.IsInf(raw.Time, 0) {
		return Record{}, fmt.Errorf("reading fields of %s: time %v is not finite",
			filename, raw.Time)
	}

	// An explicit empty branch name is kept; absent or null defaults.
	branch := raw.BranchName
	if v, ok := doc[branchField]; !ok || v == nil {
		branch = DefaultBranch
	}

	class := overrides.Lookup(classify.Key{
		Repo:     repo,
		Platform: platform,
		Commit:   hash,
	})

	return Record{
		Repo:           repo,
		Platform:       platform,
		Index:          index,
		Commit:         hash,
		Minutes:        raw.Time / msPerMinute,
		Branch:         branch,
		Status:         ResolveStatus(class, raw.Status),
		ReportedStatus: raw.Status,
	}, nil
}
