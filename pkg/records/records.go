// Package records turns the org/repo/platform/<index>_<hash>.json tree
// into normalized, ordered run records.
package records

import (
	"sort"

	"github.com/ethpandaops/buildtimes/pkg/classify"
)

// Status is the corrected outcome of a run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusEarlyFail Status = "early_fail"
	StatusTimedOut  Status = "timed_out"
)

// DefaultBranch is used when a record carries no branchName.
const DefaultBranch = "main"

// Record is one CI execution of one commit on one platform.
type Record struct {
	Repo     string  `json:"repo"`
	Platform string  `json:"platform"`
	Index    int     `json:"commit_index"`
	Commit   string  `json:"commit_hash"`
	Minutes  float64 `json:"time_minutes"`
	Branch   string  `json:"branch_name"`
	Status   Status  `json:"status"`

	// ReportedStatus is the status the CI system wrote, before overrides.
	ReportedStatus string `json:"reported_status,omitempty"`
}

// ResolveStatus applies the override precedence: genuine failure, then
// early fail, then a reported timeout. Anything else is a success, even
// when the CI system reported a failure.
func ResolveStatus(c classify.Classification, reported string) Status {
	switch {
	case c == classify.GenuineFailure:
		return StatusFailure
	case c == classify.EarlyFail:
		return StatusEarlyFail
	case reported == string(StatusTimedOut):
		return StatusTimedOut
	default:
		return StatusSuccess
	}
}

// Dataset maps repository -> platform -> records ordered by Index.
type Dataset map[string]map[string][]Record

// Add appends r to its repository/platform group. Call Sort once all
// records are added.
func (d Dataset) Add(r Record) {
	platforms, ok := d[r.Repo]
	if !ok {
		platforms = make(map[string][]Record)
		d[r.Repo] = platforms
	}

	platforms[r.Platform] = append(platforms[r.Platform], r)
}

// Sort orders every group ascending by Index. Equal indices, which only
// occur with malformed input, fall back to commit hash order.
func (d Dataset) Sort() {
	for _, platforms := range d {
		for _, recs := range platforms {
			sort.SliceStable(recs, func(i, j int) bool {
				if recs[i].Index != recs[j].Index {
					return recs[i].Index < recs[j].Index
				}

				return recs[i].Commit < recs[j].Commit
			})
		}
	}
}

// Repos returns repository keys sorted lexicographically.
func (d Dataset) Repos() []string {
	return sortedKeys(d)
}

// Platforms returns the platforms of repo sorted lexicographically.
func (d Dataset) Platforms(repo string) []string {
	return sortedKeys(d[repo])
}

// Records returns the ordered records of one repository/platform group.
func (d Dataset) Records(repo, platform string) []Record {
	return d[repo][platform]
}

// Len returns the total number of records.
func (d Dataset) Len() int {
	n := 0

	for _, platforms := range d {
		for _, recs := range platforms {
			n += len(recs)
		}
	}

	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
