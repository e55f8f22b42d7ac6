// Package aggregate computes cross-repository platform statistics.
package aggregate

import (
	"sort"

	"github.com/ethpandaops/buildtimes/pkg/records"
)

// PlatformSummary compares one platform against the fastest platform.
type PlatformSummary struct {
	Platform       string  `json:"platform"`
	AverageTime    float64 `json:"average_time"`
	SlowdownFactor float64 `json:"slowdown_factor"`
	RepoCount      int     `json:"repo_count"`
}

// Summarize averages each platform's time within every repository, then
// averages those per-repository means so each repository carries equal
// weight regardless of how many commits it has. The result is sorted
// fastest first; equal slowdowns are ordered by average time, then by
// platform name.
func Summarize(d records.Dataset) []PlatformSummary {
	repoMeans := make(map[string][]float64)

	for _, repo := range d.Repos() {
		for _, platform := range d.Platforms(repo) {
			recs := d.Records(repo, platform)
			if len(recs) == 0 {
				continue
			}

			repoMeans[platform] = append(repoMeans[platform], meanMinutes(recs))
		}
	}

	summaries := make([]PlatformSummary, 0, len(repoMeans))

	for platform, means := range repoMeans {
		summaries = append(summaries, PlatformSummary{
			Platform:    platform,
			AverageTime: mean(means),
			RepoCount:   len(means),
		})
	}

	if len(summaries) == 0 {
		return summaries
	}

	fastest := summaries[0].AverageTime
	for _, s := range summaries[1:] {
		fastest = min(fastest, s.AverageTime)
	}

	for i := range summaries {
		summaries[i].SlowdownFactor = slowdown(summaries[i].AverageTime, fastest)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].SlowdownFactor != summaries[j].SlowdownFactor {
			return summaries[i].SlowdownFactor < summaries[j].SlowdownFactor
		}

		if summaries[i].AverageTime != summaries[j].AverageTime {
			return summaries[i].AverageTime < summaries[j].AverageTime
		}

		return summaries[i].Platform < summaries[j].Platform
	})

	return summaries
}

// slowdown is avg/fastest. A zero fastest time makes every zero-time
// platform 1.0; the ratio is otherwise undefined and also reported as 1.0.
func slowdown(avg, fastest float64) float64 {
	if avg == fastest || fastest == 0 {
		return 1.0
	}

	return avg / fastest
}

func meanMinutes(recs []records.Record) float64 {
	var sum float64
	for _, r := range recs {
		sum += r.Minutes
	}

	return sum / float64(len(recs))
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
