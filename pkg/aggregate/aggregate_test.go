package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/buildtimes/pkg/records"
)

func addRuns(d records.Dataset, repo, platform string, minutes ...float64) {
	for i, m := range minutes {
		d.Add(records.Record{
			Repo:     repo,
			Platform: platform,
			Index:    i,
			Commit:   "c",
			Minutes:  m,
			Status:   records.StatusSuccess,
		})
	}
}

func TestSummarize_EqualRepositoryWeighting(t *testing.T) {
	d := make(records.Dataset)

	many := make([]float64, 100)
	for i := range many {
		many[i] = 10
	}

	addRuns(d, "org/big", "garnix", many...)
	addRuns(d, "org/small", "garnix", 20, 20)
	d.Sort()

	got := Summarize(d)
	require.Len(t, got, 1)

	assert.Equal(t, "garnix", got[0].Platform)
	assert.InDelta(t, 15.0, got[0].AverageTime, 1e-9)
	assert.Equal(t, 2, got[0].RepoCount)
	assert.Equal(t, 1.0, got[0].SlowdownFactor)
}

func TestSummarize_SlowdownAndOrdering(t *testing.T) {
	d := make(records.Dataset)

	addRuns(d, "org/a", "github-actions-serial", 30, 50)
	addRuns(d, "org/a", "garnix", 10)
	addRuns(d, "org/a", "github-actions-parallel", 20, 20, 20)
	addRuns(d, "org/b", "garnix", 10, 30)
	addRuns(d, "org/b", "github-actions-serial", 40)
	d.Sort()

	got := Summarize(d)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"garnix", "github-actions-parallel", "github-actions-serial"},
		[]string{got[0].Platform, got[1].Platform, got[2].Platform})

	// garnix: (10 + 20) / 2 = 15
	assert.InDelta(t, 15.0, got[0].AverageTime, 1e-9)
	assert.Equal(t, 1.0, got[0].SlowdownFactor)
	assert.Equal(t, 2, got[0].RepoCount)

	// parallel: 20, only in org/a
	assert.InDelta(t, 20.0, got[1].AverageTime, 1e-9)
	assert.InDelta(t, 20.0/15.0, got[1].SlowdownFactor, 1e-9)
	assert.Equal(t, 1, got[1].RepoCount)

	// serial: (40 + 40) / 2 = 40
	assert.InDelta(t, 40.0, got[2].AverageTime, 1e-9)
	assert.InDelta(t, 40.0/15.0, got[2].SlowdownFactor, 1e-9)

	for _, s := range got {
		assert.GreaterOrEqual(t, s.SlowdownFactor, 1.0)
	}
}

func TestSummarize_TiesOrderedByName(t *testing.T) {
	d := make(records.Dataset)

	addRuns(d, "org/a", "zeta", 5)
	addRuns(d, "org/a", "alpha", 5)
	addRuns(d, "org/a", "mid", 5)
	d.Sort()

	got := Summarize(d)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"alpha", "mid", "zeta"},
		[]string{got[0].Platform, got[1].Platform, got[2].Platform})
}

func TestSummarize_OmitsEmptyGroups(t *testing.T) {
	d := records.Dataset{
		"org/a": {
			"garnix": nil,
			"serial": {{Repo: "org/a", Platform: "serial", Minutes: 3}},
		},
	}

	got := Summarize(d)
	require.Len(t, got, 1)
	assert.Equal(t, "serial", got[0].Platform)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Empty(t, Summarize(records.Dataset{}))
}

func TestSummarize_ZeroTimes(t *testing.T) {
	d := make(records.Dataset)

	addRuns(d, "org/a", "zero", 0)
	addRuns(d, "org/a", "busy", 5)
	addRuns(d, "org/a", "alpha", 2)
	d.Sort()

	got := Summarize(d)
	require.Len(t, got, 3)

	for _, s := range got {
		assert.Equal(t, 1.0, s.SlowdownFactor)
	}

	// Fastest first even when every factor collapses to 1.0.
	assert.Equal(t, []string{"zero", "alpha", "busy"},
		[]string{got[0].Platform, got[1].Platform, got[2].Platform})
}
