package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/ethpandaops/buildtimes/pkg/aggregate"
	"github.com/ethpandaops/buildtimes/pkg/records"
)

// statusColumns is the column order of the per-repository status table.
var statusColumns = []records.Status{
	records.StatusSuccess,
	records.StatusFailure,
	records.StatusEarlyFail,
	records.StatusTimedOut,
}

// RenderMarkdown renders the platform comparison and per-repository
// status counts of doc as markdown.
func RenderMarkdown(doc *Document) string {
	var sb strings.Builder

	sb.Grow(2048)

	sb.WriteString("# CI Build Times\n\n")
	fmt.Fprintf(&sb, "Repositories: %d\n\n", len(doc.RepoNames))

	writePlatformSummary(&sb, doc.Summary)
	writeRepoStatuses(&sb, doc)

	return sb.String()
}

func writePlatformSummary(sb *strings.Builder, summary []aggregate.PlatformSummary) {
	sb.WriteString("## Platforms\n\n")

	if len(summary) == 0 {
		sb.WriteString("No runs found.\n\n")

		return
	}

	sb.WriteString("| Platform | Average (min) | Average | Slowdown | Repos |\n")
	sb.WriteString("|---|---:|---|---:|---:|\n")

	for _, s := range summary {
		fmt.Fprintf(sb, "| %s | %.2f | %s | %.2fx | %d |\n",
			s.Platform,
			s.AverageTime,
			humanMinutes(s.AverageTime),
			s.SlowdownFactor,
			s.RepoCount,
		)
	}

	sb.WriteByte('\n')
}

func writeRepoStatuses(sb *strings.Builder, doc *Document) {
	if len(doc.RepoNames) == 0 {
		return
	}

	sb.WriteString("## Run Status\n\n")
	sb.WriteString("| Repository | Platform | Runs")

	for _, st := range statusColumns {
		fmt.Fprintf(sb, " | %s", st)
	}

	sb.WriteString(" |\n|---|---|---:")
	sb.WriteString(strings.Repeat("|---:", len(statusColumns)))
	sb.WriteString("|\n")

	for i, repo := range doc.RepoNames {
		if i >= len(doc.Datasets) {
			break
		}

		for _, series := range doc.Datasets[i] {
			counts := make(map[records.Status]int, len(statusColumns))
			for _, p := range series.Data {
				counts[p.Status]++
			}

			fmt.Fprintf(sb, "| %s | %s | %d", repo, series.Label, len(series.Data))

			for _, st := range statusColumns {
				fmt.Fprintf(sb, " | %d", counts[st])
			}

			sb.WriteString(" |\n")
		}
	}

	sb.WriteByte('\n')
}

// humanMinutes formats fractional minutes as a coarse duration such as
// "About a minute" or "12 minutes".
func humanMinutes(minutes float64) string {
	if minutes <= 0 {
		return "-"
	}

	return units.HumanDuration(time.Duration(minutes * float64(time.Minute)))
}
