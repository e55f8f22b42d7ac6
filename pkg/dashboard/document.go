// Package dashboard assembles and writes the document consumed by the
// browser dashboard.
package dashboard

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethpandaops/buildtimes/pkg/aggregate"
	"github.com/ethpandaops/buildtimes/pkg/fsutil"
	"github.com/ethpandaops/buildtimes/pkg/records"
)

// FileName is the name the dashboard page loads.
const FileName = "dashboard_data.json"

// Document is the complete dashboard payload. Datasets[i] holds the chart
// series of RepoNames[i].
type Document struct {
	RepoNames []string                    `json:"repo_names"`
	Datasets  [][]Series                  `json:"datasets"`
	Summary   []aggregate.PlatformSummary `json:"summary"`
}

// Series is one platform's line in a repository chart.
type Series struct {
	Label            string  `json:"label"`
	Data             []Point `json:"data"`
	BorderColor      string  `json:"borderColor"`
	BackgroundColor  string  `json:"backgroundColor"`
	Fill             bool    `json:"fill"`
	Tension          float64 `json:"tension"`
	PointRadius      int     `json:"pointRadius"`
	PointHoverRadius int     `json:"pointHoverRadius"`
}

// Point is a single run plotted at its sequence index.
type Point struct {
	X          int            `json:"x"`
	Y          float64        `json:"y"`
	CommitHash string         `json:"commit_hash"`
	BranchName string         `json:"branch_name"`
	Status     records.Status `json:"status"`
}

const (
	seriesTension          = 0.1
	seriesPointRadius      = 4
	seriesPointHoverRadius = 6
	// backgroundAlpha is appended to the border colour for the fill.
	backgroundAlpha = "20"
)

// Build assembles the document. Repositories and each repository's
// platforms appear in lexicographic order; points keep the dataset order.
func Build(d records.Dataset, palette Palette) *Document {
	repos := d.Repos()

	doc := &Document{
		RepoNames: make([]string, 0, len(repos)),
		Datasets:  make([][]Series, 0, len(repos)),
		Summary:   aggregate.Summarize(d),
	}

	for _, repo := range repos {
		series := make([]Series, 0, len(d[repo]))

		for _, platform := range d.Platforms(repo) {
			recs := d.Records(repo, platform)
			if len(recs) == 0 {
				continue
			}

			series = append(series, newSeries(platform, recs, palette.Color(platform)))
		}

		doc.RepoNames = append(doc.RepoNames, repo)
		doc.Datasets = append(doc.Datasets, series)
	}

	return doc
}

func newSeries(platform string, recs []records.Record, color string) Series {
	points := make([]Point, 0, len(recs))

	for _, r := range recs {
		points = append(points, Point{
			X:          r.Index,
			Y:          r.Minutes,
			CommitHash: r.Commit,
			BranchName: r.Branch,
			Status:     r.Status,
		})
	}

	return Series{
		Label:            platform,
		Data:             points,
		BorderColor:      color,
		BackgroundColor:  color + backgroundAlpha,
		Fill:             false,
		Tension:          seriesTension,
		PointRadius:      seriesPointRadius,
		PointHoverRadius: seriesPointHoverRadius,
	}
}

// Marshal renders the document as indented JSON with a trailing newline.
// The output depends only on the document contents.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling dashboard document: %w", err)
	}

	return append(data, '\n'), nil
}

// Write marshals the document and atomically replaces the file at path.
func Write(path string, doc *Document, owner *fsutil.OwnerConfig) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomic(path, data, 0o644, owner); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// Load reads a previously written document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &doc, nil
}
