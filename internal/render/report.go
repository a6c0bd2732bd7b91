package render

import (
	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

// Artifact kinds, used as metric labels.
const (
	KindPlot = "plot"
	KindCSV  = "csv"
	KindMap  = "map"
)

// Artifact is one file written for a report.
type Artifact struct {
	Kind string
	Path string
}

// Report is everything needed to render one site.
type Report struct {
	Records    []domain.AnomalyRecord
	Aggregates domain.Aggregates
	Map        MapOptions
}

// WriteReport renders every artifact of a report into dir. On error the
// artifacts already written are returned alongside it.
func WriteReport(dir string, r Report) ([]Artifact, error) {
	site := r.Map.Location.Site
	var out []Artifact
	add := func(kind string, paths ...string) {
		for _, p := range paths {
			out = append(out, Artifact{Kind: kind, Path: p})
		}
	}

	paths, err := TimeSeries(dir, site, r.Aggregates)
	add(KindPlot, paths...)
	if err != nil {
		return out, err
	}
	paths, err = NTIHistogram(dir, site, r.Records)
	add(KindPlot, paths...)
	if err != nil {
		return out, err
	}

	for _, g := range domain.Granularities {
		path := BucketsCSVPath(dir, site, g)
		if err := WriteBucketsCSV(path, r.Aggregates.For(g)); err != nil {
			return out, err
		}
		add(KindCSV, path)
	}
	path := RecordsCSVPath(dir, site)
	if err := WriteRecordsCSV(path, r.Records); err != nil {
		return out, err
	}
	add(KindCSV, path)

	path = WebMapPath(dir, site)
	if err := WebMap(path, r.Records, r.Map); err != nil {
		return out, err
	}
	add(KindMap, path)
	return out, nil
}
