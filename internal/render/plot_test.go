package render

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

func assertFigure(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	switch {
	case bytes.HasSuffix([]byte(path), []byte(".png")):
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "%s is not a PNG", path)
	case bytes.HasSuffix([]byte(path), []byte(".pdf")):
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "%s is not a PDF", path)
	default:
		t.Fatalf("unexpected figure %s", path)
	}
}

func TestTimeSeries_WritesRasterAndVector(t *testing.T) {
	dir := t.TempDir()
	aggs := domain.AggregateAll(testRecords(), domain.GapContinuous)

	paths, err := TimeSeries(dir, masaya(), aggs)
	require.NoError(t, err)

	base := HotPixelsPlotBase(dir, masaya())
	radiance := RadiancePlotBase(dir, masaya())
	assert.Equal(t, []string{base + ".png", base + ".pdf", radiance + ".png", radiance + ".pdf"}, paths)
	for _, p := range paths {
		assertFigure(t, p)
	}
}

func TestTimeSeries_SingleRecord(t *testing.T) {
	dir := t.TempDir()
	aggs := domain.AggregateAll(testRecords()[:1], domain.GapContinuous)

	paths, err := TimeSeries(dir, masaya(), aggs)
	require.NoError(t, err)
	assert.Len(t, paths, 4)
}

func TestSeriesPanels_ShareXRange(t *testing.T) {
	aggs := domain.AggregateAll(testRecords(), domain.GapObserved)

	panels, err := seriesPanels("title", hotPixels, aggs)
	require.NoError(t, err)
	require.Len(t, panels, 3)

	assert.Equal(t, "title", panels[0].Title.Text)
	assert.Equal(t, "Date", panels[2].X.Label.Text)
	for _, p := range panels[1:] {
		assert.Equal(t, panels[0].X.Min, p.X.Min)
		assert.Equal(t, panels[0].X.Max, p.X.Max)
	}
	// The year panel ends on 31 December, the latest label of all series.
	assert.Equal(t, float64(aggs.Year[0].End.Unix()), panels[0].X.Max)
}

func TestNTIHistogram_Writes(t *testing.T) {
	dir := t.TempDir()

	paths, err := NTIHistogram(dir, masaya(), testRecords())
	require.NoError(t, err)

	base := HistogramPlotBase(dir, masaya())
	assert.Equal(t, []string{base + ".png", base + ".pdf"}, paths)
	for _, p := range paths {
		assertFigure(t, p)
	}
}
