package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

func masaya() domain.Site {
	return domain.Site{Name: "Masaya volcano", Lat: 11.9847, Lon: -86.1619, RadiusKm: 1}
}

func at(ts string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", ts, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func testRecords() []domain.AnomalyRecord {
	return []domain.AnomalyRecord{
		{Time: at("2021-01-04 03:50"), Lon: -86.1619, Lat: 11.9847, Radiance: 1.25, NTI: -0.71},
		{Time: at("2021-01-04 15:20"), Lon: -86.165, Lat: 11.981, Radiance: 0.8, NTI: -0.74},
		{Time: at("2021-02-11 04:05"), Lon: -86.16, Lat: 11.99, Radiance: 2.125, NTI: -0.66},
	}
}

func TestSiteDir_CreatesSlugDirectory(t *testing.T) {
	root := t.TempDir()

	dir, err := SiteDir(root, masaya())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Masaya_volcano"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Existing directories are reused.
	again, err := SiteDir(root, masaya())
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}

func TestSiteDir_FilesystemError(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o600))

	_, err := SiteDir(root, masaya())
	var fsErr *domain.FilesystemError
	require.ErrorAs(t, err, &fsErr)
}

func TestFileNames(t *testing.T) {
	site := masaya()
	assert.Equal(t, "d/plot_site_Masaya_volcano_hot_pixels_MODVOLC", HotPixelsPlotBase("d", site))
	assert.Equal(t, "d/plot_site_Masaya_volcano_spectral_radiance_MODVOLC", RadiancePlotBase("d", site))
	assert.Equal(t, "d/plot_histogram_NTI_site_Masaya_volcano", HistogramPlotBase("d", site))
	assert.Equal(t, "d/modvolc_data_per_day_Masaya_volcano.csv", BucketsCSVPath("d", site, domain.Day))
	assert.Equal(t, "d/modvolc_data_per_week_Masaya_volcano.csv", BucketsCSVPath("d", site, domain.Week))
	assert.Equal(t, "d/modvolc_data_per_month_Masaya_volcano.csv", BucketsCSVPath("d", site, domain.Month))
	assert.Equal(t, "d/modvolc_data_year_Masaya_volcano.csv", BucketsCSVPath("d", site, domain.Year))
	assert.Equal(t, "d/modvolc_all_data_site_Masaya_volcano.csv", RecordsCSVPath("d", site))
	assert.Equal(t, "d/modvolc_Masaya_volcano.html", WebMapPath("d", site))
}

func TestRecordsCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.csv")
	recs := testRecords()

	require.NoError(t, WriteRecordsCSV(path, recs))
	got, err := ReadRecordsCSV(path)
	require.NoError(t, err)

	// NTI is not exported.
	want := make([]domain.AnomalyRecord, len(recs))
	for i, r := range recs {
		r.NTI = 0
		want[i] = r
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordsCSV_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.csv")
	require.NoError(t, WriteRecordsCSV(path, testRecords()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,longitude,latitude,radiance\n2021-01-04 03:50:00,-86.1619,11.9847,1.25\n", string(data))
}

func TestReadRecordsCSV_BadRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,longitude,latitude,radiance\n2021-01-04 03:50:00,x,11.9,1\n"), 0o600))

	_, err := ReadRecordsCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "longitude")
}

func TestReadRecordsCSV_Missing(t *testing.T) {
	_, err := ReadRecordsCSV(filepath.Join(t.TempDir(), "missing.csv"))
	var fsErr *domain.FilesystemError
	require.ErrorAs(t, err, &fsErr)
}

func TestBucketsCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "week.csv")
	buckets := domain.Aggregate(testRecords(), domain.Week, domain.GapContinuous)

	require.NoError(t, WriteBucketsCSV(path, buckets))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "period_start,period_end,pixels,radiance", lines[0])
	assert.Equal(t, "2021-01-04,2021-01-10,2,2.05", lines[1])
	assert.Len(t, lines, len(buckets)+1)

	got, err := ReadBucketsCSV(path)
	require.NoError(t, err)
	if diff := cmp.Diff(buckets, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteBucketsCSV_UnwritablePath(t *testing.T) {
	err := WriteBucketsCSV(filepath.Join(t.TempDir(), "missing", "x.csv"), nil)
	var fsErr *domain.FilesystemError
	require.ErrorAs(t, err, &fsErr)
}
