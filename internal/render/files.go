// Package render writes the site report artifacts: time-series and
// histogram figures, CSV exports, and the interactive map page.
package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

// Figure formats written for every plot: raster for quick viewing, vector
// for print.
var figureFormats = []string{"png", "pdf"}

// SiteDir creates (if needed) and returns the output directory for a site.
func SiteDir(root string, site domain.Site) (string, error) {
	dir := filepath.Join(root, site.Slug())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &domain.FilesystemError{Path: dir, Err: err}
	}
	return dir, nil
}

// HotPixelsPlotBase is the hot-pixel figure path without extension.
func HotPixelsPlotBase(dir string, site domain.Site) string {
	return filepath.Join(dir, fmt.Sprintf("plot_site_%s_hot_pixels_MODVOLC", site.Slug()))
}

// RadiancePlotBase is the spectral-radiance figure path without extension.
func RadiancePlotBase(dir string, site domain.Site) string {
	return filepath.Join(dir, fmt.Sprintf("plot_site_%s_spectral_radiance_MODVOLC", site.Slug()))
}

// HistogramPlotBase is the NTI histogram path without extension.
func HistogramPlotBase(dir string, site domain.Site) string {
	return filepath.Join(dir, fmt.Sprintf("plot_histogram_NTI_site_%s", site.Slug()))
}

// BucketsCSVPath is the per-period export for granularity g.
func BucketsCSVPath(dir string, site domain.Site, g domain.Granularity) string {
	var name string
	switch g {
	case domain.Day:
		name = "modvolc_data_per_day_%s.csv"
	case domain.Week:
		name = "modvolc_data_per_week_%s.csv"
	case domain.Month:
		name = "modvolc_data_per_month_%s.csv"
	default:
		name = "modvolc_data_year_%s.csv"
	}
	return filepath.Join(dir, fmt.Sprintf(name, site.Slug()))
}

// RecordsCSVPath is the export of every filtered record.
func RecordsCSVPath(dir string, site domain.Site) string {
	return filepath.Join(dir, fmt.Sprintf("modvolc_all_data_site_%s.csv", site.Slug()))
}

// WebMapPath is the interactive map page.
func WebMapPath(dir string, site domain.Site) string {
	return filepath.Join(dir, fmt.Sprintf("modvolc_%s.html", site.Slug()))
}

// createFile opens path for writing and wraps failures as FilesystemError.
func createFile(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &domain.FilesystemError{Path: path, Err: err}
	}
	return f, nil
}

// closeFile closes f, reporting a close failure only when err is nil.
func closeFile(f *os.File, err *error) {
	if cerr := f.Close(); cerr != nil && *err == nil {
		*err = &domain.FilesystemError{Path: f.Name(), Err: cerr}
	}
}
