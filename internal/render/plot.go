package render

import (
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

var (
	colorYear  = color.RGBA{G: 128, A: 255}
	colorMonth = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorDay   = color.NRGBA{R: 31, G: 119, B: 180, A: 153}
	colorWeek  = color.NRGBA{R: 255, G: 127, B: 14, A: 153}
	colorBars  = color.NRGBA{R: 31, G: 119, B: 180, A: 191}
)

const (
	seriesWidth  = 13 * vg.Inch
	seriesHeight = 8 * vg.Inch
	histWidth    = 10 * vg.Inch
	histHeight   = 5 * vg.Inch

	dateTickFormat = "Jan-2006"
	radianceLabel  = "Spectral radiance (W m⁻² sr⁻¹ μm⁻¹)"
)

// metric selects the bucket value plotted in a figure.
type metric struct {
	noun   string // used in legend labels
	yLabel string
	value  func(domain.Bucket) float64
}

var (
	hotPixels = metric{
		noun:   "Hot pixels",
		yLabel: "Number of hot pixels",
		value:  func(b domain.Bucket) float64 { return float64(b.Pixels) },
	}
	spectralRadiance = metric{
		noun:   "Radiance",
		yLabel: radianceLabel,
		value:  func(b domain.Bucket) float64 { return b.Radiance },
	}
)

// TimeSeries writes the hot-pixel and spectral-radiance figures for a site
// and returns the written paths.
func TimeSeries(dir string, site domain.Site, aggs domain.Aggregates) ([]string, error) {
	radius := strconv.FormatFloat(site.RadiusKm, 'f', -1, 64)

	var written []string
	figures := []struct {
		base  string
		title string
		m     metric
	}{
		{
			base:  HotPixelsPlotBase(dir, site),
			title: fmt.Sprintf("Hot pixels for the site %s. Modvolc Algorithm. Search radius = %s km", site.Name, radius),
			m:     hotPixels,
		},
		{
			base:  RadiancePlotBase(dir, site),
			title: fmt.Sprintf("Spectral radiance (4 μm) for site %s. Modvolc algorithm. Search radius = %s km", site.Name, radius),
			m:     spectralRadiance,
		},
	}
	for _, fig := range figures {
		panels, err := seriesPanels(fig.title, fig.m, aggs)
		if err != nil {
			return written, fmt.Errorf("build %s: %w", fig.base, err)
		}
		paths, err := saveStacked(fig.base, panels)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// seriesPanels builds the three stacked panels of a time-series figure:
// yearly on top, monthly in the middle, daily and weekly at the bottom.
func seriesPanels(title string, m metric, aggs domain.Aggregates) ([]*plot.Plot, error) {
	top := newPanel(m.yLabel)
	top.Title.Text = title
	if err := addSeries(top, m.noun+" per year", aggs.Year, m, colorYear, true); err != nil {
		return nil, err
	}

	mid := newPanel(m.yLabel)
	if err := addSeries(mid, m.noun+" per month", aggs.Month, m, colorMonth, true); err != nil {
		return nil, err
	}

	bottom := newPanel(m.yLabel)
	bottom.X.Label.Text = "Date"
	if err := addSeries(bottom, m.noun+" per day", aggs.Day, m, colorDay, false); err != nil {
		return nil, err
	}
	if err := addSeries(bottom, m.noun+" per week", aggs.Week, m, colorWeek, false); err != nil {
		return nil, err
	}

	// Share the x range so the panels line up in time.
	panels := []*plot.Plot{top, mid, bottom}
	xmin, xmax := top.X.Min, top.X.Max
	for _, p := range panels[1:] {
		xmin = min(xmin, p.X.Min)
		xmax = max(xmax, p.X.Max)
	}
	for _, p := range panels {
		p.X.Min, p.X.Max = xmin, xmax
	}
	return panels, nil
}

func newPanel(yLabel string) *plot.Plot {
	p := plot.New()
	p.Y.Label.Text = yLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: dateTickFormat}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())
	return p
}

// addSeries plots buckets at their period end, the label convention of
// fixed-frequency resampling.
func addSeries(p *plot.Plot, label string, buckets []domain.Bucket, m metric, c color.Color, markers bool) error {
	xys := make(plotter.XYs, len(buckets))
	for i, b := range buckets {
		xys[i].X = float64(b.End.Unix())
		xys[i].Y = m.value(b)
	}

	if markers {
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return err
		}
		line.Color = c
		points.Shape = draw.CircleGlyph{}
		points.Color = c
		p.Add(line, points)
		p.Legend.Add(label, line, points)
		return nil
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}

// NTIHistogram writes the distribution of NTI values with fixed-width bins.
func NTIHistogram(dir string, site domain.Site, records []domain.AnomalyRecord) ([]string, error) {
	values := domain.NTIValues(records)
	bins := domain.HistogramBins(values, domain.NTIBinWidth)

	hbins := make([]plotter.HistogramBin, len(bins))
	for i, b := range bins {
		hbins[i] = plotter.HistogramBin{Min: b.Min, Max: b.Max, Weight: float64(b.Count)}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Histogram for site %s. Normalized thermal index (NTI), n = %d", site.Name, len(values))
	p.X.Label.Text = "Less strong thermal anomaly <----  NTI  ----> More strong thermal anomaly"
	p.Y.Label.Text = "Frequency"
	p.Add(plotter.NewGrid())
	p.Add(&plotter.Histogram{
		Bins:      hbins,
		Width:     domain.NTIBinWidth,
		FillColor: colorBars,
		LineStyle: plotter.DefaultLineStyle,
	})
	p.Y.Min = 0

	return saveSingle(HistogramPlotBase(dir, site), p)
}

// saveStacked draws panels as rows of one figure, once per format.
func saveStacked(base string, panels []*plot.Plot) ([]string, error) {
	rows := make([][]*plot.Plot, len(panels))
	for i, p := range panels {
		rows[i] = []*plot.Plot{p}
	}
	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 4,
		PadY:      vg.Millimeter,
	}
	return writeFormats(base, seriesWidth, seriesHeight, func(dc draw.Canvas) {
		canvases := plot.Align(rows, tiles, dc)
		for i := range rows {
			rows[i][0].Draw(canvases[i][0])
		}
	})
}

func saveSingle(base string, p *plot.Plot) ([]string, error) {
	return writeFormats(base, histWidth, histHeight, func(dc draw.Canvas) {
		p.Draw(dc)
	})
}

func writeFormats(base string, w, h vg.Length, paint func(draw.Canvas)) ([]string, error) {
	written := make([]string, 0, len(figureFormats))
	for _, format := range figureFormats {
		path := base + "." + format
		if err := writeFigure(path, format, w, h, paint); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFigure(path, format string, w, h vg.Length, paint func(draw.Canvas)) (err error) {
	c, err := draw.NewFormattedCanvas(w, h, format)
	if err != nil {
		return fmt.Errorf("canvas for %s: %w", path, err)
	}
	paint(draw.New(c))

	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer closeFile(f, &err)

	if _, err := c.WriteTo(f); err != nil {
		return &domain.FilesystemError{Path: path, Err: err}
	}
	return nil
}
