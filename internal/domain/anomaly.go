package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// KmPerDegree converts a search radius in kilometres to degrees of arc.
const KmPerDegree = 106.8

// DefaultQueryPad is the half-width in degrees of the box sent to the archive.
const DefaultQueryPad = 0.2

// AnomalyRecord is one MODVOLC hot-pixel alert.
type AnomalyRecord struct {
	Time     time.Time `json:"time"`
	Lon      float64   `json:"lon"`
	Lat      float64   `json:"lat"`
	Radiance float64   `json:"radiance"` // band 21, 4 μm
	NTI      float64   `json:"nti"`
}

// ID returns a deterministic identifier derived from the record's time and
// position, so republishing the same alert produces the same key.
func (r AnomalyRecord) ID() string {
	input := fmt.Sprintf("%s|%.4f|%.4f|%g", r.Time.UTC().Format(time.RFC3339), r.Lat, r.Lon, r.Radiance)
	hash := sha256.Sum256([]byte(input))
	return "modvolc-" + hex.EncodeToString(hash[:8])
}

// Site is the point of interest for a run.
type Site struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm float64 `json:"radius_km"`
}

// Slug is the site name with spaces replaced by underscores. It names the
// output directory and every artifact in it.
func (s Site) Slug() string {
	return strings.ReplaceAll(strings.TrimSpace(s.Name), " ", "_")
}

// Window returns the filter window for the site's search radius.
func (s Site) Window() BoundingWindow {
	return windowAround(s.Lat, s.Lon, s.RadiusKm/KmPerDegree)
}

// QueryWindow returns the box sent to the archive, padded by pad degrees.
func (s Site) QueryWindow(pad float64) BoundingWindow {
	return windowAround(s.Lat, s.Lon, pad)
}

// BoundingWindow is an inclusive lat/lon rectangle.
type BoundingWindow struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

func windowAround(lat, lon, delta float64) BoundingWindow {
	return BoundingWindow{
		LatMin: lat - delta,
		LatMax: lat + delta,
		LonMin: lon - delta,
		LonMax: lon + delta,
	}
}

// Contains reports whether the point lies inside the window, boundaries included.
func (w BoundingWindow) Contains(lat, lon float64) bool {
	return lon >= w.LonMin && lon <= w.LonMax && lat >= w.LatMin && lat <= w.LatMax
}

// Query describes one archive request.
type Query struct {
	Site   Site
	Start  time.Time
	End    time.Time
	Window BoundingWindow
}

// NewQuery builds the archive query for a site and date range.
func NewQuery(site Site, start, end time.Time, pad float64) Query {
	return Query{
		Site:   site,
		Start:  start,
		End:    end,
		Window: site.QueryWindow(pad),
	}
}

// PeriodDays is the length of the query period in whole days.
func (q Query) PeriodDays() int {
	return int(q.End.Sub(q.Start).Hours() / 24)
}
