package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

const (
	mapZoom      = 13
	markerRadius = 8

	colorHighlight = "red"
	colorSecondary = "orange"
)

// MapOptions controls the map page.
type MapOptions struct {
	Location    domain.SiteLocation
	Policy      domain.MarkerPolicy
	Highlight   int
	Cluster     bool
	RunID       string
	GeneratedAt time.Time
}

// MapMarker is one circle marker as serialized into the page script.
type MapMarker struct {
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
	Color string   `json:"color"`
	Lines []string `json:"lines"`
}

type mapPage struct {
	Title        string
	Place        string
	Lat          float64
	Lon          float64
	RadiusMeters float64
	Zoom         int
	MarkerRadius int
	Cluster      bool
	Count        int
	RunID        string
	GeneratedAt  string
	MarkersJSON  template.JS
}

// WebMap writes a self-contained Leaflet page with one circle marker per
// record, drawn in the highlight or secondary tier according to opts.Policy.
func WebMap(path string, records []domain.AnomalyRecord, opts MapOptions) (err error) {
	markers := MapMarkers(records, opts.Policy, opts.Highlight)
	markersJSON, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("marshal markers: %w", err)
	}

	site := opts.Location.Site
	page := mapPage{
		Title:        fmt.Sprintf("MODVOLC thermal anomalies for %s", site.Name),
		Place:        opts.Location.FormattedAddress,
		Lat:          site.Lat,
		Lon:          site.Lon,
		RadiusMeters: site.RadiusKm * 1000,
		Zoom:         mapZoom,
		MarkerRadius: markerRadius,
		Cluster:      opts.Cluster,
		Count:        len(records),
		RunID:        opts.RunID,
		GeneratedAt:  opts.GeneratedAt.UTC().Format(time.RFC3339),
		MarkersJSON:  template.JS(markersJSON), //nolint:gosec // json.Marshal escapes <, > and &
	}

	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer closeFile(f, &err)

	if err := mapTemplate.Execute(f, page); err != nil {
		return &domain.FilesystemError{Path: path, Err: err}
	}
	return nil
}

// MapMarkers builds the markers for time-ordered records.
func MapMarkers(records []domain.AnomalyRecord, policy domain.MarkerPolicy, highlight int) []MapMarker {
	tiers := policy.Highlighted(len(records), highlight)
	markers := make([]MapMarker, len(records))
	for i, r := range records {
		c := colorSecondary
		if tiers[i] {
			c = colorHighlight
		}
		markers[i] = MapMarker{
			Lat:   r.Lat,
			Lon:   r.Lon,
			Color: c,
			Lines: []string{
				"Date: " + r.Time.UTC().Format(recordLayout),
				"Latitude: " + formatFloat(r.Lat),
				"Longitude: " + formatFloat(r.Lon),
				"Radiance: " + formatFloat(r.Radiance),
				"NTI = " + strconv.FormatFloat(r.NTI, 'f', -1, 64),
			},
		}
	}
	return markers
}

var mapTemplate = template.Must(template.New("webmap").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css" />
  <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
{{- if .Cluster}}
  <link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.css" />
  <link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.Default.css" />
  <script src="https://unpkg.com/leaflet.markercluster@1.5.3/dist/leaflet.markercluster.js"></script>
{{- end}}
  <style>
    html, body { height: 100%; margin: 0; }
    #map { position: absolute; top: 0; bottom: 0; left: 0; right: 0; }
    .info { background: rgba(255,255,255,0.9); padding: 6px 10px; font: 12px sans-serif; border-radius: 4px; }
  </style>
</head>
<body>
  <div id="map"></div>
  <script>
    const map = L.map('map').setView([{{.Lat}}, {{.Lon}}], {{.Zoom}});

    const base = {
      'OpenStreetMap': L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
        maxZoom: 19, attribution: '&copy; OpenStreetMap contributors'
      }),
      'CyclOSM': L.tileLayer('https://{s}.tile-cyclosm.openstreetmap.fr/cyclosm/{z}/{x}/{y}.png', {
        maxZoom: 20, attribution: 'CyclOSM | &copy; OpenStreetMap contributors'
      }),
      'OpenStreetMap HOT': L.tileLayer('https://{s}.tile.openstreetmap.fr/hot/{z}/{x}/{y}.png', {
        maxZoom: 19, attribution: 'Humanitarian OpenStreetMap Team | &copy; OpenStreetMap contributors'
      }),
      'OpenTopoMap': L.tileLayer('https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png', {
        maxZoom: 17, attribution: 'OpenTopoMap (CC-BY-SA) | &copy; OpenStreetMap contributors'
      })
    };
    base['OpenStreetMap'].addTo(map);
    L.control.layers(base, null, { collapsed: true }).addTo(map);
    L.control.scale().addTo(map);

    L.circle([{{.Lat}}, {{.Lon}}], {
      radius: {{.RadiusMeters}}, color: '#555', weight: 1, dashArray: '4 4', fill: false
    }).addTo(map);

    const markers = {{.MarkersJSON}};
    const layer = {{if .Cluster}}L.markerClusterGroup(){{else}}L.layerGroup(){{end}};
    markers.forEach(function (m) {
      const popup = document.createElement('div');
      m.lines.forEach(function (line, i) {
        if (i > 0) { popup.appendChild(document.createElement('br')); }
        popup.appendChild(document.createTextNode(line));
      });
      L.circleMarker([m.lat, m.lon], {
        radius: {{.MarkerRadius}}, color: m.color, fill: true
      }).bindPopup(popup).addTo(layer);
    });
    layer.addTo(map);

    const info = L.control({ position: 'bottomleft' });
    info.onAdd = function () {
      const div = L.DomUtil.create('div', 'info');
      div.textContent = {{.Title}} + ' | ' + {{.Count}} + ' anomalies'
        {{- if .Place}} + ' | ' + {{.Place}}{{end}} + ' | run ' + {{.RunID}} + ' | ' + {{.GeneratedAt}};
      return div;
    };
    info.addTo(map);
  </script>
</body>
</html>
`))
