package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrSiteUnresolved is returned when a site has no coordinates and geocoding
// could not supply them.
var ErrSiteUnresolved = errors.New("site has no coordinates")

// SiteLocation is a site plus the place details found by geocoding.
type SiteLocation struct {
	Site             Site
	FormattedAddress string
	PlaceName        string
	GeoConfidence    float64
	GeoSource        string // "forward", "reverse", "original", "failed"
}

// HasCoords reports whether the site carries coordinates. (0, 0) is treated
// as unset.
func (s Site) HasCoords() bool {
	return s.Lat != 0 || s.Lon != 0
}

// LocateSite fills in missing site coordinates by forward geocoding the site
// name, or labels known coordinates by reverse geocoding. Reverse geocoding
// failures degrade gracefully; a site that still has no coordinates after
// forward geocoding is an error.
func LocateSite(ctx context.Context, site Site, geocoder Geocoder, logger *slog.Logger) (SiteLocation, error) {
	loc := SiteLocation{Site: site, GeoSource: "original"}

	if geocoder == nil {
		if !site.HasCoords() {
			return loc, fmt.Errorf("locate %q: %w", site.Name, ErrSiteUnresolved)
		}
		return loc, nil
	}

	if !site.HasCoords() {
		result, err := geocoder.ForwardGeocode(ctx, site.Name)
		if err != nil {
			return loc, fmt.Errorf("forward geocode %q: %w", site.Name, err)
		}
		if result.Lat == 0 && result.Lon == 0 {
			return loc, fmt.Errorf("forward geocode %q: %w", site.Name, ErrSiteUnresolved)
		}
		loc.Site.Lat = result.Lat
		loc.Site.Lon = result.Lon
		loc.FormattedAddress = result.FormattedAddress
		loc.PlaceName = result.PlaceName
		loc.GeoConfidence = result.Confidence
		loc.GeoSource = "forward"
		return loc, nil
	}

	result, err := geocoder.ReverseGeocode(ctx, site.Lat, site.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"site", site.Name,
			"lat", site.Lat,
			"lon", site.Lon,
			"error", err,
		)
		loc.GeoSource = "failed"
		return loc, nil
	}
	if result.FormattedAddress != "" {
		loc.FormattedAddress = result.FormattedAddress
		loc.PlaceName = result.PlaceName
		loc.GeoConfidence = result.Confidence
		loc.GeoSource = "reverse"
	}
	return loc, nil
}
