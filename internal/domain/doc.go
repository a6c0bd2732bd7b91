// Package domain models MODVOLC thermal-anomaly alerts for a single site.
//
// # Data Source
//
// Alerts come from the MODVOLC archive operated by the Hawaii Institute of
// Geophysics and Planetology (http://modis.higp.hawaii.edu). MODVOLC runs the
// Normalized Thermal Index algorithm over MODIS imagery and flags hot pixels
// (Wright et al., 2002, RSE 82:135-155; Wright et al., 2004, JVGR 135:29-49).
// The archive's mergeimage CGI returns one alert per line as whitespace
// separated columns.
//
// # Payload Conventions
//
// Column positions (0-based) used by [ParsePayload]:
//
//	2  year          (e.g. 2021)
//	3  month         (1-12)
//	4  day           (1-31)
//	5  hour          (UTC, 0-23)
//	6  minute        (0-59)
//	7  longitude     (decimal degrees, WGS84, east positive)
//	8  latitude      (decimal degrees, WGS84, north positive)
//	9  band 21       (4 μm spectral radiance, W m^-2 sr^-1 μm^-1)
//	20 NTI           (normalized thermal index, -1..1)
//
// Other columns (satellite id, sensor geometry, other bands) are ignored.
//
// # Search Window
//
// The radius around a site is converted to degrees with a fixed
// 106.8 km/degree approximation and applied as a square window on both axes.
// The remote query uses a wider fixed pad (0.2°) so the archive returns a
// superset that the window then trims.
//
// # Time Buckets
//
// Aggregation follows calendar periods in UTC: days, weeks running Monday to
// Sunday (labelled by the Sunday), calendar months and calendar years. See
// [Aggregate] and [GapPolicy].
package domain
