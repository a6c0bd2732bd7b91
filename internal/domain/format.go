package domain

import (
	"strconv"
	"strings"
)

// FormatAlertLine renders a record in the mergeimage column layout. Columns
// the parser ignores are filled with placeholders. Floats use the shortest
// exact representation so ParseLine(FormatAlertLine(r)) == r.
func FormatAlertLine(r AnomalyRecord) string {
	t := r.Time.UTC()
	fields := make([]string, minColumns)
	for i := range fields {
		fields[i] = "0"
	}
	fields[0] = strconv.FormatInt(t.Unix(), 10)
	fields[1] = "T"
	fields[colYear] = strconv.Itoa(t.Year())
	fields[colMonth] = strconv.Itoa(int(t.Month()))
	fields[colDay] = strconv.Itoa(t.Day())
	fields[colHour] = strconv.Itoa(t.Hour())
	fields[colMinute] = strconv.Itoa(t.Minute())
	fields[colLon] = formatFloat(r.Lon)
	fields[colLat] = formatFloat(r.Lat)
	fields[colRadiance] = formatFloat(r.Radiance)
	fields[colNTI] = formatFloat(r.NTI)
	return strings.Join(fields, " ")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
