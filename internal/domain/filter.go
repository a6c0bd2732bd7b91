package domain

import "sort"

// FilterWindow returns the records inside w, boundaries included, sorted by
// time. The input slice is not modified.
func FilterWindow(records []AnomalyRecord, w BoundingWindow) []AnomalyRecord {
	out := make([]AnomalyRecord, 0, len(records))
	for _, r := range records {
		if w.Contains(r.Lat, r.Lon) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}
