package domain

import "fmt"

// MarkerPolicy selects which map markers are drawn in the highlight tier.
type MarkerPolicy string

const (
	// MarkerFirstN highlights the first N records in time order and draws
	// the rest in the secondary tier. This is the historical map layout.
	MarkerFirstN MarkerPolicy = "first-n"
	// MarkerRecentN highlights the N most recent records.
	MarkerRecentN MarkerPolicy = "recent-n"
)

// DefaultHighlightCount is the size of the highlight tier.
const DefaultHighlightCount = 10

// ParseMarkerPolicy validates a policy name.
func ParseMarkerPolicy(s string) (MarkerPolicy, error) {
	switch p := MarkerPolicy(s); p {
	case MarkerFirstN, MarkerRecentN:
		return p, nil
	default:
		return "", fmt.Errorf("unknown marker policy %q (want %q or %q)", s, MarkerFirstN, MarkerRecentN)
	}
}

// Highlighted reports, for each of count time-ordered records, whether it
// belongs to the highlight tier. With count <= n every record is highlighted.
func (p MarkerPolicy) Highlighted(count, n int) []bool {
	out := make([]bool, count)
	for i := range out {
		switch p {
		case MarkerRecentN:
			out[i] = i >= count-n
		default:
			out[i] = i < n
		}
	}
	return out
}
