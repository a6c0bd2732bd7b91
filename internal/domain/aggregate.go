package domain

import (
	"fmt"
	"sort"
	"time"
)

// Granularity is the width of an aggregation bucket.
type Granularity int

const (
	Day Granularity = iota
	Week
	Month
	Year
)

// Granularities lists every granularity from finest to coarsest.
var Granularities = []Granularity{Day, Week, Month, Year}

func (g Granularity) String() string {
	switch g {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

// PeriodStart returns the first instant of the period containing t (UTC).
// Weeks start on Monday so that they end on Sunday.
func (g Granularity) PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case Week:
		sinceMonday := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -sinceMonday)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// Next returns the start of the period following the one starting at start.
func (g Granularity) Next(start time.Time) time.Time {
	switch g {
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	case Year:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// PeriodEnd returns the last calendar day of the period starting at start.
// It is the label pandas uses for W-SUN, month-end and year-end resampling.
func (g Granularity) PeriodEnd(start time.Time) time.Time {
	return g.Next(start).AddDate(0, 0, -1)
}

// GapPolicy decides whether periods without records appear in the output.
type GapPolicy string

const (
	// GapContinuous emits every period between the first and last record,
	// zero-filled. This matches fixed-frequency resampling.
	GapContinuous GapPolicy = "continuous"
	// GapObserved emits only periods holding at least one record.
	GapObserved GapPolicy = "observed"
)

// ParseGapPolicy validates a policy name.
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch p := GapPolicy(s); p {
	case GapContinuous, GapObserved:
		return p, nil
	default:
		return "", fmt.Errorf("unknown gap policy %q (want %q or %q)", s, GapContinuous, GapObserved)
	}
}

// Bucket is one aggregation period. End is the last calendar day of the
// period; a record belongs to the bucket when its timestamp falls on or
// between Start and End.
type Bucket struct {
	Start    time.Time
	End      time.Time
	Pixels   int
	Radiance float64
}

// Aggregate groups records into buckets of granularity g, ordered by Start.
// Every record lands in exactly one bucket. The input is not modified and
// the result depends only on the input, so repeated calls agree.
func Aggregate(records []AnomalyRecord, g Granularity, policy GapPolicy) []Bucket {
	if len(records) == 0 {
		return nil
	}

	byStart := make(map[int64]*Bucket)
	var first, last time.Time
	for i, r := range records {
		start := g.PeriodStart(r.Time)
		b, ok := byStart[start.Unix()]
		if !ok {
			b = &Bucket{Start: start, End: g.PeriodEnd(start)}
			byStart[start.Unix()] = b
		}
		b.Pixels++
		b.Radiance += r.Radiance

		if i == 0 || start.Before(first) {
			first = start
		}
		if i == 0 || start.After(last) {
			last = start
		}
	}

	if policy == GapObserved {
		out := make([]Bucket, 0, len(byStart))
		for _, b := range byStart {
			out = append(out, *b)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
		return out
	}

	var out []Bucket
	for start := first; !start.After(last); start = g.Next(start) {
		if b, ok := byStart[start.Unix()]; ok {
			out = append(out, *b)
			continue
		}
		out = append(out, Bucket{Start: start, End: g.PeriodEnd(start)})
	}
	return out
}

// Aggregates holds the buckets for every granularity.
type Aggregates struct {
	Day   []Bucket
	Week  []Bucket
	Month []Bucket
	Year  []Bucket
}

// AggregateAll computes buckets for all four granularities.
func AggregateAll(records []AnomalyRecord, policy GapPolicy) Aggregates {
	return Aggregates{
		Day:   Aggregate(records, Day, policy),
		Week:  Aggregate(records, Week, policy),
		Month: Aggregate(records, Month, policy),
		Year:  Aggregate(records, Year, policy),
	}
}

// For returns the buckets of granularity g.
func (a Aggregates) For(g Granularity) []Bucket {
	switch g {
	case Week:
		return a.Week
	case Month:
		return a.Month
	case Year:
		return a.Year
	default:
		return a.Day
	}
}
