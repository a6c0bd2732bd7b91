// Command validate re-reads the CSV exports of a site report and checks them
// for internal consistency: every record is counted once per granularity,
// days roll up into weeks and months, months roll up into years, and the
// period columns are well formed. With -lat/-lon it also checks that every
// record lies inside the search window.
//
// Usage:
//
//	go run ./cmd/validate -dir reports/Masaya -site Masaya \
//	  -lat 11.9847 -lon -86.1619 -radius-km 1
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/modvolc-etl/internal/config"
	"github.com/couchcryptid/modvolc-etl/internal/domain"
	"github.com/couchcryptid/modvolc-etl/internal/render"
)

// radianceTolerance absorbs float summation order differences between the
// pipeline and the re-aggregation here.
const radianceTolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// report is everything read back from a site directory.
type report struct {
	records []domain.AnomalyRecord
	buckets map[domain.Granularity][]domain.Bucket
}

func main() {
	dir := flag.String("dir", "", "site output directory")
	name := flag.String("site", "", "site name as passed to the report")
	lat := flag.Float64("lat", 0, "site latitude, enables the window check with -lon")
	lon := flag.Float64("lon", 0, "site longitude")
	radius := flag.Float64("radius-km", 1.0, "search radius in km")
	flag.Parse()

	if *dir == "" || *name == "" {
		flag.Usage()
		os.Exit(1)
	}

	site := domain.Site{Name: *name, Lat: *lat, Lon: *lon, RadiusKm: *radius}
	if code := run(os.Stdout, *dir, site); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, dir string, site domain.Site) int {
	fmt.Fprintln(out, "=== MODVOLC Report Consistency Validation ===")
	fmt.Fprintln(out)

	rep, err := load(dir, site)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateBucketShape(rep),
		validateRecordTotals(rep),
		validateRollups(rep),
		validateReaggregation(rep),
	}
	if site.HasCoords() {
		phases = append(phases, validateWindow(rep, site))
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d, days: %d, weeks: %d, months: %d, years: %d\n",
		len(rep.records), len(rep.buckets[domain.Day]), len(rep.buckets[domain.Week]),
		len(rep.buckets[domain.Month]), len(rep.buckets[domain.Year]))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Fprintf(out, "  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Fprintf(out, "  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Fprintln(out, "\nAll checks passed.")
	return 0
}

func load(dir string, site domain.Site) (report, error) {
	rep := report{buckets: map[domain.Granularity][]domain.Bucket{}}

	records, err := render.ReadRecordsCSV(render.RecordsCSVPath(dir, site))
	if err != nil {
		return rep, fmt.Errorf("load records: %w", err)
	}
	rep.records = records

	for _, g := range domain.Granularities {
		buckets, err := render.ReadBucketsCSV(render.BucketsCSVPath(dir, site, g))
		if err != nil {
			return rep, fmt.Errorf("load %s buckets: %w", g, err)
		}
		rep.buckets[g] = buckets
	}
	return rep, nil
}

// validateBucketShape checks each period row against its granularity.
func validateBucketShape(rep report) *phase {
	p := &phase{name: "Period boundaries and ordering"}
	for _, g := range domain.Granularities {
		var prev time.Time
		for i, b := range rep.buckets[g] {
			if want := g.PeriodStart(b.Start); !want.Equal(b.Start) {
				p.errorf("%s row %d: start %s is not a period start (want %s)", g, i+1, day(b.Start), day(want))
			}
			if want := g.PeriodEnd(b.Start); !want.Equal(b.End) {
				p.errorf("%s row %d: end %s, want %s", g, i+1, day(b.End), day(want))
			}
			if i > 0 && !b.Start.After(prev) {
				p.errorf("%s row %d: start %s does not follow %s", g, i+1, day(b.Start), day(prev))
			}
			if b.Pixels < 0 || b.Radiance < 0 {
				p.errorf("%s row %d: negative totals (pixels=%d radiance=%g)", g, i+1, b.Pixels, b.Radiance)
			}
			if b.Pixels == 0 && b.Radiance != 0 {
				p.errorf("%s row %d: radiance %g with no pixels", g, i+1, b.Radiance)
			}
			prev = b.Start
		}
	}
	return p
}

// validateRecordTotals checks that every granularity accounts for every record.
func validateRecordTotals(rep report) *phase {
	p := &phase{name: "Record count equals per-period sums"}
	var radiance float64
	for _, r := range rep.records {
		radiance += r.Radiance
	}
	for _, g := range domain.Granularities {
		pixels, rad := totals(rep.buckets[g])
		if pixels != len(rep.records) {
			p.errorf("%s: %d pixels, %d records", g, pixels, len(rep.records))
		}
		if !closeEnough(rad, radiance) {
			p.errorf("%s: radiance %g, records sum to %g", g, rad, radiance)
		}
	}
	return p
}

// validateRollups checks day to week, day to month and month to year.
func validateRollups(rep report) *phase {
	p := &phase{name: "Day/week/month/year rollups"}
	rollup(p, rep.buckets[domain.Day], rep.buckets[domain.Week], domain.Week)
	rollup(p, rep.buckets[domain.Day], rep.buckets[domain.Month], domain.Month)
	rollup(p, rep.buckets[domain.Month], rep.buckets[domain.Year], domain.Year)
	return p
}

func rollup(p *phase, fine, coarse []domain.Bucket, g domain.Granularity) {
	type sum struct {
		pixels   int
		radiance float64
	}
	sums := map[int64]sum{}
	for _, b := range fine {
		k := g.PeriodStart(b.Start).Unix()
		s := sums[k]
		s.pixels += b.Pixels
		s.radiance += b.Radiance
		sums[k] = s
	}
	for _, b := range coarse {
		s := sums[b.Start.Unix()]
		if s.pixels != b.Pixels || !closeEnough(s.radiance, b.Radiance) {
			p.errorf("%s %s: pixels=%d radiance=%g, finer periods sum to pixels=%d radiance=%g",
				g, day(b.Start), b.Pixels, b.Radiance, s.pixels, s.radiance)
		}
		delete(sums, b.Start.Unix())
	}
	for k, s := range sums {
		if s.pixels > 0 {
			p.errorf("%s %s: missing row for %d pixels", g, day(time.Unix(k, 0).UTC()), s.pixels)
		}
	}
}

// validateReaggregation recomputes the buckets from the records export.
// Empty rows are ignored so either gap policy passes.
func validateReaggregation(rep report) *phase {
	p := &phase{name: "Re-aggregation from records"}
	want := domain.AggregateAll(rep.records, domain.GapObserved)
	for _, g := range domain.Granularities {
		got := nonEmpty(rep.buckets[g])
		exp := want.For(g)
		if len(got) != len(exp) {
			p.errorf("%s: %d non-empty rows, records give %d", g, len(got), len(exp))
			continue
		}
		for i := range exp {
			if !got[i].Start.Equal(exp[i].Start) || got[i].Pixels != exp[i].Pixels || !closeEnough(got[i].Radiance, exp[i].Radiance) {
				p.errorf("%s %s: got pixels=%d radiance=%g, want pixels=%d radiance=%g",
					g, day(exp[i].Start), got[i].Pixels, got[i].Radiance, exp[i].Pixels, exp[i].Radiance)
			}
		}
	}
	return p
}

func validateWindow(rep report, site domain.Site) *phase {
	p := &phase{name: "Records inside search window"}
	w := site.Window()
	for i, r := range rep.records {
		if !w.Contains(r.Lat, r.Lon) {
			p.errorf("record %d at %s (%g, %g) lies outside the window", i+1, r.Time.Format(time.DateTime), r.Lat, r.Lon)
		}
	}
	return p
}

func totals(buckets []domain.Bucket) (int, float64) {
	var pixels int
	var radiance float64
	for _, b := range buckets {
		pixels += b.Pixels
		radiance += b.Radiance
	}
	return pixels, radiance
}

func nonEmpty(buckets []domain.Bucket) []domain.Bucket {
	out := make([]domain.Bucket, 0, len(buckets))
	for _, b := range buckets {
		if b.Pixels > 0 {
			out = append(out, b)
		}
	}
	return out
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= radianceTolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func day(t time.Time) string {
	return t.Format(config.DateLayout)
}
