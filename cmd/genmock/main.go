// Command genmock writes a synthetic MODVOLC alert payload scattered around a
// site. The payload can be fed back through `modvolc run --payload` for demos
// and fixtures. It uses the domain package to format lines and to report
// what the pipeline will keep, so the printed stats match real behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -site Masaya -lat 11.9847 -lon -86.1619 -radius-km 1 \
//	  -start 2021-01-01 -end 2021-12-31 -n 400 \
//	  -out testdata/masaya_2021.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/modvolc-etl/internal/config"
	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

type options struct {
	site     domain.Site
	start    time.Time
	end      time.Time
	n        int
	noise    int
	seed     uint64
	pad      float64
	out      string
	inFrac   float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	name := flag.String("site", "Masaya", "site name")
	lat := flag.Float64("lat", 11.9847, "site latitude")
	lon := flag.Float64("lon", -86.1619, "site longitude")
	radius := flag.Float64("radius-km", 1.0, "search radius in km")
	start := flag.String("start", "2021-01-01", "first day (YYYY-MM-DD)")
	end := flag.String("end", "2021-12-31", "last day (YYYY-MM-DD)")
	n := flag.Int("n", 300, "number of alert lines")
	noise := flag.Int("noise", 3, "number of malformed lines to mix in")
	seed := flag.Uint64("seed", 1, "random seed")
	inFrac := flag.Float64("inside", 0.7, "fraction of alerts placed inside the search radius")
	out := flag.String("out", "", "output path for the payload")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	opts := options{
		site:   domain.Site{Name: *name, Lat: *lat, Lon: *lon, RadiusKm: *radius},
		n:      *n,
		noise:  *noise,
		seed:   *seed,
		pad:    domain.DefaultQueryPad,
		out:    *out,
		inFrac: *inFrac,
	}
	var err error
	if opts.start, err = time.Parse(config.DateLayout, *start); err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}
	if opts.end, err = time.Parse(config.DateLayout, *end); err != nil {
		return fmt.Errorf("parse -end: %w", err)
	}
	if opts.start.After(opts.end) {
		return fmt.Errorf("-start %s is after -end %s", *start, *end)
	}
	if opts.inFrac < 0 || opts.inFrac > 1 {
		return fmt.Errorf("-inside must be within [0, 1]")
	}

	records := generate(opts)
	if err := writePayload(opts, records); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	log.Printf("wrote %d alert lines (+%d malformed) to %s", len(records), opts.noise, opts.out)

	printStats(opts.site, records)
	return nil
}

// generate places alerts uniformly in time. A share inFrac lands inside the
// site window; the rest fall in the padded query window but outside it, the
// way neighbouring hot spots show up in a real bounding-box query.
func generate(opts options) []domain.AnomalyRecord {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	inner := opts.site.RadiusKm / domain.KmPerDegree
	span := opts.end.Add(24*time.Hour - time.Minute).Sub(opts.start)

	records := make([]domain.AnomalyRecord, 0, opts.n)
	for range opts.n {
		offset := time.Duration(rng.Int64N(int64(span/time.Minute))) * time.Minute
		var dLat, dLon float64
		if rng.Float64() < opts.inFrac {
			dLat = (rng.Float64()*2 - 1) * inner
			dLon = (rng.Float64()*2 - 1) * inner
		} else {
			dLat, dLon = outside(rng, inner, opts.pad)
		}
		records = append(records, domain.AnomalyRecord{
			Time:     opts.start.Add(offset),
			Lat:      round(opts.site.Lat+dLat, 4),
			Lon:      round(opts.site.Lon+dLon, 4),
			Radiance: round(math.Exp(rng.NormFloat64()*0.8+1.5), 3),
			NTI:      round(-0.8+rng.Float64()*0.2, 3),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Time.Before(records[j].Time) })
	return records
}

// outside returns an offset beyond inner on at least one axis and within pad
// on both.
func outside(rng *rand.Rand, inner, pad float64) (float64, float64) {
	far := inner + rng.Float64()*(pad-inner)
	if rng.IntN(2) == 0 {
		far = -far
	}
	other := (rng.Float64()*2 - 1) * pad
	if rng.IntN(2) == 0 {
		return far, other
	}
	return other, far
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func writePayload(opts options, records []domain.AnomalyRecord) (err error) {
	if err := os.MkdirAll(filepath.Dir(opts.out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(opts.out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	step := 0
	if opts.noise > 0 {
		step = max(1, len(records)/opts.noise)
	}
	written := 0
	for i, r := range records {
		if step > 0 && written < opts.noise && i%step == step/2 {
			fmt.Fprintln(w, "ERROR: truncated alert line", i)
			written++
		}
		fmt.Fprintln(w, domain.FormatAlertLine(r))
	}
	return w.Flush()
}

// printStats reports what the pipeline will keep from this payload.
func printStats(site domain.Site, records []domain.AnomalyRecord) {
	kept := domain.FilterWindow(records, site.Window())
	aggs := domain.AggregateAll(kept, domain.GapObserved)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Generated: %d\n", len(records))
	fmt.Printf("Inside %g km of %s: %d\n", site.RadiusKm, site.Name, len(kept))
	fmt.Printf("Observed days: %d, weeks: %d, months: %d, years: %d\n",
		len(aggs.Day), len(aggs.Week), len(aggs.Month), len(aggs.Year))

	for _, b := range aggs.Year {
		fmt.Printf("  %d: pixels=%d radiance=%.3f\n", b.Start.Year(), b.Pixels, b.Radiance)
	}
	if len(kept) > 0 {
		fmt.Printf("First kept: %s\n", domain.FormatAlertLine(kept[0]))
		fmt.Printf("Last kept:  %s\n", domain.FormatAlertLine(kept[len(kept)-1]))
	}
}
