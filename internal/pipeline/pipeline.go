package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/modvolc-etl/internal/config"
	"github.com/couchcryptid/modvolc-etl/internal/domain"
	"github.com/couchcryptid/modvolc-etl/internal/observability"
	"github.com/couchcryptid/modvolc-etl/internal/render"
)

// sampleSize is the number of records logged at debug level after filtering.
const sampleSize = 5

// Fetcher retrieves the raw alert listing for a query.
type Fetcher interface {
	Fetch(ctx context.Context, q domain.Query) ([]byte, error)
}

// Publisher forwards the filtered records of a run downstream.
type Publisher interface {
	Publish(ctx context.Context, runID string, site domain.Site, records []domain.AnomalyRecord) error
}

// Status is the outcome of a run that did not fail.
type Status string

const (
	// StatusOK means records were found and every artifact was written.
	StatusOK Status = "ok"
	// StatusEmpty means no record fell inside the search radius. Nothing is
	// written to disk.
	StatusEmpty Status = "empty"
)

// Options are the per-run settings of a pipeline.
type Options struct {
	Site       domain.Site
	Start      time.Time
	End        time.Time
	RollingEnd bool
	QueryPad   float64

	OutputRoot      string
	GapPolicy       domain.GapPolicy
	MarkerPolicy    domain.MarkerPolicy
	MarkerHighlight int
	MapCluster      bool

	// RawOut, when set, receives a copy of the fetched payload.
	RawOut string
	// PayloadFile, when set, is parsed instead of querying the archive.
	PayloadFile string
}

// OptionsFromConfig maps the loaded configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Site:            cfg.Site,
		Start:           cfg.Start,
		End:             cfg.End,
		RollingEnd:      cfg.RollingEnd,
		QueryPad:        cfg.QueryPad,
		OutputRoot:      cfg.OutputRoot,
		GapPolicy:       cfg.GapPolicy,
		MarkerPolicy:    cfg.MarkerPolicy,
		MarkerHighlight: cfg.MarkerHighlight,
		MapCluster:      cfg.MapCluster,
	}
}

// Result summarizes one run.
type Result struct {
	RunID     string
	Status    Status
	Location  domain.SiteLocation
	Query     domain.Query
	Lines     int
	Skipped   int
	Parsed    int
	Filtered  int
	Dir       string
	Artifacts []render.Artifact
	Duration  time.Duration
}

// Pipeline runs fetch, parse, filter, aggregate and render for one site.
type Pipeline struct {
	fetcher   Fetcher
	geocoder  domain.Geocoder
	publisher Publisher
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu    sync.Mutex // serializes runs
	ready atomic.Bool
	last  atomic.Pointer[Result]
}

// New creates a Pipeline. geocoder and publisher may be nil to disable site
// geocoding and record publishing.
func New(f Fetcher, g domain.Geocoder, pub Publisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		geocoder:  g,
		publisher: pub,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has completed without error.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no report has been generated yet")
	}
	return nil
}

// Ready reports whether a run has completed without error.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// LastResult returns the result of the most recent successful run.
func (p *Pipeline) LastResult() (Result, bool) {
	r := p.last.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Run executes one complete report. Concurrent calls are serialized.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	res := Result{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", res.RunID)

	err := p.run(ctx, logger, &res)
	res.Duration = time.Since(start)
	p.metrics.RunDuration.Observe(res.Duration.Seconds())

	if err != nil {
		p.metrics.Runs.WithLabelValues("error").Inc()
		logger.Error("report failed", "site", p.opts.Site.Name, "error", err)
		return res, err
	}

	p.metrics.Runs.WithLabelValues(string(res.Status)).Inc()
	p.metrics.LastSuccess.SetToCurrentTime()
	p.last.Store(&res)
	p.ready.Store(true)
	logger.Info("report complete",
		"site", res.Location.Site.Name,
		"status", res.Status,
		"records", res.Filtered,
		"artifacts", len(res.Artifacts),
		"duration", res.Duration,
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, res *Result) error {
	loc, err := domain.LocateSite(ctx, p.opts.Site, p.geocoder, logger)
	if err != nil {
		return err
	}
	res.Location = loc
	site := loc.Site

	end := p.opts.End
	if p.opts.RollingEnd {
		end = domain.Today()
	}
	q := domain.NewQuery(site, p.opts.Start, end, p.opts.QueryPad)
	res.Query = q
	logger.Info("processing site",
		"site", site.Name,
		"lon", site.Lon,
		"lat", site.Lat,
		"radius_km", site.RadiusKm,
		"start", q.Start.Format(config.DateLayout),
		"end", q.End.Format(config.DateLayout),
		"days", q.PeriodDays(),
		"geo_source", loc.GeoSource,
	)

	payload, err := p.payload(ctx, q, logger)
	if err != nil {
		return err
	}

	parsed, err := domain.ParsePayload(bytes.NewReader(payload))
	res.Lines, res.Skipped, res.Parsed = parsed.Lines, parsed.Skipped, len(parsed.Records)
	p.metrics.LinesParsed.Add(float64(len(parsed.Records)))
	p.metrics.LinesSkipped.Add(float64(parsed.Skipped))
	if err != nil {
		return err
	}
	logger.Info("payload parsed", "lines", parsed.Lines, "records", len(parsed.Records), "skipped", parsed.Skipped)

	window := site.Window()
	records := domain.FilterWindow(parsed.Records, window)
	res.Filtered = len(records)
	p.metrics.RecordsFiltered.Set(float64(len(records)))

	if len(records) == 0 {
		res.Status = StatusEmpty
		logger.Info("no thermal anomalies found for site",
			"site", site.Name,
			"start", q.Start.Format(config.DateLayout),
			"end", q.End.Format(config.DateLayout),
		)
		return nil
	}
	logger.Info("records inside search radius", "count", len(records), "window", window)
	for _, r := range records[:min(sampleSize, len(records))] {
		logger.Debug("sample record",
			"time", r.Time,
			"lon", r.Lon,
			"lat", r.Lat,
			"radiance", r.Radiance,
			"nti", r.NTI,
		)
	}

	aggs := domain.AggregateAll(records, p.opts.GapPolicy)
	logger.Info("records aggregated",
		"days", len(aggs.Day),
		"weeks", len(aggs.Week),
		"months", len(aggs.Month),
		"years", len(aggs.Year),
		"gap_policy", p.opts.GapPolicy,
	)

	dir, err := render.SiteDir(p.opts.OutputRoot, site)
	if err != nil {
		return err
	}
	res.Dir = dir

	artifacts, err := render.WriteReport(dir, render.Report{
		Records:    records,
		Aggregates: aggs,
		Map: render.MapOptions{
			Location:    loc,
			Policy:      p.opts.MarkerPolicy,
			Highlight:   p.opts.MarkerHighlight,
			Cluster:     p.opts.MapCluster,
			RunID:       res.RunID,
			GeneratedAt: domain.Now(),
		},
	})
	res.Artifacts = artifacts
	for _, a := range artifacts {
		p.metrics.ArtifactsWritten.WithLabelValues(a.Kind).Inc()
	}
	if err != nil {
		return err
	}
	logger.Info("artifacts written", "dir", dir, "count", len(artifacts))

	p.publish(ctx, logger, res.RunID, site, records)

	res.Status = StatusOK
	return nil
}

// payload returns the alert listing, read from PayloadFile when configured
// or fetched from the archive, and optionally saved to RawOut.
func (p *Pipeline) payload(ctx context.Context, q domain.Query, logger *slog.Logger) ([]byte, error) {
	if p.opts.PayloadFile != "" {
		data, err := os.ReadFile(p.opts.PayloadFile)
		if err != nil {
			return nil, &domain.FilesystemError{Path: p.opts.PayloadFile, Err: err}
		}
		logger.Info("payload loaded from file", "path", p.opts.PayloadFile, "bytes", len(data))
		return data, nil
	}

	if p.fetcher == nil {
		return nil, errors.New("no archive fetcher configured")
	}
	fetchStart := time.Now()
	data, err := p.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	logger.Info("payload fetched", "bytes", len(data), "duration", time.Since(fetchStart))

	if p.opts.RawOut != "" {
		if err := os.WriteFile(p.opts.RawOut, data, 0o644); err != nil {
			return nil, &domain.FilesystemError{Path: p.opts.RawOut, Err: err}
		}
		p.metrics.ArtifactsWritten.WithLabelValues("raw").Inc()
		logger.Info("raw payload saved", "path", p.opts.RawOut)
	}
	return data, nil
}

// publish forwards records when a publisher is configured. Failures are
// logged and do not fail the run.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, runID string, site domain.Site, records []domain.AnomalyRecord) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, runID, site, records); err != nil {
		logger.Warn("publish records failed", "count", len(records), "error", fmt.Errorf("publish: %w", err))
		return
	}
	p.metrics.Published.Add(float64(len(records)))
	logger.Info("records published", "count", len(records))
}
