package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
	"github.com/couchcryptid/modvolc-etl/internal/render"
)

func masaya() domain.Site {
	return domain.Site{Name: "Masaya", Lat: 11.9847, Lon: -86.1619, RadiusKm: 1}
}

func writeReport(t *testing.T, policy domain.GapPolicy) string {
	t.Helper()
	recs := []domain.AnomalyRecord{
		{Time: time.Date(2021, 1, 30, 7, 40, 0, 0, time.UTC), Lon: -86.1619, Lat: 11.9847, Radiance: 12.5},
		{Time: time.Date(2021, 1, 30, 19, 5, 0, 0, time.UTC), Lon: -86.1601, Lat: 11.9862, Radiance: 4.25},
		{Time: time.Date(2021, 2, 2, 4, 20, 0, 0, time.UTC), Lon: -86.1630, Lat: 11.9850, Radiance: 0.1},
		{Time: time.Date(2022, 3, 15, 4, 20, 0, 0, time.UTC), Lon: -86.1630, Lat: 11.9850, Radiance: 7.3},
	}
	dir, err := render.SiteDir(t.TempDir(), masaya())
	require.NoError(t, err)

	aggs := domain.AggregateAll(recs, policy)
	for _, g := range domain.Granularities {
		require.NoError(t, render.WriteBucketsCSV(render.BucketsCSVPath(dir, masaya(), g), aggs.For(g)))
	}
	require.NoError(t, render.WriteRecordsCSV(render.RecordsCSVPath(dir, masaya()), recs))
	return dir
}

func TestRun_ConsistentReportPasses(t *testing.T) {
	for _, policy := range []domain.GapPolicy{domain.GapContinuous, domain.GapObserved} {
		t.Run(string(policy), func(t *testing.T) {
			dir := writeReport(t, policy)
			var out bytes.Buffer

			code := run(&out, dir, masaya())

			assert.Equal(t, 0, code, out.String())
			assert.Contains(t, out.String(), "All checks passed.")
			assert.Contains(t, out.String(), "Records: 4")
		})
	}
}

func TestRun_MissingRecordIsReported(t *testing.T) {
	dir := writeReport(t, domain.GapObserved)
	path := render.RecordsCSVPath(dir, masaya())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines[:len(lines)-1], "\n")+"\n"), 0o600))

	var out bytes.Buffer
	code := run(&out, dir, masaya())

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Record count equals per-period sums")
	assert.Contains(t, out.String(), "3 records")
}

func TestRun_RecordOutsideWindow(t *testing.T) {
	dir := writeReport(t, domain.GapObserved)
	site := masaya()
	site.Lat = 12.5

	var out bytes.Buffer
	code := run(&out, dir, site)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "lies outside the window")
}

func TestRun_MissingFiles(t *testing.T) {
	var out bytes.Buffer
	code := run(&out, t.TempDir(), masaya())

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL")
}
