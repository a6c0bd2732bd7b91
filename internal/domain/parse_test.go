package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	masayaLat = 11.994702
	masayaLon = -86.163783
)

func masaya() Site {
	return Site{Name: "Masaya volcano", Lat: masayaLat, Lon: masayaLon, RadiusKm: 2.5}
}

func record(ts string, lon, lat, radiance, nti float64) AnomalyRecord {
	t, err := time.Parse("2006-01-02 15:04", ts)
	if err != nil {
		panic(err)
	}
	return AnomalyRecord{Time: t, Lon: lon, Lat: lat, Radiance: radiance, NTI: nti}
}

func TestParseLine(t *testing.T) {
	line := "1609727400 T 2021 1 4 3 50 -86.1600 11.9850 1.532 2.1 0 0 0 0 0 0 0 0 0 -0.712"

	rec, err := ParseLine(line)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, time.January, 4, 3, 50, 0, 0, time.UTC), rec.Time)
	assert.Equal(t, -86.16, rec.Lon)
	assert.Equal(t, 11.985, rec.Lat)
	assert.Equal(t, 1.532, rec.Radiance)
	assert.Equal(t, -0.712, rec.NTI)
}

func TestParseLine_FloatEncodedIntegers(t *testing.T) {
	line := "0 A 2021.0 2 28 23 59 -86.16 11.98 1.0 0 0 0 0 0 0 0 0 0 0 -0.5"

	rec, err := ParseLine(line)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, time.February, 28, 23, 59, 0, 0, time.UTC), rec.Time)
}

func TestParseLine_Rejects(t *testing.T) {
	cases := map[string]string{
		"too few columns": "0 T 2021 1 4 3 50 -86.16 11.98 1.5",
		"bad year":        "0 T 20x1 1 4 3 50 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 -0.7",
		"month 13":        "0 T 2021 13 4 3 50 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 -0.7",
		"31 april":        "0 T 2021 4 31 3 50 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 -0.7",
		"day zero":        "0 T 2021 4 0 3 50 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 -0.7",
		"hour 24":         "0 T 2021 4 3 24 0 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 -0.7",
		"fractional day":  "0 T 2021 4 3.5 1 0 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 -0.7",
		"bad longitude":   "0 T 2021 4 3 1 0 west 11.98 1.5 0 0 0 0 0 0 0 0 0 0 -0.7",
		"bad nti":         "0 T 2021 4 3 1 0 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 n/a",
		"nan nti":         "0 T 2021 4 3 1 0 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 NaN",
		"nti above one":   "0 T 2021 4 3 1 0 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 1e12",
		"nti below -1":    "0 T 2021 4 3 1 0 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 -1.01",
		"inf radiance":    "0 T 2021 4 3 1 0 -86.16 11.98 +Inf 0 0 0 0 0 0 0 0 0 0 -0.7",
		"nan latitude":    "0 T 2021 4 3 1 0 -86.16 nan 1.5 0 0 0 0 0 0 0 0 0 0 -0.7",
		"inf longitude":   "0 T 2021 4 3 1 0 -Inf 11.98 1.5 0 0 0 0 0 0 0 0 0 0 -0.7",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLine(line)
			assert.Error(t, err)
		})
	}
}

func TestFormatAlertLine_RoundTrip(t *testing.T) {
	want := record("2019-07-14 19:05", -86.163783, 11.994702, 3.25, -0.6543)

	got, err := ParseLine(FormatAlertLine(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParsePayload_OneRecordPerWellFormedLine(t *testing.T) {
	recs := []AnomalyRecord{
		record("2021-01-04 03:50", -86.16, 11.98, 1.5, -0.7),
		record("2021-01-05 04:35", -86.17, 11.99, 2.5, -0.6),
		record("2021-02-01 16:10", -86.15, 12.00, 0.5, -0.75),
	}
	var b strings.Builder
	b.WriteString("# mergeimage alerts\n\n")
	for _, r := range recs {
		b.WriteString(FormatAlertLine(r) + "\n")
	}

	res, err := ParsePayload(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, recs, res.Records)
	assert.Equal(t, 3, res.Lines)
	assert.Zero(t, res.Skipped)
}

func TestParsePayload_SkipsMalformedLines(t *testing.T) {
	good := FormatAlertLine(record("2021-01-04 03:50", -86.16, 11.98, 1.5, -0.7))
	payload := strings.Join([]string{
		good,
		"garbage line",
		"0 T 2021 13 4 3 50 -86.16 11.98 1.5 0 0 0 0 0 0 0 0 0 0 -0.7",
		good,
	}, "\n")

	res, err := ParsePayload(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, 4, res.Lines)
	assert.Equal(t, 2, res.Skipped)
}

func TestParsePayload_NonFiniteValuesAreSkipped(t *testing.T) {
	good := record("2021-01-04 03:50", -86.16, 11.98, 1.5, -0.7)
	bad := record("2021-01-04 05:10", -86.16, 11.98, 2.0, math.NaN())
	payload := FormatAlertLine(good) + "\n" + FormatAlertLine(bad) + "\n"

	res, err := ParsePayload(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, []AnomalyRecord{good}, res.Records)
	assert.Equal(t, 1, res.Skipped)
}

func TestParseLine_NTIBoundsInclusive(t *testing.T) {
	for _, nti := range []float64{-1, 1} {
		rec, err := ParseLine(FormatAlertLine(record("2021-01-04 03:50", -86.16, 11.98, 1.5, nti)))
		require.NoError(t, err)
		assert.Equal(t, nti, rec.NTI)
	}
}

func TestParsePayload_Empty(t *testing.T) {
	for name, payload := range map[string]string{
		"empty":         "",
		"whitespace":    "\n  \n\t\n",
		"comments only": "# no alerts\n",
	} {
		t.Run(name, func(t *testing.T) {
			res, err := ParsePayload(strings.NewReader(payload))
			require.NoError(t, err)
			assert.Empty(t, res.Records)
			assert.Zero(t, res.Lines)
		})
	}
}

func TestParsePayload_NothingParseableIsParseError(t *testing.T) {
	payload := "Content not available\nplease try again later\n"

	res, err := ParsePayload(strings.NewReader(payload))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Lines)
	assert.Equal(t, 2, perr.Skipped)
	assert.Empty(t, res.Records)
}
