package domain

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Column positions in a mergeimage alert line.
const (
	colYear     = 2
	colMonth    = 3
	colDay      = 4
	colHour     = 5
	colMinute   = 6
	colLon      = 7
	colLat      = 8
	colRadiance = 9
	colNTI      = 20

	minColumns = colNTI + 1
)

var errNoAlertLines = errors.New("no line matches the alert column layout")

// ParseResult holds the records parsed from a payload and the number of
// non-blank lines that were dropped.
type ParseResult struct {
	Records []AnomalyRecord
	Lines   int
	Skipped int
}

// ParsePayload reads a MODVOLC text payload. Malformed lines are skipped and
// counted. An empty payload yields no records and no error; a non-empty
// payload with no parseable line yields a *ParseError.
func ParsePayload(r io.Reader) (ParseResult, error) {
	var res ParseResult

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res.Lines++

		rec, err := ParseLine(line)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read payload: %w", err)
	}

	if res.Lines > 0 && len(res.Records) == 0 {
		return res, &ParseError{Lines: res.Lines, Skipped: res.Skipped, Err: errNoAlertLines}
	}
	return res, nil
}

// ParseLine parses a single alert line.
func ParseLine(line string) (AnomalyRecord, error) {
	fields := strings.Fields(line)
	if len(fields) < minColumns {
		return AnomalyRecord{}, fmt.Errorf("want at least %d columns, got %d", minColumns, len(fields))
	}

	var ints [5]int
	for i, col := range []int{colYear, colMonth, colDay, colHour, colMinute} {
		v, err := parseIntField(fields[col])
		if err != nil {
			return AnomalyRecord{}, fmt.Errorf("column %d: %w", col, err)
		}
		ints[i] = v
	}
	ts, err := alertTime(ints[0], ints[1], ints[2], ints[3], ints[4])
	if err != nil {
		return AnomalyRecord{}, err
	}

	var floats [4]float64
	for i, col := range []int{colLon, colLat, colRadiance, colNTI} {
		v, err := strconv.ParseFloat(fields[col], 64)
		if err != nil {
			return AnomalyRecord{}, fmt.Errorf("column %d: %w", col, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return AnomalyRecord{}, fmt.Errorf("column %d: %q is not finite", col, fields[col])
		}
		floats[i] = v
	}
	if nti := floats[3]; nti < -1 || nti > 1 {
		return AnomalyRecord{}, fmt.Errorf("column %d: NTI %g outside [-1, 1]", colNTI, nti)
	}

	return AnomalyRecord{
		Time:     ts,
		Lon:      floats[0],
		Lat:      floats[1],
		Radiance: floats[2],
		NTI:      floats[3],
	}, nil
}

// parseIntField accepts integers written as "7" or "7.0".
func parseIntField(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(f), nil
}

// alertTime builds a UTC timestamp, rejecting values time.Date would normalise
// (month 13, 31 April, hour 24).
func alertTime(year, month, day, hour, minute int) (time.Time, error) {
	if month < 1 || month > 12 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid time %04d-%02d-%02d %02d:%02d", year, month, day, hour, minute)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return t, nil
}
