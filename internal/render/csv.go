package render

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

const (
	periodLayout = "2006-01-02"
	recordLayout = "2006-01-02 15:04:05"
)

var (
	bucketsHeader = []string{"period_start", "period_end", "pixels", "radiance"}
	recordsHeader = []string{"date", "longitude", "latitude", "radiance"}
)

// WriteBucketsCSV writes one row per aggregation period.
func WriteBucketsCSV(path string, buckets []domain.Bucket) (err error) {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer closeFile(f, &err)

	w := csv.NewWriter(f)
	if err := w.Write(bucketsHeader); err != nil {
		return &domain.FilesystemError{Path: path, Err: err}
	}
	for _, b := range buckets {
		row := []string{
			b.Start.Format(periodLayout),
			b.End.Format(periodLayout),
			strconv.Itoa(b.Pixels),
			formatFloat(b.Radiance),
		}
		if err := w.Write(row); err != nil {
			return &domain.FilesystemError{Path: path, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &domain.FilesystemError{Path: path, Err: err}
	}
	return nil
}

// WriteRecordsCSV writes every filtered record in time order.
func WriteRecordsCSV(path string, records []domain.AnomalyRecord) (err error) {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer closeFile(f, &err)

	w := csv.NewWriter(f)
	if err := w.Write(recordsHeader); err != nil {
		return &domain.FilesystemError{Path: path, Err: err}
	}
	for _, r := range records {
		row := []string{
			r.Time.UTC().Format(recordLayout),
			formatFloat(r.Lon),
			formatFloat(r.Lat),
			formatFloat(r.Radiance),
		}
		if err := w.Write(row); err != nil {
			return &domain.FilesystemError{Path: path, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &domain.FilesystemError{Path: path, Err: err}
	}
	return nil
}

// ReadRecordsCSV reads a file written by WriteRecordsCSV. NTI is not part of
// the export and is left zero.
func ReadRecordsCSV(path string) ([]domain.AnomalyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.FilesystemError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(recordsHeader)

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}

	var records []domain.AnomalyRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rec, err := parseRecordRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadBucketsCSV reads a file written by WriteBucketsCSV.
func ReadBucketsCSV(path string) ([]domain.Bucket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.FilesystemError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(bucketsHeader)

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}

	var buckets []domain.Bucket
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		b, err := parseBucketRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

func parseRecordRow(row []string) (domain.AnomalyRecord, error) {
	ts, err := time.ParseInLocation(recordLayout, row[0], time.UTC)
	if err != nil {
		return domain.AnomalyRecord{}, fmt.Errorf("date: %w", err)
	}
	vals := make([]float64, 3)
	for i, s := range row[1:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.AnomalyRecord{}, fmt.Errorf("%s: %w", recordsHeader[i+1], err)
		}
		vals[i] = v
	}
	return domain.AnomalyRecord{Time: ts, Lon: vals[0], Lat: vals[1], Radiance: vals[2]}, nil
}

func parseBucketRow(row []string) (domain.Bucket, error) {
	start, err := time.ParseInLocation(periodLayout, row[0], time.UTC)
	if err != nil {
		return domain.Bucket{}, fmt.Errorf("period_start: %w", err)
	}
	end, err := time.ParseInLocation(periodLayout, row[1], time.UTC)
	if err != nil {
		return domain.Bucket{}, fmt.Errorf("period_end: %w", err)
	}
	pixels, err := strconv.Atoi(row[2])
	if err != nil {
		return domain.Bucket{}, fmt.Errorf("pixels: %w", err)
	}
	radiance, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return domain.Bucket{}, fmt.Errorf("radiance: %w", err)
	}
	return domain.Bucket{Start: start, End: end, Pixels: pixels, Radiance: radiance}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
