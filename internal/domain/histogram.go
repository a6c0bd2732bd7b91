package domain

import "math"

// NTIBinWidth is the fixed histogram bin width for the normalized thermal index.
const NTIBinWidth = 0.02

// maxBinIndex bounds |v/width| for a value to be binned.
const maxBinIndex = 1 << 16

// HistogramBin counts values in [Min, Max).
type HistogramBin struct {
	Min   float64
	Max   float64
	Count int
}

// HistogramBins bins values with a fixed width. Bin edges are multiples of
// width, so the same value always lands in the same bin regardless of the
// rest of the data. Empty bins between the smallest and largest value are
// included. Non-finite values and values more than maxBinIndex bins from
// zero are left out.
func HistogramBins(values []float64, width float64) []HistogramBin {
	if width <= 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		return nil
	}
	values = binnable(values, width)
	if len(values) == 0 {
		return nil
	}

	lo, hi := binIndex(values[0], width), binIndex(values[0], width)
	for _, v := range values[1:] {
		i := binIndex(v, width)
		lo = min(lo, i)
		hi = max(hi, i)
	}

	bins := make([]HistogramBin, hi-lo+1)
	for i := range bins {
		bins[i].Min = float64(lo+i) * width
		bins[i].Max = float64(lo+i+1) * width
	}
	for _, v := range values {
		bins[binIndex(v, width)-lo].Count++
	}
	return bins
}

func binnable(values []float64, width float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.Abs(v/width) > maxBinIndex {
			continue
		}
		out = append(out, v)
	}
	return out
}

// binIndex rounds to 9 decimals before flooring so values sitting on an edge,
// such as -0.80 with width 0.02, are not pushed into the lower bin by
// floating-point error.
func binIndex(v, width float64) int {
	q := math.Round(v/width*1e9) / 1e9
	return int(math.Floor(q))
}

// NTIValues extracts the NTI of each record.
func NTIValues(records []AnomalyRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.NTI
	}
	return out
}
