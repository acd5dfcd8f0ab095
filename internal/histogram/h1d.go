// Package histogram provides fixed-binning one-dimensional histograms, the
// standard book of dilepton control plots, and a binary snapshot file format
// for persisting filled histograms between job runs.
package histogram

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// H1D is a one-dimensional histogram with uniform binning over [Lo, Hi).
// Entries outside the range land in the underflow/overflow counters.
// Fields are exported for snapshot serialisation; use the methods to fill.
type H1D struct {
	Name     string    `json:"name"`
	Title    string    `json:"title,omitempty"`
	Bins     int       `json:"bins"`
	Lo       float64   `json:"lo"`
	Hi       float64   `json:"hi"`
	Counts   []float64 `json:"counts"`
	Under    float64   `json:"under"`
	Over     float64   `json:"over"`
	Entries  int64     `json:"entries"`
	SumW     float64   `json:"sum_w"`
	SumWX    float64   `json:"sum_wx"`
}

// NewH1D creates an empty histogram. It panics on a non-positive bin count
// or an inverted range, which are programming errors, not data errors.
func NewH1D(name string, bins int, lo, hi float64) *H1D {
	if bins <= 0 {
		panic(fmt.Sprintf("histogram %s: bins must be positive, got %d", name, bins))
	}
	if hi <= lo {
		panic(fmt.Sprintf("histogram %s: empty range [%v, %v)", name, lo, hi))
	}
	return &H1D{
		Name:   name,
		Bins:   bins,
		Lo:     lo,
		Hi:     hi,
		Counts: make([]float64, bins),
	}
}

// Fill adds one unit-weight entry at x.
func (h *H1D) Fill(x float64) {
	h.FillW(x, 1)
}

// FillW adds a weighted entry at x.
func (h *H1D) FillW(x, w float64) {
	h.Entries++
	h.SumW += w
	h.SumWX += w * x
	switch {
	case x < h.Lo:
		h.Under += w
	case x >= h.Hi:
		h.Over += w
	default:
		idx := int(float64(h.Bins) * (x - h.Lo) / (h.Hi - h.Lo))
		if idx == h.Bins {
			idx = h.Bins - 1
		}
		h.Counts[idx] += w
	}
}

// Integral returns the total in-range weight.
func (h *H1D) Integral() float64 {
	var sum float64
	for _, c := range h.Counts {
		sum += c
	}
	return sum
}

// Mean returns the weighted mean of all filled values, including entries
// outside the axis range. Returns 0 for an empty histogram.
func (h *H1D) Mean() float64 {
	if h.SumW == 0 {
		return 0
	}
	return h.SumWX / h.SumW
}

// BinEdges returns the lower and upper edge of bin i.
func (h *H1D) BinEdges(i int) (float64, float64) {
	width := (h.Hi - h.Lo) / float64(h.Bins)
	return h.Lo + float64(i)*width, h.Lo + float64(i+1)*width
}

// Merge adds the contents of other into h. The two histograms must have
// identical binning.
func (h *H1D) Merge(other *H1D) error {
	if other.Bins != h.Bins || other.Lo != h.Lo || other.Hi != h.Hi {
		return fmt.Errorf("merging histogram %s: binning mismatch (%d [%v,%v) vs %d [%v,%v))",
			h.Name, h.Bins, h.Lo, h.Hi, other.Bins, other.Lo, other.Hi)
	}
	for i := range h.Counts {
		h.Counts[i] += other.Counts[i]
	}
	h.Under += other.Under
	h.Over += other.Over
	h.Entries += other.Entries
	h.SumW += other.SumW
	h.SumWX += other.SumWX
	return nil
}

// WriteCSV writes the histogram as bin_lo,bin_hi,count rows preceded by
// underflow and overflow lines.
func (h *H1D) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"bin_lo", "bin_hi", "count"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	rows := [][]string{
		{"-inf", formatFloat(h.Lo), formatFloat(h.Under)},
	}
	for i, c := range h.Counts {
		lo, hi := h.BinEdges(i)
		rows = append(rows, []string{formatFloat(lo), formatFloat(hi), formatFloat(c)})
	}
	rows = append(rows, []string{formatFloat(h.Hi), "+inf", formatFloat(h.Over)})
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
