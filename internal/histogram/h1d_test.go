package histogram

import (
	"math"
	"strings"
	"testing"
)

func TestFillBinsAndFlows(t *testing.T) {
	h := NewH1D("test", 10, 0, 100)
	h.Fill(-5)   // underflow
	h.Fill(0)    // first bin
	h.Fill(55)   // sixth bin
	h.Fill(99.9) // last bin
	h.Fill(100)  // overflow (upper edge is exclusive)
	h.Fill(250)  // overflow

	if h.Under != 1 {
		t.Errorf("Under = %v, want 1", h.Under)
	}
	if h.Over != 2 {
		t.Errorf("Over = %v, want 2", h.Over)
	}
	if h.Counts[0] != 1 {
		t.Errorf("Counts[0] = %v, want 1", h.Counts[0])
	}
	if h.Counts[5] != 1 {
		t.Errorf("Counts[5] = %v, want 1", h.Counts[5])
	}
	if h.Counts[9] != 1 {
		t.Errorf("Counts[9] = %v, want 1", h.Counts[9])
	}
	if h.Entries != 6 {
		t.Errorf("Entries = %v, want 6", h.Entries)
	}
	if h.Integral() != 4 {
		t.Errorf("Integral() = %v, want 4", h.Integral())
	}
}

func TestFillWeighted(t *testing.T) {
	h := NewH1D("weighted", 4, 0, 4)
	h.FillW(1.5, 2.5)
	h.FillW(1.5, 0.5)
	if h.Counts[1] != 3 {
		t.Errorf("Counts[1] = %v, want 3", h.Counts[1])
	}
	if got := h.Mean(); math.Abs(got-1.5) > 1e-12 {
		t.Errorf("Mean() = %v, want 1.5", got)
	}
}

func TestMerge(t *testing.T) {
	a := NewH1D("a", 5, 0, 10)
	b := NewH1D("b", 5, 0, 10)
	a.Fill(1)
	b.Fill(1)
	b.Fill(9)
	b.Fill(-1)

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if a.Counts[0] != 2 {
		t.Errorf("Counts[0] = %v, want 2", a.Counts[0])
	}
	if a.Counts[4] != 1 {
		t.Errorf("Counts[4] = %v, want 1", a.Counts[4])
	}
	if a.Under != 1 {
		t.Errorf("Under = %v, want 1", a.Under)
	}
	if a.Entries != 4 {
		t.Errorf("Entries = %v, want 4", a.Entries)
	}
}

func TestMergeRejectsMismatchedBinning(t *testing.T) {
	a := NewH1D("a", 5, 0, 10)
	b := NewH1D("b", 10, 0, 10)
	if err := a.Merge(b); err == nil {
		t.Error("expected binning mismatch error")
	}
}

func TestBinEdges(t *testing.T) {
	h := NewH1D("edges", 4, -2, 2)
	lo, hi := h.BinEdges(0)
	if lo != -2 || hi != -1 {
		t.Errorf("BinEdges(0) = (%v, %v), want (-2, -1)", lo, hi)
	}
	lo, hi = h.BinEdges(3)
	if lo != 1 || hi != 2 {
		t.Errorf("BinEdges(3) = (%v, %v), want (1, 2)", lo, hi)
	}
}

func TestWriteCSV(t *testing.T) {
	h := NewH1D("csv", 2, 0, 2)
	h.Fill(0.5)
	h.Fill(1.5)
	h.Fill(1.5)

	var sb strings.Builder
	if err := h.WriteCSV(&sb); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	// header + underflow + 2 bins + overflow
	if len(lines) != 5 {
		t.Fatalf("got %d csv lines, want 5:\n%s", len(lines), sb.String())
	}
	if lines[2] != "0,1,1" {
		t.Errorf("bin 0 row = %q, want \"0,1,1\"", lines[2])
	}
	if lines[3] != "1,2,2" {
		t.Errorf("bin 1 row = %q, want \"1,2,2\"", lines[3])
	}
}
