package yield

import (
	"math"
	"testing"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/selection"
)

func TestAggregatorCounts(t *testing.T) {
	agg := NewAggregator()
	agg.RecordEvent(true)
	agg.RecordEvent(true)
	agg.RecordEvent(false)
	agg.RecordSelection(selection.ChannelEMu, 55)
	agg.RecordSelection(selection.ChannelEMu, 65)

	stats := agg.Stats()
	if stats.EventsRead != 3 {
		t.Errorf("EventsRead = %d, want 3", stats.EventsRead)
	}
	if stats.EventsInvalid != 1 {
		t.Errorf("EventsInvalid = %d, want 1", stats.EventsInvalid)
	}
	emu := stats.Channels[selection.ChannelEMu]
	if emu.Selected != 2 {
		t.Errorf("emu Selected = %d, want 2", emu.Selected)
	}
	if math.Abs(emu.MeanSumPt-60) > 1e-9 {
		t.Errorf("emu MeanSumPt = %v, want 60", emu.MeanSumPt)
	}
	if got := stats.Channels[selection.ChannelEE].Selected; got != 0 {
		t.Errorf("ee Selected = %d, want 0", got)
	}
}

func TestAggregatorQuantiles(t *testing.T) {
	agg := NewAggregator()
	for i := 1; i <= 100; i++ {
		agg.RecordSelection(selection.ChannelMuMu, float64(i))
	}
	mumu := agg.Stats().Channels[selection.ChannelMuMu]
	if mumu.P50SumPt != 51 {
		t.Errorf("P50SumPt = %v, want 51", mumu.P50SumPt)
	}
	if mumu.P95SumPt != 96 {
		t.Errorf("P95SumPt = %v, want 96", mumu.P95SumPt)
	}
}

func TestAggregatorMerge(t *testing.T) {
	a := NewAggregator()
	b := NewAggregator()
	a.RecordEvent(true)
	a.RecordSelection(selection.ChannelEE, 80)
	b.RecordEvent(false)
	b.RecordSelection(selection.ChannelEE, 120)

	a.Merge(b)
	stats := a.Stats()
	if stats.EventsRead != 2 || stats.EventsInvalid != 1 {
		t.Errorf("merged events = %d invalid = %d, want 2 and 1",
			stats.EventsRead, stats.EventsInvalid)
	}
	ee := stats.Channels[selection.ChannelEE]
	if ee.Selected != 2 {
		t.Errorf("merged ee Selected = %d, want 2", ee.Selected)
	}
	if math.Abs(ee.MeanSumPt-100) > 1e-9 {
		t.Errorf("merged ee MeanSumPt = %v, want 100", ee.MeanSumPt)
	}
}

func TestAggregatorUnknownChannelIgnored(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSelection(selection.Channel("tau"), 40)
	for _, cy := range agg.Stats().Channels {
		if cy.Selected != 0 {
			t.Errorf("unexpected selection recorded: %+v", cy)
		}
	}
}
