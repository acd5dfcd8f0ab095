// Package yield tracks selection bookkeeping for a run: how many events
// were read, how many failed validation, and how many pairs each channel
// selected, with sum-pt quantiles per channel. Snapshots can be persisted
// to PostgreSQL through the Store.
package yield

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/selection"
)

// ChannelYield summarises one flavor channel's selections.
type ChannelYield struct {
	Selected  int64   `json:"selected"`
	MeanSumPt float64 `json:"mean_sum_pt"`
	P50SumPt  float64 `json:"p50_sum_pt"`
	P95SumPt  float64 `json:"p95_sum_pt"`
}

// Stats is a point-in-time snapshot of the aggregator.
type Stats struct {
	EventsRead      int64                              `json:"events_read"`
	EventsInvalid   int64                              `json:"events_invalid"`
	EventsPerSecond float64                            `json:"events_per_second"`
	Channels        map[selection.Channel]ChannelYield `json:"channels"`
}

// Aggregator accumulates run counters. Counter updates are atomic; the
// retained sum-pt samples are mutex-protected. Safe for concurrent use.
type Aggregator struct {
	eventsRead    atomic.Int64
	eventsInvalid atomic.Int64
	selected      map[selection.Channel]*atomic.Int64

	mu      sync.Mutex
	samples map[selection.Channel][]float64

	startTime time.Time
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	a := &Aggregator{
		selected:  make(map[selection.Channel]*atomic.Int64, len(selection.Channels)),
		samples:   make(map[selection.Channel][]float64, len(selection.Channels)),
		startTime: time.Now(),
	}
	for _, ch := range selection.Channels {
		a.selected[ch] = &atomic.Int64{}
		a.samples[ch] = make([]float64, 0, 4096)
	}
	return a
}

// RecordEvent counts one event read from a source; valid is false for
// records rejected by validation.
func (a *Aggregator) RecordEvent(valid bool) {
	a.eventsRead.Add(1)
	if !valid {
		a.eventsInvalid.Add(1)
	}
}

// RecordSelection counts one selected pair and retains its sum-pt for the
// quantile summary.
func (a *Aggregator) RecordSelection(ch selection.Channel, sumPt float64) {
	counter, ok := a.selected[ch]
	if !ok {
		return
	}
	counter.Add(1)

	a.mu.Lock()
	a.samples[ch] = append(a.samples[ch], sumPt)
	a.mu.Unlock()
}

// Merge folds another aggregator's counters and samples into a. Used when
// per-worker aggregators are combined at the end of a batch job.
func (a *Aggregator) Merge(other *Aggregator) {
	a.eventsRead.Add(other.eventsRead.Load())
	a.eventsInvalid.Add(other.eventsInvalid.Load())

	other.mu.Lock()
	defer other.mu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range selection.Channels {
		a.selected[ch].Add(other.selected[ch].Load())
		a.samples[ch] = append(a.samples[ch], other.samples[ch]...)
	}
}

// Stats returns a consistent snapshot of all counters.
func (a *Aggregator) Stats() Stats {
	stats := Stats{
		EventsRead:    a.eventsRead.Load(),
		EventsInvalid: a.eventsInvalid.Load(),
		Channels:      make(map[selection.Channel]ChannelYield, len(selection.Channels)),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range selection.Channels {
		cy := ChannelYield{Selected: a.selected[ch].Load()}
		if samples := a.samples[ch]; len(samples) > 0 {
			sorted := make([]float64, len(samples))
			copy(sorted, samples)
			sort.Float64s(sorted)

			var sum float64
			for _, s := range sorted {
				sum += s
			}
			cy.MeanSumPt = sum / float64(len(sorted))
			cy.P50SumPt = percentile(sorted, 50)
			cy.P95SumPt = percentile(sorted, 95)
		}
		stats.Channels[ch] = cy
	}

	if elapsed := time.Since(a.startTime).Seconds(); elapsed > 0 {
		stats.EventsPerSecond = float64(stats.EventsRead) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
