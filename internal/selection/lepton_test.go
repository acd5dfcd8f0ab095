package selection

import (
	"testing"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
)

// goodElectron returns a candidate that passes every cut with margin.
// Negative pt encodes negative charge, the magnitude is what the cuts see.
func goodElectron() event.Electron {
	return event.Electron{Pt: -30, Eta: 0.5, Phi: 1.0, Iso03: 0.05, MissingHits: 0}
}

func goodMuon() event.Muon {
	return event.Muon{
		Pt: 25, Eta: -0.8, Phi: -2.0, Iso03: 0.10,
		HitsValid: 14, HitsPixel: 3,
		DistPV0: 0.01, DistPVz: 0.1, TrackChi2NDOF: 1.5,
	}
}

func TestGoodElectron(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*event.Electron)
		want   bool
	}{
		{"nominal", func(e *event.Electron) {}, true},
		{"pt exactly at threshold passes", func(e *event.Electron) { e.Pt = 20.0 }, true},
		{"negative pt at threshold passes", func(e *event.Electron) { e.Pt = -20.0 }, true},
		{"pt below threshold", func(e *event.Electron) { e.Pt = 19.999 }, false},
		{"eta exactly at edge passes", func(e *event.Electron) { e.Eta = 2.4 }, true},
		{"negative eta at edge passes", func(e *event.Electron) { e.Eta = -2.4 }, true},
		{"eta beyond edge", func(e *event.Electron) { e.Eta = 2.41 }, false},
		{"isolation exactly at cut passes", func(e *event.Electron) { e.Iso03 = 0.17 }, true},
		{"isolation above cut", func(e *event.Electron) { e.Iso03 = 0.171 }, false},
		{"one missing hit", func(e *event.Electron) { e.MissingHits = 1 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := goodElectron()
			tc.mutate(&e)
			if got := GoodElectron(e); got != tc.want {
				t.Errorf("GoodElectron(%+v) = %v, want %v", e, got, tc.want)
			}
		})
	}
}

func TestGoodMuon(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*event.Muon)
		want   bool
	}{
		{"nominal", func(m *event.Muon) {}, true},
		{"pt exactly at threshold passes", func(m *event.Muon) { m.Pt = -20.0 }, true},
		{"pt below threshold", func(m *event.Muon) { m.Pt = 19.9 }, false},
		{"eta beyond edge", func(m *event.Muon) { m.Eta = -2.5 }, false},
		{"isolation exactly at cut passes", func(m *event.Muon) { m.Iso03 = 0.20 }, true},
		{"isolation above cut", func(m *event.Muon) { m.Iso03 = 0.21 }, false},
		{"tracker hits exactly at minimum pass", func(m *event.Muon) { m.HitsValid = 12 }, true},
		{"tracker hits below minimum", func(m *event.Muon) { m.HitsValid = 11 }, false},
		{"pixel hits exactly at minimum pass", func(m *event.Muon) { m.HitsPixel = 2 }, true},
		{"pixel hits below minimum", func(m *event.Muon) { m.HitsPixel = 1 }, false},
		{"transverse IP exactly at cut passes", func(m *event.Muon) { m.DistPV0 = 0.02 }, true},
		{"transverse IP above cut", func(m *event.Muon) { m.DistPV0 = 0.021 }, false},
		{"longitudinal IP exactly at cut passes", func(m *event.Muon) { m.DistPVz = 0.5 }, true},
		{"longitudinal IP above cut", func(m *event.Muon) { m.DistPVz = 0.51 }, false},
		{"chi2 exactly at cut passes", func(m *event.Muon) { m.TrackChi2NDOF = 10.0 }, true},
		{"chi2 above cut", func(m *event.Muon) { m.TrackChi2NDOF = 10.1 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := goodMuon()
			tc.mutate(&m)
			if got := GoodMuon(m); got != tc.want {
				t.Errorf("GoodMuon(%+v) = %v, want %v", m, got, tc.want)
			}
		})
	}
}

func TestFiltersHaveNoSideEffects(t *testing.T) {
	e := goodElectron()
	m := goodMuon()
	GoodElectron(e)
	GoodMuon(m)
	if e != goodElectron() || m != goodMuon() {
		t.Error("filters must not mutate their inputs")
	}
}
