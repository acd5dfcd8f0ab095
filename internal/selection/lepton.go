// Package selection implements the ttbar dilepton event selection: per-lepton
// quality cuts and the best opposite-charge pair search for the e-mu, e-e,
// and mu-mu channels. All functions are pure; the only mutation is the
// caller-supplied Result accumulator.
package selection

import (
	"math"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
)

// Lepton rest masses in GeV.
const (
	MassElectron = 0.000511
	MassMuon     = 0.105658
)

// GoodElectron reports whether an electron candidate passes the quality
// cuts: pt >= 20 GeV, |eta| <= 2.4, cone-0.3 isolation <= 0.17, and no
// missing hits. The charge sign carried by Pt is ignored here.
func GoodElectron(e event.Electron) bool {
	if math.Abs(e.Pt) < 20.0 {
		return false
	}
	if math.Abs(e.Eta) > 2.4 {
		return false
	}
	if e.Iso03 > 0.17 {
		return false
	}
	if e.MissingHits > 0 {
		return false
	}
	return true
}

// GoodMuon reports whether a muon candidate passes the quality cuts:
// pt >= 20 GeV, |eta| <= 2.4, cone-0.3 isolation <= 0.20, at least 12 valid
// tracker hits and 2 pixel hits, impact parameters within 0.02 (transverse)
// and 0.5 (longitudinal), and global-track chi2/ndof <= 10.
func GoodMuon(m event.Muon) bool {
	if math.Abs(m.Pt) < 20.0 {
		return false
	}
	if math.Abs(m.Eta) > 2.4 {
		return false
	}
	if m.Iso03 > 0.20 {
		return false
	}
	if m.HitsValid < 12 || m.HitsPixel < 2 {
		return false
	}
	if m.DistPV0 > 0.02 || m.DistPVz > 0.5 || m.TrackChi2NDOF > 10 {
		return false
	}
	return true
}
