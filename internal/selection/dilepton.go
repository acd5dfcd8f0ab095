package selection

import (
	"math"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/fourvec"
)

// Pair mass constraints in GeV. Pairs below the floor are dominated by
// low-mass resonances and conversions; same-flavor pairs inside the Z
// window are dominated by Drell-Yan production.
const (
	MassFloor = 12.0
	ZVetoLow  = 76.0
	ZVetoHigh = 106.0
)

// Result accumulates the best dilepton pair found so far. LepMinus holds
// the negative-charge lepton's four-momentum and LepPlus the positive one's.
// SumPt is the scalar sum of the two leptons' transverse momenta, not the
// pair vector's pt. A selector leaves the Result untouched when no pair in
// the event passes the cuts.
type Result struct {
	LepMinus fourvec.Vec
	LepPlus  fourvec.Vec
	SumPt    float64
}

// NewResult returns an accumulator seeded with a sentinel SumPt that any
// real selection exceeds (both leptons carry at least 20 GeV).
func NewResult() *Result {
	return &Result{SumPt: -1}
}

// Valid reports whether a selector has recorded a pair into the Result.
// Only meaningful for accumulators seeded by NewResult.
func (r *Result) Valid() bool {
	return r.SumPt >= 0
}

// record keeps the new best pair, slotting the vectors by charge sign.
// negFirst is true when the first lepton carries the negative charge.
func (r *Result) record(first, second fourvec.Vec, negFirst bool, sumPt float64) {
	r.SumPt = sumPt
	if negFirst {
		r.LepMinus, r.LepPlus = first, second
	} else {
		r.LepMinus, r.LepPlus = second, first
	}
}

// BestEMu scans every electron-muon combination in the event and records
// into best the opposite-charge, quality-passing pair with the highest
// scalar pt sum, subject to the 12 GeV mass floor. The Z-window veto does
// not apply to the mixed-flavor channel. Ties keep the earlier pair.
func BestEMu(ev *event.Event, best *Result) {
	for _, el := range ev.Electrons {
		if !GoodElectron(el) {
			continue
		}
		vecEl := fourvec.PtEtaPhiM(math.Abs(el.Pt), el.Eta, el.Phi, MassElectron)
		for _, mu := range ev.Muons {
			// opposite charge: product of signed pts must not be positive
			if el.Pt*mu.Pt > 0 {
				continue
			}
			if !GoodMuon(mu) {
				continue
			}
			vecMu := fourvec.PtEtaPhiM(math.Abs(mu.Pt), mu.Eta, mu.Phi, MassMuon)
			if vecEl.Add(vecMu).M() < MassFloor {
				continue
			}
			sumPt := vecEl.Pt() + vecMu.Pt()
			if sumPt <= best.SumPt {
				continue
			}
			best.record(vecEl, vecMu, el.Pt < 0, sumPt)
		}
	}
}

// BestEE scans every unordered electron pair (second index strictly greater
// than the first) and records the best opposite-charge pair as BestEMu does,
// additionally rejecting pairs with invariant mass strictly inside the
// (76, 106) GeV Z window.
func BestEE(ev *event.Event, best *Result) {
	for i, el1 := range ev.Electrons {
		if !GoodElectron(el1) {
			continue
		}
		vec1 := fourvec.PtEtaPhiM(math.Abs(el1.Pt), el1.Eta, el1.Phi, MassElectron)
		for _, el2 := range ev.Electrons[i+1:] {
			if el1.Pt*el2.Pt > 0 {
				continue
			}
			if !GoodElectron(el2) {
				continue
			}
			vec2 := fourvec.PtEtaPhiM(math.Abs(el2.Pt), el2.Eta, el2.Phi, MassElectron)
			mass := vec1.Add(vec2).M()
			if mass < MassFloor {
				continue
			}
			if mass > ZVetoLow && mass < ZVetoHigh {
				continue
			}
			sumPt := vec1.Pt() + vec2.Pt()
			if sumPt <= best.SumPt {
				continue
			}
			best.record(vec1, vec2, el1.Pt < 0, sumPt)
		}
	}
}

// BestMuMu is the muon-channel counterpart of BestEE.
func BestMuMu(ev *event.Event, best *Result) {
	for i, mu1 := range ev.Muons {
		if !GoodMuon(mu1) {
			continue
		}
		vec1 := fourvec.PtEtaPhiM(math.Abs(mu1.Pt), mu1.Eta, mu1.Phi, MassMuon)
		for _, mu2 := range ev.Muons[i+1:] {
			if mu1.Pt*mu2.Pt > 0 {
				continue
			}
			if !GoodMuon(mu2) {
				continue
			}
			vec2 := fourvec.PtEtaPhiM(math.Abs(mu2.Pt), mu2.Eta, mu2.Phi, MassMuon)
			mass := vec1.Add(vec2).M()
			if mass < MassFloor {
				continue
			}
			if mass > ZVetoLow && mass < ZVetoHigh {
				continue
			}
			sumPt := vec1.Pt() + vec2.Pt()
			if sumPt <= best.SumPt {
				continue
			}
			best.record(vec1, vec2, mu1.Pt < 0, sumPt)
		}
	}
}
