// Package event defines the per-event lepton candidate records exchanged
// between the data sources and the selection core, and the NDJSON wire
// schema they are serialised with.
package event

// Electron is a reconstructed electron candidate. Pt is SIGNED: the sign
// encodes the electric charge (negative pt means negative charge) and the
// magnitude is the kinematic transverse momentum in GeV.
type Electron struct {
	Pt          float64 `json:"pt"`
	Eta         float64 `json:"eta"`
	Phi         float64 `json:"phi"`
	Iso03       float64 `json:"iso03"`
	MissingHits int     `json:"missing_hits"`
}

// Muon is a reconstructed muon candidate. Pt carries the charge sign the
// same way as Electron.Pt. DistPV0 and DistPVz are the transverse and
// longitudinal impact parameters w.r.t. the primary vertex in cm;
// TrackChi2NDOF is the global-track fit quality.
type Muon struct {
	Pt            float64 `json:"pt"`
	Eta           float64 `json:"eta"`
	Phi           float64 `json:"phi"`
	Iso03         float64 `json:"iso03"`
	HitsValid     int     `json:"hits_valid"`
	HitsPixel     int     `json:"hits_pixel"`
	DistPV0       float64 `json:"dist_pv0"`
	DistPVz       float64 `json:"dist_pvz"`
	TrackChi2NDOF float64 `json:"chi2_ndof"`
}

// Event is one collision event's worth of lepton candidates. Candidate
// counts are the slice lengths; sources are responsible for enforcing the
// multiplicity bound before an Event reaches the selection code.
type Event struct {
	Run       uint64     `json:"run"`
	Lumi      uint64     `json:"lumi"`
	Number    uint64     `json:"event"`
	Electrons []Electron `json:"electrons"`
	Muons     []Muon     `json:"muons"`
}
