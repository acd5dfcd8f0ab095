package source

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
)

// ValidationError holds per-field validation failure messages keyed by a
// JSON-path-like field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// Validate checks that an event record satisfies the selection core's
// preconditions: bounded candidate multiplicity and finite kinematics.
// maxLeptons <= 0 selects DefaultMaxLeptons.
func Validate(ev *event.Event, maxLeptons int) error {
	if maxLeptons <= 0 {
		maxLeptons = DefaultMaxLeptons
	}
	errs := make(map[string]string)

	if len(ev.Electrons) > maxLeptons {
		errs["electrons"] = fmt.Sprintf("at most %d candidates allowed, got %d", maxLeptons, len(ev.Electrons))
	}
	if len(ev.Muons) > maxLeptons {
		errs["muons"] = fmt.Sprintf("at most %d candidates allowed, got %d", maxLeptons, len(ev.Muons))
	}

	for i, el := range ev.Electrons {
		checkFinite(errs, fmt.Sprintf("electrons[%d]", i), map[string]float64{
			"pt": el.Pt, "eta": el.Eta, "phi": el.Phi, "iso03": el.Iso03,
		})
	}
	for i, mu := range ev.Muons {
		checkFinite(errs, fmt.Sprintf("muons[%d]", i), map[string]float64{
			"pt": mu.Pt, "eta": mu.Eta, "phi": mu.Phi, "iso03": mu.Iso03,
			"dist_pv0": mu.DistPV0, "dist_pvz": mu.DistPVz, "chi2_ndof": mu.TrackChi2NDOF,
		})
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func checkFinite(errs map[string]string, prefix string, fields map[string]float64) {
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs[prefix+"."+name] = "must be finite"
		}
	}
}
