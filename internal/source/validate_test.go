package source

import (
	"math"
	"strings"
	"testing"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
)

func TestValidateAcceptsNominalEvent(t *testing.T) {
	ev := &event.Event{
		Electrons: []event.Electron{{Pt: -30, Eta: 0.5, Phi: 1.0, Iso03: 0.05}},
		Muons:     []event.Muon{{Pt: 25, Eta: -0.8, Phi: -2.0, Iso03: 0.1, HitsValid: 14, HitsPixel: 3}},
	}
	if err := Validate(ev, 0); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
}

func TestValidateRejectsExcessMultiplicity(t *testing.T) {
	ev := &event.Event{Electrons: make([]event.Electron, 5)}
	err := Validate(ev, 4)
	if err == nil {
		t.Fatal("expected multiplicity error")
	}
	if !strings.Contains(err.Error(), "electrons") {
		t.Errorf("error %q does not name the electrons field", err)
	}
}

func TestValidateRejectsNonFiniteKinematics(t *testing.T) {
	cases := []struct {
		name  string
		ev    *event.Event
		field string
	}{
		{
			"NaN electron pt",
			&event.Event{Electrons: []event.Electron{{Pt: math.NaN()}}},
			"electrons[0].pt",
		},
		{
			"Inf muon eta",
			&event.Event{Muons: []event.Muon{{Pt: 25, Eta: math.Inf(1)}}},
			"muons[0].eta",
		},
		{
			"NaN muon impact parameter",
			&event.Event{Muons: []event.Muon{{Pt: 25, DistPV0: math.NaN()}}},
			"muons[0].dist_pv0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.ev, 0)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not name %s", err, tc.field)
			}
		})
	}
}

func TestDecodeEventValidates(t *testing.T) {
	// Decode succeeds but validation trips the multiplicity cap.
	data := []byte(`{"run":1,"electrons":[{"pt":1},{"pt":2},{"pt":3}],"muons":[]}`)
	if _, err := DecodeEvent(data, 2); err == nil {
		t.Error("expected validation error from DecodeEvent")
	}
	if ev, err := DecodeEvent(data, 3); err != nil || len(ev.Electrons) != 3 {
		t.Errorf("DecodeEvent = (%v, %v), want 3 electrons and nil error", ev, err)
	}
}
