// Package source provides event-record input for the selection pipeline:
// an NDJSON file reader with transparent gzip/zstd decompression, and the
// shared decode-and-validate path used by both the file and Kafka sources.
// Validation here is what upholds the selection core's preconditions; events
// handed out by this package are safe to feed to the selectors unchecked.
package source

import (
	"encoding/json"
	"fmt"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
	pkgerrors "github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/errors"
)

// DefaultMaxLeptons caps the per-species candidate multiplicity. Real
// events carry a handful of leptons; anything near the cap is corrupt input.
const DefaultMaxLeptons = 64

// DecodeEvent unmarshals one NDJSON-encoded event record and validates it.
// maxLeptons <= 0 selects DefaultMaxLeptons.
func DecodeEvent(data []byte, maxLeptons int) (*event.Event, error) {
	var ev event.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidRecord, err)
	}
	if err := Validate(&ev, maxLeptons); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidRecord, err)
	}
	return &ev, nil
}
