package attendance

import (
	"fmt"

	"github.com/gymdesk/gymdesk/internal/shared"
)

var (
	ErrRecordNotFound = fmt.Errorf("%w: attendance record", shared.ErrNotFound)
	ErrAlreadyMarked  = fmt.Errorf("%w: attendance already recorded for this day", shared.ErrConflict)
	ErrInvalidMark    = fmt.Errorf("%w: invalid attendance mark", shared.ErrBadRequest)
)

// Gate names one admission check of the self check-in pipeline.
type Gate string

const (
	GateIdentity      Gate = "identity"
	GateMembership    Gate = "membership"
	GateTrial         Gate = "trial"
	GateGeofence      Gate = "geofence"
	GateBatch         Gate = "batch_assignment"
	GateFacilityHours Gate = "facility_hours"
	GateBatchRunning  Gate = "batch_running"
	GateDuplicate     Gate = "duplicate"
)

// Rejection is a terminal check-in refusal. Kind is one of the shared error
// sentinels so transports can map it; Message is meant for the member.
type Rejection struct {
	Gate    Gate           `json:"gate"`
	Kind    error          `json:"-"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (r *Rejection) Error() string { return r.Message }

func (r *Rejection) Unwrap() error { return r.Kind }

func reject(gate Gate, kind error, data map[string]any, format string, args ...any) *Rejection {
	return &Rejection{Gate: gate, Kind: kind, Message: fmt.Sprintf(format, args...), Data: data}
}
