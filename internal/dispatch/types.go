package dispatch

import (
	"context"
	"time"

	"github.com/Mrhamza01/prlabel/internal/domain"
)

// FulfillmentGateway persists the "shipped" update for a whole shipment.
// A returned error covers transport failures, non-2xx responses and
// success:false bodies alike.
type FulfillmentGateway interface {
	UpdateShipment(ctx context.Context, shipmentID string) error
}

// PrintGateway sends shipping labels to the station printer
type PrintGateway interface {
	PrintLabel(ctx context.Context, shipmentID string) error
	GenerateAndPrintLabel(ctx context.Context, shipmentID string) error
}

// Outcome is the result of resolving one scan
type Outcome string

const (
	OutcomeBusy                     Outcome = "busy"
	OutcomeCleared                  Outcome = "cleared"
	OutcomeNoMatch                  Outcome = "no_match"
	OutcomeBlockedDuplicateShipment Outcome = "blocked_duplicate_shipment"
	OutcomeAlreadyComplete          Outcome = "already_complete"
	OutcomeDuplicateInFlight        Outcome = "duplicate_in_flight"
	OutcomeUpdateFailed             Outcome = "update_failed"
	OutcomePrinted                  Outcome = "printed"
	OutcomePrintSkipped             Outcome = "print_skipped"
	OutcomePrintFailed              Outcome = "print_failed"
)

func (o Outcome) String() string { return string(o) }

// Result describes what one ResolveScan call did
type Result struct {
	Outcome    Outcome
	UPC        string
	Line       *domain.Line
	ShipmentID string
	Err        error
}

// State is the position of the session in the scan resolution cycle
type State string

const (
	StateIdle      State = "idle"
	StateResolving State = "resolving"
	StateBlocked   State = "blocked"
	StateUpdating  State = "updating"
	StatePrinting  State = "printing"
	StateSettled   State = "settled"
	StateError     State = "error"
)

// Level grades a user facing notice
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a message for the operator
type Notice struct {
	Level   Level
	Message string
	At      time.Time
}

// Snapshot is a copy of the session state safe to read without the lock
type Snapshot struct {
	PickListID int64
	State      State
	Checking   bool
	Search     string
	MatchedUPC string
	Lines      []domain.Line
	Checked    map[int64]bool
	Printed    map[string]bool
	InFlight   []string
	Loading    []string
}

// IsChecked reports whether the line is in the checked set
func (s Snapshot) IsChecked(lineID int64) bool { return s.Checked[lineID] }

// IsPrinted reports whether the shipment label was printed this session
func (s Snapshot) IsPrinted(shipmentID string) bool { return s.Printed[shipmentID] }

// IsLoading reports whether a group print for the shipment is running
func (s Snapshot) IsLoading(shipmentID string) bool {
	for _, id := range s.Loading {
		if id == shipmentID {
			return true
		}
	}
	return false
}
