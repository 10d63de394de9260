package scheduling

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
)

var (
	ErrVaccineNotFound   = errors.New("vaccine not found")
	ErrInsufficientStock = errors.New("no doses left")
	ErrAlreadyPublished  = errors.New("availability already published")
	ErrNoneAvailable     = errors.New("no availability on date")
	ErrSlotNotFound      = errors.New("availability slot not found")
	ErrDoseLimitExceeded = errors.New("dose count would exceed limit")
)

// InventoryLedger owns per-vaccine dose counts. Counts never go below zero.
type InventoryLedger interface {
	// ReserveDose takes one dose as a single conditional decrement.
	ReserveDose(ctx context.Context, vaccine string) error
	// AddDoses creates the vaccine with count doses, or adds count to it.
	AddDoses(ctx context.Context, vaccine string, count int) (Vaccine, error)
	ListVaccines(ctx context.Context) ([]Vaccine, error)
}

// AvailabilityBoard owns the (caregiver, date) slots on offer.
type AvailabilityBoard interface {
	Publish(ctx context.Context, caregiver string, date time.Time) error
	// ClaimOneForDate returns the lexicographically smallest caregiver with a
	// slot on date and holds it for the rest of the transaction.
	ClaimOneForDate(ctx context.Context, date time.Time) (string, error)
	Retract(ctx context.Context, caregiver string, date time.Time) error
	ListForDate(ctx context.Context, date time.Time) ([]string, error)
	PruneBefore(ctx context.Context, date time.Time) (int64, error)
}

// AppointmentLedger is append-only. IDs come from the ledger, strictly
// increasing, and are never reused even when the enclosing transaction
// rolls back.
type AppointmentLedger interface {
	Append(ctx context.Context, date time.Time, caregiver, patient, vaccine string) (int64, error)
	HasAppointment(ctx context.Context, caregiver string, date time.Time) (bool, error)
	// ListFor runs a fresh query every time the sequence is ranged over.
	ListFor(ctx context.Context, username string, role identity.Role) iter.Seq2[Appointment, error]
}

type EventRecorder interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Repos is the set of repositories bound to one transaction.
type Repos struct {
	Inventory    InventoryLedger
	Board        AvailabilityBoard
	Appointments AppointmentLedger
	Events       EventRecorder
}

// Store is the durable transactional log behind the four components.
type Store interface {
	// Atomic runs fn in one transaction: all of fn's writes commit together
	// or none do.
	Atomic(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	// Ledger is a read view outside any caller transaction.
	Ledger() AppointmentLedger
}
