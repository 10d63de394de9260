package scheduling

import (
	"math"
	"strings"
	"time"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/apperr"
)

// DateLayout is the only accepted calendar date format.
const DateLayout = "2006-01-02"

const (
	EventAppointmentReserved = "APPOINTMENT_RESERVED"
	EventAvailabilityAdded   = "AVAILABILITY_PUBLISHED"
	EventDosesAdded          = "DOSES_ADDED"
	EventAvailabilityPruned  = "AVAILABILITY_PRUNED"
)

// MaxDoses bounds a vaccine's stock; it is the largest value the doses
// column holds.
const MaxDoses = math.MaxInt32

type Vaccine struct {
	Name           string
	AvailableDoses int
}

// AvailabilitySlot is one caregiver offering one calendar date.
type AvailabilitySlot struct {
	CaregiverUsername string
	Date              time.Time
}

type Appointment struct {
	ID                int64
	Date              time.Time
	CaregiverUsername string
	PatientUsername   string
	VaccineName       string
	CreatedAt         time.Time
}

// Reservation is what a successful reserve returns.
type Reservation struct {
	AppointmentID     int64
	CaregiverUsername string
}

// Schedule is the read-only view for one date.
type Schedule struct {
	Date       time.Time
	Caregivers []string
	Vaccines   []Vaccine
}

type EventLog struct {
	ID        int64
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// ParseDate parses YYYY-MM-DD into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.KindInvalidInput, "parse_date", err)
	}
	return d, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
