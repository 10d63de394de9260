package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/apperr"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/logging"
	redisclient "github.com/hackgods/vaccine-reservation-scheduling/internal/redis"
)

var errCaregiverBooked = errors.New("caregiver already booked on date")

type Service struct {
	store  Store
	locker redisclient.Locker
	now    func() time.Time
}

// NewService wires the coordinator. A nil locker disables the per-date
// Redis lock; the store transaction alone keeps reservations correct.
func NewService(store Store, locker redisclient.Locker) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	return &Service{
		store:  store,
		locker: locker,
		now:    time.Now,
	}
}

// Reserve books one dose of vaccine with the first available caregiver on
// date for the logged-in patient.
func (s *Service) Reserve(ctx context.Context, sess *identity.Session, date time.Time, vaccine string) (*Reservation, error) {
	const op = "reserve"

	if err := sess.RequirePatient(op); err != nil {
		return nil, err
	}
	vaccine = strings.TrimSpace(vaccine)
	if date.IsZero() || vaccine == "" {
		return nil, apperr.New(apperr.KindInvalidInput, op, "Please try again")
	}
	date = truncateDate(date)

	logger := logging.FromContext(ctx).With().
		Str("op", op).
		Str("patient", sess.Username).
		Str("date", FormatDate(date)).
		Str("vaccine", vaccine).
		Logger()

	var res *Reservation

	err := s.locker.WithDateLock(ctx, date, func(lockCtx context.Context) error {
		return s.store.Atomic(lockCtx, func(ctx context.Context, r Repos) error {
			// Attempts share nothing; a retried transaction starts clean.
			res = nil

			caregiver, err := r.Board.ClaimOneForDate(ctx, date)
			if err != nil {
				return err
			}

			booked, err := r.Appointments.HasAppointment(ctx, caregiver, date)
			if err != nil {
				return err
			}
			if booked {
				return errCaregiverBooked
			}

			if err := r.Inventory.ReserveDose(ctx, vaccine); err != nil {
				return err
			}

			id, err := r.Appointments.Append(ctx, date, caregiver, sess.Username, vaccine)
			if err != nil {
				return err
			}

			if err := r.Board.Retract(ctx, caregiver, date); err != nil {
				return fmt.Errorf("retract claimed slot: %w", err)
			}

			payload, _ := json.Marshal(map[string]any{
				"appointment_id": id,
				"date":           FormatDate(date),
				"caregiver":      caregiver,
				"patient":        sess.Username,
				"vaccine":        vaccine,
			})
			if err := r.Events.InsertEvent(ctx, EventLog{
				EventType: EventAppointmentReserved,
				Payload:   payload,
				CreatedAt: s.now(),
			}); err != nil {
				return err
			}

			res = &Reservation{AppointmentID: id, CaregiverUsername: caregiver}
			return nil
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNoneAvailable), errors.Is(err, errCaregiverBooked):
			logger.Info().Err(err).Msg("no caregiver available")
			return nil, apperr.Wrap(apperr.KindNoCaregiverAvailable, op, err)
		case errors.Is(err, ErrVaccineNotFound), errors.Is(err, ErrInsufficientStock):
			logger.Info().Err(err).Msg("not enough doses")
			return nil, apperr.Wrap(apperr.KindInsufficientStock, op, err)
		}
		logger.Error().Err(err).Msg("reservation failed")
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	}

	logger.Info().
		Int64("appointment_id", res.AppointmentID).
		Str("caregiver", res.CaregiverUsername).
		Msg("appointment reserved")
	return res, nil
}

// PublishAvailability offers the logged-in caregiver for date.
func (s *Service) PublishAvailability(ctx context.Context, sess *identity.Session, date time.Time) error {
	const op = "upload_availability"

	if err := sess.RequireCaregiver(op); err != nil {
		return err
	}
	if date.IsZero() {
		return apperr.New(apperr.KindInvalidInput, op, "Please enter a valid date!")
	}
	date = truncateDate(date)

	err := s.store.Atomic(ctx, func(ctx context.Context, r Repos) error {
		booked, err := r.Appointments.HasAppointment(ctx, sess.Username, date)
		if err != nil {
			return err
		}
		if booked {
			return ErrAlreadyPublished
		}
		if err := r.Board.Publish(ctx, sess.Username, date); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]any{
			"caregiver": sess.Username,
			"date":      FormatDate(date),
		})
		return r.Events.InsertEvent(ctx, EventLog{
			EventType: EventAvailabilityAdded,
			Payload:   payload,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyPublished) {
			return &apperr.Error{Kind: apperr.KindConflict, Op: op, Message: "Availability already uploaded for this date", Err: err}
		}
		logging.FromContext(ctx).Error().Err(err).Str("op", op).Msg("publish availability failed")
		return apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	}

	logging.FromContext(ctx).Info().
		Str("caregiver", sess.Username).
		Str("date", FormatDate(date)).
		Msg("availability published")
	return nil
}

// AddDoses creates the vaccine or raises its stock by count.
func (s *Service) AddDoses(ctx context.Context, sess *identity.Session, vaccine string, count int) (*Vaccine, error) {
	const op = "add_doses"

	if err := sess.RequireCaregiver(op); err != nil {
		return nil, err
	}
	vaccine = strings.TrimSpace(vaccine)
	if vaccine == "" || count < 0 {
		return nil, apperr.New(apperr.KindInvalidInput, op, "Please try again!")
	}
	if count > MaxDoses {
		return nil, apperr.New(apperr.KindInvalidInput, op, fmt.Sprintf("At most %d doses can be stocked", MaxDoses))
	}

	var updated Vaccine
	err := s.store.Atomic(ctx, func(ctx context.Context, r Repos) error {
		v, err := r.Inventory.AddDoses(ctx, vaccine, count)
		if err != nil {
			return err
		}
		updated = v

		payload, _ := json.Marshal(map[string]any{
			"vaccine": vaccine,
			"added":   count,
			"doses":   v.AvailableDoses,
		})
		return r.Events.InsertEvent(ctx, EventLog{
			EventType: EventDosesAdded,
			Payload:   payload,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		if errors.Is(err, ErrDoseLimitExceeded) {
			return nil, &apperr.Error{Kind: apperr.KindInvalidInput, Op: op, Message: fmt.Sprintf("At most %d doses can be stocked", MaxDoses), Err: err}
		}
		logging.FromContext(ctx).Error().Err(err).Str("op", op).Msg("add doses failed")
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	}

	return &updated, nil
}

// SearchSchedule lists caregivers offering date and the current stock.
func (s *Service) SearchSchedule(ctx context.Context, sess *identity.Session, date time.Time) (*Schedule, error) {
	const op = "search_caregiver_schedule"

	if err := sess.RequireAny(op); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, apperr.New(apperr.KindInvalidInput, op, "Please try again")
	}
	date = truncateDate(date)

	sched := &Schedule{Date: date}
	err := s.store.Atomic(ctx, func(ctx context.Context, r Repos) error {
		caregivers, err := r.Board.ListForDate(ctx, date)
		if err != nil {
			return err
		}
		vaccines, err := r.Inventory.ListVaccines(ctx)
		if err != nil {
			return err
		}
		sched.Caregivers = caregivers
		sched.Vaccines = vaccines
		return nil
	})
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Str("op", op).Msg("search schedule failed")
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	}
	return sched, nil
}

// ShowAppointments returns the caller's appointments in creation order.
// Every range over the result re-reads the ledger.
func (s *Service) ShowAppointments(ctx context.Context, sess *identity.Session) (iter.Seq2[Appointment, error], error) {
	const op = "show_appointments"

	if err := sess.RequireAny(op); err != nil {
		return nil, err
	}

	seq := s.store.Ledger().ListFor(ctx, sess.Username, sess.Role)
	return func(yield func(Appointment, error) bool) {
		for a, err := range seq {
			if err != nil {
				yield(Appointment{}, apperr.Wrap(apperr.KindStoreUnavailable, op, err))
				return
			}
			if !yield(a, nil) {
				return
			}
		}
	}, nil
}

// PruneAvailability removes slots dated strictly before the given day.
func (s *Service) PruneAvailability(ctx context.Context, before time.Time) (int64, error) {
	const op = "prune_availability"

	before = truncateDate(before)

	var removed int64
	err := s.store.Atomic(ctx, func(ctx context.Context, r Repos) error {
		n, err := r.Board.PruneBefore(ctx, before)
		if err != nil {
			return err
		}
		removed = n
		if n == 0 {
			return nil
		}
		payload, _ := json.Marshal(map[string]any{
			"before":  FormatDate(before),
			"removed": n,
		})
		return r.Events.InsertEvent(ctx, EventLog{
			EventType: EventAvailabilityPruned,
			Payload:   payload,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	}
	return removed, nil
}
