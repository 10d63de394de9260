package scheduling

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/db"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
)

// PgStore runs every unit of work as a serializable Postgres transaction.
type PgStore struct {
	pool   db.Pool
	policy db.TxPolicy
}

func NewPgStore(pool db.Pool, policy db.TxPolicy) *PgStore {
	return &PgStore{pool: pool, policy: policy}
}

func (s *PgStore) Atomic(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return db.RunInTx(ctx, s.pool, db.Serializable, s.policy, func(tx pgx.Tx) error {
		return fn(ctx, pgRepos(tx))
	})
}

func (s *PgStore) Ledger() AppointmentLedger {
	return &pgAppointments{q: s.pool}
}

func pgRepos(q db.Querier) Repos {
	return Repos{
		Inventory:    &pgInventory{q: q},
		Board:        &pgBoard{q: q},
		Appointments: &pgAppointments{q: q},
		Events:       &pgEvents{q: q},
	}
}

// Inventory

type pgInventory struct {
	q db.Querier
}

func (r *pgInventory) ReserveDose(ctx context.Context, vaccine string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE vaccines
		SET doses = doses - 1,
		    updated_at = now()
		WHERE name = $1
		  AND doses > 0
	`, vaccine)
	if err != nil {
		return fmt.Errorf("decrement doses: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vaccines WHERE name = $1)`, vaccine).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check vaccine: %w", err)
	}
	if !exists {
		return ErrVaccineNotFound
	}
	return ErrInsufficientStock
}

func (r *pgInventory) AddDoses(ctx context.Context, vaccine string, count int) (Vaccine, error) {
	var v Vaccine
	err := r.q.QueryRow(ctx, `
		INSERT INTO vaccines (name, doses, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET doses = vaccines.doses + EXCLUDED.doses,
		    updated_at = now()
		WHERE vaccines.doses <= $3 - EXCLUDED.doses
		RETURNING name, doses
	`, vaccine, count, MaxDoses).Scan(&v.Name, &v.AvailableDoses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vaccine{}, ErrDoseLimitExceeded
		}
		return Vaccine{}, fmt.Errorf("upsert vaccine: %w", err)
	}
	return v, nil
}

func (r *pgInventory) ListVaccines(ctx context.Context) ([]Vaccine, error) {
	rows, err := r.q.Query(ctx, `SELECT name, doses FROM vaccines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list vaccines: %w", err)
	}
	defer rows.Close()

	var result []Vaccine
	for rows.Next() {
		var v Vaccine
		if err := rows.Scan(&v.Name, &v.AvailableDoses); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// Availability

type pgBoard struct {
	q db.Querier
}

func (r *pgBoard) Publish(ctx context.Context, caregiver string, date time.Time) error {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO availabilities (username, date, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (username, date) DO NOTHING
	`, caregiver, date)
	if err != nil {
		return fmt.Errorf("insert availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyPublished
	}
	return nil
}

func (r *pgBoard) ClaimOneForDate(ctx context.Context, date time.Time) (string, error) {
	var caregiver string
	err := r.q.QueryRow(ctx, `
		SELECT username
		FROM availabilities
		WHERE date = $1
		ORDER BY username
		LIMIT 1
		FOR UPDATE
	`, date).Scan(&caregiver)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoneAvailable
		}
		return "", fmt.Errorf("claim availability: %w", err)
	}
	return caregiver, nil
}

func (r *pgBoard) Retract(ctx context.Context, caregiver string, date time.Time) error {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM availabilities
		WHERE username = $1
		  AND date = $2
	`, caregiver, date)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *pgBoard) ListForDate(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT username
		FROM availabilities
		WHERE date = $1
		ORDER BY username
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		result = append(result, username)
	}
	return result, rows.Err()
}

func (r *pgBoard) PruneBefore(ctx context.Context, date time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM availabilities WHERE date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("prune availability: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Appointments

type pgAppointments struct {
	q db.Querier
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.Date,
		&a.CaregiverUsername,
		&a.PatientUsername,
		&a.VaccineName,
		&a.CreatedAt,
	)
	return a, err
}

func (r *pgAppointments) Append(ctx context.Context, date time.Time, caregiver, patient, vaccine string) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO appointments (date, caregiver_username, patient_username, vaccine_name, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id
	`, date, caregiver, patient, vaccine).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert appointment: %w", err)
	}
	return id, nil
}

func (r *pgAppointments) HasAppointment(ctx context.Context, caregiver string, date time.Time) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE caregiver_username = $1
			  AND date = $2
		)
	`, caregiver, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check appointment: %w", err)
	}
	return exists, nil
}

func (r *pgAppointments) ListFor(ctx context.Context, username string, role identity.Role) iter.Seq2[Appointment, error] {
	return func(yield func(Appointment, error) bool) {
		var column string
		switch role {
		case identity.RolePatient:
			column = "patient_username"
		case identity.RoleCaregiver:
			column = "caregiver_username"
		default:
			yield(Appointment{}, fmt.Errorf("unknown role %q", role))
			return
		}

		rows, err := r.q.Query(ctx, `
			SELECT id, date, caregiver_username, patient_username, vaccine_name, created_at
			FROM appointments
			WHERE `+column+` = $1
			ORDER BY id
		`, username)
		if err != nil {
			yield(Appointment{}, fmt.Errorf("list appointments: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAppointment(rows)
			if !yield(a, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Appointment{}, err)
		}
	}
}

// Events

type pgEvents struct {
	q db.Querier
}

func (r *pgEvents) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO event_logs (event_type, payload, created_at)
		VALUES ($1, $2, COALESCE($3, now()))
	`, ev.EventType, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
