package scheduling

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
)

type memState struct {
	doses        map[string]int
	slots        map[AvailabilitySlot]struct{}
	appointments []Appointment
	events       []EventLog
}

func (st *memState) clone() *memState {
	return &memState{
		doses:        maps.Clone(st.doses),
		slots:        maps.Clone(st.slots),
		appointments: append([]Appointment(nil), st.appointments...),
		events:       append([]EventLog(nil), st.events...),
	}
}

// MemoryStore keeps everything in process. Atomic holds one lock for the
// whole unit of work and swaps in the working copy only when fn succeeds,
// so units of work are serial and all-or-nothing.
type MemoryStore struct {
	mu     sync.Mutex
	state  *memState
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			doses: make(map[string]int),
			slots: make(map[AvailabilitySlot]struct{}),
		},
	}
}

func (s *MemoryStore) Atomic(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, state: s.state.clone()}
	if err := fn(ctx, tx.repos()); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *MemoryStore) Ledger() AppointmentLedger {
	return &memReader{store: s}
}

// Doses reports the current stock of vaccine.
func (s *MemoryStore) Doses(vaccine string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.state.doses[vaccine]
	return n, ok
}

// HasSlot reports whether caregiver still offers date.
func (s *MemoryStore) HasSlot(caregiver string, date time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.slots[AvailabilitySlot{CaregiverUsername: caregiver, Date: truncateDate(date)}]
	return ok
}

// Appointments returns a copy of every appointment in creation order.
func (s *MemoryStore) Appointments() []Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Appointment(nil), s.state.appointments...)
}

// Events returns a copy of the committed event log.
func (s *MemoryStore) Events() []EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EventLog(nil), s.state.events...)
}

// memTx implements every repository against one working copy.
type memTx struct {
	store *MemoryStore
	state *memState
}

func (t *memTx) repos() Repos {
	return Repos{Inventory: t, Board: t, Appointments: t, Events: t}
}

func (t *memTx) ReserveDose(_ context.Context, vaccine string) error {
	n, ok := t.state.doses[vaccine]
	if !ok {
		return ErrVaccineNotFound
	}
	if n <= 0 {
		return ErrInsufficientStock
	}
	t.state.doses[vaccine] = n - 1
	return nil
}

func (t *memTx) AddDoses(_ context.Context, vaccine string, count int) (Vaccine, error) {
	if count < 0 {
		return Vaccine{}, fmt.Errorf("negative dose count %d", count)
	}
	if count > MaxDoses-t.state.doses[vaccine] {
		return Vaccine{}, ErrDoseLimitExceeded
	}
	t.state.doses[vaccine] += count
	return Vaccine{Name: vaccine, AvailableDoses: t.state.doses[vaccine]}, nil
}

func (t *memTx) ListVaccines(_ context.Context) ([]Vaccine, error) {
	result := make([]Vaccine, 0, len(t.state.doses))
	for name, n := range t.state.doses {
		result = append(result, Vaccine{Name: name, AvailableDoses: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (t *memTx) Publish(_ context.Context, caregiver string, date time.Time) error {
	k := AvailabilitySlot{CaregiverUsername: caregiver, Date: truncateDate(date)}
	if _, ok := t.state.slots[k]; ok {
		return ErrAlreadyPublished
	}
	t.state.slots[k] = struct{}{}
	return nil
}

func (t *memTx) ClaimOneForDate(ctx context.Context, date time.Time) (string, error) {
	caregivers, _ := t.ListForDate(ctx, date)
	if len(caregivers) == 0 {
		return "", ErrNoneAvailable
	}
	return caregivers[0], nil
}

func (t *memTx) Retract(_ context.Context, caregiver string, date time.Time) error {
	k := AvailabilitySlot{CaregiverUsername: caregiver, Date: truncateDate(date)}
	if _, ok := t.state.slots[k]; !ok {
		return ErrSlotNotFound
	}
	delete(t.state.slots, k)
	return nil
}

func (t *memTx) ListForDate(_ context.Context, date time.Time) ([]string, error) {
	date = truncateDate(date)
	var result []string
	for k := range t.state.slots {
		if k.Date.Equal(date) {
			result = append(result, k.CaregiverUsername)
		}
	}
	sort.Strings(result)
	return result, nil
}

func (t *memTx) PruneBefore(_ context.Context, date time.Time) (int64, error) {
	date = truncateDate(date)
	var n int64
	for k := range t.state.slots {
		if k.Date.Before(date) {
			delete(t.state.slots, k)
			n++
		}
	}
	return n, nil
}

// Append draws its ID from the store-wide counter, which is not part of the
// working copy: a rolled-back unit of work leaves a gap, never a reuse.
func (t *memTx) Append(_ context.Context, date time.Time, caregiver, patient, vaccine string) (int64, error) {
	date = truncateDate(date)
	for _, a := range t.state.appointments {
		if a.CaregiverUsername == caregiver && a.Date.Equal(date) {
			return 0, fmt.Errorf("caregiver %s already booked on %s", caregiver, FormatDate(date))
		}
	}
	t.store.nextID++
	a := Appointment{
		ID:                t.store.nextID,
		Date:              date,
		CaregiverUsername: caregiver,
		PatientUsername:   patient,
		VaccineName:       vaccine,
		CreatedAt:         time.Now(),
	}
	t.state.appointments = append(t.state.appointments, a)
	return a.ID, nil
}

func (t *memTx) HasAppointment(_ context.Context, caregiver string, date time.Time) (bool, error) {
	date = truncateDate(date)
	for _, a := range t.state.appointments {
		if a.CaregiverUsername == caregiver && a.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ListFor(_ context.Context, username string, role identity.Role) iter.Seq2[Appointment, error] {
	return listAppointments(t.state.appointments, username, role)
}

func (t *memTx) InsertEvent(_ context.Context, ev EventLog) error {
	ev.ID = int64(len(t.state.events) + 1)
	t.state.events = append(t.state.events, ev)
	return nil
}

// memReader reads committed appointments outside any unit of work.
type memReader struct {
	store *MemoryStore
}

func (r *memReader) Append(ctx context.Context, date time.Time, caregiver, patient, vaccine string) (int64, error) {
	var id int64
	err := r.store.Atomic(ctx, func(ctx context.Context, repos Repos) error {
		var err error
		id, err = repos.Appointments.Append(ctx, date, caregiver, patient, vaccine)
		return err
	})
	return id, err
}

func (r *memReader) HasAppointment(ctx context.Context, caregiver string, date time.Time) (bool, error) {
	var booked bool
	err := r.store.Atomic(ctx, func(ctx context.Context, repos Repos) error {
		var err error
		booked, err = repos.Appointments.HasAppointment(ctx, caregiver, date)
		return err
	})
	return booked, err
}

func (r *memReader) ListFor(ctx context.Context, username string, role identity.Role) iter.Seq2[Appointment, error] {
	return func(yield func(Appointment, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(Appointment{}, err)
			return
		}
		for a, err := range listAppointments(r.store.Appointments(), username, role) {
			if !yield(a, err) {
				return
			}
		}
	}
}

func listAppointments(all []Appointment, username string, role identity.Role) iter.Seq2[Appointment, error] {
	return func(yield func(Appointment, error) bool) {
		for _, a := range all {
			var who string
			switch role {
			case identity.RolePatient:
				who = a.PatientUsername
			case identity.RoleCaregiver:
				who = a.CaregiverUsername
			default:
				yield(Appointment{}, fmt.Errorf("unknown role %q", role))
				return
			}
			if who != username {
				continue
			}
			if !yield(a, nil) {
				return
			}
		}
	}
}
