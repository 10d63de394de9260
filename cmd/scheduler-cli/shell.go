package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/apperr"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/scheduling"
)

const banner = `
Welcome to the COVID-19 Vaccine Reservation Scheduling Application!
*** Please enter one of the following commands ***
> create_patient <username> <password>
> create_caregiver <username> <password>
> login_patient <username> <password>
> login_caregiver <username> <password>
> search_caregiver_schedule <date>
> reserve <date> <vaccine>
> upload_availability <date>
> cancel <appointment_id>
> add_doses <vaccine> <number>
> show_appointments
> logout
> quit
`

// Shell is one interactive user. The logged-in session lives here and is
// passed to every operation.
type Shell struct {
	identity   *identity.Service
	scheduling *scheduling.Service
	out        io.Writer
	session    *identity.Session
}

func NewShell(ids *identity.Service, sched *scheduling.Service, out io.Writer) *Shell {
	return &Shell{identity: ids, scheduling: sched, out: out}
}

// Run reads commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprint(s.out, banner)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !s.Exec(ctx, scanner.Text()) {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the shell should go on.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		s.println("Please try again!")
		return true
	}

	args := tokens[1:]
	switch tokens[0] {
	case "create_patient":
		s.create(ctx, identity.RolePatient, args)
	case "create_caregiver":
		s.create(ctx, identity.RoleCaregiver, args)
	case "login_patient":
		s.login(ctx, identity.RolePatient, args)
	case "login_caregiver":
		s.login(ctx, identity.RoleCaregiver, args)
	case "search_caregiver_schedule":
		s.searchSchedule(ctx, args)
	case "reserve":
		s.reserve(ctx, args)
	case "upload_availability":
		s.uploadAvailability(ctx, args)
	case "cancel":
		s.println("Cancellation is not supported")
	case "add_doses":
		s.addDoses(ctx, args)
	case "show_appointments":
		s.showAppointments(ctx, args)
	case "logout":
		s.logout(args)
	case "quit":
		s.println("Bye!")
		return false
	default:
		s.println("Invalid operation name!")
	}
	return true
}

func (s *Shell) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Shell) fail(err error) {
	s.println(apperr.Message(err))
}

func (s *Shell) create(ctx context.Context, role identity.Role, args []string) {
	if len(args) != 2 {
		s.println("Failed to create user.")
		return
	}
	if err := s.identity.Register(ctx, role, args[0], args[1]); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			s.fail(err)
			return
		}
		s.println("Failed to create user.")
		return
	}
	s.println("Created user " + args[0])
}

func (s *Shell) login(ctx context.Context, role identity.Role, args []string) {
	if s.session.Authenticated() {
		s.println("User already logged in, try again")
		return
	}
	if len(args) != 2 {
		s.println("Login failed.")
		return
	}
	sess, err := s.identity.Login(ctx, role, args[0], args[1])
	if err != nil {
		s.println("Login failed.")
		return
	}
	s.session = sess
	s.println("Logged in as " + sess.Username)
}

func (s *Shell) searchSchedule(ctx context.Context, args []string) {
	if !s.session.Authenticated() {
		s.println("Please login first")
		return
	}
	if len(args) != 1 {
		s.println("Please try again")
		return
	}
	date, err := scheduling.ParseDate(args[0])
	if err != nil {
		s.fail(err)
		return
	}

	sched, err := s.scheduling.SearchSchedule(ctx, s.session, date)
	if err != nil {
		s.fail(err)
		return
	}

	if len(sched.Caregivers) == 0 {
		s.println("No caregiver is available")
	}
	for _, cg := range sched.Caregivers {
		s.println(cg)
	}
	if len(sched.Vaccines) == 0 {
		s.println("No vaccines available")
	}
	for _, v := range sched.Vaccines {
		s.println(v.Name, v.AvailableDoses)
	}
}

func (s *Shell) reserve(ctx context.Context, args []string) {
	if err := s.session.RequirePatient("reserve"); err != nil {
		s.fail(err)
		return
	}
	if len(args) != 2 {
		s.println("Please try again")
		return
	}
	date, err := scheduling.ParseDate(args[0])
	if err != nil {
		s.fail(err)
		return
	}

	res, err := s.scheduling.Reserve(ctx, s.session, date, args[1])
	if err != nil {
		s.fail(err)
		return
	}
	s.println(fmt.Sprintf("Appointment ID %d, Caregiver username %s", res.AppointmentID, res.CaregiverUsername))
}

func (s *Shell) uploadAvailability(ctx context.Context, args []string) {
	if err := s.session.RequireCaregiver("upload_availability"); err != nil {
		s.fail(err)
		return
	}
	if len(args) != 1 {
		s.println("Please try again!")
		return
	}
	date, err := scheduling.ParseDate(args[0])
	if err != nil {
		s.println("Please enter a valid date!")
		return
	}

	if err := s.scheduling.PublishAvailability(ctx, s.session, date); err != nil {
		s.fail(err)
		return
	}
	s.println("Availability uploaded!")
}

func (s *Shell) addDoses(ctx context.Context, args []string) {
	if err := s.session.RequireCaregiver("add_doses"); err != nil {
		s.fail(err)
		return
	}
	if len(args) != 2 {
		s.println("Please try again!")
		return
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		s.println("Please try again!")
		return
	}

	if _, err := s.scheduling.AddDoses(ctx, s.session, args[0], count); err != nil {
		if apperr.Is(err, apperr.KindInvalidInput) {
			s.fail(err)
			return
		}
		s.println("Error occurred when adding doses")
		return
	}
	s.println("Doses updated!")
}

func (s *Shell) showAppointments(ctx context.Context, args []string) {
	if len(args) != 0 {
		s.println("Please try again")
		return
	}
	seq, err := s.scheduling.ShowAppointments(ctx, s.session)
	if err != nil {
		s.fail(err)
		return
	}

	var lines []string
	for a, err := range seq {
		if err != nil {
			s.fail(err)
			return
		}
		other := a.PatientUsername
		if s.session.Role == identity.RolePatient {
			other = a.CaregiverUsername
		}
		lines = append(lines, fmt.Sprintf("%d %s %s %s", a.ID, a.VaccineName, scheduling.FormatDate(a.Date), other))
	}

	if len(lines) == 0 {
		s.println("No appointments")
		return
	}
	for _, l := range lines {
		s.println(l)
	}
}

func (s *Shell) logout(args []string) {
	if len(args) != 0 {
		s.println("Please try again")
		return
	}
	if !s.session.Authenticated() {
		s.println("Please login first")
		return
	}
	s.session = nil
	s.println("Successfully logged out")
}
