package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/apperr"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/scheduling"
)

type handlers struct {
	identity   *identity.Service
	sessions   identity.SessionStore
	scheduling *scheduling.Service
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func (h *handlers) register(role identity.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CredentialsRequest
		if !decode(w, r, &req) {
			return
		}

		if err := h.identity.Register(r.Context(), role, req.Username, req.Password); err != nil {
			writeAppError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, AccountResponse{Username: req.Username, Role: string(role)})
	}
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if SessionFrom(r.Context()).Authenticated() {
		writeAppError(w, r, apperr.New(apperr.KindConflict, "login", "User already logged in, try again"))
		return
	}

	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	role, err := identity.ParseRole(req.Role)
	if err != nil {
		writeAppError(w, r, apperr.Wrap(apperr.KindInvalidInput, "login", err))
		return
	}

	sess, err := h.identity.Login(r.Context(), role, req.Username, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	token, err := h.sessions.Create(r.Context(), *sess)
	if err != nil {
		writeAppError(w, r, apperr.Wrap(apperr.KindStoreUnavailable, "login", err))
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{
		Token:    token,
		Username: sess.Username,
		Role:     string(sess.Role),
	})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := SessionFrom(r.Context()).RequireAny("logout"); err != nil {
		writeAppError(w, r, err)
		return
	}

	err := h.sessions.Delete(r.Context(), tokenFrom(r.Context()))
	if err != nil && !errors.Is(err, identity.ErrSessionNotFound) {
		writeAppError(w, r, apperr.Wrap(apperr.KindStoreUnavailable, "logout", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) searchSchedule(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	if err := sess.RequireAny("search_caregiver_schedule"); err != nil {
		writeAppError(w, r, err)
		return
	}

	date, err := scheduling.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	sched, err := h.scheduling.SearchSchedule(r.Context(), sess, date)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	resp := ScheduleResponse{
		Date:       scheduling.FormatDate(sched.Date),
		Caregivers: make([]string, 0, len(sched.Caregivers)),
		Vaccines:   make([]VaccineResponse, 0, len(sched.Vaccines)),
	}
	resp.Caregivers = append(resp.Caregivers, sched.Caregivers...)
	for _, v := range sched.Vaccines {
		resp.Vaccines = append(resp.Vaccines, VaccineResponse{Name: v.Name, AvailableDoses: v.AvailableDoses})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) reserve(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	if err := sess.RequirePatient("reserve"); err != nil {
		writeAppError(w, r, err)
		return
	}

	var req ReserveRequest
	if !decode(w, r, &req) {
		return
	}

	date, err := scheduling.ParseDate(req.Date)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	res, err := h.scheduling.Reserve(r.Context(), sess, date, req.Vaccine)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ReservationResponse{
		AppointmentID:     res.AppointmentID,
		CaregiverUsername: res.CaregiverUsername,
		Message:           fmt.Sprintf("Appointment ID %d, Caregiver username %s", res.AppointmentID, res.CaregiverUsername),
	})
}

func (h *handlers) publishAvailability(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	if err := sess.RequireCaregiver("upload_availability"); err != nil {
		writeAppError(w, r, err)
		return
	}

	var req AvailabilityRequest
	if !decode(w, r, &req) {
		return
	}

	date, err := scheduling.ParseDate(req.Date)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	if err := h.scheduling.PublishAvailability(r.Context(), sess, date); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AvailabilityResponse{
		CaregiverUsername: sess.Username,
		Date:              scheduling.FormatDate(date),
	})
}

func (h *handlers) addDoses(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	if err := sess.RequireCaregiver("add_doses"); err != nil {
		writeAppError(w, r, err)
		return
	}

	var req AddDosesRequest
	if !decode(w, r, &req) {
		return
	}

	v, err := h.scheduling.AddDoses(r.Context(), sess, chi.URLParam(r, "name"), req.Count)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, VaccineResponse{Name: v.Name, AvailableDoses: v.AvailableDoses})
}

func (h *handlers) showAppointments(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())

	seq, err := h.scheduling.ShowAppointments(r.Context(), sess)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	resp := make([]AppointmentResponse, 0)
	for a, err := range seq {
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		item := AppointmentResponse{
			ID:          a.ID,
			VaccineName: a.VaccineName,
			Date:        scheduling.FormatDate(a.Date),
		}
		if sess.Role == identity.RolePatient {
			item.CaregiverUsername = a.CaregiverUsername
		} else {
			item.PatientUsername = a.PatientUsername
		}
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, resp)
}
