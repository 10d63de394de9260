package api

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type AccountResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type SessionResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type ReserveRequest struct {
	Date    string `json:"date"`
	Vaccine string `json:"vaccine"`
}

type ReservationResponse struct {
	AppointmentID     int64  `json:"appointment_id"`
	CaregiverUsername string `json:"caregiver_username"`
	Message           string `json:"message"`
}

type AvailabilityRequest struct {
	Date string `json:"date"`
}

type AvailabilityResponse struct {
	CaregiverUsername string `json:"caregiver_username"`
	Date              string `json:"date"`
}

type AddDosesRequest struct {
	Count int `json:"count"`
}

type VaccineResponse struct {
	Name           string `json:"name"`
	AvailableDoses int    `json:"available_doses"`
}

type ScheduleResponse struct {
	Date       string            `json:"date"`
	Caregivers []string          `json:"caregivers"`
	Vaccines   []VaccineResponse `json:"vaccines"`
}

// AppointmentResponse carries the other party only: patients see the
// caregiver, caregivers see the patient.
type AppointmentResponse struct {
	ID                int64  `json:"appointment_id"`
	VaccineName       string `json:"vaccine_name"`
	Date              string `json:"date"`
	CaregiverUsername string `json:"caregiver_username,omitempty"`
	PatientUsername   string `json:"patient_username,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
