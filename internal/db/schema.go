package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS caregivers (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS vaccines (
		name       TEXT PRIMARY KEY,
		doses      INTEGER NOT NULL CHECK (doses >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS availabilities (
		username   TEXT NOT NULL REFERENCES caregivers (username),
		date       DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (username, date)
	)`,
	`CREATE INDEX IF NOT EXISTS availabilities_date_username_idx ON availabilities (date, username)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id                 BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		date               DATE NOT NULL,
		caregiver_username TEXT NOT NULL REFERENCES caregivers (username),
		patient_username   TEXT NOT NULL REFERENCES patients (username),
		vaccine_name       TEXT NOT NULL REFERENCES vaccines (name),
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (caregiver_username, date)
	)`,
	`CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_username, id)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id         BIGSERIAL PRIMARY KEY,
		event_type TEXT NOT NULL,
		payload    JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the tables if they do not exist. Safe to run on every start.
func Migrate(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
