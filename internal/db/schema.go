package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the full DDL for the scheduling database. The exclusion
// constraint on appointments is the storage-level backstop for the
// no-double-booking invariant: even if two writers slip past the
// application-level check, only one commit wins.
const Schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS patients (
    id            uuid PRIMARY KEY,
    full_name     text NOT NULL,
    phone         text NOT NULL UNIQUE,
    email         text,
    id_last_four  text,
    created_at    timestamptz NOT NULL DEFAULT now(),
    updated_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS doctors (
    id             uuid PRIMARY KEY,
    name           text NOT NULL,
    specialization text NOT NULL DEFAULT '',
    status         text NOT NULL DEFAULT 'active',
    service_ids    uuid[] NOT NULL DEFAULT '{}',
    created_at     timestamptz NOT NULL DEFAULT now(),
    updated_at     timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS doctor_working_hours (
    doctor_id  uuid NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
    weekday    int NOT NULL CHECK (weekday BETWEEN 0 AND 6),
    start_time text NOT NULL,
    end_time   text NOT NULL
);

CREATE TABLE IF NOT EXISTS services (
    id               uuid PRIMARY KEY,
    category         text NOT NULL DEFAULT '',
    name             text NOT NULL,
    duration_minutes int NOT NULL CHECK (duration_minutes > 0),
    active           boolean NOT NULL DEFAULT true,
    created_at       timestamptz NOT NULL DEFAULT now(),
    updated_at       timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS clinic_settings (
    id                           int PRIMARY KEY CHECK (id = 1),
    min_service_duration_minutes int NOT NULL,
    max_service_duration_minutes int NOT NULL,
    slot_granularity_minutes     int NOT NULL,
    updated_at                   timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS appointments (
    id                uuid PRIMARY KEY,
    patient_id        uuid NOT NULL REFERENCES patients(id),
    doctor_id         uuid NOT NULL REFERENCES doctors(id),
    service_id        uuid NOT NULL REFERENCES services(id),
    start_at          timestamptz NOT NULL,
    end_at            timestamptz NOT NULL CHECK (end_at > start_at),
    status            text NOT NULL,
    notes             text NOT NULL DEFAULT '',
    calendar_event_id text,
    created_by        uuid,
    updated_by        uuid,
    created_at        timestamptz NOT NULL DEFAULT now(),
    updated_at        timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT appointments_no_doctor_overlap
        EXCLUDE USING gist (doctor_id WITH =, tstzrange(start_at, end_at) WITH &&)
        WHERE (status <> 'cancelled')
);

CREATE INDEX IF NOT EXISTS idx_appointments_doctor_start ON appointments (doctor_id, start_at);
CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments (patient_id);
CREATE INDEX IF NOT EXISTS idx_appointments_status_end ON appointments (status, end_at);
`

// EnsureSchema applies the DDL. Idempotent; run by cmd/seed before seeding.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
