package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// schema holds the PostgreSQL schema, applied idempotently at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS hospitals (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		short_name TEXT NOT NULL DEFAULT '',
		website TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS wards (
		id BIGSERIAL PRIMARY KEY,
		hospital_id BIGINT NOT NULL REFERENCES hospitals(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		sort SMALLINT,
		nurse_telephone TEXT,
		surgeon_telephone TEXT,
		UNIQUE (hospital_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS operating_rooms (
		id BIGSERIAL PRIMARY KEY,
		hospital_id BIGINT NOT NULL REFERENCES hospitals(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		sort SMALLINT,
		UNIQUE (hospital_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS message_types (
		id BIGSERIAL PRIMARY KEY,
		hospital_id BIGINT NOT NULL REFERENCES hospitals(id) ON DELETE CASCADE,
		code TEXT UNIQUE NOT NULL,
		source_role TEXT NOT NULL CHECK (source_role IN ('Nurse', 'Surgeon', 'Anesthetist')),
		target_role TEXT NOT NULL CHECK (target_role IN ('Nurse', 'Surgeon', 'Anesthetist')),
		short_description_en TEXT NOT NULL DEFAULT '',
		full_description_en TEXT NOT NULL DEFAULT '',
		short_description_pl TEXT NOT NULL DEFAULT '',
		full_description_pl TEXT NOT NULL DEFAULT '',
		button_color TEXT NOT NULL DEFAULT 'danger',
		display_order INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS message_logs (
		id BIGSERIAL PRIMARY KEY,
		hospital_id BIGINT REFERENCES hospitals(id) ON DELETE CASCADE,
		sender_role TEXT NOT NULL CHECK (sender_role IN ('Nurse', 'Surgeon', 'Anesthetist')),
		recipient_role TEXT NOT NULL CHECK (recipient_role IN ('Nurse', 'Surgeon', 'Anesthetist')),
		message_type TEXT NOT NULL,
		content TEXT NOT NULL,
		operating_room_id BIGINT NOT NULL REFERENCES operating_rooms(id),
		ward_id BIGINT NOT NULL REFERENCES wards(id),
		recipient_count INT NOT NULL DEFAULT 0,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		acknowledged_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_message_logs_sent_at
		ON message_logs (ward_id, sent_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_message_logs_unacked
		ON message_logs (recipient_role, ward_id)
		WHERE acknowledged_at IS NULL`,
}

// RunMigrations applies the schema to the target database.
func RunMigrations(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	for _, stmt := range schema {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
