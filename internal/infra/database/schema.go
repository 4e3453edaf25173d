package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create the tables used by the repositories. They are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS children (
		id                 BIGSERIAL PRIMARY KEY,
		parent_telegram_id BIGINT      NOT NULL,
		name               VARCHAR(100) NOT NULL,
		birth_date         DATE        NOT NULL,
		gender             VARCHAR(10) NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS children_parent_idx ON children (parent_telegram_id)`,
	`CREATE TABLE IF NOT EXISTS vaccination_schedules (
		id                BIGSERIAL PRIMARY KEY,
		child_id          BIGINT       NOT NULL REFERENCES children (id) ON DELETE CASCADE,
		vaccine_id        INTEGER      NOT NULL,
		vaccine_name      VARCHAR(100) NOT NULL,
		disease           VARCHAR(200) NOT NULL,
		dose_number       INTEGER      NOT NULL,
		age_description   VARCHAR(100) NOT NULL DEFAULT '',
		vaccination_date  DATE         NOT NULL,
		notification_date DATE         NOT NULL,
		is_mandatory      BOOLEAN      NOT NULL DEFAULT FALSE,
		is_annual         BOOLEAN      NOT NULL DEFAULT FALSE,
		notes             TEXT         NOT NULL DEFAULT '',
		age_range_end     INTEGER,
		is_completed      BOOLEAN      NOT NULL DEFAULT FALSE,
		completed_date    DATE,
		created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		CONSTRAINT child_vaccine_dose_unique UNIQUE (child_id, vaccine_id, dose_number)
	)`,
	`CREATE TABLE IF NOT EXISTS vaccination_notifications (
		id                BIGSERIAL PRIMARY KEY,
		schedule_id       BIGINT      NOT NULL REFERENCES vaccination_schedules (id) ON DELETE CASCADE,
		notification_date DATE        NOT NULL,
		status            VARCHAR(20) NOT NULL DEFAULT 'pending',
		due_at            TIMESTAMPTZ,
		read_at           TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS vaccination_notifications_status_date_idx
		ON vaccination_notifications (status, notification_date)`,
	`ALTER TABLE vaccination_notifications ADD COLUMN IF NOT EXISTS read_at TIMESTAMPTZ`,
}

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
