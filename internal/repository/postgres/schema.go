package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enrollhub/enrollment-service/pkg/logger"
)

const offeringsTable = `
	CREATE TABLE IF NOT EXISTS offerings (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL CHECK (kind IN ('test', 'course')),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC(12,2) NOT NULL,
		start_at TIMESTAMPTZ NOT NULL,
		end_at TIMESTAMPTZ NOT NULL,
		registration_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`

const registrationsTable = `
	CREATE TABLE IF NOT EXISTS registrations (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		offering_kind TEXT NOT NULL CHECK (offering_kind IN ('test', 'course')),
		offering_id UUID NOT NULL,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'cancelled')),
		created_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,

		CONSTRAINT registrations_user_offering_key
			UNIQUE (user_id, offering_kind, offering_id)
	);`

const paymentsTable = `
	CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		registration_id UUID NOT NULL,
		target_kind TEXT NOT NULL CHECK (target_kind IN ('test', 'course')),
		target_id UUID NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		method TEXT NOT NULL CHECK (method IN ('kakaopay', 'card', 'bank_transfer')),
		external_ref TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'paid' CHECK (status IN ('paid', 'cancelled')),
		refund_reason TEXT NOT NULL DEFAULT '',
		paid_at TIMESTAMPTZ NOT NULL,
		cancelled_at TIMESTAMPTZ,

		CONSTRAINT fk_registration
			FOREIGN KEY (registration_id)
			REFERENCES registrations(id)
	);`

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_registrations_offering
		ON registrations (offering_kind, offering_id);`,
	`CREATE INDEX IF NOT EXISTS idx_payments_user
		ON payments (user_id, paid_at DESC);`,
}

// Migrate создает таблицы и индексы, если их еще нет
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	tables := []struct {
		name string
		ddl  string
	}{
		{"offerings", offeringsTable},
		{"registrations", registrationsTable},
		{"payments", paymentsTable},
	}

	// Таблицы создаются по порядку из-за внешних ключей
	for _, t := range tables {
		if _, err := pool.Exec(ctx, t.ddl); err != nil {
			return fmt.Errorf("error creating %s table: %w", t.name, err)
		}
	}

	for _, idx := range schemaIndexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			return fmt.Errorf("error creating index: %w", err)
		}
	}

	log.Infow("Database schema is up to date")
	return nil
}
