package sqlstore

import "time"

const profilesTable = "profiles"

type profileTableModel struct {
	ID                  string `db:"id"`
	OnboardingCompleted bool   `db:"onboarding_completed"`
}

type profileCompletionInsertModel struct {
	ID                  string    `db:"id"`
	OnboardingCompleted bool      `db:"onboarding_completed"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

const markCompletedConflict = `ON CONFLICT (id)
DO UPDATE SET
    onboarding_completed = TRUE,
    updated_at = excluded.updated_at`

const sqliteSchema = `CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    onboarding_completed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
