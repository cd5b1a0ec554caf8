package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"
	qb "github.com/riskibarqy/dashboard-bootstrap/internal/platform/querybuilder"
)

// ProfileRepository reads and writes the profiles table on postgres or sqlite.
type ProfileRepository struct {
	db      *sqlx.DB
	dialect qb.Dialect
	now     func() time.Time
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{
		db:      db,
		dialect: qb.DialectForDriver(db.DriverName()),
		now:     time.Now,
	}
}

// EnsureSchema creates the profiles table for embedded sqlite databases. Postgres schemas
// are owned by cmd/migration.
func (r *ProfileRepository) EnsureSchema(ctx context.Context) error {
	if r.dialect != qb.Question {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create profiles table: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (profile.Profile, bool, error) {
	columns, err := qb.Columns(profileTableModel{})
	if err != nil {
		return profile.Profile{}, false, fmt.Errorf("resolve profile columns: %w", err)
	}

	query, args, err := qb.Select(columns...).
		Dialect(r.dialect).
		From(profilesTable).
		Where(qb.Eq("id", strings.TrimSpace(userID))).
		Limit(1).
		ToSQL()
	if err != nil {
		return profile.Profile{}, false, fmt.Errorf("build get profile query: %w", err)
	}

	var row profileTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return profile.Profile{}, false, nil
		}
		return profile.Profile{}, false, fmt.Errorf("get profile: %w", err)
	}

	return profile.Profile{
		UserID:              row.ID,
		OnboardingCompleted: row.OnboardingCompleted,
	}, true, nil
}

// MarkOnboardingCompleted upserts the row so a user without a profile record still
// ends up with onboarding_completed=true.
func (r *ProfileRepository) MarkOnboardingCompleted(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	now := r.now().UTC()
	query, args, err := qb.InsertModel(r.dialect, profilesTable, profileCompletionInsertModel{
		ID:                  userID,
		OnboardingCompleted: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, markCompletedConflict)
	if err != nil {
		return fmt.Errorf("build mark onboarding completed query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark onboarding completed: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
