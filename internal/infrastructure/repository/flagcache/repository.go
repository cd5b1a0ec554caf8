package flagcache

import (
	"context"
	"strings"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

// ProfileRepository caches completed flags in front of another profile.Repository.
// Cache failures are logged and fall through to the wrapped store.
type ProfileRepository struct {
	next    profile.Repository
	backend Backend
	logger  *logging.Logger
}

func NewProfileRepository(next profile.Repository, backend Backend, logger *logging.Logger) *ProfileRepository {
	if logger == nil {
		logger = logging.Default()
	}
	return &ProfileRepository{next: next, backend: backend, logger: logger.Named("flagcache")}
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (profile.Profile, bool, error) {
	userID = strings.TrimSpace(userID)

	completed, err := r.backend.Completed(ctx, userID)
	if err != nil {
		r.logger.WarnContext(ctx, "onboarding flag cache read failed", "user_id", userID, "error", err)
	} else if completed {
		return profile.Profile{UserID: userID, OnboardingCompleted: true}, true, nil
	}

	item, exists, err := r.next.GetByUserID(ctx, userID)
	if err != nil {
		return profile.Profile{}, false, err
	}
	if exists && item.OnboardingCompleted {
		r.remember(ctx, userID)
	}
	return item, exists, nil
}

func (r *ProfileRepository) MarkOnboardingCompleted(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if err := r.next.MarkOnboardingCompleted(ctx, userID); err != nil {
		return err
	}
	r.remember(ctx, userID)
	return nil
}

func (r *ProfileRepository) remember(ctx context.Context, userID string) {
	if err := r.backend.Remember(ctx, userID); err != nil {
		r.logger.WarnContext(ctx, "onboarding flag cache write failed", "user_id", userID, "error", err)
	}
}
