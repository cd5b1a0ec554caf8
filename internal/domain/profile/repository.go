package profile

import "context"

type Repository interface {
	GetByUserID(ctx context.Context, userID string) (Profile, bool, error)
	// MarkOnboardingCompleted sets onboarding_completed = true, creating the record if
	// needed. It never writes false and is safe to repeat.
	MarkOnboardingCompleted(ctx context.Context, userID string) error
}
