package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/onboarding"
	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"
	profilemock "github.com/riskibarqy/dashboard-bootstrap/internal/mocks/domain/profile"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

func TestBootstrapService_ShowOnboarding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile profile.Profile
		exists  bool
		readErr error
		want    bool
		outcome onboarding.Outcome
	}{
		{name: "new user without record", want: true, outcome: onboarding.OutcomeDashboardWithOnboarding},
		{name: "flag false", profile: profile.Profile{UserID: "u-1"}, exists: true, want: true, outcome: onboarding.OutcomeDashboardWithOnboarding},
		{name: "flag true", profile: profile.Profile{UserID: "u-1", OnboardingCompleted: true}, exists: true, want: false, outcome: onboarding.OutcomeDashboard},
		{name: "read failure", readErr: errors.New("timeout"), want: false, outcome: onboarding.OutcomeDashboard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := profilemock.NewRepository(t)
			repo.On("GetByUserID", mock.Anything, "u-1").Return(tt.profile, tt.exists, tt.readErr).Once()

			svc := NewBootstrapService(NewSessionResolver(staticIdentity("u-1"), repo, logging.NewNop()), 0, logging.NewNop())
			got, err := svc.Bootstrap(context.Background(), "token")
			if err != nil {
				t.Fatalf("bootstrap: %v", err)
			}
			if got.ShowOnboarding != tt.want {
				t.Fatalf("unexpected show_onboarding: got=%v want=%v", got.ShowOnboarding, tt.want)
			}
			if got.Outcome != tt.outcome {
				t.Fatalf("unexpected outcome: got=%s want=%s", got.Outcome, tt.outcome)
			}
			if got.RevealDelay != onboarding.DefaultRevealDelay {
				t.Fatalf("unexpected reveal delay: %s", got.RevealDelay)
			}
		})
	}
}

func TestBootstrapService_AbsentIdentity(t *testing.T) {
	t.Parallel()

	repo := profilemock.NewRepository(t)
	svc := NewBootstrapService(NewSessionResolver(staticIdentity("u-1"), repo, nil), 250*time.Millisecond, nil)

	got, err := svc.Bootstrap(context.Background(), "")
	if !errors.Is(err, ErrIdentityAbsent) {
		t.Fatalf("expected ErrIdentityAbsent, got %v", err)
	}
	if got.Outcome != onboarding.OutcomeRedirectToLogin {
		t.Fatalf("expected redirect outcome, got %s", got.Outcome)
	}
}
