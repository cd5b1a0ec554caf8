package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/onboarding"
	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"
	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/user"
	profilemock "github.com/riskibarqy/dashboard-bootstrap/internal/mocks/domain/profile"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

type identityFunc func(ctx context.Context, token string) (user.Principal, error)

func (f identityFunc) Identify(ctx context.Context, token string) (user.Principal, error) {
	return f(ctx, token)
}

func staticIdentity(userID string) identityFunc {
	return func(context.Context, string) (user.Principal, error) {
		return user.Principal{UserID: userID, Email: userID + "@example.com"}, nil
	}
}

func observedLogger() (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(logging.LevelDebug)
	return logging.FromZap(zap.New(core)), logs
}

func TestSessionResolver_EmptyTokenIsAbsentWithoutProfileRead(t *testing.T) {
	t.Parallel()

	repo := profilemock.NewRepository(t)
	called := false
	resolver := NewSessionResolver(identityFunc(func(context.Context, string) (user.Principal, error) {
		called = true
		return user.Principal{}, nil
	}), repo, logging.NewNop())

	_, err := resolver.Resolve(context.Background(), "   ")
	if !errors.Is(err, ErrIdentityAbsent) {
		t.Fatalf("expected ErrIdentityAbsent, got %v", err)
	}
	if called {
		t.Fatalf("identity provider must not be called for an empty credential")
	}
}

func TestSessionResolver_RejectedCredentialIsAbsent(t *testing.T) {
	t.Parallel()

	repo := profilemock.NewRepository(t)
	resolver := NewSessionResolver(identityFunc(func(context.Context, string) (user.Principal, error) {
		return user.Principal{}, fmt.Errorf("%w: token expired", ErrUnauthorized)
	}), repo, logging.NewNop())

	_, err := resolver.Resolve(context.Background(), "expired-token")
	if !errors.Is(err, ErrIdentityAbsent) {
		t.Fatalf("expected ErrIdentityAbsent, got %v", err)
	}
	repo.AssertNotCalled(t, "GetByUserID", mock.Anything, mock.Anything)
}

func TestSessionResolver_ProviderOutagePropagates(t *testing.T) {
	t.Parallel()

	repo := profilemock.NewRepository(t)
	resolver := NewSessionResolver(identityFunc(func(context.Context, string) (user.Principal, error) {
		return user.Principal{}, fmt.Errorf("%w: connection refused", ErrDependencyUnavailable)
	}), repo, logging.NewNop())

	_, err := resolver.Resolve(context.Background(), "token")
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
	if errors.Is(err, ErrIdentityAbsent) {
		t.Fatalf("provider outage must not look like an absent identity")
	}
}

func TestSessionResolver_ProfileFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile profile.Profile
		exists  bool
		want    onboarding.FlagState
	}{
		{name: "completed", profile: profile.Profile{UserID: "u-1", OnboardingCompleted: true}, exists: true, want: onboarding.FlagTrue},
		{name: "not completed", profile: profile.Profile{UserID: "u-1"}, exists: true, want: onboarding.FlagFalse},
		{name: "missing record", exists: false, want: onboarding.FlagAbsent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := profilemock.NewRepository(t)
			repo.On("GetByUserID", mock.Anything, "u-1").Return(tt.profile, tt.exists, nil).Once()

			resolver := NewSessionResolver(staticIdentity("u-1"), repo, logging.NewNop())
			got, err := resolver.Resolve(context.Background(), "token")
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got.Flag != tt.want {
				t.Fatalf("unexpected flag: got=%s want=%s", got.Flag, tt.want)
			}
			if got.Principal.UserID != "u-1" {
				t.Fatalf("unexpected principal: %+v", got.Principal)
			}
		})
	}
}

func TestSessionResolver_ProfileReadFailureDegrades(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger()
	repo := profilemock.NewRepository(t)
	repo.On("GetByUserID", mock.Anything, "u-9").Return(profile.Profile{}, false, errors.New("db down")).Once()

	resolver := NewSessionResolver(staticIdentity("u-9"), repo, logger)
	got, err := resolver.Resolve(context.Background(), "token")
	if err != nil {
		t.Fatalf("profile read failure must not fail resolve: %v", err)
	}
	if got.Flag != onboarding.FlagUnavailable {
		t.Fatalf("expected unavailable flag, got %s", got.Flag)
	}
	if logs.FilterMessage("profile read failed, onboarding suppressed").Len() != 1 {
		t.Fatalf("expected one warning log, got %v", logs.All())
	}
}
