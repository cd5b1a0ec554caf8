package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/onboarding"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

type Bootstrap struct {
	UserID         string
	Email          string
	Outcome        onboarding.Outcome
	ShowOnboarding bool
	RevealDelay    time.Duration
	Flag           onboarding.FlagState
}

type BootstrapService struct {
	resolver    *SessionResolver
	revealDelay time.Duration
	logger      *logging.Logger
}

func NewBootstrapService(resolver *SessionResolver, revealDelay time.Duration, logger *logging.Logger) *BootstrapService {
	if revealDelay <= 0 {
		revealDelay = onboarding.DefaultRevealDelay
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BootstrapService{
		resolver:    resolver,
		revealDelay: revealDelay,
		logger:      logger,
	}
}

// Bootstrap computes the initial dashboard state for one page load. An absent identity
// yields OutcomeRedirectToLogin together with ErrIdentityAbsent.
func (s *BootstrapService) Bootstrap(ctx context.Context, token string) (Bootstrap, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.BootstrapService.Bootstrap")
	defer span.End()

	session, err := s.resolver.Resolve(ctx, token)
	if errors.Is(err, ErrIdentityAbsent) {
		return Bootstrap{Outcome: onboarding.Decide(false, onboarding.FlagAbsent)}, err
	}
	if err != nil {
		return Bootstrap{}, err
	}

	outcome := onboarding.Decide(true, session.Flag)
	show := outcome == onboarding.OutcomeDashboardWithOnboarding
	s.logger.DebugContext(ctx, "dashboard bootstrap resolved",
		"user_id", session.Principal.UserID,
		"profile_flag", session.Flag.String(),
		"outcome", outcome.String(),
	)

	return Bootstrap{
		UserID:         session.Principal.UserID,
		Email:          session.Principal.Email,
		Outcome:        outcome,
		ShowOnboarding: show,
		RevealDelay:    s.revealDelay,
		Flag:           session.Flag,
	}, nil
}
