package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/onboarding"
	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"
	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/user"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

// IdentityProvider turns a request credential into a principal. Invalid credentials
// return ErrUnauthorized; provider outages return ErrDependencyUnavailable.
type IdentityProvider interface {
	Identify(ctx context.Context, token string) (user.Principal, error)
}

type Session struct {
	Principal user.Principal
	Flag      onboarding.FlagState
}

type SessionResolver struct {
	identity IdentityProvider
	profiles profile.Repository
	logger   *logging.Logger
}

func NewSessionResolver(identity IdentityProvider, profiles profile.Repository, logger *logging.Logger) *SessionResolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionResolver{
		identity: identity,
		profiles: profiles,
		logger:   logger,
	}
}

// Resolve performs one identity lookup and, for a present identity, one profile read.
// A failed profile read is logged and reported as FlagUnavailable, never as an error.
func (r *SessionResolver) Resolve(ctx context.Context, token string) (Session, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SessionResolver.Resolve")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, fmt.Errorf("%w: no session credential", ErrIdentityAbsent)
	}

	principal, err := r.identity.Identify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			r.logger.DebugContext(ctx, "session credential rejected", "error", err)
			return Session{}, fmt.Errorf("%w: %v", ErrIdentityAbsent, err)
		}
		recordSpanError(span, err)
		return Session{}, err
	}
	if strings.TrimSpace(principal.UserID) == "" {
		return Session{}, fmt.Errorf("%w: identity provider returned empty user id", ErrIdentityAbsent)
	}
	span.SetAttributes(attribute.String("user.id", principal.UserID))

	item, exists, err := r.profiles.GetByUserID(ctx, principal.UserID)
	if err != nil {
		recordSpanError(span, err)
		r.logger.WarnContext(ctx, "profile read failed, onboarding suppressed", "user_id", principal.UserID, "error", err)
		return Session{Principal: principal, Flag: onboarding.FlagUnavailable}, nil
	}

	return Session{
		Principal: principal,
		Flag:      onboarding.FlagFromProfile(item, exists),
	}, nil
}
