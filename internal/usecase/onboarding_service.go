package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/onboarding"
	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/async"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

// Dispatcher runs best-effort background work.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, task async.Task, fields ...any) error
}

type OnboardingStatus struct {
	UserID    string
	Completed bool
	Flag      onboarding.FlagState
}

type OnboardingService struct {
	profiles   profile.Repository
	dispatcher Dispatcher
	logger     *logging.Logger
}

func NewOnboardingService(profiles profile.Repository, dispatcher Dispatcher, logger *logging.Logger) *OnboardingService {
	if logger == nil {
		logger = logging.Default()
	}
	if dispatcher == nil {
		dispatcher = inlineDispatcher{logger: logger}
	}
	return &OnboardingService{
		profiles:   profiles,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// MarkOnboardingCompleted writes the flag synchronously.
func (s *OnboardingService) MarkOnboardingCompleted(ctx context.Context, userID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.OnboardingService.MarkOnboardingCompleted")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}

	if err := s.profiles.MarkOnboardingCompleted(ctx, userID); err != nil {
		recordSpanError(span, err)
		return fmt.Errorf("mark onboarding completed: %w", err)
	}
	return nil
}

// Finish records a complete or skip action. The write is dispatched in the background and
// its failure is only logged; skip and complete persist the same flag.
func (s *OnboardingService) Finish(ctx context.Context, userID string, action onboarding.Action) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.OnboardingService.Finish")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if action != onboarding.ActionComplete && action != onboarding.ActionSkip {
		return fmt.Errorf("%w: unsupported action %q", ErrInvalidInput, action)
	}

	err := s.dispatcher.Dispatch(ctx, "onboarding.mark_completed", func(taskCtx context.Context) error {
		return s.MarkOnboardingCompleted(taskCtx, userID)
	}, "user_id", userID, "action", string(action))
	if err != nil {
		// The dispatcher already logged the drop; the caller still sees success.
		recordSpanError(span, err)
		return nil
	}

	s.logger.InfoContext(ctx, "onboarding completion dispatched", "user_id", userID, "action", string(action))
	return nil
}

func (s *OnboardingService) Status(ctx context.Context, userID string) (OnboardingStatus, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.OnboardingService.Status")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return OnboardingStatus{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}

	item, exists, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		recordSpanError(span, err)
		return OnboardingStatus{}, fmt.Errorf("%w: get profile: %v", ErrDependencyUnavailable, err)
	}

	flag := onboarding.FlagFromProfile(item, exists)
	return OnboardingStatus{
		UserID:    userID,
		Completed: flag == onboarding.FlagTrue,
		Flag:      flag,
	}, nil
}

type inlineDispatcher struct {
	logger *logging.Logger
}

func (d inlineDispatcher) Dispatch(ctx context.Context, name string, task async.Task, fields ...any) error {
	if err := task(context.WithoutCancel(ctx)); err != nil {
		d.logger.ErrorContext(ctx, "async task failed", append([]any{"task", name, "error", err}, fields...)...)
	}
	return nil
}
