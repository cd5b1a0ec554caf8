package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/onboarding"
	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/user"
	"github.com/riskibarqy/dashboard-bootstrap/internal/usecase"
)

const maxRequestBody = 1 << 16

var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

type finishOnboardingRequest struct {
	Action string `json:"action" validate:"omitempty,oneof=complete skip"`
}

type onboardingStatusDTO struct {
	UserID         string `json:"user_id"`
	Completed      bool   `json:"completed"`
	ShowOnboarding bool   `json:"show_onboarding"`
}

type onboardingAcceptedDTO struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
}

func (h *Handler) GetOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetOnboarding")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	status, err := h.onboardingService.Status(ctx, principal.UserID)
	if err != nil {
		h.logger.WarnContext(ctx, "get onboarding status failed", "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, onboardingStatusDTO{
		UserID:         status.UserID,
		Completed:      status.Completed,
		ShowOnboarding: onboarding.NeedsOnboarding(true, status.Flag),
	})
}

func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CompleteOnboarding")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	var req finishOnboardingRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	action, err := onboarding.ParseAction(req.Action)
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	h.finishOnboarding(ctx, w, principal, action)
}

func (h *Handler) SkipOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SkipOnboarding")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	h.finishOnboarding(ctx, w, principal, onboarding.ActionSkip)
}

// finishOnboarding answers 202 as soon as the write is dispatched.
func (h *Handler) finishOnboarding(ctx context.Context, w http.ResponseWriter, principal user.Principal, action onboarding.Action) {
	if err := h.onboardingService.Finish(ctx, principal.UserID, action); err != nil {
		h.logger.WarnContext(ctx, "finish onboarding failed", "user_id", principal.UserID, "action", string(action), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusAccepted, onboardingAcceptedDTO{
		UserID: principal.UserID,
		Action: string(action),
	})
}

// decodeOptionalBody leaves dst untouched for an empty body.
func decodeOptionalBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return fmt.Errorf("%w: read request body: %v", usecase.ErrInvalidInput, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := strictJSON.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}
