package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
	"github.com/riskibarqy/dashboard-bootstrap/internal/usecase"
)

const (
	defaultLoginURL    = "/login"
	defaultReturnParam = "next"
)

// SessionConfig describes where credentials are read from and where anonymous visitors go.
type SessionConfig struct {
	CookieNames []string
	LoginURL    string
	ReturnParam string
}

type Handler struct {
	bootstrapService  *usecase.BootstrapService
	onboardingService *usecase.OnboardingService
	session           SessionConfig
	loginURL          *url.URL
	logger            *logging.Logger
	validator         *validator.Validate
}

func NewHandler(
	bootstrapService *usecase.BootstrapService,
	onboardingService *usecase.OnboardingService,
	session SessionConfig,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(session.ReturnParam) == "" {
		session.ReturnParam = defaultReturnParam
	}

	loginURL, err := url.Parse(strings.TrimSpace(session.LoginURL))
	if err != nil || strings.TrimSpace(session.LoginURL) == "" {
		loginURL = &url.URL{Path: defaultLoginURL}
	}

	return &Handler{
		bootstrapService:  bootstrapService,
		onboardingService: onboardingService,
		session:           session,
		loginURL:          loginURL,
		logger:            logger,
		validator:         validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

// loginRedirect builds the login URL carrying the originally requested path.
func (h *Handler) loginRedirect(r *http.Request) string {
	target := *h.loginURL
	query := target.Query()
	query.Set(h.session.ReturnParam, r.URL.RequestURI())
	target.RawQuery = query.Encode()
	return target.String()
}
