package postgrest

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/resilience"
)

const (
	defaultTimeout = 5 * time.Second
	restPrefix     = "/rest/v1/"
	profilesTable  = "profiles"
	selectColumns  = "id,onboarding_completed"
)

var errPostgRESTTransient = crerr.New("postgrest transient failure")

var tracer = otel.Tracer("dashboard-bootstrap/internal/infrastructure/repository/postgrest")

type Config struct {
	BaseURL        string
	APIKey         string
	ServiceKey     string
	Timeout        time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
	// Client overrides the pooled fasthttp client, mainly for tests.
	Client *fasthttp.Client
}

// ProfileRepository talks to a hosted PostgREST endpoint. Calls are never retried.
type ProfileRepository struct {
	client     *fasthttp.Client
	tableURL   string
	apiKey     string
	serviceKey string
	timeout    time.Duration
	logger     *logging.Logger
	breaker    *resilience.CircuitBreaker
}

func NewProfileRepository(cfg Config) (*ProfileRepository, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, crerr.New("postgrest base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, crerr.Wrapf(err, "parse postgrest base url %q", base)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, crerr.Newf("postgrest base url %q uses unsupported scheme %q", base, parsed.Scheme)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &fasthttp.Client{
			Name:                "dashboard-bootstrap",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		}
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	serviceKey := strings.TrimSpace(cfg.ServiceKey)
	if serviceKey == "" {
		serviceKey = apiKey
	}

	breaker := resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker)
	logger = logger.Named("postgrest")
	breaker.OnStateChange(func(from, to resilience.CircuitState) {
		logger.Warn("postgrest circuit breaker state changed", "from", string(from), "to", string(to))
	})

	return &ProfileRepository{
		client:     client,
		tableURL:   base + restPrefix + profilesTable,
		apiKey:     apiKey,
		serviceKey: serviceKey,
		timeout:    timeout,
		logger:     logger,
		breaker:    breaker,
	}, nil
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (profile.Profile, bool, error) {
	values := url.Values{}
	values.Set("id", "eq."+strings.TrimSpace(userID))
	values.Set("select", selectColumns)

	raw, err := r.do(ctx, "postgrest.GetProfile", request{
		method: fasthttp.MethodGet,
		url:    r.tableURL + "?" + values.Encode(),
	})
	if err != nil {
		return profile.Profile{}, false, fmt.Errorf("get profile: %w", err)
	}

	rows, err := decodeRows(raw)
	if err != nil {
		return profile.Profile{}, false, err
	}
	if len(rows) == 0 {
		return profile.Profile{}, false, nil
	}
	return rows[0].toDomain(), true, nil
}

// MarkOnboardingCompleted patches the existing row and inserts one when the patch
// matched nothing.
func (r *ProfileRepository) MarkOnboardingCompleted(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return crerr.New("user id is required")
	}

	patchBody, err := sonic.Marshal(profilePatch{OnboardingCompleted: true})
	if err != nil {
		return crerr.Wrap(err, "marshal profile patch")
	}
	values := url.Values{}
	values.Set("id", "eq."+userID)

	raw, err := r.do(ctx, "postgrest.PatchProfile", request{
		method: fasthttp.MethodPatch,
		url:    r.tableURL + "?" + values.Encode(),
		body:   patchBody,
		prefer: "return=representation",
	})
	if err != nil {
		return fmt.Errorf("patch profile: %w", err)
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return nil
	}

	insertBody, err := sonic.Marshal(profileRow{ID: userID, OnboardingCompleted: true})
	if err != nil {
		return crerr.Wrap(err, "marshal profile insert")
	}
	if _, err := r.do(ctx, "postgrest.InsertProfile", request{
		method: fasthttp.MethodPost,
		url:    r.tableURL + "?on_conflict=id",
		body:   insertBody,
		prefer: "resolution=merge-duplicates,return=minimal",
	}); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

type request struct {
	method string
	url    string
	body   []byte
	prefer string
}

func (r *ProfileRepository) do(ctx context.Context, spanName string, in request) ([]byte, error) {
	ctx, span := startSpan(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("http.request.method", in.method))

	var out []byte
	err := r.breaker.Execute(func() error {
		var callErr error
		out, callErr = r.send(ctx, in)
		return callErr
	}, isCircuitFailure)
	if err != nil {
		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			r.logger.WarnContext(ctx, "postgrest circuit breaker rejected request", "state", string(r.breaker.State()))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (r *ProfileRepository) send(ctx context.Context, in request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(in.url)
	req.Header.SetMethod(in.method)
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
	}
	if r.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.serviceKey)
	}
	if in.prefer != "" {
		req.Header.Set("Prefer", in.prefer)
	}
	if len(in.body) > 0 {
		req.Header.SetContentType("application/json")
		req.SetBody(in.body)
	}

	deadline := time.Now().Add(r.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	if err := r.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", errPostgRESTTransient, in.method, redactQuery(in.url), err)
	}

	status := resp.StatusCode()
	body := append([]byte(nil), resp.Body()...)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", status))

	switch {
	case status >= 200 && status < 300:
		return body, nil
	case status == fasthttp.StatusTooManyRequests || status >= 500:
		return nil, fmt.Errorf("%w: status=%d body=%s", errPostgRESTTransient, status, abbreviate(body))
	default:
		return nil, fmt.Errorf("postgrest status=%d body=%s", status, abbreviate(body))
	}
}

type profileRow struct {
	ID                  string `json:"id"`
	OnboardingCompleted *bool  `json:"onboarding_completed,omitempty"`
}

type profilePatch struct {
	OnboardingCompleted bool `json:"onboarding_completed"`
}

func (r profileRow) toDomain() profile.Profile {
	return profile.Profile{
		UserID:              r.ID,
		OnboardingCompleted: r.OnboardingCompleted != nil && *r.OnboardingCompleted,
	}
}

func decodeRows(raw []byte) ([]profileRow, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var rows []profileRow
	if err := sonic.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode postgrest rows: %w", err)
	}
	return rows, nil
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
}

func isCircuitFailure(err error) bool {
	return stderrors.Is(err, errPostgRESTTransient)
}

func redactQuery(raw string) string {
	if idx := strings.IndexByte(raw, '?'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}

func abbreviate(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
