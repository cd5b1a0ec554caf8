package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/onboarding"
	"github.com/riskibarqy/dashboard-bootstrap/internal/usecase"
)

const defaultClientTimeout = 5 * time.Second

type OnboardingClientConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OnboardingClient drives this API from another Go process. It satisfies
// onboarding.Persister so an out-of-process Controller can record completion.
type OnboardingClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

var _ onboarding.Persister = (*OnboardingClient)(nil)

// ClientBootstrap is the dashboard decision as seen by a remote client.
type ClientBootstrap struct {
	UserID         string
	ShowOnboarding bool
	RevealDelay    time.Duration
}

func NewOnboardingClient(cfg OnboardingClientConfig) (*OnboardingClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, crerr.New("onboarding client base url is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, crerr.New("onboarding client token is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultClientTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	// A login redirect means the credential is no longer valid.
	noRedirect := *httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &OnboardingClient{
		httpClient: &noRedirect,
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
	}, nil
}

// Bootstrap fetches the dashboard decision for the client's credential.
func (c *OnboardingClient) Bootstrap(ctx context.Context) (ClientBootstrap, error) {
	ctx, span := startSpan(ctx, "httpapi.OnboardingClient.Bootstrap")
	defer span.End()

	payload, err := c.do(ctx, http.MethodGet, "/v1/dashboard/bootstrap", nil, http.StatusOK)
	if err != nil {
		return ClientBootstrap{}, err
	}
	out, err := decodeData[bootstrapDTO](payload)
	if err != nil {
		return ClientBootstrap{}, err
	}
	return ClientBootstrap{
		UserID:         out.UserID,
		ShowOnboarding: out.ShowOnboarding,
		RevealDelay:    time.Duration(out.RevealDelayMS) * time.Millisecond,
	}, nil
}

// MarkOnboardingCompleted posts a completion for the credential's user. userID must
// match the identity behind the credential.
func (c *OnboardingClient) MarkOnboardingCompleted(ctx context.Context, userID string) error {
	ctx, span := startSpan(ctx, "httpapi.OnboardingClient.MarkOnboardingCompleted")
	defer span.End()

	body, err := sonic.Marshal(finishOnboardingRequest{Action: string(onboarding.ActionComplete)})
	if err != nil {
		return crerr.Wrap(err, "marshal onboarding completion")
	}

	payload, err := c.do(ctx, http.MethodPost, "/v1/onboarding/complete", body, http.StatusAccepted)
	if err != nil {
		return err
	}
	out, err := decodeData[onboardingAcceptedDTO](payload)
	if err != nil {
		return err
	}
	if want := strings.TrimSpace(userID); want != "" && out.UserID != want {
		return crerr.Newf("onboarding completion accepted for user %q, expected %q", out.UserID, want)
	}
	return nil
}

func (c *OnboardingClient) do(ctx context.Context, method, path string, body []byte, wantStatus int) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, crerr.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", usecase.ErrDependencyUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, crerr.Wrap(err, "read response body")
	}

	switch {
	case resp.StatusCode == wantStatus:
	case resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s %s status=%d", usecase.ErrIdentityAbsent, method, path, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: %s %s status=%d", usecase.ErrDependencyUnavailable, method, path, resp.StatusCode)
	default:
		return nil, crerr.Newf("%s %s unexpected status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	return payload, nil
}

func decodeData[T any](payload []byte) (T, error) {
	var envelope struct {
		Data T `json:"data"`
	}
	if err := sonic.Unmarshal(payload, &envelope); err != nil {
		var zero T
		return zero, crerr.Wrap(err, "decode response envelope")
	}
	return envelope.Data, nil
}
