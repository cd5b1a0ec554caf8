package introspect

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/user"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/cache"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/resilience"
	"github.com/riskibarqy/dashboard-bootstrap/internal/usecase"
)

const (
	defaultTimeout    = 5 * time.Second
	defaultCacheTTL   = 30 * time.Second
	defaultCacheLimit = 10000
)

var errIntrospectTransient = crerr.New("identity introspection transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Path           string
	AdminKey       string
	Timeout        time.Duration
	CacheTTL       time.Duration
	CacheMaxItems  int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client resolves session tokens through a remote introspection endpoint. Active
// principals are cached by token hash; a negative CacheTTL disables the cache.
type Client struct {
	httpClient    *http.Client
	introspectURL string
	adminKey      string
	logger        *logging.Logger
	timeout       time.Duration
	breaker       *resilience.CircuitBreaker
	cache         *cache.Store[user.Principal]
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Named("introspect")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	maxItems := cfg.CacheMaxItems
	if maxItems <= 0 {
		maxItems = defaultCacheLimit
	}

	var principals *cache.Store[user.Principal]
	if ttl > 0 {
		principals = cache.NewStore(ttl, cache.WithMaxEntries[user.Principal](maxItems))
	}

	breaker := resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker)
	breaker.OnStateChange(func(from, to resilience.CircuitState) {
		logger.Warn("introspection circuit breaker state changed", "from", string(from), "to", string(to))
	})

	return &Client{
		httpClient:    httpClient,
		introspectURL: buildURL(cfg.BaseURL, cfg.Path),
		adminKey:      strings.TrimSpace(cfg.AdminKey),
		logger:        logger,
		timeout:       timeout,
		breaker:       breaker,
		cache:         principals,
	}
}

func (c *Client) Identify(ctx context.Context, token string) (user.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.Principal{}, fmt.Errorf("%w: token is required", usecase.ErrUnauthorized)
	}

	if err := ctx.Err(); err != nil {
		return user.Principal{}, err
	}

	load := func(parent context.Context) (user.Principal, error) {
		ctx, cancel := context.WithTimeout(parent, c.timeout)
		defer cancel()

		var principal user.Principal
		err := c.breaker.Execute(func() error {
			var callErr error
			principal, callErr = c.introspect(ctx, token)
			return callErr
		}, func(err error) bool {
			// Caller cancellation is not an upstream failure.
			return parent.Err() == nil && isCircuitFailure(err)
		})
		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.WarnContext(ctx, "introspection circuit breaker rejected request", "state", string(c.breaker.State()))
			return user.Principal{}, fmt.Errorf("%w: identity provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
		return principal, err
	}

	if c.cache == nil {
		return load(ctx)
	}
	return c.cache.GetOrLoad(ctx, hashToken(token), load)
}

func (c *Client) introspect(ctx context.Context, token string) (user.Principal, error) {
	encoded, err := sonic.Marshal(introspectRequest{Token: token})
	if err != nil {
		return user.Principal{}, crerr.Wrap(err, "marshal introspect request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.introspectURL, bytes.NewReader(encoded))
	if err != nil {
		return user.Principal{}, crerr.Wrap(err, "create introspect request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.adminKey != "" {
		req.Header.Set("x-admin-key", c.adminKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); stderrors.Is(ctxErr, context.Canceled) {
			return user.Principal{}, ctxErr
		}
		return user.Principal{}, fmt.Errorf("%w: %w: request introspection: %v", usecase.ErrDependencyUnavailable, errIntrospectTransient, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if ctxErr := ctx.Err(); stderrors.Is(ctxErr, context.Canceled) {
			return user.Principal{}, ctxErr
		}
		return user.Principal{}, fmt.Errorf("%w: %w: read introspect response: %v", usecase.ErrDependencyUnavailable, errIntrospectTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return user.Principal{}, fmt.Errorf("%w: introspection rejected token", usecase.ErrUnauthorized)
	case resp.StatusCode == http.StatusForbidden:
		c.logger.ErrorContext(ctx, "introspection admin key rejected", "status_code", resp.StatusCode)
		return user.Principal{}, fmt.Errorf("%w: introspection forbidden", usecase.ErrDependencyUnavailable)
	case isRetryableStatus(resp.StatusCode):
		c.logger.WarnContext(ctx, "introspection upstream failure", "status_code", resp.StatusCode)
		return user.Principal{}, fmt.Errorf("%w: %w: status=%d", usecase.ErrDependencyUnavailable, errIntrospectTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		c.logger.WarnContext(ctx, "introspection non-200", "status_code", resp.StatusCode)
		return user.Principal{}, fmt.Errorf("%w: introspection failed with status %d", usecase.ErrDependencyUnavailable, resp.StatusCode)
	}

	var decoded introspectResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return user.Principal{}, fmt.Errorf("%w: decode introspect response: %v", usecase.ErrDependencyUnavailable, err)
	}
	if !decoded.Active {
		return user.Principal{}, fmt.Errorf("%w: inactive token", usecase.ErrUnauthorized)
	}
	if strings.TrimSpace(decoded.UserID) == "" {
		return user.Principal{}, fmt.Errorf("%w: introspect response has empty user_id", usecase.ErrUnauthorized)
	}

	return user.Principal{
		UserID: strings.TrimSpace(decoded.UserID),
		Email:  strings.TrimSpace(decoded.Email),
	}, nil
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active bool   `json:"active"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
