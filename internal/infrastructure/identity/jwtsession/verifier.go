package jwtsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/user"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
	"github.com/riskibarqy/dashboard-bootstrap/internal/usecase"
)

const DefaultLeeway = 30 * time.Second

type Config struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 session tokens locally.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
	logger *logging.Logger
}

func NewVerifier(cfg Config, logger *logging.Logger) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Leeway <= 0 {
		cfg.Leeway = DefaultLeeway
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if issuer := strings.TrimSpace(cfg.Issuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(cfg.Audience); audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
		logger: logger.Named("jwtsession"),
	}, nil
}

func (v *Verifier) Identify(ctx context.Context, token string) (user.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.Principal{}, fmt.Errorf("%w: token is required", usecase.ErrUnauthorized)
	}

	claims := &sessionClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		v.logger.DebugContext(ctx, "session token rejected", "error", err)
		return user.Principal{}, fmt.Errorf("%w: invalid session token", usecase.ErrUnauthorized)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return user.Principal{}, fmt.Errorf("%w: session token has no subject", usecase.ErrUnauthorized)
	}

	return user.Principal{
		UserID: subject,
		Email:  strings.TrimSpace(claims.Email),
	}, nil
}
