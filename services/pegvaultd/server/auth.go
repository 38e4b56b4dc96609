package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"

	"pegvault/crypto"
	"pegvault/observability"
	"pegvault/observability/logging"
)

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

type contextKey string

const contextKeyCaller contextKey = "pegvaultd.caller"

// Authenticator resolves the caller account from the `sub` claim of an
// HMAC-signed JWT.
type Authenticator struct {
	cfg     AuthConfig
	secret  []byte
	logger  *slog.Logger
	metrics *observability.LedgerMetrics
}

// NewAuthenticator builds an authenticator. An empty secret rejects every
// token.
func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{
		cfg:     cfg,
		secret:  []byte(strings.TrimSpace(cfg.HMACSecret)),
		logger:  logger,
		metrics: observability.Ledger(),
	}
}

// Middleware rejects requests without a valid token and stores the caller
// in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			a.metrics.RecordThrottle("unauthenticated")
			writeProblem(w, r, http.StatusUnauthorized, "missing bearer token", "authorization")
			return
		}
		caller, err := a.authenticate(tokenString)
		if err != nil {
			a.metrics.RecordThrottle("unauthenticated")
			a.logger.Warn("token rejected",
				logging.MaskField("token", tokenString),
				"requestid", RequestIDFrom(r.Context()),
				"error", err)
			writeProblem(w, r, http.StatusUnauthorized, "invalid token", "authorization")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(tokenString string) (common.Address, error) {
	if len(a.secret) == 0 {
		return common.Address{}, errors.New("auth secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := new(jwt.RegisteredClaims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return common.Address{}, err
	}
	if !token.Valid {
		return common.Address{}, errors.New("token invalid")
	}
	caller, err := crypto.ParseAddress(claims.Subject)
	if err != nil {
		return common.Address{}, err
	}
	if caller == (common.Address{}) {
		return common.Address{}, errors.New("subject must not be the zero address")
	}
	return caller, nil
}

// CallerFrom returns the authenticated account, or the zero address.
func CallerFrom(ctx context.Context) common.Address {
	caller, _ := ctx.Value(contextKeyCaller).(common.Address)
	return caller
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
