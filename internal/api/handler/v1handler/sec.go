package v1handler

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"pairscan/internal/config"
	"pairscan/pkg/domain"
	"pairscan/pkg/logger"
	"pairscan/pkg/serrors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CtxKey is a string-based type used for storing values in request contexts.
type CtxKey string

// OperatorIDKey is the context key under which the authenticated domain.OperatorID is stored.
const OperatorIDKey CtxKey = "OperatorID"

// OperatorID returns the authenticated operator of ctx, if any.
func OperatorID(ctx context.Context) (domain.OperatorID, bool) {
	id, ok := ctx.Value(OperatorIDKey).(domain.OperatorID)

	return id, ok
}

// BearerAuth carries a bearer token taken from a request.
type BearerAuth struct {
	Token string
}

// SecHandlerOptions configure operator authentication.
type SecHandlerOptions struct {
	// PublicKey is the PEM encoded RSA key operator tokens are verified with.
	// Authentication is disabled when it is empty.
	PublicKey string
}

// NewSecHandlerOptions constructs SecHandlerOptions from the application config.
func NewSecHandlerOptions(cfg *config.Config) *SecHandlerOptions {
	return &SecHandlerOptions{PublicKey: cfg.JWT.PublicKey}
}

// SecHandler authenticates operators with RS256 signed JWTs whose subject is
// the operator ID.
type SecHandler struct {
	key *rsa.PublicKey
}

// NewSecHandler constructs a SecHandler.
func NewSecHandler(opts *SecHandlerOptions) (*SecHandler, error) {
	if opts == nil || opts.PublicKey == "" {
		return &SecHandler{}, nil
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(opts.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("could not parse RSA public key: %w", err)
	}

	return &SecHandler{key: key}, nil
}

// Enabled reports whether requests must carry a token.
func (s *SecHandler) Enabled() bool { return s != nil && s.key != nil }

// HandleBearerAuth verifies t and returns ctx carrying the operator ID.
// Failures are of kind serrors.ErrUnauthorized.
func (s *SecHandler) HandleBearerAuth(ctx context.Context, operationName string, t BearerAuth) (context.Context, error) {
	if !s.Enabled() {
		return ctx, nil
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(t.Token, claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return ctx, serrors.Wrap(serrors.ErrUnauthorized, err, "invalid token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, serrors.Wrap(serrors.ErrUnauthorized, err, "invalid token subject")
	}

	ctx = context.WithValue(ctx, OperatorIDKey, domain.OperatorID(id))
	ctx = logger.WithFields(ctx, zap.String("operatorID", id.String()), zap.String("operation", operationName))

	return ctx, nil
}

// Middleware authenticates requests to next. The token is read from the
// Authorization header, or from the access_token query parameter for
// websocket clients that cannot set headers.
func (s *SecHandler) Middleware(operationName string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)

			return
		}

		token := r.URL.Query().Get("access_token")
		if h := r.Header.Get("Authorization"); h != "" {
			scheme, value, ok := strings.Cut(h, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				writeJSON(r.Context(), w, http.StatusUnauthorized, ErrorResponse{
					Code:    serrors.ErrUnauthorized.Error(),
					Message: "bearer token required",
				})

				return
			}
			token = strings.TrimSpace(value)
		}
		if token == "" {
			writeJSON(r.Context(), w, http.StatusUnauthorized, ErrorResponse{
				Code:    serrors.ErrUnauthorized.Error(),
				Message: "bearer token required",
			})

			return
		}

		ctx, err := s.HandleBearerAuth(r.Context(), operationName, BearerAuth{Token: token})
		if err != nil {
			res := NewError(r.Context(), err)
			writeJSON(r.Context(), w, res.StatusCode, res.Response)

			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
