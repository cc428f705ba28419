package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ropl-btc/project-tasks/pkg/respond"
)

var ErrUnauthorized = errors.New("unauthorized")

type ctxKey struct{}

// Verifier checks HS256 access tokens. The token subject is the owner id.
type Verifier struct {
	key    []byte
	logger *zap.Logger
}

func NewVerifier(signingKey []byte, logger *zap.Logger) *Verifier {
	return &Verifier{key: signingKey, logger: logger}
}

func (v *Verifier) Verify(token string) (string, error) {
	claims := new(jwt.RegisteredClaims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return claims.Subject, nil
}

// Issue signs a token for owner. Used by tooling and tests; production tokens come from the
// identity provider sharing the same secret.
func (v *Verifier) Issue(owner string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   owner,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(v.key)
}

// Middleware rejects requests without a valid bearer token and stores the owner in the context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respond.Error(w, r, http.StatusUnauthorized, "authorization header required")
			return
		}

		owner, err := v.Verify(parts[1])
		if err != nil {
			v.logger.Warn("rejected token", zap.Error(err))
			respond.Error(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ctxKey{}, owner)
}

func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ctxKey{}).(string)
	return owner, ok && owner != ""
}
