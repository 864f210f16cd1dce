package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errNoVerifier = errors.New("no token verifier configured")

// KeySet resolves the verification key for a token from its header.
type KeySet interface {
	KeyFunc() jwt.Keyfunc
}

// HMACKeySet verifies HS256/384/512 tokens with one shared secret. It is meant
// for local development and tests; deployments use a JWKS.
type HMACKeySet []byte

func (k HMACKeySet) KeyFunc() jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(k), nil
	}
}

// Verifier checks ID token signatures and standard claims before a session
// is built from them. A nil Verifier rejects every token.
type Verifier struct {
	keys     KeySet
	issuer   string
	audience string
	now      func() time.Time
}

// NewVerifier returns a Verifier using keys. Empty issuer or audience skip
// the corresponding claim check.
func NewVerifier(keys KeySet, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience, now: time.Now}
}

// Verify validates token and returns the session it carries. Tokens without
// an expiry are refused.
func (v *Verifier) Verify(token string) (Session, error) {
	if v == nil || v.keys == nil {
		return Session{}, errors.Join(ErrUnauthorized, errNoVerifier)
	}
	if token == "" {
		return Session{}, ErrUnauthorized
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, v.keys.KeyFunc(), opts...); err != nil {
		return Session{}, errors.Join(ErrUnauthorized, err)
	}
	return sessionFromClaims(claims, token)
}

// FromRequest verifies the token carried by r.
func (v *Verifier) FromRequest(r *http.Request) (Session, error) {
	token, err := tokenFromRequest(r)
	if err != nil {
		return Session{}, err
	}
	return v.Verify(token)
}

// Require rejects requests without a verified session with 401 and stores
// the session in the request context otherwise.
func (v *Verifier) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := v.FromRequest(r)
		if err != nil {
			slog.WarnContext(r.Context(), "Rejected unauthenticated request",
				"path", r.URL.Path,
				"error", err)
			WriteUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}
