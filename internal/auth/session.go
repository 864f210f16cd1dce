// Package auth carries the caller's credential explicitly through every
// purchase store call.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for a missing, unreadable or expired credential,
// and by stores when the remote API rejects the token.
var ErrUnauthorized = errors.New("unauthorized")

// TokenCookie is read when no Authorization header is present.
const TokenCookie = "carbon_id_token"

// Session identifies the signed-in user and the ID token forwarded to the
// purchase API.
type Session struct {
	UserID string
	Token  string
}

// Valid reports whether s carries both a user id and a token.
func (s Session) Valid() bool {
	return s.UserID != "" && s.Token != ""
}

// ReadUnverified reads the user id from an ID token without checking its
// signature. Only clients that forward the token to a verifying API may use
// it; servers go through Verifier. Expiry is still enforced.
func ReadUnverified(token string, now time.Time) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrUnauthorized
	}

	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return Session{}, errors.Join(ErrUnauthorized, err)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && !now.Before(exp.Time) {
		return Session{}, errors.Join(ErrUnauthorized, jwt.ErrTokenExpired)
	}
	return sessionFromClaims(claims, token)
}

func sessionFromClaims(claims jwt.MapClaims, token string) (Session, error) {
	user, _ := claims["cognito:username"].(string)
	if user == "" {
		user, _ = claims.GetSubject()
	}
	if user == "" {
		return Session{}, errors.Join(ErrUnauthorized, errors.New("token has no user claim"))
	}
	return Session{UserID: user, Token: token}, nil
}

// tokenFromRequest reads "Authorization: Bearer <token>" or, failing that,
// the token cookie.
func tokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", ErrUnauthorized
		}
		return strings.TrimSpace(value), nil
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return strings.TrimSpace(c.Value), nil
	}
	return "", ErrUnauthorized
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.Valid()
}
