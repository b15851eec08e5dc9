package credential

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiresAt returns the expiry timestamp encoded in a JWT-shaped access
// token, if present.
//
// The signature is not verified. This is only used for client UX/control flow
// such as warning before a reconnect attempt that is doomed to be rejected;
// the session host remains the source of truth.
func TokenExpiresAt(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IsTokenExpiringSoon reports whether a token is already expired at now or
// will expire within the given window.
func IsTokenExpiringSoon(token string, now time.Time, window time.Duration) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return true, fmt.Errorf("token is empty")
	}
	exp, ok := TokenExpiresAt(token)
	if !ok {
		// Tokens without a parseable exp are treated as non-expiring; the
		// host will reject them if they are in fact invalid.
		return false, nil
	}
	return exp.Sub(now) <= window, nil
}
