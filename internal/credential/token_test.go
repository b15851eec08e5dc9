package credential

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/ably-labs/webcli/internal/actor/actortest"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return signed
}

func TestTokenExpiresAt(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := mintToken(t, jwt.MapClaims{"exp": exp.Unix()})

	got, ok := TokenExpiresAt(token)
	require.True(t, ok)
	require.Equal(t, exp.Unix(), got.Unix())

	_, ok = TokenExpiresAt("not-a-jwt")
	require.False(t, ok)

	_, ok = TokenExpiresAt(mintToken(t, jwt.MapClaims{"sub": "x"}))
	require.False(t, ok)
}

func TestIsTokenExpiringSoon(t *testing.T) {
	t.Parallel()

	clk := actortest.NewFakeClock(time.Unix(1700000000, 0))

	soon, err := IsTokenExpiringSoon("", clk.Now(), time.Minute)
	require.Error(t, err)
	require.True(t, soon)

	// Opaque (non-JWT) tokens are treated as non-expiring.
	soon, err = IsTokenExpiringSoon("opaque-token", clk.Now(), time.Minute)
	require.NoError(t, err)
	require.False(t, soon)

	token := mintToken(t, jwt.MapClaims{"exp": clk.Now().Add(time.Hour).Unix()})
	soon, err = IsTokenExpiringSoon(token, clk.Now(), time.Minute)
	require.NoError(t, err)
	require.False(t, soon)

	// The same token is expiring once the clock gets close enough.
	clk.Advance(59*time.Minute + 30*time.Second)
	soon, err = IsTokenExpiringSoon(token, clk.Now(), time.Minute)
	require.NoError(t, err)
	require.True(t, soon)
}
