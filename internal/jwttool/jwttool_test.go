package jwttool

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func findClaim(claims []Claim, name string) (Claim, bool) {
	for _, c := range claims {
		if c.Claim == name {
			return c, true
		}
	}
	return Claim{}, false
}

func TestDecodeDescribesClaims(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{
		"sub":   "1234567890",
		"name":  "Ada",
		"iat":   1516239022,
		"roles": []string{"admin"},
	}, "secret")

	decoded, err := Decode(raw, time.UTC)
	require.NoError(t, err)

	alg, ok := findClaim(decoded.Header, "alg")
	require.True(t, ok)
	assert.Equal(t, "HS256", alg.Value)
	assert.Equal(t, "HMAC using SHA-256", alg.FriendlyValue)
	assert.Equal(t, "Signature or encryption algorithm", alg.Description)

	iat, ok := findClaim(decoded.Payload, "iat")
	require.True(t, ok)
	assert.Equal(t, "1516239022", iat.Value)
	assert.Equal(t, "2018-01-18 01:30:22 UTC", iat.FriendlyValue)
	assert.Equal(t, "Issued At", iat.Description)

	roles, ok := findClaim(decoded.Payload, "roles")
	require.True(t, ok)
	assert.JSONEq(t, `["admin"]`, roles.Value)
	assert.Empty(t, roles.Description)

	names := make([]string, 0, len(decoded.Payload))
	for _, c := range decoded.Payload {
		names = append(names, c.Claim)
	}
	assert.Equal(t, []string{"iat", "name", "roles", "sub"}, names)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("not-a-token", time.UTC)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestExpireLaterResignsWithNewExpiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	raw := signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": now.Add(-time.Hour).Unix()}, "old-secret")

	renewed, err := ExpireLater(raw, "new-secret", 7, now)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(renewed, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("new-secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 7).Unix(), exp.Unix())
	assert.Equal(t, "user-1", claims["sub"])
}

func TestExpireLaterValidatesInput(t *testing.T) {
	_, err := ExpireLater("a.b.c", "", 1, time.Now())
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = ExpireLater("garbage", "secret", 1, time.Now())
	assert.ErrorIs(t, err, ErrMalformedToken)
}
