package auth

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentops-backend/apperr"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET_KEY", "test-secret-do-not-use")
	os.Exit(m.Run())
}

func clientID(s string) *string { return &s }

func TestIssueAndVerifyRoundtrip(t *testing.T) {
	token, err := IssueToken("user-1", clientID("client-1"), "client", time.Hour)
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3, "token is an opaque three-part string")

	claims, err := VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	require.NotNil(t, claims.ClientID)
	assert.Equal(t, "client-1", *claims.ClientID)
	assert.Equal(t, "client", claims.Role)
	assert.Equal(t, TokenKindSession, claims.Kind)
}

func TestAdminTokenCarriesNoTenant(t *testing.T) {
	token, err := IssueToken("admin-1", nil, "admin", time.Hour)
	require.NoError(t, err)

	claims, err := VerifyToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.ClientID)
	assert.True(t, FromClaims(claims).IsAdmin())
}

func TestClientTokenRequiresTenant(t *testing.T) {
	_, err := IssueToken("user-1", nil, "client", time.Hour)
	assert.Error(t, err)
}

func TestExpiryBoundary(t *testing.T) {
	// expires_at in the past (and at now, by the time verification runs)
	// is rejected; one second of validity is accepted.
	expired, err := IssueToken("user-1", clientID("client-1"), "client", 0)
	require.NoError(t, err)
	_, err = VerifyToken(expired)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Unauthorized, e.Category)

	valid, err := IssueToken("user-1", clientID("client-1"), "client", time.Second)
	require.NoError(t, err)
	_, err = VerifyToken(valid)
	assert.NoError(t, err)
}

func TestVerifyFailuresAreUniform(t *testing.T) {
	good, err := IssueToken("user-1", clientID("client-1"), "client", time.Hour)
	require.NoError(t, err)

	tampered := good[:len(good)-2] + "xx"
	expired, err := IssueToken("user-1", clientID("client-1"), "client", -time.Minute)
	require.NoError(t, err)

	cases := map[string]string{
		"malformed": "not-a-token",
		"two parts": "aaaa.bbbb",
		"tampered":  tampered,
		"expired":   expired,
	}
	var messages []string
	for name, raw := range cases {
		_, err := VerifyToken(raw)
		require.Error(t, err, name)
		e, ok := apperr.As(err)
		require.True(t, ok, name)
		assert.Equal(t, apperr.Unauthorized, e.Category, name)
		messages = append(messages, e.Message)
	}
	// same message for every sub-reason; no oracle for attackers
	for _, m := range messages {
		assert.Equal(t, messages[0], m)
	}
}
