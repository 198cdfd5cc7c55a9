package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecretNeverCollides(t *testing.T) {
	h1, err := HashSecret("hunter2hunter2")
	require.NoError(t, err)
	h2, err := HashSecret("hunter2hunter2")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "two hashes of the same secret must differ in storage")
	assert.NoError(t, VerifySecret("hunter2hunter2", h1))
	assert.NoError(t, VerifySecret("hunter2hunter2", h2))
}

func TestVerifySecretRejectsWrongPassword(t *testing.T) {
	h, err := HashSecret("correct horse")
	require.NoError(t, err)

	assert.Error(t, VerifySecret("wrong horse", h))
	assert.Error(t, VerifySecret("", h))
}

func TestGenerateOTP(t *testing.T) {
	code, err := GenerateOTP(6)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "otp must be numeric, got %q", code)
	}

	_, err = GenerateOTP(0)
	assert.Error(t, err)
}

func TestHashOTP(t *testing.T) {
	a := HashOTP("123456")
	b := HashOTP("123456")
	c := HashOTP("123457")

	assert.Equal(t, a, b, "otp digest must be deterministic")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // sha256 hex
}
