package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is fixed; bcrypt embeds a fresh random salt per call, so two
// hashes of the same secret never collide in storage.
const bcryptCost = 12

// HashSecret derives a storage hash for a password-grade secret.
func HashSecret(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
}

// VerifySecret recomputes with the salt embedded in stored and compares in
// constant structure. A nil error means the secret matches.
func VerifySecret(plaintext string, stored []byte) error {
	return bcrypt.CompareHashAndPassword(stored, []byte(plaintext))
}

// GenerateOTP returns a numeric one-time code of the given length.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("otp length must be positive")
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// HashOTP is a fast digest for storing one-time codes. Codes are time-boxed
// and single-use, so no salt or work factor is required.
func HashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
