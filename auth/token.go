package auth

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"contentops-backend/apperr"
)

const (
	// TokenKindSession is the normal API session credential.
	TokenKindSession = "session"
)

// Claims is the self-certifying session payload. Admin tokens carry no
// tenant binding; client tokens must.
type Claims struct {
	ClientID *string `json:"client_id,omitempty"`
	Role     string  `json:"role"`
	Kind     string  `json:"kind"`
	jwt.RegisteredClaims
}

var (
	secretOnce sync.Once
	jwtSecret  []byte
	secretErr  error
)

func loadSecret() error {
	secretOnce.Do(func() {
		// Prefer JWT_SECRET_KEY, fallback to JWT_SECRET
		sec := os.Getenv("JWT_SECRET_KEY")
		if strings.TrimSpace(sec) == "" {
			sec = os.Getenv("JWT_SECRET")
		}
		if strings.TrimSpace(sec) == "" {
			secretErr = errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
			return
		}
		jwtSecret = []byte(sec)
	})
	return secretErr
}

// IssueToken signs an HS256 token for the subject. clientID is nil for
// admin tokens and required for client tokens.
func IssueToken(userID string, clientID *string, role string, ttl time.Duration) (string, error) {
	if err := loadSecret(); err != nil {
		return "", err
	}
	if role == "client" && (clientID == nil || strings.TrimSpace(*clientID) == "") {
		return "", errors.New("client tokens require a client id")
	}
	now := time.Now()
	claims := &Claims{
		ClientID: clientID,
		Role:     role,
		Kind:     TokenKindSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// VerifyToken parses and checks a session token. Malformed structure, bad
// signature and expiry are deliberately collapsed into one uniform
// unauthorized error so callers cannot probe which check failed. Expiry is
// exclusive: a token whose expires_at equals now is already invalid.
func VerifyToken(raw string) (*Claims, error) {
	if err := loadSecret(); err != nil {
		return nil, err
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.New(apperr.Unauthorized, "invalid or expired token")
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.Kind != TokenKindSession {
		return nil, apperr.New(apperr.Unauthorized, "invalid or expired token")
	}
	if claims.Role == "client" && (claims.ClientID == nil || *claims.ClientID == "") {
		return nil, apperr.New(apperr.Unauthorized, "invalid or expired token")
	}
	return &claims, nil
}
