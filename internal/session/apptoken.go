package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAppTokenTTL keeps hosted-app tokens short-lived; the dashboard
// re-exchanges through the session cookie when one lapses.
const DefaultAppTokenTTL = 30 * time.Minute

// AppTokenClaims is the reduced claim set handed to the hosted dashboard.
// This is a real JWT under a secret distinct from the session cookie; the
// two token kinds are not interchangeable.
type AppTokenClaims struct {
	jwt.RegisteredClaims

	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Tier   Tier   `json:"tier"`
}

// AppTokenManager mints and verifies the short-lived HS256 tokens consumed
// by the externally hosted app.
type AppTokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAppTokenManager(secret string, ttl time.Duration) (*AppTokenManager, error) {
	if secret == "" {
		return nil, errors.New("app token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultAppTokenTTL
	}
	return &AppTokenManager{secret: []byte(secret), ttl: ttl}, nil
}

func (m *AppTokenManager) Issue(now time.Time, userID, email string, tier Tier) (string, error) {
	if userID == "" {
		return "", errors.New("userID is required")
	}
	claims := AppTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		UserID: userID,
		Email:  email,
		Tier:   tier,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

func (m *AppTokenManager) Verify(tokenString string, now time.Time) (AppTokenClaims, error) {
	var claims AppTokenClaims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30*time.Second), // clock skew tolerance
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return AppTokenClaims{}, err
	}

	if claims.UserID == "" {
		return AppTokenClaims{}, errors.New("userId missing")
	}
	if !claims.Tier.Valid() {
		return AppTokenClaims{}, errors.New("tier invalid")
	}
	return claims, nil
}
