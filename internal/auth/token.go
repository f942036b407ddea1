package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/todoapi/apiserver/types"
)

// Claims is the verified identity carried by an access token.
type Claims struct {
	Username  string
	UserID    int
	Role      types.Role
	ExpiresAt time.Time
}

// IsAdmin reports whether the claims bypass ownership scoping.
func (c Claims) IsAdmin() bool {
	return c.Role.IsAdmin()
}

type tokenClaims struct {
	UserID *int   `json:"id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens with a single secret
// fixed at construction.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager returns a manager signing with secret.
func NewTokenManager(secret string) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	return &TokenManager{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// Issue signs a token for the given identity that expires ttl from now.
func (m *TokenManager) Issue(username string, userID int, role types.Role, ttl time.Duration) (string, error) {
	now := m.now()
	id := userID
	claims := tokenClaims{
		UserID: &id,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks the signature and expiry of tokenString and returns its
// claims. Failures wrap ErrMalformedToken, ErrInvalidSignature, ErrExpired or
// ErrMissingClaim.
func (m *TokenManager) Verify(tokenString string) (Claims, error) {
	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &parsed, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, classifyParseError(err)
	}

	if strings.TrimSpace(parsed.Subject) == "" || parsed.UserID == nil || parsed.Role == "" {
		return Claims{}, ErrMissingClaim
	}

	claims := Claims{
		Username: parsed.Subject,
		UserID:   *parsed.UserID,
		Role:     types.Role(parsed.Role),
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %w", ErrMissingClaim, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
}
