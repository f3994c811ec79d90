package authsvc

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrupp/eventhub/internal/domain"
)

// Claims are the JWT claims of an access token. The subject is the account ID.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SignToken signs claims with RS256.
func SignToken(claims *Claims, signingKey *rsa.PrivateKey) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// ValidateToken verifies the RS256 signature, issuer and expiry of an access
// token as of now and returns its claims. Every validation failure wraps
// domain.ErrInvalidAuthToken.
func ValidateToken(tokenString string, publicKey *rsa.PublicKey, issuer string, now time.Time) (*Claims, error) {
	claims := new(Claims)

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return publicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidAuthToken, fmt.Errorf("parse token: %w", err))
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or id", domain.ErrInvalidAuthToken)
	}

	return claims, nil
}
