// Package auth issues and verifies the bearer tokens of the admin API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "lakeadmin"

// Claims are the registered claims plus the operator the token was minted for.
type Claims struct {
	jwt.RegisteredClaims
	Operator string `json:"operator"`
}

var now = time.Now

func GenerateToken(operator string, secretKey []byte, validity time.Duration) (string, error) {
	if operator == "" {
		return "", fmt.Errorf("%w: operator is required", common.ErrorValidation)
	}
	if len(secretKey) == 0 {
		return "", fmt.Errorf("%w: empty signing secret", common.ErrorValidation)
	}
	issued := now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(validity)),
		},
		Operator: operator,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns the operator it was minted for.
// An expired token yields common.ErrTokenExpired, anything else that fails
// verification yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (string, error) {
	return ParseTokenMaxValidity(tokenString, secretKey, 0)
}

// ParseTokenMaxValidity is ParseToken that also rejects tokens minted with a
// validity longer than maxValidity. Zero disables the limit.
func ParseTokenMaxValidity(tokenString string, secretKey []byte, maxValidity time.Duration) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Operator == "" {
		return "", common.ErrInvalidToken
	}
	if maxValidity > 0 {
		if claims.IssuedAt == nil || claims.ExpiresAt == nil ||
			claims.ExpiresAt.Sub(claims.IssuedAt.Time) > maxValidity {
			return "", fmt.Errorf("%w: validity exceeds %s", common.ErrInvalidToken, maxValidity)
		}
	}

	return claims.Operator, nil
}
