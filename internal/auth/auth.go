// FilePath: internal/auth/auth.go

// Package auth validates the JWT carried in socket handshakes and resolves
// it to an operator account.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
	"github.com/vialibre/crosshub/internal/repository"
)

// Claims is the token payload. Subject carries the operator ID.
type Claims struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates tokens and loads the operator they belong to.
type Authenticator struct {
	secret    []byte
	issuer    string
	operators repository.OperatorRepository
}

func New(secret, issuer string, operators repository.OperatorRepository) *Authenticator {
	return &Authenticator{
		secret:    []byte(secret),
		issuer:    issuer,
		operators: operators,
	}
}

// Authenticate parses and verifies the token, then resolves the subject to
// an active operator. Inactive or unknown operators are rejected.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (*models.Operator, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.NewAuthError("invalid token", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.NewAuthError("invalid token", nil)
	}

	operator, err := a.operators.Get(ctx, claims.Subject)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewAuthError("unknown operator", err)
		}
		return nil, err
	}
	if !operator.Active {
		return nil, errors.NewAuthError("operator is deactivated", nil)
	}
	return operator, nil
}

// GenerateToken issues a token for the operator, used by the login endpoint
// and by tests.
func (a *Authenticator) GenerateToken(operator *models.Operator, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: operator.Username,
		Role:     operator.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", errors.NewInternalError("failed to sign token", err)
	}
	return signed, nil
}
