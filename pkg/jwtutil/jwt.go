package jwtutil

import (
	"time"

	"agendacerto/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	secret          = []byte("agendacertosecretkey")
	expirationHours = 24
)

// Initialize configures the signing key and expiry from configuration
func Initialize(cfg *config.JWTConfig) {
	if cfg.SigningKey != "" {
		secret = []byte(cfg.SigningKey)
	}
	if cfg.ExpirationHours > 0 {
		expirationHours = cfg.ExpirationHours
	}
}

// UserClaims represents the JWT claims for user authentication
type UserClaims struct {
	Email     string `json:"email"`
	UserID    uint   `json:"user_id"`
	EmpresaID *uint  `json:"empresa_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a JWT token with user and empresa information
func GenerateToken(email string, userID uint, empresaID *uint) (string, error) {
	claims := UserClaims{
		Email:     email,
		UserID:    userID,
		EmpresaID: empresaID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
