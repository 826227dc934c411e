package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey        string
	RefreshSigningKey string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	Issuer            string
}

// UserClaims represents the access token claims. The user id travels in the
// registered subject claim.
type UserClaims struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	TenantID   string `json:"tenantId,omitempty"`
	TenantSlug string `json:"tenantSlug,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token
func (c *UserClaims) UserID() string {
	return c.Subject
}

// RefreshClaims represents the refresh token claims. TokenID is the primary
// key of the stored refresh token row.
type RefreshClaims struct {
	TokenID string `json:"tokenId"`
	jwt.RegisteredClaims
}

// JWTUtil is a utility for JWT token operations
type JWTUtil struct {
	config *JWTConfig
	now    func() time.Time
}

// NewJWTUtil creates a new JWT utility with the given configuration
func NewJWTUtil(config *JWTConfig) *JWTUtil {
	return &JWTUtil{
		config: config,
		now:    time.Now,
	}
}

// AccessTTL is the lifetime of access tokens
func (j *JWTUtil) AccessTTL() time.Duration {
	return j.config.AccessTTL
}

// RefreshTTL is the lifetime of refresh tokens
func (j *JWTUtil) RefreshTTL() time.Duration {
	return j.config.RefreshTTL
}

// GenerateAccessToken creates an access token for the user and tenant
func (j *JWTUtil) GenerateAccessToken(userID, email, role, tenantID, tenantSlug string) (string, error) {
	if j.config == nil || j.config.SigningKey == "" {
		return "", errors.New("JWT configuration not provided")
	}

	now := j.now()
	claims := UserClaims{
		Email:      email,
		Role:       role,
		TenantID:   tenantID,
		TenantSlug: tenantSlug,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    j.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.SigningKey))
}

// GenerateRefreshToken signs a refresh token bound to a stored token row
func (j *JWTUtil) GenerateRefreshToken(userID, tokenID string, expiresAt time.Time) (string, error) {
	if j.config == nil || j.config.RefreshSigningKey == "" {
		return "", errors.New("JWT refresh configuration not provided")
	}

	claims := RefreshClaims{
		TokenID: tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    j.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(j.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.RefreshSigningKey))
}

// ValidateToken validates and parses an access token
func (j *JWTUtil) ValidateToken(tokenString string) (*UserClaims, error) {
	if j.config == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	claims := &UserClaims{}
	if err := j.parse(tokenString, claims, j.config.SigningKey); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// ValidateRefreshToken validates and parses a refresh token
func (j *JWTUtil) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	if j.config == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	claims := &RefreshClaims{}
	if err := j.parse(tokenString, claims, j.config.RefreshSigningKey); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.TokenID == "" {
		return nil, errors.New("refresh token is missing required claims")
	}
	return claims, nil
}

func (j *JWTUtil) parse(tokenString string, claims jwt.Claims, signingKey string) error {
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(signingKey), nil
		},
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
