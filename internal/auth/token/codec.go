// Package token implements the two mesh credential codecs: signed user
// tokens and signed service tokens. The kinds share no parsing logic;
// each codec owns its secret and payload shape.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the token lifetime applied when a codec is built
// without an explicit one.
const DefaultTTL = time.Hour

// UserClaims is the payload of a user token.
type UserClaims struct {
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *UserClaims) UserID() string {
	return c.Subject
}

// ServiceClaims is the payload of a service token.
type ServiceClaims struct {
	ServiceName string   `json:"service_name,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// ServiceID returns the subject of the token.
func (c *ServiceClaims) ServiceID() string {
	return c.Subject
}

// UserCodec signs and verifies user tokens.
type UserCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewUserCodec creates a codec for user tokens. ttl <= 0 falls back to
// DefaultTTL.
func NewUserCodec(secret string, ttl time.Duration) (*UserCodec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &UserCodec{secret: []byte(secret), ttl: ttl}, nil
}

// Sign issues a signed user token.
func (c *UserCodec) Sign(userID, email, role string, permissions []string) (string, error) {
	now := time.Now()
	claims := UserClaims{
		Email:       email,
		Role:        role,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses and validates a user token, returning its claims.
func (c *UserCodec) Verify(tokenStr string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &UserClaims{}, hmacKeyfunc(c.secret))
	if err != nil {
		return nil, translateError(err)
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if claims.Permissions == nil {
		claims.Permissions = []string{}
	}

	return claims, nil
}

// ServiceCodec signs and verifies service tokens.
type ServiceCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewServiceCodec creates a codec for service tokens. ttl <= 0 falls
// back to DefaultTTL.
func NewServiceCodec(secret string, ttl time.Duration) (*ServiceCodec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ServiceCodec{secret: []byte(secret), ttl: ttl}, nil
}

// Sign issues a signed service token.
func (c *ServiceCodec) Sign(serviceID, serviceName string, permissions []string) (string, error) {
	now := time.Now()
	claims := ServiceClaims{
		ServiceName: serviceName,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   serviceID,
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses and validates a service token, returning its claims.
func (c *ServiceCodec) Verify(tokenStr string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ServiceClaims{}, hmacKeyfunc(c.secret))
	if err != nil {
		return nil, translateError(err)
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if claims.Permissions == nil {
		claims.Permissions = []string{}
	}

	return claims, nil
}

// hmacKeyfunc returns a keyfunc that only accepts HMAC-signed tokens.
func hmacKeyfunc(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return secret, nil
	}
}
