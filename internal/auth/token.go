package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/compensation/internal/shared"
)

const defaultTokenTTL = time.Hour

// Claims is the JWT payload of an access token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds a TokenService from explicit settings.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret must be provided")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for p and returns it with its expiry.
func (s *TokenService) Issue(p shared.Principal) (string, time.Time, error) {
	if p.UserID <= 0 {
		return "", time.Time{}, errors.New("auth: principal requires a user id")
	}
	if p.Role != shared.RoleAdmin && p.Role != shared.RoleUser {
		return "", time.Time{}, fmt.Errorf("auth: unknown role %q", p.Role)
	}
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Username: p.Username,
		Role:     p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses raw and returns the principal it carries.
func (s *TokenService) Verify(raw string) (shared.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return shared.Principal{}, fmt.Errorf("%w: bad subject", shared.ErrInvalidToken)
	}
	return shared.Principal{UserID: userID, Username: claims.Username, Role: claims.Role}, nil
}
