package service

import (
	"fmt"
	"time"

	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/clock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTTokenService implements ports.TokenService using HS256 JWT.
// Tokens carry a jti so that sessions can be revoked server-side.
type JWTTokenService struct {
	secret           []byte
	expiry           time.Duration
	capabilityExpiry time.Duration
	issuer           string
	clock            clock.Clock
}

// NewJWTTokenService creates a new JWT token service. Full-scope tokens live
// for expiry, single-capability tokens for capabilityExpiry. Issue and
// expiry times are read from clk.
func NewJWTTokenService(secret string, expiry, capabilityExpiry time.Duration, issuer string, clk clock.Clock) *JWTTokenService {
	return &JWTTokenService{
		secret:           []byte(secret),
		expiry:           expiry,
		capabilityExpiry: capabilityExpiry,
		issuer:           issuer,
		clock:            clk,
	}
}

// Generate creates a signed JWT for the account with the given scope.
func (s *JWTTokenService) Generate(accountID uuid.UUID, scope string) (*ports.IssuedToken, error) {
	now := s.clock.Now()
	ttl := s.expiry
	if scope != ports.ScopeFull && s.capabilityExpiry != 0 {
		ttl = s.capabilityExpiry
	}
	expiresAt := now.Add(ttl)
	tokenID := uuid.NewString()

	claims := jwt.MapClaims{
		"sub":   accountID.String(),
		"jti":   tokenID,
		"scope": scope,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
		"iss":   s.issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &ports.IssuedToken{
		Token:     tokenString,
		TokenID:   tokenID,
		Scope:     scope,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate parses and validates a JWT token, returning the claims.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("missing subject claim")
	}

	accountID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid account ID in token: %w", err)
	}

	tokenID, _ := claims["jti"].(string)
	if tokenID == "" {
		return nil, fmt.Errorf("missing token id claim")
	}

	scope, _ := claims["scope"].(string)
	if scope == "" {
		scope = ports.ScopeFull
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return &ports.TokenClaims{
		AccountID: accountID,
		TokenID:   tokenID,
		Scope:     scope,
		ExpiresAt: expiresAt,
	}, nil
}
