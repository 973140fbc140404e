package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/itbasis/go-clock"
	"github.com/mauv0809/scoreline/internal/apperr"
)

const (
	kindPrincipal = "principal"
	kindAdmin     = "admin"
)

// PrincipalClaims identify an authenticated caller.
type PrincipalClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// AdminClaims are the signed {admin, leagueId, version} assertion bound to
// one principal (Subject) and one server-side session (ID).
type AdminClaims struct {
	Kind     string `json:"kind"`
	Admin    bool   `json:"admin"`
	LeagueID string `json:"leagueId"`
	Version  int    `json:"version"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens. Expiry is checked against its own
// clock rather than the wall clock.
type Signer struct {
	secret       []byte
	clock        clock.Clock
	principalTTL time.Duration
}

func NewSigner(secret string, clk clock.Clock, principalTTL time.Duration) *Signer {
	return &Signer{secret: []byte(secret), clock: clk, principalTTL: principalTTL}
}

// IssuePrincipal creates a new anonymous principal and its token.
func (s *Signer) IssuePrincipal() (token string, principalID string, expiresAt time.Time, err error) {
	now := s.clock.Now().UTC()
	principalID = uuid.NewString()
	expiresAt = now.Add(s.principalTTL)
	claims := PrincipalClaims{
		Kind: kindPrincipal,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = s.sign(claims)
	return token, principalID, expiresAt, err
}

// ParsePrincipal returns the principal id carried by token.
func (s *Signer) ParsePrincipal(token string) (string, error) {
	claims := &PrincipalClaims{}
	if err := s.parse(token, claims, &claims.RegisteredClaims); err != nil {
		return "", apperr.Wrap(apperr.Unauthenticated, err, "invalid principal token")
	}
	if claims.Kind != kindPrincipal || claims.Subject == "" {
		return "", apperr.New(apperr.Unauthenticated, "invalid principal token")
	}
	return claims.Subject, nil
}

// SignAdmin signs c as an admin claim.
func (s *Signer) SignAdmin(c AdminClaims) (string, error) {
	c.Kind = kindAdmin
	return s.sign(c)
}

// ParseAdmin verifies signature and expiry of an admin claim. Session and
// version checks are the caller's business.
func (s *Signer) ParseAdmin(token string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	if err := s.parse(token, claims, &claims.RegisteredClaims); err != nil {
		return nil, err
	}
	if claims.Kind != kindAdmin {
		return nil, errors.New("not an admin claim")
	}
	return claims, nil
}

func (s *Signer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Signer) parse(token string, claims jwt.Claims, registered *jwt.RegisteredClaims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return err
	}
	if !registered.VerifyExpiresAt(s.clock.Now(), true) {
		return errors.New("token is expired")
	}
	return nil
}
