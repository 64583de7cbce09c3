package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/caldora/practice-authz/internal/infra/config"
)

// ErrInvalidAccessToken indicates the supplied token failed signature or claim validation.
var ErrInvalidAccessToken = errors.New("invalid access token")

// ErrExpiredAccessToken indicates the supplied token is past its expiry.
var ErrExpiredAccessToken = errors.New("access token expired")

// AccessClaims carries the subset of JWT claims the authorization layer needs.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *AccessClaims) UserID() string {
	return strings.TrimSpace(c.Subject)
}

// TokenVerifier validates HMAC-signed access tokens issued by the identity provider.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenVerifier constructs a TokenVerifier from the JWT settings.
func NewTokenVerifier(cfg config.JWTSettings) (*TokenVerifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &TokenVerifier{
		secret: []byte(secret),
		issuer: strings.TrimSpace(cfg.Issuer),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the verifier clock for deterministic tests.
func (v *TokenVerifier) WithClock(clock func() time.Time) *TokenVerifier {
	if clock != nil {
		v.now = clock
	}
	return v
}

// Verify parses and validates a bearer token, returning its claims when valid.
func (v *TokenVerifier) Verify(token string) (*AccessClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAccessToken
	}

	claims := &AccessClaims{}

	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(v.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}
	if claims.UserID() == "" {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}
