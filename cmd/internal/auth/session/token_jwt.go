package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the identity envelope embedded in an access token.
type AccessClaims struct {
	PrincipalID string
	Email       string
	ExpiresAt   time.Time
	IssuedAt    time.Time
	Issuer      string
}

// AccessTokenManager issues and verifies short-lived access tokens.
// Verification is stateless: signature and expiry only, no store lookup.
type AccessTokenManager interface {
	Issue(principalID, email string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (AccessClaims, error)
}

type jwtClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type jwtHS256Manager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
	secret    []byte
}

// NewJWTManager builds an AccessTokenManager signing HS256 tokens with the
// configured secret. The secret is validated at construction so a missing key
// fails startup, not the first login.
func NewJWTManager(cfg Config) (AccessTokenManager, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, ErrConfig
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, ErrConfig
	}

	return &jwtHS256Manager{
		issuer:    cfg.Issuer,
		ttl:       cfg.AccessTokenTTL,
		clockSkew: cfg.ClockSkew,
		secret:    cfg.JWTSecret,
	}, nil
}

func (m *jwtHS256Manager) Issue(principalID, email string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.ttl)

	claims := jwtClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *jwtHS256Manager) Verify(tokenStr string, now time.Time) (AccessClaims, error) {
	var claims jwtClaims

	parsed, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		// Expiry gets its own kind so callers can distinguish a stale token
		// from a forged one.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AccessClaims{}, ErrTokenExpired
		}
		return AccessClaims{}, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Subject == "" || claims.Email == "" {
		return AccessClaims{}, ErrTokenInvalid
	}

	out := AccessClaims{
		PrincipalID: claims.Subject,
		Email:       claims.Email,
		Issuer:      claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}

	return out, nil
}
