package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// RoleAdmin is the only role the booking API distinguishes; everyone else is a member.
const RoleAdmin = "admin"

// Claims identifies the caller. Subject carries the user id.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

func (c *Claims) IsAdmin() bool { return c.Role == RoleAdmin }

// NewClaims builds claims for userID valid for ttl from now.
func NewClaims(userID, role string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

type Header struct {
	Alg string
	Kid string
}

// ParseHeader reads the JOSE header without verifying the signature so the
// caller can pick a key.
func ParseHeader(token string) (*Header, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		return nil, ErrInvalidToken
	}
	h := &Header{}
	h.Alg, _ = parsed.Header["alg"].(string)
	h.Kid, _ = parsed.Header["kid"].(string)
	return h, nil
}

func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	return parse(token, jwt.SigningMethodHS256.Alg(), func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
}

func VerifyRS256(token string, pubKey *rsa.PublicKey) (*Claims, error) {
	if pubKey == nil {
		return nil, ErrInvalidToken
	}
	return parse(token, jwt.SigningMethodRS256.Alg(), func(*jwt.Token) (any, error) {
		return pubKey, nil
	})
}

// Verify accepts RS256 tokens whose kid resolves through jwks and falls back to
// HS256 with secret for everything else. jwks may be nil.
func Verify(ctx context.Context, token, secret string, jwks *JWKSClient) (*Claims, error) {
	if jwks == nil {
		return ParseAndVerifyHS256(token, secret)
	}
	header, err := ParseHeader(token)
	if err != nil {
		return nil, err
	}
	if header.Alg == jwt.SigningMethodRS256.Alg() && header.Kid != "" {
		pub, err := jwks.Get(ctx, header.Kid)
		if err != nil {
			return nil, ErrInvalidToken
		}
		return VerifyRS256(token, pub)
	}
	return ParseAndVerifyHS256(token, secret)
}

func parse(token, alg string, keyFunc jwt.Keyfunc) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, keyFunc,
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
