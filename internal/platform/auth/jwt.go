package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every validation failure: bad signature, wrong
// algorithm, issuer/audience mismatch, out-of-window timestamps, garbage input.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Sub   uuid.UUID `json:"sub"`
	Roles []string  `json:"roles"`
	jwt.RegisteredClaims
}

// Issuer builds and checks the signed bearer tokens handed out on login.
// A single symmetric secret signs everything (HS256).
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration

	now func() time.Time
}

func NewIssuer(secret, issuer, audience string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue signs a token for the subject carrying one entry per assigned role.
// Valid from now until now + ttl.
func (i *Issuer) Issue(subject uuid.UUID, roles []string) (string, error) {
	now := i.now()
	claims := Claims{
		Sub:   subject,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  []string{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate verifies signature, algorithm, issuer, audience and the
// [not-before, expiry) window. Malformed input yields ErrInvalidToken,
// never a panic.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Decode reads the payload WITHOUT verifying the signature. Callers must only
// use the result for error reporting or lookups on a token that has already
// passed Validate; decoded-but-unverified claims are never an authorization
// decision on their own.
func (i *Issuer) Decode(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	tok, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
