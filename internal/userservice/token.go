package userservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sushihentaime/postboard/internal/common"
)

var (
	ErrMissingToken      = fmt.Errorf("%w: missing bearer token", common.ErrUnauthenticated)
	ErrInvalidToken      = fmt.Errorf("%w: invalid token", common.ErrUnauthenticated)
	ErrExpiredToken      = fmt.Errorf("%w: token has expired", common.ErrUnauthenticated)
	ErrPrincipalNotFound = fmt.Errorf("%w: token subject no longer exists", common.ErrUnauthenticated)
)

const bearerScheme = "bearer"

type principalLookup interface {
	getPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error)
}

// Verifier issues and verifies HS256 access tokens. The secret is fixed at
// construction and never changes afterwards.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	users  principalLookup
	now    func() time.Time
}

type claims struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
	jwt.RegisteredClaims
}

func NewVerifier(secret string, ttl time.Duration, users principalLookup) *Verifier {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &Verifier{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
		now:    time.Now,
	}
}

// Issue signs an access token whose subject is the user's id.
func (v *Verifier) Issue(u *User) (*AuthToken, error) {
	now := v.now()
	expiry := now.Add(v.ttl)

	c := claims{
		Name: u.Name,
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
	if err != nil {
		return nil, err
	}

	return &AuthToken{Token: signed, Expiry: expiry}, nil
}

// Verify resolves the raw Authorization header value to a principal. It
// performs a single user lookup and never writes.
func (v *Verifier) Verify(ctx context.Context, header string) (*Principal, error) {
	token, err := extractBearerToken(header)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)

	var c claims
	_, err = parser.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		default:
			return nil, ErrInvalidToken
		}
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	p, err := v.users.getPrincipal(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRecordNotFound):
			return nil, ErrPrincipalNotFound
		default:
			return nil, err
		}
	}

	return p, nil
}

func extractBearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", ErrMissingToken
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	return token, nil
}
