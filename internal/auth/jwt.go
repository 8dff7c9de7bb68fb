package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const Audience = "support-portal-users"

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by every token the portal issues.
type Claims struct {
	Role        string   `json:"role"`
	Authorities []string `json:"authorities"`
	jwt.RegisteredClaims
}

// Subject is the minimal view of an account the issuer needs.
type Subject interface {
	GetUsername() string
	GetRole() string
	GetAuthorities() []string
}

// Issuer mints and verifies HS256 bearer tokens. Tokens are stateless; expiry
// is the only way one stops being valid.
type Issuer struct {
	secret   []byte
	issuer   string
	validity time.Duration
	now      func() time.Time
}

func NewIssuer(secret, issuer string, validity time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if validity <= 0 {
		return nil, fmt.Errorf("jwt validity must be positive, got %s", validity)
	}
	return &Issuer{
		secret:   []byte(secret),
		issuer:   issuer,
		validity: validity,
		now:      time.Now,
	}, nil
}

func (i *Issuer) Validity() time.Duration {
	return i.validity
}

// Issue signs a token for subject. Subjects with an unknown role get none.
func (i *Issuer) Issue(subject Subject) (string, error) {
	if _, err := ParseRole(subject.GetRole()); err != nil {
		return "", err
	}

	issuedAt := i.now()
	claims := &Claims{
		Role:        subject.GetRole(),
		Authorities: subject.GetAuthorities(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject.GetUsername(),
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.validity)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(Audience),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
