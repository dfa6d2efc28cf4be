package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"

	BearerTokenType = "bearer"
)

// ErrInvalidToken covers every verification failure: bad signature, malformed
// payload, wrong type and expiry all look the same to the caller.
var ErrInvalidToken = errors.New("could not validate credentials")

type Claims struct {
	Email  string    `json:"email"`
	Type   TokenType `json:"type"`
	Scopes []string  `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type TokenCodec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenCodec(secret string, algorithm string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if secret == "" {
		return nil, errors.New("signing secret is empty")
	}
	return &TokenCodec{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (c *TokenCodec) IssueAccess(userID, email string, scopes []string, ttl time.Duration) (string, error) {
	if scopes == nil {
		scopes = []string{}
	}
	return c.issue(userID, email, TokenTypeAccess, scopes, ttl)
}

func (c *TokenCodec) IssueRefresh(userID, email string, ttl time.Duration) (string, error) {
	return c.issue(userID, email, TokenTypeRefresh, nil, ttl)
}

func (c *TokenCodec) IssuePair(userID, email string, scopes []string) (TokenPair, error) {
	access, err := c.IssueAccess(userID, email, scopes, c.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.IssueRefresh(userID, email, c.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    BearerTokenType,
		ExpiresIn:    int64(c.accessTTL / time.Second),
	}, nil
}

func (c *TokenCodec) issue(userID, email string, typ TokenType, scopes []string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := Claims{
		Email:  email,
		Type:   typ,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func (c *TokenCodec) Verify(tokenStr string, expected TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	// jwt treats exp as inclusive; a token is dead at its expiry instant.
	if !c.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrInvalidToken
	}
	if claims.Type != expected || claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
