package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const minHMACSecretBytes = 32

// JWTVerifier verifies HMAC-signed JWT credentials issued by the external
// identity service. It only validates; it never issues tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
}

var _ Verifier = (*JWTVerifier)(nil)

// Claims are the profile claims expected in a Slate credential.
type claims struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTVerifier constructs a verifier. The secret must be at least 32 bytes
// for HMAC-SHA256; issuer is checked when non-empty.
func NewJWTVerifier(secret []byte, issuer string) (*JWTVerifier, error) {
	if len(secret) < minHMACSecretBytes {
		return nil, fmt.Errorf("identity: HMAC secret too short: min %d bytes", minHMACSecretBytes)
	}
	return &JWTVerifier{secret: secret, issuer: strings.TrimSpace(issuer)}, nil
}

// Verify parses and validates a JWT credential and maps its claims onto a
// Principal. Any parse or validation failure collapses into
// ErrInvalidCredential so callers cannot probe token internals.
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Principal{}, ErrInvalidCredential
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var c claims
	token, err := jwt.ParseWithClaims(credential, &c, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Principal{}, errors.Join(ErrInvalidCredential, err)
	}

	sub := strings.TrimSpace(c.Subject)
	if sub == "" {
		return Principal{}, ErrInvalidCredential
	}

	return Principal{
		ID:     sub,
		Name:   c.Name,
		Email:  c.Email,
		Avatar: c.Avatar,
	}, nil
}
