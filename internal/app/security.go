package app

import (
	"errors"
	"unicode/utf8"
)

const minJWTSecretBytes = 32

// ValidateSecurityConfig enforces Slate's security policy at startup.
// Fail-fast is intentional: running production with credential verification
// silently disabled is unacceptable.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireJWTSecret {
		return nil
	}

	if cfg.JWTSecret == "" {
		return errors.New("security policy: SLATE_REQUIRE_JWT_SECRET=true but SLATE_JWT_SECRET is missing")
	}

	// Bytes, not runes: the secret is used as raw HMAC key material.
	if len(cfg.JWTSecret) < minJWTSecretBytes {
		return errors.New("security policy: SLATE_JWT_SECRET is too short (min 32 bytes)")
	}

	if !utf8.ValidString(cfg.JWTSecret) {
		return errors.New("security policy: SLATE_JWT_SECRET is not valid UTF-8; check your env quoting")
	}

	return nil
}
