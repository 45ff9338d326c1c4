package app

import (
	"strings"
	"testing"
)

func TestValidateSecurityConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "policy off accepts anything",
			cfg:  Config{RequireJWTSecret: false},
		},
		{
			name:    "policy on rejects missing secret",
			cfg:     Config{RequireJWTSecret: true},
			wantErr: "missing",
		},
		{
			name:    "policy on rejects short secret",
			cfg:     Config{RequireJWTSecret: true, JWTSecret: "short"},
			wantErr: "too short",
		},
		{
			name:    "policy on rejects mangled utf8",
			cfg:     Config{RequireJWTSecret: true, JWTSecret: strings.Repeat("a", 31) + "\xff"},
			wantErr: "UTF-8",
		},
		{
			name: "policy on accepts 32 byte secret",
			cfg:  Config{RequireJWTSecret: true, JWTSecret: strings.Repeat("a", 32)},
		},
	}

	for _, tc := range tests {
		err := ValidateSecurityConfig(tc.cfg)
		if tc.wantErr == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("%s: got %v, want %q", tc.name, err, tc.wantErr)
		}
	}
}
