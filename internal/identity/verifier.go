// Package identity defines the credential-verifier collaborator: given an
// opaque credential it returns a stable principal id plus profile data.
// Credential issuance and storage live outside this system.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrInvalidCredential is returned for any credential that does not verify.
var ErrInvalidCredential = errors.New("identity: invalid credential")

// Principal is the verified subject behind a credential.
type Principal struct {
	ID     string
	Name   string
	Email  string
	Avatar string
}

// Verifier turns an opaque credential into a Principal.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Principal, error)
}

// StaticVerifier resolves credentials from a fixed map. Intended for tests
// and local development.
type StaticVerifier struct {
	mu         sync.RWMutex
	principals map[string]Principal
}

// NewStaticVerifier constructs an empty StaticVerifier.
func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{principals: make(map[string]Principal)}
}

// Add registers a credential -> principal mapping.
func (v *StaticVerifier) Add(credential string, p Principal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.principals[credential] = p
}

// Verify resolves a credential against the static table.
func (v *StaticVerifier) Verify(_ context.Context, credential string) (Principal, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Principal{}, ErrInvalidCredential
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	p, ok := v.principals[credential]
	if !ok {
		return Principal{}, ErrInvalidCredential
	}
	return p, nil
}
