package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, secret []byte, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestNewJWTVerifier_RejectsShortSecret(t *testing.T) {
	if _, err := NewJWTVerifier([]byte("too short"), ""); err == nil {
		t.Fatalf("short secret must be rejected at construction")
	}
}

func TestJWTVerifier_MapsClaimsToPrincipal(t *testing.T) {
	v, err := NewJWTVerifier(testSecret, "slate-idp")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "user:amy",
		"iss":    "slate-idp",
		"exp":    time.Now().Add(time.Hour).Unix(),
		"name":   "Amy",
		"email":  "amy@example.com",
		"avatar": "https://cdn.example.com/amy.png",
	})

	p, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want := Principal{ID: "user:amy", Name: "Amy", Email: "amy@example.com", Avatar: "https://cdn.example.com/amy.png"}
	if p != want {
		t.Fatalf("principal = %+v, want %+v", p, want)
	}
}

func TestJWTVerifier_RejectsBadSignature(t *testing.T) {
	v, _ := NewJWTVerifier(testSecret, "")

	other := []byte("ffffffffffffffffffffffffffffffff")
	token := signToken(t, other, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user:amy",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestJWTVerifier_RejectsWrongAlgorithm(t *testing.T) {
	v, _ := NewJWTVerifier(testSecret, "")

	// HS384 is signed with the same shared secret but is outside the
	// allowed method set.
	token := signToken(t, testSecret, jwt.SigningMethodHS384, jwt.MapClaims{
		"sub": "user:amy",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestJWTVerifier_RequiresExpiration(t *testing.T) {
	v, _ := NewJWTVerifier(testSecret, "")

	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user:amy",
	})

	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("token without exp must be rejected, got %v", err)
	}
}

func TestJWTVerifier_RejectsExpired(t *testing.T) {
	v, _ := NewJWTVerifier(testSecret, "")

	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user:amy",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
}

func TestJWTVerifier_ChecksIssuer(t *testing.T) {
	v, _ := NewJWTVerifier(testSecret, "slate-idp")

	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user:amy",
		"iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("wrong issuer must be rejected, got %v", err)
	}
}

func TestJWTVerifier_RequiresSubject(t *testing.T) {
	v, _ := NewJWTVerifier(testSecret, "")

	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("token without sub must be rejected, got %v", err)
	}
}

func TestJWTVerifier_RejectsEmptyCredential(t *testing.T) {
	v, _ := NewJWTVerifier(testSecret, "")

	if _, err := v.Verify(context.Background(), "   "); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("blank credential must be rejected, got %v", err)
	}
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier()
	v.Add("tok-amy", Principal{ID: "user:amy", Name: "Amy"})

	p, err := v.Verify(context.Background(), "tok-amy")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.ID != "user:amy" {
		t.Fatalf("principal = %+v", p)
	}

	if _, err := v.Verify(context.Background(), "unknown"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("unknown credential must be rejected, got %v", err)
	}
}
