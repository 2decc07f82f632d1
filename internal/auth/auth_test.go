package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return tok
}

func TestVerify(t *testing.T) {
	v := NewVerifier("s3cret")
	valid := jwt.RegisteredClaims{Subject: "user_123", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	sub, err := v.Verify(sign(t, "s3cret", jwt.SigningMethodHS256, valid))
	if err != nil || sub != "user_123" {
		t.Fatalf("Verify = %q, %v", sub, err)
	}

	bad := map[string]string{
		"wrong key": sign(t, "other", jwt.SigningMethodHS256, valid),
		"wrong alg": sign(t, "s3cret", jwt.SigningMethodHS512, valid),
		"expired": sign(t, "s3cret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "user_123", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}),
		"no exp":  sign(t, "s3cret", jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user_123"}),
		"no sub":  sign(t, "s3cret", jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: valid.ExpiresAt}),
		"garbage": "not.a.token",
		"empty":   "",
	}
	for name, tok := range bad {
		if _, err := v.Verify(tok); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("%s: err = %v, want unauthorized", name, err)
		}
	}

	if _, err := NewVerifier("").Verify(sign(t, "s3cret", jwt.SigningMethodHS256, valid)); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("empty secret must reject tokens, err = %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc.def"); got != "abc.def" {
		t.Fatalf("got %q", got)
	}
	if got := BearerToken("bearer abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := BearerToken("Basic abc"); got != "" {
		t.Fatalf("got %q", got)
	}
}
