package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMintAndVerify(t *testing.T) {
	iss := Issuer{Secret: "s3cret", Issuer: "guyub"}
	token, err := iss.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	sub, err := JWTVerifier{Secret: "s3cret", Issuer: "guyub"}.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("subject = %q", sub)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := Issuer{Secret: "a"}.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := (JWTVerifier{Secret: "b"}).Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-48 * time.Hour) }
	token, err := Issuer{Secret: "a", TTL: time.Hour, Now: past}.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := (JWTVerifier{Secret: "a"}).Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestVerifyRequiresSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("a"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := (JWTVerifier{Secret: "a"}).Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "x"}).SignedString([]byte("a"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := (JWTVerifier{Secret: "a"}).Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}
