package internal

import (
	"testing"
	"time"
)

func TestVerifyRoundTrip(t *testing.T) {
	identity := Identity{ID: "42", Name: "alice", Avatar: "https://example.com/a.png"}
	token, err := SignIdentity("s3cret", identity, time.Hour)
	if err != nil {
		t.Fatalf("SignIdentity: %v", err)
	}
	got, err := NewJWTVerifier("s3cret").Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != identity {
		t.Fatalf("expected %+v, got %+v", identity, got)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := SignIdentity("s3cret", Identity{ID: "42", Name: "alice"}, time.Hour)
	if err != nil {
		t.Fatalf("SignIdentity: %v", err)
	}
	if _, err := NewJWTVerifier("other").Verify(token); err != ErrAuth {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	token, err := SignIdentity("s3cret", Identity{ID: "42", Name: "alice"}, -time.Minute)
	if err != nil {
		t.Fatalf("SignIdentity: %v", err)
	}
	if _, err := NewJWTVerifier("s3cret").Verify(token); err != ErrAuth {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	token, err := SignIdentity("s3cret", Identity{Name: "nameless"}, time.Hour)
	if err != nil {
		t.Fatalf("SignIdentity: %v", err)
	}
	if _, err := NewJWTVerifier("s3cret").Verify(token); err != ErrAuth {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	verifier := NewJWTVerifier("s3cret")
	for _, credential := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := verifier.Verify(credential); err != ErrAuth {
			t.Fatalf("credential %q: expected ErrAuth, got %v", credential, err)
		}
	}
}
