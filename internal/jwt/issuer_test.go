package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/ediflysi/jetdesk/internal/authz"
)

func testIssuer(t *testing.T, ttl time.Duration) *Issuer {
	t.Helper()
	ks, err := NewDevEd25519("test-1")
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	return NewIssuer(ks, "https://jetdesk.test", ttl)
}

func testClaims() Claims {
	return Claims{
		UserID:   "u-123",
		Username: "pilot1",
		Name:     "Pilot One",
		Level:    authz.GrantsForRole(authz.RoleOperationsManager),
		Role:     authz.RoleOperationsManager,
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	iss := testIssuer(t, time.Hour)
	tok, err := iss.Issue(testClaims())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	want := testClaims()
	if got.UserID != want.UserID || got.Username != want.Username || got.Name != want.Name {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if got.Level != want.Level || got.Role != want.Role {
		t.Fatalf("authority mismatch: level=%#x role=%s", got.Level, got.Role)
	}
	if got.ExpiresAt.Sub(got.IssuedAt) != time.Hour {
		t.Fatalf("lifetime = %v, want 1h", got.ExpiresAt.Sub(got.IssuedAt))
	}
}

func TestVerify_RejectsForgedAndMalformed(t *testing.T) {
	iss := testIssuer(t, time.Hour)
	other := testIssuer(t, time.Hour)

	tok, _ := other.Issue(testClaims())
	if _, err := iss.Verify(tok); err != ErrInvalidToken {
		t.Fatalf("foreign signature: got %v", err)
	}

	good, _ := iss.Issue(testClaims())
	// Alterar el payload invalida la firma.
	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := iss.Verify(tampered); err != ErrInvalidToken {
		t.Fatalf("tampered payload: got %v", err)
	}
	if _, err := iss.Verify("not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("garbage: got %v", err)
	}
	if _, err := iss.Verify(""); err != ErrInvalidToken {
		t.Fatalf("empty: got %v", err)
	}
}

func TestVerify_RejectsExpired(t *testing.T) {
	iss := testIssuer(t, time.Hour)
	base := time.Now()
	iss.now = func() time.Time { return base }

	tok, _ := iss.Issue(testClaims())

	iss.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := iss.Verify(tok); err != ErrInvalidToken {
		t.Fatalf("expired token: got %v", err)
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	iss := testIssuer(t, time.Hour)
	tok, _ := iss.Issue(testClaims())

	verifier := NewIssuer(iss.Keys, "https://other.test", time.Hour)
	if _, err := verifier.Verify(tok); err != ErrInvalidToken {
		t.Fatalf("wrong issuer: got %v", err)
	}
}

func TestRefresh_ThresholdSemantics(t *testing.T) {
	iss := testIssuer(t, 24*time.Hour)
	base := time.Now()
	iss.now = func() time.Time { return base }

	tok, _ := iss.Issue(testClaims())

	// Recién emitido: lejos de expirar, no elegible.
	if _, err := iss.Refresh(tok); err != ErrNotEligible {
		t.Fatalf("fresh token refresh: got %v, want ErrNotEligible", err)
	}

	// A menos de una hora de expirar: se reemite y el nuevo verifica.
	iss.now = func() time.Time { return base.Add(24*time.Hour - 30*time.Minute) }
	renewed, err := iss.Refresh(tok)
	if err != nil {
		t.Fatalf("eligible refresh: %v", err)
	}
	got, err := iss.Verify(renewed)
	if err != nil {
		t.Fatalf("verify renewed: %v", err)
	}
	if got.UserID != "u-123" || got.Role != authz.RoleOperationsManager {
		t.Fatalf("renewed claims mismatch: %+v", got)
	}
	// El reemitido extiende la vida desde ahora.
	if got.ExpiresAt.Sub(iss.clock()) != 24*time.Hour {
		t.Fatalf("renewed lifetime = %v", got.ExpiresAt.Sub(iss.clock()))
	}

	// Token ya expirado: inválido, no elegible.
	iss.now = func() time.Time { return base.Add(25 * time.Hour) }
	if _, err := iss.Refresh(tok); err != ErrInvalidToken {
		t.Fatalf("expired refresh: got %v", err)
	}
}

func TestFromSeed_RoundTrip(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	b64 := "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=" // base64(seed)

	ks, err := FromSeed(b64, "seeded-1")
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	iss := NewIssuer(ks, "https://jetdesk.test", time.Hour)
	tok, err := iss.Issue(testClaims())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := iss.Verify(tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if _, err := FromSeed("nope!", "x"); err == nil {
		t.Fatal("bad base64 must fail")
	}
	if _, err := FromSeed("AAAA", "x"); err == nil {
		t.Fatal("short seed must fail")
	}
}
