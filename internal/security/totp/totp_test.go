package totp

import (
	"encoding/base32"
	"testing"
	"time"
)

// Vectores RFC 6238 Apéndice B (SHA1) truncados a 6 dígitos.
func TestVerify_RFC6238Vectors(t *testing.T) {
	secret := []byte("12345678901234567890")
	vectors := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}
	for _, v := range vectors {
		at := time.Unix(v.unix, 0).UTC()
		if got := Code(secret, at); got != v.code {
			t.Fatalf("Code at %d = %s, want %s", v.unix, got, v.code)
		}
		if !Verify(secret, v.code, at, 0) {
			t.Fatalf("vector %d should verify with window 0", v.unix)
		}
	}
}

func TestVerify_Window(t *testing.T) {
	secret := []byte("12345678901234567890")
	now := time.Unix(1111111109, 0).UTC()

	prev := Code(secret, now.Add(-Period*time.Second))
	next := Code(secret, now.Add(Period*time.Second))

	if Verify(secret, prev, now, 0) {
		t.Fatal("previous step must fail with window 0")
	}
	if !Verify(secret, prev, now, 1) || !Verify(secret, next, now, 1) {
		t.Fatal("adjacent steps must pass with window 1")
	}
	if Verify(secret, Code(secret, now.Add(2*Period*time.Second)), now, 1) {
		t.Fatal("two steps ahead must fail with window 1")
	}
}

func TestVerify_RejectsMalformedCodes(t *testing.T) {
	secret := []byte("12345678901234567890")
	now := time.Now()
	for _, code := range []string{"", "12345", "1234567", "  "} {
		if Verify(secret, code, now, 1) {
			t.Fatalf("malformed code %q must not verify", code)
		}
	}
	// El trim de espacios sí se tolera.
	if !Verify(secret, " "+Code(secret, now)+" ", now, 0) {
		t.Fatal("surrounding whitespace should be trimmed")
	}
}

func TestGenerateAndDecodeSecret(t *testing.T) {
	raw, enc, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(raw) != 20 {
		t.Fatalf("secret length = %d, want 20", len(raw))
	}
	back, err := DecodeSecret(enc)
	if err != nil {
		t.Fatalf("DecodeSecret: %v", err)
	}
	if string(back) != string(raw) {
		t.Fatal("decode(encode(secret)) mismatch")
	}
	// También acepta padding y minúsculas.
	padded := base32.StdEncoding.EncodeToString(raw)
	if b, err := DecodeSecret(padded); err != nil || string(b) != string(raw) {
		t.Fatalf("padded secret should decode, err=%v", err)
	}
}

func TestProvisioningURI(t *testing.T) {
	uri := ProvisioningURI("JetDesk", "pilot1", "ABC234")
	want := "otpauth://totp/JetDesk:pilot1?algorithm=SHA1&digits=6&issuer=JetDesk&period=30&secret=ABC234"
	if uri != want {
		t.Fatalf("uri = %s, want %s", uri, want)
	}
}
