// Package totp implementa códigos time-based de un solo uso (RFC 6238) para
// el segundo factor: HOTP con HMAC-SHA1, 6 dígitos, período de 30s.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// Period es el paso de tiempo en segundos.
	Period = 30
	// Digits es el largo del código.
	Digits = 6

	secretLen = 20 // RFC 4226 recomienda 160 bits
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret retorna un secreto fresco de 20 bytes y su representación
// base32 sin padding (RFC 3548).
func GenerateSecret() (raw []byte, encoded string, err error) {
	raw = make([]byte, secretLen)
	if _, err = rand.Read(raw); err != nil {
		return nil, "", err
	}
	return raw, b32.EncodeToString(raw), nil
}

// DecodeSecret decodifica un secreto base32 (con o sin padding).
func DecodeSecret(encoded string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimRight(strings.TrimSpace(encoded), "="))
	return b32.DecodeString(s)
}

// ProvisioningURI construye la URI otpauth:// que consume la app
// authenticator (QR).
// otpauth://totp/{issuer}:{account}?secret=...&issuer=...&algorithm=SHA1&digits=6&period=30
func ProvisioningURI(issuer, account, secretB32 string) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, account))
	q := url.Values{}
	q.Set("secret", secretB32)
	q.Set("issuer", issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", fmt.Sprintf("%d", Digits))
	q.Set("period", fmt.Sprintf("%d", Period))
	return fmt.Sprintf("otpauth://totp/%s?%s", label, q.Encode())
}

// Verify valida un código contra el secreto en una ventana de +/- windowSteps
// pasos de reloj (1 paso tolera el desfasaje típico de los authenticators).
func Verify(secret []byte, code string, at time.Time, windowSteps int) bool {
	code = strings.TrimSpace(code)
	if len(code) != Digits {
		return false
	}
	counter := at.Unix() / Period
	ok := false
	for c := counter - int64(windowSteps); c <= counter+int64(windowSteps); c++ {
		// Comparación constante y sin short-circuit: se recorre la ventana
		// completa aunque un paso ya haya acertado.
		if subtle.ConstantTimeCompare([]byte(hotp(secret, c)), []byte(code)) == 1 {
			ok = true
		}
	}
	return ok
}

// Code genera el código del paso de tiempo actual. Usado por el CLI y tests.
func Code(secret []byte, at time.Time) string {
	return hotp(secret, at.Unix()/Period)
}

// hotp calcula HOTP(K, C) con HMAC-SHA1 y truncamiento dinámico
// (RFC 4226 §5.3).
func hotp(secret []byte, counter int64) string {
	var msg [8]byte
	for i := 7; i >= 0; i-- {
		msg[i] = byte(counter & 0xff)
		counter >>= 8
	}
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := int(sum[len(sum)-1] & 0x0f)
	bin := (int(sum[offset])&0x7f)<<24 |
		int(sum[offset+1])<<16 |
		int(sum[offset+2])<<8 |
		int(sum[offset+3])

	mod := 1
	for i := 0; i < Digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", Digits, bin%mod)
}
