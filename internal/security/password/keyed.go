// Package password implementa la verificación de credenciales.
//
// Conviven dos formatos de digest:
//   - Keyed HMAC-SHA256 (hex) sobre username+password, con un secreto del
//     servidor. Es el formato histórico de la base: determinístico y no
//     portable entre deployments.
//   - Argon2id en formato PHC. Es el formato que se escribe en cada cambio
//     de password; Verify despacha por prefijo.
package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrMissingSecret se retorna al construir un Verifier sin secreto. Es un
// error de configuración: fatal al arranque, nunca por request.
var ErrMissingSecret = errors.New("password: missing server secret")

// Verifier calcula y verifica digests keyed. El secreto es estado de proceso
// de solo lectura; nunca se loguea ni se expone.
type Verifier struct {
	secret []byte
	argon  Params
}

// NewVerifier crea un Verifier con el secreto del servidor.
func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret), argon: Default}, nil
}

// Hash calcula el digest keyed hex de username+password. Determinístico:
// mismo input, mismo output, siempre que el secreto no cambie.
func (v *Verifier) Hash(username, plain string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(username))
	mac.Write([]byte(plain))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashForStorage produce el digest para persistir en un alta o cambio de
// password (argon2id PHC).
func (v *Verifier) HashForStorage(plain string) (string, error) {
	return Hash(v.argon, plain)
}

// Verify recomputa y compara contra el digest almacenado, en tiempo
// constante. Acepta ambos formatos.
func (v *Verifier) Verify(username, plain, stored string) bool {
	if stored == "" || plain == "" {
		return false
	}
	if strings.HasPrefix(stored, "$argon2id$") {
		return VerifyPHC(plain, stored)
	}
	want, err := hex.DecodeString(stored)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(username))
	mac.Write([]byte(plain))
	return hmac.Equal(mac.Sum(nil), want)
}
