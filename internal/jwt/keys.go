package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// KeySet mantiene la clave de firma del proceso (una sola clave activa).
type KeySet struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	KID  string
	Alg  string // "EdDSA"
}

// NewDevEd25519 genera una clave Ed25519 efímera con un KID dado. Solo para
// desarrollo y tests: los tokens no sobreviven un restart.
func NewDevEd25519(kid string) (*KeySet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeySet{Priv: priv, Pub: pub, KID: kid, Alg: "EdDSA"}, nil
}

// FromSeed reconstruye la clave desde una seed Ed25519 de 32 bytes en base64.
// Es la vía de producción: la seed viene de config/env.
func FromSeed(seedB64, kid string) (*KeySet, error) {
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		if seed, err = base64.RawStdEncoding.DecodeString(seedB64); err != nil {
			return nil, fmt.Errorf("jwt: decode signing seed: %w", err)
		}
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwt: signing seed debe ser %d bytes, obtuvo %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeySet{
		Priv: priv,
		Pub:  priv.Public().(ed25519.PublicKey),
		KID:  kid,
		Alg:  "EdDSA",
	}, nil
}

// ----- JWKS (serialización) -----

type jwk struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(pub)
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON devuelve el JWKS (solo la pública) en JSON.
func (k *KeySet) JWKSJSON() []byte {
	j := jwks{
		Keys: []jwk{{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: k.KID,
			Alg: k.Alg,
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(k.Pub),
		}},
	}
	b, _ := json.Marshal(j)
	return b
}
