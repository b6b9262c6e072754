// Package secretbox cifra secretos en reposo (hoy: el secreto TOTP de cada
// credencial) con AES-256-GCM. Formato: base64(nonce)|base64(ciphertext).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSize = 12 // nonce GCM recomendado (96 bits)
	keyLen    = 32 // AES-256
	sep       = "|"
)

// ErrMissingKey indica que no se configuró la clave maestra. Error de
// configuración: fatal al arranque.
var ErrMissingKey = errors.New("secretbox: missing master key")

// Box cifra y descifra con una clave maestra fija de proceso.
type Box struct {
	key []byte
}

// New construye un Box desde la clave maestra codificada (base64 std o raw,
// o los 32 bytes crudos).
func New(encodedKey string) (*Box, error) {
	k, err := decodeKey(encodedKey)
	if err != nil {
		return nil, err
	}
	return &Box{key: k}, nil
}

func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrMissingKey
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == keyLen {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil && len(b) == keyLen {
		return b, nil
	}
	if len(s) == keyLen {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("secretbox: la clave debe decodificar a %d bytes; generar con: openssl rand -base64 32", keyLen)
}

// Encrypt cifra plain y retorna base64(nonce)|base64(ciphertext).
func (b *Box) Encrypt(plain string) (string, error) {
	aesgcm, err := b.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secretbox: nonce: %w", err)
	}
	ct := aesgcm.Seal(nil, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt descifra un valor producido por Encrypt.
func (b *Box) Decrypt(enc string) (string, error) {
	parts := strings.Split(enc, sep)
	if len(parts) != 2 {
		return "", errors.New("secretbox: formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", errors.New("secretbox: nonce inválido")
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", errors.New("secretbox: ciphertext inválido")
	}
	aesgcm, err := b.aead()
	if err != nil {
		return "", err
	}
	plain, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", errors.New("secretbox: descifrado falló (clave o datos incorrectos)")
	}
	return string(plain), nil
}

func (b *Box) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: aes: %w", err)
	}
	return cipher.NewGCM(block)
}
