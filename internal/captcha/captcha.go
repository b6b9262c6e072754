// Package captcha implementa el store efímero de desafíos de login.
//
// Cada desafío es un valor numérico de 6 dígitos asociado a un id elegido por
// el caller. Vive en el cache (memory o redis) con TTL de 3 minutos y es de
// un solo uso: cualquier intento de consumo, correcto o no, lo invalida.
// Como la expiración es por entrada del cache y Set sobrescribe, re-crear un
// desafío bajo el mismo id nunca deja un timer viejo que borre el valor
// nuevo.
package captcha

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ediflysi/jetdesk/internal/cache"
)

const (
	// DefaultTTL es la vida útil de un desafío pendiente.
	DefaultTTL = 3 * time.Minute

	// ValueLen es el largo del valor a transcribir.
	ValueLen = 6

	keyPrefix = "captcha:"
)

var (
	// ErrExpired indica que el desafío no existe o ya expiró. Se distingue de
	// ErrInvalid para que el cliente sepa que debe pedir uno nuevo.
	ErrExpired = errors.New("captcha: challenge expired")

	// ErrInvalid indica que el valor enviado no coincide.
	ErrInvalid = errors.New("captcha: value mismatch")
)

// Challenge es un desafío recién creado. Value nunca viaja al cliente; solo
// la imagen.
type Challenge struct {
	ID      string
	Value   string
	PNG     []byte
	DataURI string
}

// Store genera y consume desafíos contra un cache.Client.
type Store struct {
	cache cache.Client
	ttl   time.Duration
}

// New crea un Store. ttl <= 0 usa DefaultTTL.
func New(c cache.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: c, ttl: ttl}
}

// Create genera un desafío nuevo bajo id, invalidando cualquier desafío
// pendiente con el mismo id, y agenda su expiración.
func (s *Store) Create(ctx context.Context, id string) (*Challenge, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("captcha: empty challenge id")
	}

	value, err := randomDigits(ValueLen)
	if err != nil {
		return nil, fmt.Errorf("captcha: generate value: %w", err)
	}
	png, err := Render(value)
	if err != nil {
		return nil, fmt.Errorf("captcha: render: %w", err)
	}

	if err := s.cache.Set(ctx, keyPrefix+id, value, s.ttl); err != nil {
		return nil, fmt.Errorf("captcha: store challenge: %w", err)
	}

	return &Challenge{
		ID:      id,
		Value:   value,
		PNG:     png,
		DataURI: DataURI(png),
	}, nil
}

// Consume valida el valor enviado contra el desafío pendiente. El desafío se
// elimina siempre, acierte o no: un segundo Consume con el valor correcto
// falla con ErrExpired. El retiro es un GetDel atómico del cache: de dos
// consumos concurrentes del mismo id, uno solo ve el valor.
func (s *Store) Consume(ctx context.Context, id, submitted string) error {
	key := keyPrefix + strings.TrimSpace(id)

	expected, err := s.cache.GetDel(ctx, key)
	if err != nil {
		if cache.IsNotFound(err) {
			return ErrExpired
		}
		return fmt.Errorf("captcha: take challenge: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(submitted))) != 1 {
		return ErrInvalid
	}
	return nil
}

// randomDigits genera n dígitos decimales con crypto/rand.
func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
