// Package cache provee el store clave→valor efímero con TTL que respalda los
// desafíos de captcha y el rate limiting en memoria.
//
// Backends:
//   - Memory (in-process; sin durabilidad, se pierde al salir el proceso)
//   - Redis (compartido; requerido para escalar horizontalmente)
//
// Ambos son intercambiables detrás de Client, así el orquestador de login no
// cambia al migrar de single-process a cache compartido.
package cache

import (
	"context"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL. Sobrescribe (e invalida) cualquier valor
	// previo bajo la misma key. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key. Eliminar una key inexistente no es error.
	Delete(ctx context.Context, key string) error

	// GetDel obtiene un valor y lo elimina en una sola operación atómica:
	// de N llamadas concurrentes sobre la misma key, exactamente una recibe
	// el valor y el resto ErrNotFound. Para estado de un solo uso.
	GetDel(ctx context.Context, key string) (string, error)

	// Ping verifica la conexión al backend.
	Ping(ctx context.Context) error

	// Close libera recursos.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string // host:port (redis)
	Password string
	DB       int
	Prefix   string // prefijo para todas las keys
}

// Errores de cache.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente según la configuración. Driver desconocido o vacío
// degrada a memoria.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
