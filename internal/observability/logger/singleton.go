package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init inicializa el logger singleton. Idempotente: solo la primera llamada
// tiene efecto. Se llama una vez al arranque, en cmd/jetdesk.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L retorna el logger singleton. Sin Init previo arma uno por defecto
// (dev, info): así los tests de paquete no necesitan bootstrap.
func L() *zap.Logger {
	if instance == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return instance
}

// Named retorna un logger con nombre de componente, p.ej. "audit".
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// With retorna un logger con campos persistentes, p.ej. el user_id dentro de
// una operación del servicio de auth.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync flushea cualquier buffer pendiente. Va con defer en main.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}
