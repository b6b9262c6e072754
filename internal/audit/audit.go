// Package audit registra eventos de seguridad (logins, bloqueos, cambios de
// credenciales) como entradas estructuradas separables del log de aplicación.
// Hoy el sink es el logger del proceso bajo el namespace "audit"; un sink
// externo puede colgarse después sin tocar a los llamadores.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/ediflysi/jetdesk/internal/observability/logger"
)

// Eventos de seguridad conocidos.
const (
	EventLoginOK          = "login_ok"
	EventLoginFailed      = "login_failed"
	EventAccountLocked    = "account_locked"
	EventPasswordChanged  = "password_changed"
	EventTwoFactorEnabled = "twofactor_enabled"
	EventTwoFactorOff     = "twofactor_disabled"
	EventUserCreated      = "user_created"
)

// Log emite un evento de auditoría. Los fields nunca deben incluir passwords,
// códigos TOTP ni secretos.
func Log(_ context.Context, event string, fields ...zap.Field) {
	logger.Named("audit").Info(event, fields...)
}
