// Package repository define el contrato del credential store. El core de
// autenticación lo consume como colaborador opaco: la elección de motor de
// persistencia queda en los adapters (memory, pg).
package repository

import (
	"context"
	"time"

	"github.com/ediflysi/jetdesk/internal/authz"
)

// LockoutState es el estado de bloqueo por intentos fallidos, embebido en la
// credencial. Invariante: con LockedUntil en el futuro, la autenticación
// falla sin importar la corrección de la credencial. Se resetea a cero en
// cualquier autenticación exitosa.
type LockoutState struct {
	FailedAttempts int
	LastFailedAt   *time.Time
	LockedUntil    *time.Time
}

// LockedAt indica si la cuenta está bloqueada en el instante dado.
func (l LockoutState) LockedAt(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// Credential es el registro de autenticación de un usuario.
type Credential struct {
	ID       string
	Username string
	Name     string
	Email    string
	Phone    string

	// PasswordDigest: HMAC keyed hex (legado) o PHC argon2id. Nunca se
	// expone ni se loguea.
	PasswordDigest string

	Level authz.Permission
	Role  authz.Role

	Active  bool
	Blocked bool

	// TwoFactorSecretEnc es el secreto TOTP cifrado con secretbox. Vacío =
	// sin 2FA configurado. Con secreto pero TwoFactorEnabled=false la
	// credencial está en PendingVerification.
	TwoFactorSecretEnc string
	TwoFactorEnabled   bool

	Lockout LockoutState

	LastLogin *time.Time
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput contiene los datos para dar de alta una credencial.
type CreateInput struct {
	Username       string
	Name           string
	Email          string
	Phone          string
	PasswordDigest string
	Level          authz.Permission
	Role           authz.Role
	CreatedBy      string
}

// ProfileInput contiene los campos de perfil actualizables por el usuario.
type ProfileInput struct {
	Name  *string
	Email *string
	Phone *string
}

// CredentialRepository define las operaciones del credential store.
//
// Los writes de lockout son snapshots punto-en-tiempo con posible
// interleaving entre requests concurrentes del mismo usuario: por eso
// AddFailedAttempt debe ser un increment-and-fetch atómico en el storage, no
// un read-modify-write del caller.
type CredentialRepository interface {
	// FindByUsername retorna ErrNotFound si no existe.
	FindByUsername(ctx context.Context, username string) (*Credential, error)

	// FindByID retorna ErrNotFound si no existe.
	FindByID(ctx context.Context, id string) (*Credential, error)

	// Create da de alta una credencial. Retorna ErrConflict si el username
	// ya existe.
	Create(ctx context.Context, in CreateInput) (*Credential, error)

	// UpdateProfile actualiza los campos no nulos del perfil.
	UpdateProfile(ctx context.Context, id string, in ProfileInput) error

	// UpdatePassword reemplaza el digest.
	UpdatePassword(ctx context.Context, id, newDigest string) error

	// AddFailedAttempt incrementa el contador de fallos de forma atómica y
	// retorna el valor resultante. También registra last_failed_at = now.
	AddFailedAttempt(ctx context.Context, id string, now time.Time) (int, error)

	// SetLock fija locked_until. El desbloqueo es puramente temporal: no
	// existe operación explícita de unlock.
	SetLock(ctx context.Context, id string, until time.Time) error

	// ResetLockout vuelve el estado de lockout a {0, none, none}.
	ResetLockout(ctx context.Context, id string) error

	// SetTwoFactorSecret guarda el secreto TOTP cifrado (estado
	// PendingVerification). Con secretEnc vacío limpia el secreto.
	SetTwoFactorSecret(ctx context.Context, id, secretEnc string) error

	// SetTwoFactorEnabled prende o apaga el flag de 2FA.
	SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error

	// UpdateLastLogin registra el último login exitoso.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
