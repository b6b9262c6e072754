// Package auth implementa el orquestador de autenticación: login con
// captcha, lockout y 2FA, refresh de sesión y administración de credenciales.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ediflysi/jetdesk/internal/audit"
	"github.com/ediflysi/jetdesk/internal/captcha"
	"github.com/ediflysi/jetdesk/internal/domain/repository"
	jwtx "github.com/ediflysi/jetdesk/internal/jwt"
	"github.com/ediflysi/jetdesk/internal/observability/logger"
	"github.com/ediflysi/jetdesk/internal/security/password"
	"github.com/ediflysi/jetdesk/internal/security/secretbox"
)

// Política de lockout: al quinto fallo de 2FA la cuenta queda bloqueada por
// LockDuration. El desbloqueo es puramente temporal.
const (
	LockThreshold = 5
	LockDuration  = 30 * time.Minute
)

// Deps contiene los colaboradores del servicio.
type Deps struct {
	Repo     repository.CredentialRepository
	Captcha  *captcha.Store
	Verifier *password.Verifier
	Issuer   *jwtx.Issuer
	Box      *secretbox.Box
	Policy   password.Policy
}

// Service orquesta el flujo de autenticación sobre el credential store.
type Service struct {
	deps Deps

	// now permite congelar el reloj en tests. nil = time.Now.
	now func() time.Time
}

// New crea el servicio. Policy en cero usa la default.
func New(deps Deps) *Service {
	if deps.Policy.MinLength == 0 {
		deps.Policy = password.DefaultPolicy
	}
	return &Service{deps: deps}
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// LoginInput son las credenciales presentadas por el cliente.
type LoginInput struct {
	Username      string
	Password      string
	CaptchaID     string
	Captcha       string
	TwoFactorCode string
}

// Session es el resultado de un login exitoso.
type Session struct {
	Token string
	User  *repository.Credential
}

// Login ejecuta el flujo completo. El orden de las verificaciones es fijo:
// captcha, lockout, password, estado de cuenta, 2FA. Cada salida temprana
// consume el challenge de captcha igual (single-use sin importar resultado).
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("Login"),
	)

	in.Username = strings.TrimSpace(strings.ToLower(in.Username))
	if in.Username == "" || in.Password == "" || in.CaptchaID == "" || in.Captcha == "" {
		return nil, ErrMissingFields
	}
	log = log.With(logger.Username(in.Username))

	// Paso 1: captcha. Consume borra el challenge antes de comparar: un
	// segundo intento con el mismo id falla como expirado.
	if err := s.deps.Captcha.Consume(ctx, in.CaptchaID, in.Captcha); err != nil {
		if errors.Is(err, captcha.ErrExpired) {
			log.Debug("captcha expired", logger.ChallengeID(in.CaptchaID))
			return nil, ErrCaptchaExpired
		}
		log.Debug("captcha mismatch", logger.ChallengeID(in.CaptchaID))
		return nil, ErrCaptchaInvalid
	}

	// Paso 2: credencial.
	cred, err := s.deps.Repo.FindByUsername(ctx, in.Username)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("unknown username")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: find credential: %w", err)
	}
	log = log.With(logger.UserID(cred.ID))

	now := s.clock()

	// Paso 3: lockout, antes de verificar el password. Una cuenta bloqueada
	// falla aunque la credencial sea correcta.
	if cred.Lockout.LockedAt(now) {
		log.Info("account locked", logger.Attempts(cred.Lockout.FailedAttempts))
		return nil, ErrAccountLocked
	}

	// Paso 4: password.
	if !s.deps.Verifier.Verify(cred.Username, in.Password, cred.PasswordDigest) {
		log.Debug("password check failed")
		audit.Log(ctx, audit.EventLoginFailed, logger.UserID(cred.ID), logger.Username(cred.Username))
		return nil, ErrInvalidCredentials
	}

	// Paso 5: estado de la cuenta, recién después del match de password.
	if !cred.Active || cred.Blocked {
		log.Info("user disabled")
		return nil, ErrUserDisabled
	}

	// Paso 6: 2FA.
	if cred.TwoFactorEnabled {
		if in.TwoFactorCode == "" {
			// Falta el código: no es un intento fallido, el contador queda
			// intacto.
			return nil, ErrTwoFactorRequired
		}
		ok, err := s.checkTOTP(cred, in.TwoFactorCode, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			if err := s.registerFailure(ctx, log, cred.ID, now); err != nil {
				return nil, err
			}
			audit.Log(ctx, audit.EventLoginFailed, logger.UserID(cred.ID), logger.Username(cred.Username))
			return nil, ErrTwoFactorInvalid
		}
	}

	// Paso 7: éxito. Reset de lockout, last_login y emisión del token con el
	// nivel y rol actuales de la credencial.
	if err := s.deps.Repo.ResetLockout(ctx, cred.ID); err != nil {
		return nil, fmt.Errorf("auth: reset lockout: %w", err)
	}
	if err := s.deps.Repo.UpdateLastLogin(ctx, cred.ID, now); err != nil {
		return nil, fmt.Errorf("auth: update last login: %w", err)
	}

	token, err := s.deps.Issuer.Issue(jwtx.Claims{
		UserID:   cred.ID,
		Username: cred.Username,
		Name:     cred.Name,
		Level:    cred.Level,
		Role:     cred.Role,
	})
	if err != nil {
		log.Error("token issue failed", logger.Err(err))
		return nil, ErrTokenIssueFailed
	}

	log.Info("login ok", logger.Role(string(cred.Role)))
	audit.Log(ctx, audit.EventLoginOK, logger.UserID(cred.ID), logger.Username(cred.Username))
	return &Session{Token: token, User: cred}, nil
}

// registerFailure incrementa el contador de forma atómica y bloquea la
// cuenta al llegar al umbral. El conteo retornado por el storage es el que
// este request produjo: dos requests concurrentes nunca observan el mismo.
func (s *Service) registerFailure(ctx context.Context, log *zap.Logger, id string, now time.Time) error {
	n, err := s.deps.Repo.AddFailedAttempt(ctx, id, now)
	if err != nil {
		return fmt.Errorf("auth: add failed attempt: %w", err)
	}
	if n >= LockThreshold {
		until := now.Add(LockDuration)
		if err := s.deps.Repo.SetLock(ctx, id, until); err != nil {
			return fmt.Errorf("auth: set lock: %w", err)
		}
		log.Warn("account locked by failed attempts",
			logger.Attempts(n),
			logger.String("locked_until", until.Format(time.RFC3339)))
		audit.Log(ctx, audit.EventAccountLocked,
			logger.UserID(id),
			logger.Attempts(n),
			logger.String("locked_until", until.Format(time.RFC3339)))
	} else {
		log.Info("failed two-factor attempt", logger.Attempts(n))
	}
	return nil
}

// Refresh reemite el token si está dentro de la ventana de renovación.
// Token inválido o vencido mapea a ErrInvalidCredentials a nivel servicio.
func (s *Service) Refresh(ctx context.Context, token string) (string, error) {
	fresh, err := s.deps.Issuer.Refresh(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrNotEligible) {
			return "", err
		}
		return "", jwtx.ErrInvalidToken
	}
	return fresh, nil
}
