package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/ediflysi/jetdesk/internal/audit"
	"github.com/ediflysi/jetdesk/internal/domain/repository"
	"github.com/ediflysi/jetdesk/internal/observability/logger"
	"github.com/ediflysi/jetdesk/internal/security/totp"
)

// totpWindow acepta el step anterior y el siguiente además del actual, para
// tolerar skew de reloj entre el servidor y la app autenticadora.
const totpWindow = 1

// TwoFactorSetup es el material de enrolamiento que se muestra una sola vez.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
}

// SetupTwoFactor genera un secreto TOTP fresco y lo guarda cifrado, en
// estado pendiente de verificación. Repetir el setup pisa el secreto
// anterior y vuelve a deshabilitar el 2FA hasta el próximo Verify exitoso.
func (s *Service) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("SetupTwoFactor"),
		logger.UserID(userID),
	)

	cred, err := s.deps.Repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	_, encoded, err := totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("auth: generate totp secret: %w", err)
	}
	enc, err := s.deps.Box.Encrypt(encoded)
	if err != nil {
		return nil, fmt.Errorf("auth: encrypt totp secret: %w", err)
	}

	if err := s.deps.Repo.SetTwoFactorSecret(ctx, cred.ID, enc); err != nil {
		return nil, err
	}
	if err := s.deps.Repo.SetTwoFactorEnabled(ctx, cred.ID, false); err != nil {
		return nil, err
	}

	log.Info("two-factor setup generated")
	return &TwoFactorSetup{
		Secret:          encoded,
		ProvisioningURI: totp.ProvisioningURI(s.deps.Issuer.Iss, cred.Username, encoded),
	}, nil
}

// VerifyTwoFactor valida un código contra el secreto pendiente o activo. El
// primer código correcto sobre un secreto pendiente habilita el 2FA.
func (s *Service) VerifyTwoFactor(ctx context.Context, userID, code string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("VerifyTwoFactor"),
		logger.UserID(userID),
	)

	cred, err := s.deps.Repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if cred.TwoFactorSecretEnc == "" {
		return ErrTwoFactorNotSetup
	}

	ok, err := s.checkTOTP(cred, code, s.clock())
	if err != nil {
		return err
	}
	if !ok {
		log.Debug("two-factor code mismatch")
		return ErrTwoFactorInvalid
	}

	if !cred.TwoFactorEnabled {
		if err := s.deps.Repo.SetTwoFactorEnabled(ctx, cred.ID, true); err != nil {
			return err
		}
		log.Info("two-factor enabled")
		audit.Log(ctx, audit.EventTwoFactorEnabled, logger.UserID(userID))
	}
	return nil
}

// DisableTwoFactor apaga el 2FA y borra el secreto. Exige re-probar el
// password: un token robado no alcanza para bajar la protección.
func (s *Service) DisableTwoFactor(ctx context.Context, userID, currentPassword string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("DisableTwoFactor"),
		logger.UserID(userID),
	)

	cred, err := s.deps.Repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.deps.Verifier.Verify(cred.Username, currentPassword, cred.PasswordDigest) {
		log.Debug("password re-proof failed")
		return ErrInvalidCredentials
	}

	if err := s.deps.Repo.SetTwoFactorEnabled(ctx, cred.ID, false); err != nil {
		return err
	}
	if err := s.deps.Repo.SetTwoFactorSecret(ctx, cred.ID, ""); err != nil {
		return err
	}
	log.Info("two-factor disabled")
	audit.Log(ctx, audit.EventTwoFactorOff, logger.UserID(userID))
	return nil
}

// checkTOTP descifra el secreto de la credencial y valida el código en la
// ventana ±totpWindow.
func (s *Service) checkTOTP(cred *repository.Credential, code string, at time.Time) (bool, error) {
	encoded, err := s.deps.Box.Decrypt(cred.TwoFactorSecretEnc)
	if err != nil {
		return false, fmt.Errorf("auth: decrypt totp secret: %w", err)
	}
	secret, err := totp.DecodeSecret(encoded)
	if err != nil {
		return false, fmt.Errorf("auth: decode totp secret: %w", err)
	}
	return totp.Verify(secret, code, at, totpWindow), nil
}
