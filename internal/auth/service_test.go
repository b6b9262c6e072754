package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ediflysi/jetdesk/internal/authz"
	"github.com/ediflysi/jetdesk/internal/cache"
	"github.com/ediflysi/jetdesk/internal/captcha"
	"github.com/ediflysi/jetdesk/internal/domain/repository"
	jwtx "github.com/ediflysi/jetdesk/internal/jwt"
	"github.com/ediflysi/jetdesk/internal/security/password"
	"github.com/ediflysi/jetdesk/internal/security/secretbox"
	"github.com/ediflysi/jetdesk/internal/security/totp"
	"github.com/ediflysi/jetdesk/internal/store/memory"
)

type fixture struct {
	svc     *Service
	repo    *memory.Store
	captcha *captcha.Store
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := memory.New()

	cc, err := cache.New(cache.Config{Driver: "memory"})
	require.NoError(t, err)
	caps := captcha.New(cc, 3*time.Minute)

	verifier, err := password.NewVerifier("test-server-secret")
	require.NoError(t, err)

	keys, err := jwtx.NewDevEd25519("test")
	require.NoError(t, err)
	issuer := jwtx.NewIssuer(keys, "jetdesk-test", 24*time.Hour)

	box, err := secretbox.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	f := &fixture{
		repo:    repo,
		captcha: caps,
		now:     time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	f.svc = New(Deps{
		Repo:     repo,
		Captcha:  caps,
		Verifier: verifier,
		Issuer:   issuer,
		Box:      box,
	})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) createUser(t *testing.T, username, plain string, role authz.Role) *repository.Credential {
	t.Helper()
	cred, err := f.svc.CreateUser(context.Background(), CreateUserInput{
		Username:  username,
		Name:      "Test Pilot",
		Password:  plain,
		Role:      role,
		CreatedBy: "test",
	})
	require.NoError(t, err)
	return cred
}

// freshCaptcha emite un challenge y retorna id + valor correcto.
func (f *fixture) freshCaptcha(t *testing.T, id string) (string, string) {
	t.Helper()
	ch, err := f.captcha.Create(context.Background(), id)
	require.NoError(t, err)
	return ch.ID, ch.Value
}

func (f *fixture) login(t *testing.T, username, pass, code string) (*Session, error) {
	t.Helper()
	id, value := f.freshCaptcha(t, "ch-"+username)
	return f.svc.Login(context.Background(), LoginInput{
		Username:      username,
		Password:      pass,
		CaptchaID:     id,
		Captcha:       value,
		TwoFactorCode: code,
	})
}

const goodPassword = "Vuela.Alto-99"

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "pilot1", goodPassword, authz.RoleOperationsManager)

	sess, err := f.login(t, "pilot1", goodPassword, "")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.Token)

	claims, err := f.svc.deps.Issuer.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "pilot1", claims.Username)
	assert.Equal(t, authz.RoleOperationsManager, claims.Role)
	assert.Equal(t, authz.LevelForRole(authz.RoleOperationsManager), claims.Level)

	got, err := f.repo.FindByUsername(context.Background(), "pilot1")
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(f.now))
}

func TestLoginMissingFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), LoginInput{Username: "pilot1"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestLoginCaptchaExpired(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "pilot1", goodPassword, authz.RoleClient)

	_, err := f.svc.Login(context.Background(), LoginInput{
		Username: "pilot1", Password: goodPassword,
		CaptchaID: "never-created", Captcha: "123456",
	})
	assert.ErrorIs(t, err, ErrCaptchaExpired)
}

func TestLoginCaptchaInvalidAndSingleUse(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "pilot1", goodPassword, authz.RoleClient)

	id, value := f.freshCaptcha(t, "ch-1")
	wrong := "000000"
	if wrong == value {
		wrong = "000001"
	}
	_, err := f.svc.Login(context.Background(), LoginInput{
		Username: "pilot1", Password: goodPassword,
		CaptchaID: id, Captcha: wrong,
	})
	assert.ErrorIs(t, err, ErrCaptchaInvalid)

	// El challenge se consumió con el intento fallido: reutilizarlo, incluso
	// con el valor correcto, falla como expirado.
	_, err = f.svc.Login(context.Background(), LoginInput{
		Username: "pilot1", Password: goodPassword,
		CaptchaID: id, Captcha: value,
	})
	assert.ErrorIs(t, err, ErrCaptchaExpired)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.login(t, "ghost", goodPassword, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "pilot1", goodPassword, authz.RoleClient)
	_, err := f.login(t, "pilot1", "Incorrecta-1!", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLockedBeforePasswordCheck(t *testing.T) {
	f := newFixture(t)
	cred := f.createUser(t, "pilot1", goodPassword, authz.RoleClient)

	until := f.now.Add(10 * time.Minute)
	require.NoError(t, f.repo.SetLock(context.Background(), cred.ID, until))

	// Password correcto: igual falla, el lockout se evalúa primero.
	_, err := f.login(t, "pilot1", goodPassword, "")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestLoginLockExpiresByTime(t *testing.T) {
	f := newFixture(t)
	cred := f.createUser(t, "pilot1", goodPassword, authz.RoleClient)

	until := f.now.Add(30 * time.Minute)
	require.NoError(t, f.repo.SetLock(context.Background(), cred.ID, until))

	f.now = until.Add(time.Second)
	sess, err := f.login(t, "pilot1", goodPassword, "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	// El éxito resetea el estado de lockout completo.
	got, err := f.repo.FindByID(context.Background(), cred.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Lockout.FailedAttempts)
	assert.Nil(t, got.Lockout.LockedUntil)
}

func TestLoginDisabledAfterPasswordMatch(t *testing.T) {
	f := newFixture(t)
	cred := f.createUser(t, "pilot1", goodPassword, authz.RoleClient)
	f.repo.SetActive(cred.ID, false)

	_, err := f.login(t, "pilot1", goodPassword, "")
	assert.ErrorIs(t, err, ErrUserDisabled)

	// Con password incorrecto gana la verificación de credencial: el estado
	// de la cuenta no se revela.
	_, err = f.login(t, "pilot1", "Incorrecta-1!", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginBlockedUser(t *testing.T) {
	f := newFixture(t)
	cred := f.createUser(t, "pilot1", goodPassword, authz.RoleClient)
	f.repo.SetBlocked(cred.ID, true)

	_, err := f.login(t, "pilot1", goodPassword, "")
	assert.ErrorIs(t, err, ErrUserDisabled)
}

// enrollTwoFactor deja la cuenta con 2FA habilitado y retorna el secreto
// decodificado para generar códigos en el test.
func (f *fixture) enrollTwoFactor(t *testing.T, userID string) []byte {
	t.Helper()
	setup, err := f.svc.SetupTwoFactor(context.Background(), userID)
	require.NoError(t, err)

	secret, err := totp.DecodeSecret(setup.Secret)
	require.NoError(t, err)

	code := totp.Code(secret, f.now)
	require.NoError(t, f.svc.VerifyTwoFactor(context.Background(), userID, code))
	return secret
}

func TestTwoFactorLifecycle(t *testing.T) {
	f := newFixture(t)
	cred := f.createUser(t, "pilot1", goodPassword, authz.RoleCrewMember)

	// Antes del setup no hay nada que verificar.
	err := f.svc.VerifyTwoFactor(context.Background(), cred.ID, "123456")
	assert.ErrorIs(t, err, ErrTwoFactorNotSetup)

	setup, err := f.svc.SetupTwoFactor(context.Background(), cred.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/")

	// Pendiente de verificación: el login todavía no exige código.
	got, _ := f.repo.FindByID(context.Background(), cred.ID)
	assert.False(t, got.TwoFactorEnabled)
	assert.NotEmpty(t, got.TwoFactorSecretEnc)

	secret, err := totp.DecodeSecret(setup.Secret)
	require.NoError(t, err)
	require.NoError(t, f.svc.VerifyTwoFactor(context.Background(), cred.ID, totp.Code(secret, f.now)))

	got, _ = f.repo.FindByID(context.Background(), cred.ID)
	assert.True(t, got.TwoFactorEnabled)

	// Disable exige el password.
	err = f.svc.DisableTwoFactor(context.Background(), cred.ID, "Incorrecta-1!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.svc.DisableTwoFactor(context.Background(), cred.ID, goodPassword))
	got, _ = f.repo.FindByID(context.Background(), cred.ID)
	assert.False(t, got.TwoFactorEnabled)
	assert.Empty(t, got.TwoFactorSecretEnc)
}

func TestLoginTwoFactorRequired(t *testing.T) {
	f := newFixture(t)
	cred := f.createUser(t, "pilot1", goodPassword, authz.RoleCrewMember)
	f.enrollTwoFactor(t, cred.ID)

	_, err := f.login(t, "pilot1", goodPassword, "")
	assert.ErrorIs(t, err, ErrTwoFactorRequired)

	// Pedir el código no es un intento fallido: el contador queda en cero.
	got, _ := f.repo.FindByID(context.Background(), cred.ID)
	assert.Zero(t, got.Lockout.FailedAttempts)
}

func TestLoginTwoFactorSuccess(t *testing.T) {
	f := newFixture(t)
	cred := f.createUser(t, "pilot1", goodPassword, authz.RoleCrewMember)
	secret := f.enrollTwoFactor(t, cred.ID)

	sess, err := f.login(t, "pilot1", goodPassword, totp.Code(secret, f.now))
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
}

func wrongCode(secret []byte, at time.Time) string {
	code := totp.Code(secret, at)
	if code == "999999" {
		return "999998"
	}
	return "999999"
}

func TestLoginTwoFactorLockoutAtThreshold(t *testing.T) {
	f := newFixture(t)
	cred := f.createUser(t, "pilot1", goodPassword, authz.RoleCrewMember)
	secret := f.enrollTwoFactor(t, cred.ID)

	for i := 0; i < LockThreshold; i++ {
		_, err := f.login(t, "pilot1", goodPassword, wrongCode(secret, f.now))
		assert.ErrorIs(t, err, ErrTwoFactorInvalid)
	}

	got, _ := f.repo.FindByID(context.Background(), cred.ID)
	assert.Equal(t, LockThreshold, got.Lockout.FailedAttempts)
	require.NotNil(t, got.Lockout.LockedUntil)
	assert.True(t, got.Lockout.LockedUntil.Equal(f.now.Add(LockDuration)))

	// Sexto intento con el código CORRECTO: la cuenta sigue bloqueada.
	_, err := f.login(t, "pilot1", goodPassword, totp.Code(secret, f.now))
	assert.ErrorIs(t, err, ErrAccountLocked)

	// Pasada la ventana el login vuelve a funcionar y resetea el contador.
	f.now = f.now.Add(LockDuration + time.Second)
	sess, err := f.login(t, "pilot1", goodPassword, totp.Code(secret, f.now))
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	got, _ = f.repo.FindByID(context.Background(), cred.ID)
	assert.Zero(t, got.Lockout.FailedAttempts)
	assert.Nil(t, got.Lockout.LockedUntil)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	cred := f.createUser(t, "pilot1", goodPassword, authz.RoleClient)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, cred.ID, "Incorrecta-1!", "Nueva.Clave-77")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = f.svc.ChangePassword(ctx, cred.ID, goodPassword, "corta")
	assert.ErrorIs(t, err, ErrWeakPassword)

	require.NoError(t, f.svc.ChangePassword(ctx, cred.ID, goodPassword, "Nueva.Clave-77"))

	got, _ := f.repo.FindByID(ctx, cred.ID)
	assert.True(t, strings.HasPrefix(got.PasswordDigest, "$argon2id$"))

	_, err = f.login(t, "pilot1", goodPassword, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	sess, err := f.login(t, "pilot1", "Nueva.Clave-77", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	cred := f.createUser(t, "pilot1", goodPassword, authz.RoleClient)

	name := "Capitana Reyes"
	email := "reyes@example.com"
	got, err := f.svc.UpdateProfile(context.Background(), cred.ID, repository.ProfileInput{
		Name:  &name,
		Email: &email,
	})
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.Equal(t, email, got.Email)
	assert.Equal(t, cred.Phone, got.Phone)
}

func TestCreateUserRoleHandling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Sin rol: cae a client.
	cred, err := f.svc.CreateUser(ctx, CreateUserInput{
		Username: "walkin", Password: goodPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleClient, cred.Role)
	assert.Equal(t, authz.LevelForRole(authz.RoleClient), cred.Level)

	_, err = f.svc.CreateUser(ctx, CreateUserInput{
		Username: "hacker", Password: goodPassword, Role: authz.Role("root"),
	})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.svc.CreateUser(ctx, CreateUserInput{
		Username: "walkin", Password: goodPassword,
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestCreateDefaultUserIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateDefaultUser(ctx, "admin", goodPassword)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleSuperAdmin, first.Role)

	second, err := f.svc.CreateDefaultUser(ctx, "admin", "Otra.Clave-11")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "pilot1", goodPassword, authz.RoleClient)

	sess, err := f.login(t, "pilot1", goodPassword, "")
	require.NoError(t, err)

	// Recién emitido: le quedan ~24h, fuera de la ventana de renovación.
	_, err = f.svc.Refresh(context.Background(), sess.Token)
	assert.ErrorIs(t, err, jwtx.ErrNotEligible)

	_, err = f.svc.Refresh(context.Background(), "garbage.token.here")
	assert.ErrorIs(t, err, jwtx.ErrInvalidToken)
}
