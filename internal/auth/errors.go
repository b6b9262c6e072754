package auth

import "errors"

// Errores del flujo de autenticación. El handler HTTP los mapea a status y
// mensaje curado; acá solo importa la causa.
var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrCaptchaExpired     = errors.New("captcha expired")
	ErrCaptchaInvalid     = errors.New("captcha invalid")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
	ErrTwoFactorRequired  = errors.New("two-factor code required")
	ErrTwoFactorInvalid   = errors.New("two-factor code invalid")
	ErrTwoFactorNotSetup  = errors.New("two-factor not configured")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrInvalidRole        = errors.New("invalid role")
	ErrTokenIssueFailed   = errors.New("failed to issue token")
)
