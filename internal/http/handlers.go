package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ediflysi/jetdesk/internal/auth"
	"github.com/ediflysi/jetdesk/internal/authz"
	"github.com/ediflysi/jetdesk/internal/domain/repository"
	mw "github.com/ediflysi/jetdesk/internal/http/middlewares"
	jwtx "github.com/ediflysi/jetdesk/internal/jwt"
)

// userPayload es la vista pública de una credencial. Nunca incluye el digest
// ni el secreto 2FA.
type userPayload struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Name             string     `json:"name"`
	Email            string     `json:"email,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Level            uint32     `json:"level"`
	Role             string     `json:"role"`
	DisplayRole      string     `json:"display_role"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toUserPayload(c *repository.Credential) userPayload {
	return userPayload{
		ID:               c.ID,
		Username:         c.Username,
		Name:             c.Name,
		Email:            c.Email,
		Phone:            c.Phone,
		Level:            uint32(c.Level),
		Role:             string(c.Role),
		DisplayRole:      c.Role.DisplayName(),
		TwoFactorEnabled: c.TwoFactorEnabled,
		LastLogin:        c.LastLogin,
		CreatedAt:        c.CreatedAt,
	}
}

// ---------------------------------------------------------------------------
// Captcha
// ---------------------------------------------------------------------------

func (s *Server) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	if uid == "" || len(uid) > 64 {
		writeValidationErrors(w, []fieldError{{"uid", "Captcha token is required"}})
		return
	}

	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		ch, err := s.deps.Captcha.Create(ctx, uid)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"token": ch.ID,
			"image": ch.DataURI,
		}, nil
	})
}

// ---------------------------------------------------------------------------
// Login / sesión
// ---------------------------------------------------------------------------

// loginRequest usa los nombres de campo del cliente existente: token es el
// id del captcha, captcha el valor transcripto.
type loginRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Captcha        string `json:"captcha"`
	Token          string `json:"token"`
	TwoFactorToken string `json:"twoFactorToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	if errs := validateLogin(in); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		sess, err := s.deps.Auth.Login(ctx, auth.LoginInput{
			Username:      in.Username,
			Password:      in.Password,
			CaptchaID:     in.Token,
			Captcha:       in.Captcha,
			TwoFactorCode: in.TwoFactorToken,
		})
		if err != nil {
			CountLoginAttempt(loginResult(err))
			return nil, loginError(err, in.Username)
		}
		CountLoginAttempt("ok")
		return map[string]any{
			"token": sess.Token,
			"user":  toUserPayload(sess.User),
		}, nil
	})
}

// loginError traduce los errores del servicio a los mensajes que el cliente
// del backoffice ya conoce. Todos pasan el filtro de producción.
func loginError(err error, username string) error {
	switch {
	case errors.Is(err, auth.ErrCaptchaExpired):
		return errors.New("Captcha Expired!")
	case errors.Is(err, auth.ErrCaptchaInvalid):
		return errors.New("Invalid Captcha!")
	case errors.Is(err, auth.ErrAccountLocked):
		return errors.New("Account temporarily locked. Try again later.")
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrMissingFields):
		return fmt.Errorf("User %s Not Found or Wrong Password!", username)
	case errors.Is(err, auth.ErrUserDisabled):
		return fmt.Errorf("User %s Disabled!", username)
	case errors.Is(err, auth.ErrTwoFactorRequired):
		return errors.New("Two-factor authentication token required")
	case errors.Is(err, auth.ErrTwoFactorInvalid):
		return errors.New("Invalid two-factor authentication token")
	default:
		return err
	}
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrCaptchaExpired), errors.Is(err, auth.ErrCaptchaInvalid):
		return "captcha"
	case errors.Is(err, auth.ErrAccountLocked):
		return "locked"
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserDisabled), errors.Is(err, auth.ErrMissingFields):
		return "credentials"
	case errors.Is(err, auth.ErrTwoFactorRequired), errors.Is(err, auth.ErrTwoFactorInvalid):
		return "twofactor"
	default:
		return "error"
	}
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		raw := mw.GetToken(ctx)
		fresh, err := s.deps.Auth.Refresh(ctx, raw)
		if err != nil {
			if errors.Is(err, jwtx.ErrNotEligible) {
				// Lejos de expirar: se devuelve el mismo token.
				return map[string]any{"token": raw, "refreshed": false}, nil
			}
			return nil, errors.New("Auth Token Invalid or Expired!")
		}
		return map[string]any{"token": fresh, "refreshed": true}, nil
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		claims, _ := mw.GetClaims(ctx)
		return map[string]any{
			"id":           claims.UserID,
			"username":     claims.Username,
			"name":         claims.Name,
			"level":        uint32(claims.Level),
			"role":         string(claims.Role),
			"display_role": claims.Role.DisplayName(),
			"issued_at":    claims.IssuedAt,
			"expires_at":   claims.ExpiresAt,
		}, nil
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Sin estado de sesión del lado del servidor: el logout es descartar el
	// token en el cliente.
	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		return map[string]any{"logout": true}, nil
	})
}

// ---------------------------------------------------------------------------
// Perfil y password
// ---------------------------------------------------------------------------

type profileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var in profileRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	if errs := validateProfile(in); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		claims, _ := mw.GetClaims(ctx)
		cred, err := s.deps.Auth.UpdateProfile(ctx, claims.UserID, repository.ProfileInput{
			Name:  in.Name,
			Email: in.Email,
			Phone: in.Phone,
		})
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, fmt.Errorf("User %s Not Found or Wrong Password!", claims.Username)
			}
			return nil, err
		}

		// El token viaja con el nombre: se reemite para que el cliente vea
		// el perfil actualizado sin re-login.
		token, err := s.deps.Issuer.Issue(jwtx.Claims{
			UserID:   cred.ID,
			Username: cred.Username,
			Name:     cred.Name,
			Level:    cred.Level,
			Role:     cred.Role,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"token": token,
			"user":  toUserPayload(cred),
		}, nil
	})
}

type changePasswordRequest struct {
	Current  string `json:"current"`
	Password string `json:"password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in changePasswordRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	if errs := validatePasswordChange(in); len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		claims, _ := mw.GetClaims(ctx)
		if err := s.deps.Auth.ChangePassword(ctx, claims.UserID, in.Current, in.Password); err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				return nil, errors.New("Wrong Current Password!")
			case errors.Is(err, auth.ErrWeakPassword):
				return nil, fmt.Errorf("Validation failed: %s", err.Error())
			default:
				return nil, err
			}
		}
		return map[string]any{"changed": true}, nil
	})
}

// ---------------------------------------------------------------------------
// 2FA
// ---------------------------------------------------------------------------

func (s *Server) handleSetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		claims, _ := mw.GetClaims(ctx)
		setup, err := s.deps.Auth.SetupTwoFactor(ctx, claims.UserID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"secret":      setup.Secret,
			"otpauth_url": setup.ProvisioningURI,
		}, nil
	})
}

type twoFactorRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var in twoFactorRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	if len(in.Token) != 6 || !reDigits.MatchString(in.Token) {
		writeValidationErrors(w, []fieldError{{"token", "Two-factor token must be exactly 6 numbers"}})
		return
	}

	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		claims, _ := mw.GetClaims(ctx)
		if err := s.deps.Auth.VerifyTwoFactor(ctx, claims.UserID, in.Token); err != nil {
			switch {
			case errors.Is(err, auth.ErrTwoFactorInvalid):
				return nil, errors.New("Invalid two-factor authentication token")
			case errors.Is(err, auth.ErrTwoFactorNotSetup):
				return nil, errors.New("Two-factor authentication not configured")
			default:
				return nil, err
			}
		}
		return map[string]any{"verified": true}, nil
	})
}

type disableTwoFactorRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var in disableTwoFactorRequest
	if !ReadJSON(w, r, &in) {
		return
	}

	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		claims, _ := mw.GetClaims(ctx)
		if err := s.deps.Auth.DisableTwoFactor(ctx, claims.UserID, in.Password); err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return nil, errors.New("Wrong Password!")
			}
			return nil, err
		}
		return map[string]any{"disabled": true}, nil
	})
}

// ---------------------------------------------------------------------------
// Administración de usuarios
// ---------------------------------------------------------------------------

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in createUserRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	if l := len(in.Username); l < 3 || l > 50 || !reUsername.MatchString(in.Username) {
		writeValidationErrors(w, []fieldError{{"username", "Username must be between 3 and 50 characters"}})
		return
	}

	exec(w, r, s.deps.Prod, func(ctx context.Context) (any, error) {
		claims, _ := mw.GetClaims(ctx)
		cred, err := s.deps.Auth.CreateUser(ctx, auth.CreateUserInput{
			Username:  in.Username,
			Password:  in.Password,
			Name:      in.Name,
			Email:     in.Email,
			Phone:     in.Phone,
			Role:      authz.Role(in.Role),
			CreatedBy: claims.UserID,
		})
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidRole):
				return nil, fmt.Errorf("Invalid aviation role: %s", in.Role)
			case errors.Is(err, repository.ErrConflict):
				return nil, fmt.Errorf("User %s already exists!", in.Username)
			case errors.Is(err, auth.ErrWeakPassword):
				return nil, fmt.Errorf("Validation failed: %s", err.Error())
			default:
				return nil, err
			}
		}
		return toUserPayload(cred), nil
	})
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.HealthCheck(ctx); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
