package http

import (
	"net/http"
	"regexp"
	"strings"
)

// Reglas de validación de inputs, espejo de las del frontend para fallar
// temprano con un 400 y detalle por campo.
var (
	reUsername = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	reDigits   = regexp.MustCompile(`^[0-9]+$`)
	reName     = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	reEmail    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	rePhone    = regexp.MustCompile(`^[+]?[0-9\s\-()]+$`)
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"msg"`
}

func validateLogin(in loginRequest) []fieldError {
	var errs []fieldError
	if l := len(in.Username); l < 3 || l > 50 {
		errs = append(errs, fieldError{"username", "Username must be between 3 and 50 characters"})
	} else if !reUsername.MatchString(in.Username) {
		errs = append(errs, fieldError{"username", "Username can only contain letters, numbers, dots, underscores, and hyphens"})
	}
	if len(in.Password) < 8 {
		errs = append(errs, fieldError{"password", "Password must be at least 8 characters long"})
	}
	if len(in.Captcha) != 6 || !reDigits.MatchString(in.Captcha) {
		errs = append(errs, fieldError{"captcha", "Captcha must be exactly 6 numbers"})
	}
	if strings.TrimSpace(in.Token) == "" {
		errs = append(errs, fieldError{"token", "Captcha token is required"})
	}
	if in.TwoFactorToken != "" {
		if len(in.TwoFactorToken) != 6 || !reDigits.MatchString(in.TwoFactorToken) {
			errs = append(errs, fieldError{"twoFactorToken", "Two-factor token must be exactly 6 numbers"})
		}
	}
	return errs
}

func validatePasswordChange(in changePasswordRequest) []fieldError {
	var errs []fieldError
	if len(in.Current) < 8 {
		errs = append(errs, fieldError{"current", "Current password must be at least 8 characters long"})
	}
	if len(in.Password) < 8 {
		errs = append(errs, fieldError{"password", "New password must be at least 8 characters long"})
	}
	return errs
}

func validateProfile(in profileRequest) []fieldError {
	var errs []fieldError
	if in.Name != nil {
		if l := len(*in.Name); l < 2 || l > 100 {
			errs = append(errs, fieldError{"name", "Name must be between 2 and 100 characters"})
		} else if !reName.MatchString(*in.Name) {
			errs = append(errs, fieldError{"name", "Name can only contain letters and spaces"})
		}
	}
	if in.Email != nil && !reEmail.MatchString(*in.Email) {
		errs = append(errs, fieldError{"email", "Please provide a valid email address"})
	}
	if in.Phone != nil && !rePhone.MatchString(*in.Phone) {
		errs = append(errs, fieldError{"phone", "Please provide a valid phone number"})
	}
	return errs
}

// writeValidationErrors responde 400 con el detalle por campo.
func writeValidationErrors(w http.ResponseWriter, errs []fieldError) {
	WriteJSON(w, http.StatusBadRequest, map[string]any{
		"error":   http.StatusBadRequest,
		"message": "Validation failed",
		"details": errs,
	})
}
