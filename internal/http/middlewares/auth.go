package middlewares

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ediflysi/jetdesk/internal/authz"
	jwtx "github.com/ediflysi/jetdesk/internal/jwt"
)

const (
	msgTokenMissing = "Forbidden! Authentication token required."
	msgTokenInvalid = "Auth Token Invalid or Expired!"
	msgNoPrivileges = "Insufficient Privileges! permission denied"
)

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": status, "message": message})
}

// TokenFromRequest extrae el token de sesión: primero el header
// configurado, después el query param token.
func TokenFromRequest(r *http.Request, header string) string {
	if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// RequireAuth valida el token de sesión y guarda las claims en el contexto.
// Token ausente responde 403; inválido o vencido, 401. Deja en la respuesta
// los timestamps de verificación (before/after-token-timestamps, token-time-ms).
func RequireAuth(issuer *jwtx.Issuer, header string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r, header)
			if raw == "" {
				writeAuthError(w, http.StatusForbidden, msgTokenMissing)
				return
			}

			start := time.Now()
			w.Header().Set("before-token-timestamps", fmt.Sprintf("%d", start.UnixMilli()))

			claims, err := issuer.Verify(raw)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, msgTokenInvalid)
				return
			}

			end := time.Now()
			w.Header().Set("after-token-timestamps", fmt.Sprintf("%d", end.UnixMilli()))
			w.Header().Set("token-time-ms", fmt.Sprintf("%d", end.Sub(start).Milliseconds()))

			ctx := WithClaims(r.Context(), claims)
			ctx = WithToken(ctx, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission exige que el nivel de la sesión contenga todos los bits
// pedidos. Corre después de RequireAuth.
func RequirePermission(perms ...authz.Permission) Middleware {
	var required authz.Permission
	for _, p := range perms {
		required |= p
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				writeAuthError(w, http.StatusForbidden, msgTokenMissing)
				return
			}
			if !authz.HasPermission(claims.Level, required) {
				writeAuthError(w, http.StatusForbidden, msgNoPrivileges)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
