// Package http expone la API REST: login, sesión, 2FA y administración de
// usuarios, con el envelope de respuesta y los headers de timing del backoffice.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ediflysi/jetdesk/internal/observability/logger"
)

// Envelope es el formato de toda respuesta de la API. error=0 significa
// éxito; en fallo de negocio error=500 y el status HTTP sigue siendo 200.
type Envelope struct {
	Error     int    `json:"error"`
	Data      any    `json:"data"`
	Message   string `json:"message"`
	ErrorName string `json:"errorName,omitempty"`
}

// safeMessages son los fragmentos que habilitan exponer el mensaje real en
// producción. Cualquier otro error sale como mensaje genérico.
var safeMessages = []string{
	"User",
	"Not Found",
	"Wrong Password",
	"Disabled",
	"Invalid",
	"Expired",
	"Token",
	"Two-factor",
	"required",
	"Validation",
	"failed",
	"locked",
	"Captcha",
	"Privileges",
	"permission",
}

const genericErrorMessage = "An error occurred processing your request"

func safeMessage(msg string, prod bool) string {
	if !prod {
		return msg
	}
	for _, s := range safeMessages {
		if strings.Contains(msg, s) {
			return msg
		}
	}
	return genericErrorMessage
}

// WriteJSON escribe una respuesta JSON cruda (sin envelope).
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteStatusError escribe un error con status HTTP real (auth middleware,
// validación, rate limit). El campo error repite el status.
func WriteStatusError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{"error": status, "message": message})
}

// ReadJSON decodifica JSON de forma tolerante (no falla por campos
// desconocidos). Valida Content-Type y limita el body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteStatusError(w, http.StatusBadRequest, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteStatusError(w, http.StatusBadRequest, "Validation failed: invalid json")
		return false
	}
	return true
}

// exec corre la lógica del endpoint midiendo el tiempo de ejecución y
// serializa el resultado en el envelope. Los errores de negocio no cambian
// el status HTTP: viajan en el campo error del envelope.
func exec(w http.ResponseWriter, r *http.Request, prod bool, fn func(ctx context.Context) (any, error)) {
	start := time.Now()
	w.Header().Set("before-exec-timestamps", fmt.Sprintf("%d", start.UnixMilli()))

	jres := Envelope{Data: []any{}}

	data, err := fn(r.Context())
	if err != nil {
		logger.From(r.Context()).Warn("handler error",
			logger.Path(r.URL.Path),
			logger.Err(err),
		)
		jres.Error = http.StatusInternalServerError
		jres.Message = safeMessage(err.Error(), prod)
		if !prod {
			jres.ErrorName = fmt.Sprintf("%T", err)
		}
	} else if data != nil {
		jres.Data = data
	}

	end := time.Now()
	w.Header().Set("after-exec-timestamps", fmt.Sprintf("%d", end.UnixMilli()))
	w.Header().Set("execution-time-ms", fmt.Sprintf("%d", end.Sub(start).Milliseconds()))
	WriteJSON(w, http.StatusOK, jres)
}
