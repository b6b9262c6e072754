package middlewares

import (
	"context"

	jwtx "github.com/ediflysi/jetdesk/internal/jwt"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxClaims
	ctxToken
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestID, rid)
}

// GetRequestID retorna el request id inyectado por WithRequestID ("" si no hay).
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}

// WithClaims guarda las claims de sesión en el contexto.
func WithClaims(ctx context.Context, c jwtx.Claims) context.Context {
	return context.WithValue(ctx, ctxClaims, c)
}

// GetClaims retorna las claims de la sesión autenticada.
func GetClaims(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(ctxClaims).(jwtx.Claims)
	return c, ok
}

// WithToken guarda el token crudo con el que se autenticó el request.
func WithToken(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, ctxToken, raw)
}

// GetToken retorna el token crudo de la sesión ("" si no hay).
func GetToken(ctx context.Context) string {
	if v, ok := ctx.Value(ctxToken).(string); ok {
		return v
	}
	return ""
}
