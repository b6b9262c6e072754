// Package jwt emite y verifica los tokens de sesión (EdDSA sobre Ed25519,
// via golang-jwt). Las claims firmadas son inmutables: nunca se mutan, solo
// se reemite un token nuevo.
package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/ediflysi/jetdesk/internal/authz"
)

// RefreshWindow es el umbral de refresh: solo se reemite un token cuando le
// queda menos de esta vida útil. Evita extender sesiones sin límite en cada
// request.
const RefreshWindow = time.Hour

var (
	// ErrInvalidToken cubre firma inválida, payload malformado y expiración.
	ErrInvalidToken = errors.New("jwt: invalid or expired token")

	// ErrNotEligible indica que el token sigue lejos de expirar y no
	// corresponde reemitirlo.
	ErrNotEligible = errors.New("jwt: token not eligible for refresh")
)

// Claims es el payload de identidad y autoridad de una sesión.
type Claims struct {
	UserID    string
	Username  string
	Name      string
	Level     authz.Permission
	Role      authz.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer firma y verifica tokens con la clave del proceso.
type Issuer struct {
	Keys *KeySet
	Iss  string
	TTL  time.Duration

	// now permite congelar el reloj en tests. nil = time.Now.
	now func() time.Time
}

// NewIssuer crea un Issuer. ttl es la vida útil de cada token emitido.
func NewIssuer(keys *KeySet, iss string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{Keys: keys, Iss: iss, TTL: ttl}
}

func (i *Issuer) clock() time.Time {
	if i.now != nil {
		return i.now()
	}
	return time.Now()
}

// Issue firma las claims de identidad con iat/exp frescos y retorna el JWT.
// Los campos IssuedAt/ExpiresAt del argumento se ignoran: siempre los fija
// el emisor.
func (i *Issuer) Issue(c Claims) (string, error) {
	now := i.clock().UTC()
	exp := now.Add(i.TTL)

	mc := jwtv5.MapClaims{
		"iss":      i.Iss,
		"sub":      c.UserID,
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
		"username": c.Username,
		"level":    int64(c.Level),
		"role":     string(c.Role),
	}
	if c.Name != "" {
		mc["name"] = c.Name
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, mc)
	tk.Header["kid"] = i.Keys.KID
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.Keys.Priv)
}

// Verify valida firma, forma y expiración. Cualquier falla colapsa a
// ErrInvalidToken: el verificador no filtra el motivo al caller.
func (i *Issuer) Verify(token string) (Claims, error) {
	tok, err := jwtv5.Parse(token,
		func(t *jwtv5.Token) (any, error) { return i.Keys.Pub, nil },
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithTimeFunc(i.clock),
	)
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	if i.Iss != "" {
		if iss, _ := mc["iss"].(string); iss != i.Iss {
			return Claims{}, ErrInvalidToken
		}
	}

	c := Claims{}
	c.UserID, _ = mc["sub"].(string)
	c.Username, _ = mc["username"].(string)
	c.Name, _ = mc["name"].(string)
	if lvl, ok := mc["level"].(float64); ok {
		c.Level = authz.Permission(uint32(lvl))
	}
	if role, ok := mc["role"].(string); ok {
		c.Role = authz.Role(role)
	}
	if iat, ok := mc["iat"].(float64); ok {
		c.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := mc["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(exp), 0)
	} else {
		// Sin exp no hay sesión acotada: lo tratamos como malformado.
		return Claims{}, ErrInvalidToken
	}
	if c.UserID == "" || c.Username == "" {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

// Refresh reemite un token solo si el actual es válido Y le queda menos de
// RefreshWindow de vida. Si está lejos de expirar retorna ErrNotEligible.
func (i *Issuer) Refresh(token string) (string, error) {
	c, err := i.Verify(token)
	if err != nil {
		return "", err
	}
	if c.ExpiresAt.Sub(i.clock()) > RefreshWindow {
		return "", ErrNotEligible
	}
	return i.Issue(c)
}
