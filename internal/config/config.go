// Package config carga la configuración desde YAML con overrides por
// variables de entorno. Los secretos nunca viven en el YAML: solo env.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer    string `yaml:"issuer"`
		AccessTTL string `yaml:"access_ttl"`
		KID       string `yaml:"kid"`
		// SigningSeed se toma solo de env (JWT_SIGNING_SEED): seed ed25519
		// de 32 bytes en base64. Vacío ⇒ clave efímera de desarrollo.
		SigningSeed string `yaml:"-"`
	} `yaml:"jwt"`

	Auth struct {
		// Header por el que viaja el token de sesión.
		TokenHeader string `yaml:"token_header"`
		CaptchaTTL  string `yaml:"captcha_ttl"`

		DefaultAdminUser string `yaml:"default_admin_user"`
		// Solo env (DEFAULT_ADMIN_PASSWORD). Vacío ⇒ no se siembra admin.
		DefaultAdminPassword string `yaml:"-"`
	} `yaml:"auth"`

	Security struct {
		// Solo env: PASSWORD_SECRET (clave del digest keyed) y MASTER_KEY
		// (cifrado de secretos TOTP).
		PasswordSecret string `yaml:"-"`
		MasterKey      string `yaml:"-"`
	} `yaml:"security"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML (path vacío ⇒ solo defaults + env), aplica defaults,
// overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// Defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "jetdesk"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "24h"
	}
	if c.JWT.KID == "" {
		c.JWT.KID = "jetdesk-1"
	}
	if c.Auth.TokenHeader == "" {
		c.Auth.TokenHeader = "jetdesk-token"
	}
	if c.Auth.CaptchaTTL == "" {
		c.Auth.CaptchaTTL = "3m"
	}
	if c.Auth.DefaultAdminUser == "" {
		c.Auth.DefaultAdminUser = "admin"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_KID"); ok {
		c.JWT.KID = v
	}
	if v, ok := getEnvStr("AUTH_TOKEN_HEADER"); ok {
		c.Auth.TokenHeader = v
	}
	if v, ok := getEnvStr("CAPTCHA_TTL"); ok {
		c.Auth.CaptchaTTL = v
	}
	if v, ok := getEnvStr("DEFAULT_ADMIN_USER"); ok {
		c.Auth.DefaultAdminUser = v
	}
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvStr("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// Secretos: únicamente por env.
	c.JWT.SigningSeed = os.Getenv("JWT_SIGNING_SEED")
	c.Security.PasswordSecret = os.Getenv("PASSWORD_SECRET")
	c.Security.MasterKey = os.Getenv("MASTER_KEY")
	c.Auth.DefaultAdminPassword = os.Getenv("DEFAULT_ADMIN_PASSWORD")
}

// Validate chequea combinaciones inválidas y durations malformadas.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("config: postgres driver requires storage.dsn or STORAGE_DSN")
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache kind %q", c.Cache.Kind)
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("config: redis cache requires cache.redis.addr or REDIS_ADDR")
	}

	for name, s := range map[string]string{
		"jwt.access_ttl":   c.JWT.AccessTTL,
		"auth.captcha_ttl": c.Auth.CaptchaTTL,
		"rate.login.window": c.Rate.Login.Window,
	} {
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("config: invalid duration %s=%q", name, s)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return fmt.Errorf("config: invalid duration storage.postgres.conn_max_lifetime=%q", c.Storage.Postgres.ConnMaxLifetime)
		}
	}

	// En prod el digest keyed y el cifrado de secretos son obligatorios.
	if strings.EqualFold(c.App.Env, "prod") {
		if c.Security.PasswordSecret == "" {
			return fmt.Errorf("config: PASSWORD_SECRET is required in prod")
		}
		if c.Security.MasterKey == "" {
			return fmt.Errorf("config: MASTER_KEY is required in prod")
		}
		if c.JWT.SigningSeed == "" {
			return fmt.Errorf("config: JWT_SIGNING_SEED is required in prod")
		}
	}
	return nil
}

// IsProd indica si corre en modo producción (mensajes de error curados).
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// AccessTTL retorna la duración parseada (Validate garantiza que parsea).
func (c *Config) AccessTTL() time.Duration {
	d, _ := time.ParseDuration(c.JWT.AccessTTL)
	return d
}

// CaptchaTTL retorna la duración parseada del TTL de captcha.
func (c *Config) CaptchaTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.CaptchaTTL)
	return d
}

// LoginRateWindow retorna la ventana del rate limit de login.
func (c *Config) LoginRateWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Login.Window)
	return d
}
