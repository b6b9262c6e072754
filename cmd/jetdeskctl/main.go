// Command jetdeskctl agrupa las tareas administrativas que no viajan por la
// API: generación de claves de firma, siembra del admin inicial y hashing de
// passwords para altas manuales.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ediflysi/jetdesk/internal/auth"
	"github.com/ediflysi/jetdesk/internal/config"
	jwtx "github.com/ediflysi/jetdesk/internal/jwt"
	"github.com/ediflysi/jetdesk/internal/security/password"
	"github.com/ediflysi/jetdesk/internal/store/pg"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	root := &cobra.Command{
		Use:           "jetdeskctl",
		Short:         "Herramientas administrativas de jetdesk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(keysCmd(), userCmd(), passwordCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Claves de firma de tokens",
	}

	var kid string
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera una seed Ed25519 nueva e imprime seed + JWKS",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := make([]byte, 32)
			if _, err := rand.Read(seed); err != nil {
				return err
			}
			encoded := base64.StdEncoding.EncodeToString(seed)
			keys, err := jwtx.FromSeed(encoded, kid)
			if err != nil {
				return err
			}
			fmt.Printf("JWT_SIGNING_SEED=%s\n", encoded)
			fmt.Printf("JWKS=%s\n", keys.JWKSJSON())
			return nil
		},
	}
	gen.Flags().StringVar(&kid, "kid", "jetdesk-1", "key ID para el JWKS")

	cmd.AddCommand(gen)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administración de usuarios",
	}

	var (
		envFile    = ".env"
		configPath string
		username   string
		plain      string
	)
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Crea el admin inicial si no existe (idempotente)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load(envFile)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("user seed requiere storage.driver=postgres (driver actual: %q)", cfg.Storage.Driver)
			}
			if username == "" {
				username = cfg.Auth.DefaultAdminUser
			}
			if plain == "" {
				plain = cfg.Auth.DefaultAdminPassword
			}
			if plain == "" {
				return fmt.Errorf("falta el password (flag --password o env DEFAULT_ADMIN_PASSWORD)")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{})
			if err != nil {
				return err
			}
			defer store.Close()
			if _, err := store.Migrate(ctx); err != nil {
				return err
			}

			verifier, err := password.NewVerifier(cfg.Security.PasswordSecret)
			if err != nil {
				return err
			}
			svc := auth.New(auth.Deps{Repo: store, Verifier: verifier})

			cred, err := svc.CreateDefaultUser(ctx, username, plain)
			if err != nil {
				return err
			}
			fmt.Printf("admin listo: id=%s username=%s level=0x%x\n", cred.ID, cred.Username, cred.Level)
			return nil
		},
	}
	seed.Flags().StringVar(&envFile, "env-file", envFile, "ruta al archivo .env")
	seed.Flags().StringVar(&configPath, "config", configPath, "ruta al config.yaml")
	seed.Flags().StringVar(&username, "username", username, "username del admin (default: config)")
	seed.Flags().StringVar(&plain, "password", plain, "password del admin (default: env DEFAULT_ADMIN_PASSWORD)")

	cmd.AddCommand(seed)
	return cmd
}

func passwordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Utilidades de passwords",
	}

	var secret string
	hash := &cobra.Command{
		Use:   "hash <plain>",
		Short: "Imprime el digest PHC de un password para altas manuales",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verifier, err := password.NewVerifier(secret)
			if err != nil {
				return err
			}
			digest, err := verifier.HashForStorage(args[0])
			if err != nil {
				return err
			}
			fmt.Println(digest)
			return nil
		},
	}
	hash.Flags().StringVar(&secret, "secret", envOr("PASSWORD_SECRET", ""), "clave del digest keyed (env PASSWORD_SECRET)")

	cmd.AddCommand(hash)
	return cmd
}
