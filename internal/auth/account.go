package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/ediflysi/jetdesk/internal/audit"
	"github.com/ediflysi/jetdesk/internal/authz"
	"github.com/ediflysi/jetdesk/internal/domain/repository"
	"github.com/ediflysi/jetdesk/internal/observability/logger"
)

// ChangePassword valida el password actual y guarda el nuevo como argon2id.
// Las credenciales legadas con digest HMAC quedan migradas al formato PHC en
// este paso.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("ChangePassword"),
		logger.UserID(userID),
	)

	cred, err := s.deps.Repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.deps.Verifier.Verify(cred.Username, current, cred.PasswordDigest) {
		log.Debug("current password mismatch")
		return ErrInvalidCredentials
	}

	if ok, reasons := s.deps.Policy.Validate(next); !ok {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(reasons, ","))
	}

	digest, err := s.deps.Verifier.HashForStorage(next)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.deps.Repo.UpdatePassword(ctx, cred.ID, digest); err != nil {
		return err
	}
	log.Info("password changed")
	audit.Log(ctx, audit.EventPasswordChanged, logger.UserID(userID))
	return nil
}

// UpdateProfile actualiza los campos no nulos del perfil del usuario.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in repository.ProfileInput) (*repository.Credential, error) {
	if err := s.deps.Repo.UpdateProfile(ctx, userID, in); err != nil {
		return nil, err
	}
	return s.deps.Repo.FindByID(ctx, userID)
}

// CreateUserInput son los datos de alta de un usuario nuevo.
type CreateUserInput struct {
	Username  string
	Name      string
	Email     string
	Phone     string
	Password  string
	Role      authz.Role
	CreatedBy string
}

// CreateUser da de alta una credencial con el nivel derivado del rol. El
// nivel nunca se recibe del cliente: siempre sale de la tabla de roles.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*repository.Credential, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("CreateUser"),
	)

	in.Username = strings.TrimSpace(strings.ToLower(in.Username))
	if in.Username == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if in.Role == "" {
		in.Role = authz.RoleClient
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if ok, reasons := s.deps.Policy.Validate(in.Password); !ok {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(reasons, ","))
	}

	digest, err := s.deps.Verifier.HashForStorage(in.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	cred, err := s.deps.Repo.Create(ctx, repository.CreateInput{
		Username:       in.Username,
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		PasswordDigest: digest,
		Level:          authz.LevelForRole(in.Role),
		Role:           in.Role,
		CreatedBy:      in.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	log.Info("user created", logger.Username(cred.Username), logger.Role(string(cred.Role)))
	audit.Log(ctx, audit.EventUserCreated, logger.UserID(cred.ID), logger.Username(cred.Username), logger.Role(string(cred.Role)))
	return cred, nil
}

// CreateDefaultUser asegura que exista el usuario administrador inicial. Es
// idempotente: si el username ya existe no hace nada.
func (s *Service) CreateDefaultUser(ctx context.Context, username, plainPassword string) (*repository.Credential, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || plainPassword == "" {
		return nil, ErrMissingFields
	}

	if cred, err := s.deps.Repo.FindByUsername(ctx, username); err == nil {
		return cred, nil
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	digest, err := s.deps.Verifier.HashForStorage(plainPassword)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	cred, err := s.deps.Repo.Create(ctx, repository.CreateInput{
		Username:       username,
		Name:           "Super User",
		PasswordDigest: digest,
		Level:          authz.LevelForRole(authz.RoleSuperAdmin),
		Role:           authz.RoleSuperAdmin,
		CreatedBy:      "system",
	})
	if err != nil {
		if repository.IsConflict(err) {
			// Carrera con otra instancia arrancando: el usuario ya está.
			return s.deps.Repo.FindByUsername(ctx, username)
		}
		return nil, err
	}
	logger.From(ctx).Info("default admin created", logger.Username(username))
	audit.Log(ctx, audit.EventUserCreated, logger.UserID(cred.ID), logger.Username(cred.Username), logger.Role(string(cred.Role)))
	return cred, nil
}
