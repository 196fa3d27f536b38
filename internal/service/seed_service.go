package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"console/internal/model"
	"console/internal/permission"
	"console/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminRole is the built-in role allowed to manage roles and permissions.
const AdminRole = "admin"

// SeedOptions configures SeedDefaults.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
}

// Seeder creates the canonical modules, the admin role and the first admin user.
type Seeder struct {
	roleRepo   repository.RoleRepository
	moduleRepo repository.ModuleRepository
	permRepo   repository.PermissionRepository
	userRepo   repository.UserRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	log        *zap.Logger
}

func NewSeeder(
	roleRepo repository.RoleRepository,
	moduleRepo repository.ModuleRepository,
	permRepo repository.PermissionRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	log *zap.Logger,
) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{
		roleRepo:   roleRepo,
		moduleRepo: moduleRepo,
		permRepo:   permRepo,
		userRepo:   userRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		log:        log,
	}
}

// SeedDefaults is idempotent: existing modules, role and user are kept, and
// the admin role is always reset to every permission on every module.
func (s *Seeder) SeedDefaults(ctx context.Context, opts SeedOptions) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var modules []model.Module
		for _, name := range permission.CanonicalModules {
			m, err := s.moduleRepo.FindOrCreate(txCtx, name)
			if err != nil {
				return fmt.Errorf("failed to seed module '%s': %w", name, err)
			}
			modules = append(modules, *m)
		}

		role, err := s.roleRepo.FindByName(txCtx, AdminRole)
		if errors.Is(err, repository.ErrNotFound) {
			role = &model.Role{Name: AdminRole, Description: "Full access to roles and permissions", IsSystem: true}
			if err := s.roleRepo.Create(txCtx, role); err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", AdminRole, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to look up role '%s': %w", AdminRole, err)
		}

		rows := make([]model.RolePermission, 0, len(modules)*len(permission.Kinds))
		for _, m := range modules {
			for _, k := range permission.Kinds {
				rows = append(rows, model.RolePermission{RoleID: role.ID, ModuleID: m.ID, Permission: string(k)})
			}
		}
		if err := s.permRepo.Replace(txCtx, role.ID, rows); err != nil {
			return fmt.Errorf("failed to assign permissions to role '%s': %w", AdminRole, err)
		}

		created, err := s.seedAdminUser(txCtx, role, opts)
		if err != nil {
			return err
		}

		details := map[string]interface{}{"modules": permission.CanonicalModules, "admin_user_created": created}
		if err := writeAudit(txCtx, s.auditRepo, "", model.ActionSeedDefaults, role.ID.String(), role.Name, details); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		s.log.Info("seeded defaults", zap.Int("modules", len(modules)), zap.Bool("admin_user_created", created))
		return nil
	})
}

func (s *Seeder) seedAdminUser(ctx context.Context, role *model.Role, opts SeedOptions) (bool, error) {
	if opts.AdminEmail == "" || opts.AdminPassword == "" {
		s.log.Warn("ADMIN_PASSWORD not set, skipping admin user")
		return false, nil
	}
	_, err := s.userRepo.GetByEmail(ctx, opts.AdminEmail)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("failed to look up admin user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(opts.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	username := opts.AdminEmail
	if at := strings.IndexByte(username, '@'); at > 0 {
		username = username[:at]
	}
	roleID := role.ID
	user := &model.User{
		Username: username,
		Email:    opts.AdminEmail,
		Password: string(hashed),
		RoleID:   &roleID,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}
	return true, nil
}
