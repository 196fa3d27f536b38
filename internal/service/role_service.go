package service

import (
	"context"
	"fmt"
	"strings"

	"console/internal/model"
	"console/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type RenameRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type RoleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsSystem    bool   `json:"is_system"`
	CreatedAt   string `json:"created_at"`
}

type roleEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, userID string, req CreateRoleRequest) (*RoleResponse, error)
	RenameRole(ctx context.Context, userID, id string, req RenameRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, userID, id string) error
}

type roleService struct {
	roleRepo  repository.RoleRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	events    EventPublisher
	cache     PermissionCache
	log       *zap.Logger
}

func NewRoleService(
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
	cache PermissionCache,
	log *zap.Logger,
) RoleService {
	if events == nil {
		events = nopPublisher{}
	}
	if cache == nil {
		cache = nopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &roleService{
		roleRepo:  roleRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		events:    events,
		cache:     cache,
		log:       log,
	}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) findRole(ctx context.Context, id string) (*model.Role, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid role id %q", ErrInvalidInput, id)
	}
	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", id, mapRepoErr(err))
	}
	return role, nil
}

// ensureNameFree fails with ErrConflict when another role already uses name.
func (s *roleService) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.roleRepo.FindByName(ctx, name)
	if err == nil && existing.ID != self {
		return fmt.Errorf("%w: role %q", ErrConflict, name)
	}
	if err != nil && mapRepoErr(err) != ErrNotFound {
		return fmt.Errorf("failed to check role name: %w", err)
	}
	return nil
}

func (s *roleService) CreateRole(ctx context.Context, userID string, req CreateRoleRequest) (*RoleResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if err := s.ensureNameFree(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}

	role := model.Role{
		Name:        name,
		Description: req.Description,
		IsSystem:    false,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Create(txCtx, &role); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		if err := writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateRole, role.ID.String(), role.Name, req); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventRoleCreated, roleEvent{ID: role.ID.String(), Name: role.Name})
	resp := toRoleResponse(role)
	return &resp, nil
}

func (s *roleService) RenameRole(ctx context.Context, userID, id string, req RenameRoleRequest) (*RoleResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}

	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, name, role.ID); err != nil {
		return nil, err
	}

	oldName := role.Name
	role.Name = name
	if req.Description != "" {
		role.Description = req.Description
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Update(txCtx, role); err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		details := map[string]string{"from": oldName, "to": name}
		if err := writeAudit(txCtx, s.auditRepo, userID, model.ActionRenameRole, role.ID.String(), role.Name, details); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventRoleRenamed, roleEvent{ID: role.ID.String(), Name: role.Name})
	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) DeleteRole(ctx context.Context, userID, id string) error {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: %s", ErrSystemRole, role.Name)
	}

	var detached int64
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := s.roleRepo.DetachUsers(txCtx, role.ID)
		if err != nil {
			return fmt.Errorf("failed to detach users: %w", err)
		}
		detached = n
		if err := s.roleRepo.Delete(txCtx, role.ID); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		details := map[string]int64{"detached_users": n}
		if err := writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteRole, role.ID.String(), role.Name, details); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Purge(role.ID.String())
	s.log.Info("role deleted", zap.String("role", role.Name), zap.Int64("detached_users", detached))
	s.events.Publish(EventRoleDeleted, roleEvent{ID: role.ID.String(), Name: role.Name})
	return nil
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
