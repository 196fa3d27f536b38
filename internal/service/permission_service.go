package service

import (
	"context"
	"fmt"
	"sort"

	"console/internal/model"
	"console/internal/permission"
	"console/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ModuleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UpdateRolePermissionsRequest replaces the role's whole permission set.
type UpdateRolePermissionsRequest struct {
	Permissions []permission.Record `json:"permissions" binding:"required"`
}

type permissionsEvent struct {
	RoleID string             `json:"role_id"`
	Grants []permission.Grant `json:"grants"`
}

type PermissionService interface {
	ListModules(ctx context.Context) ([]ModuleResponse, error)
	RolePermissions(ctx context.Context, roleID string) ([]permission.Grant, error)
	UpdateRolePermissions(ctx context.Context, userID, roleID string, req UpdateRolePermissionsRequest) ([]permission.Grant, error)
	// CodesForRole returns the role's "<module>.<kind>" codes.
	CodesForRole(ctx context.Context, roleID string) ([]string, error)
}

type permissionService struct {
	roleRepo   repository.RoleRepository
	moduleRepo repository.ModuleRepository
	permRepo   repository.PermissionRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	events     EventPublisher
	cache      PermissionCache
	log        *zap.Logger
}

func NewPermissionService(
	roleRepo repository.RoleRepository,
	moduleRepo repository.ModuleRepository,
	permRepo repository.PermissionRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
	cache PermissionCache,
	log *zap.Logger,
) PermissionService {
	if events == nil {
		events = nopPublisher{}
	}
	if cache == nil {
		cache = nopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &permissionService{
		roleRepo:   roleRepo,
		moduleRepo: moduleRepo,
		permRepo:   permRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		events:     events,
		cache:      cache,
		log:        log,
	}
}

func (s *permissionService) ListModules(ctx context.Context) ([]ModuleResponse, error) {
	modules, err := s.moduleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch modules: %w", err)
	}
	res := make([]ModuleResponse, 0, len(modules))
	for _, m := range modules {
		res = append(res, ModuleResponse{ID: m.ID.String(), Name: m.Name})
	}
	return res, nil
}

func (s *permissionService) role(ctx context.Context, roleID string) (*model.Role, error) {
	id, err := uuid.Parse(roleID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid role id %q", ErrInvalidInput, roleID)
	}
	role, err := s.roleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", roleID, mapRepoErr(err))
	}
	return role, nil
}

func (s *permissionService) RolePermissions(ctx context.Context, roleID string) ([]permission.Grant, error) {
	role, err := s.role(ctx, roleID)
	if err != nil {
		return nil, err
	}
	rows, err := s.permRepo.ListByRole(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	return groupGrants(rows), nil
}

// UpdateRolePermissions validates every record before touching the store:
// empty tokens are dropped, unknown kinds and module ids are rejected.
func (s *permissionService) UpdateRolePermissions(ctx context.Context, userID, roleID string, req UpdateRolePermissionsRequest) ([]permission.Grant, error) {
	role, err := s.role(ctx, roleID)
	if err != nil {
		return nil, err
	}

	rows, moduleIDs, err := toRows(role.ID, req.Permissions)
	if err != nil {
		return nil, err
	}

	modules, err := s.moduleRepo.FindByIDs(ctx, moduleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch modules: %w", err)
	}
	known := make(map[uuid.UUID]model.Module, len(modules))
	for _, m := range modules {
		known[m.ID] = m
	}
	for _, id := range moduleIDs {
		if _, ok := known[id]; !ok {
			return nil, fmt.Errorf("%w: unknown module id %s", ErrInvalidInput, id)
		}
	}
	for i := range rows {
		rows[i].Module = known[rows[i].ModuleID]
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.permRepo.Replace(txCtx, role.ID, rows); err != nil {
			return fmt.Errorf("failed to update permissions: %w", err)
		}
		if err := writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateRolePermissions, role.ID.String(), role.Name, req.Permissions); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Other replicas converge when their cache entry expires.
	s.cache.Purge(role.ID.String())

	grants := groupGrants(rows)
	s.log.Info("role permissions replaced", zap.String("role", role.Name), zap.Int("grants", len(rows)))
	s.events.Publish(EventRolePermissionsUpdated, permissionsEvent{RoleID: role.ID.String(), Grants: grants})
	return grants, nil
}

func (s *permissionService) CodesForRole(ctx context.Context, roleID string) ([]string, error) {
	id, err := uuid.Parse(roleID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid role id %q", ErrInvalidInput, roleID)
	}
	codes, err := s.permRepo.CodesForRole(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permission codes: %w", err)
	}
	return codes, nil
}

// toRows converts update records to rows, deduplicating repeated kinds.
func toRows(roleID uuid.UUID, records []permission.Record) ([]model.RolePermission, []uuid.UUID, error) {
	type key struct {
		module uuid.UUID
		kind   permission.Kind
	}
	seen := make(map[key]bool)
	seenModule := make(map[uuid.UUID]bool)
	var rows []model.RolePermission
	var moduleIDs []uuid.UUID

	for _, rec := range records {
		moduleID, err := uuid.Parse(rec.ModuleID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid module id %q", ErrInvalidInput, rec.ModuleID)
		}
		if !seenModule[moduleID] {
			seenModule[moduleID] = true
			moduleIDs = append(moduleIDs, moduleID)
		}
		for _, token := range rec.PermissionNames {
			if token == permission.EmptySentinel {
				continue
			}
			kind, ok := permission.ParseKind(token)
			if !ok {
				return nil, nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, token)
			}
			k := key{module: moduleID, kind: kind}
			if seen[k] {
				continue
			}
			seen[k] = true
			rows = append(rows, model.RolePermission{RoleID: roleID, ModuleID: moduleID, Permission: string(kind)})
		}
	}
	return rows, moduleIDs, nil
}

// groupGrants folds rows into one grant per module, kinds in display order.
// Modules without rows are omitted.
func groupGrants(rows []model.RolePermission) []permission.Grant {
	byModule := make(map[string]map[string]bool)
	for _, r := range rows {
		name := r.Module.Name
		if byModule[name] == nil {
			byModule[name] = make(map[string]bool)
		}
		byModule[name][r.Permission] = true
	}

	names := make([]string, 0, len(byModule))
	for name := range byModule {
		names = append(names, name)
	}
	sort.Strings(names)

	grants := make([]permission.Grant, 0, len(names))
	for _, name := range names {
		var kinds []string
		for _, k := range permission.Kinds {
			if byModule[name][string(k)] {
				kinds = append(kinds, string(k))
			}
		}
		grants = append(grants, permission.Grant{Module: name, Permissions: kinds})
	}
	return grants
}
