package service

import (
	"context"
	"encoding/json"
	"errors"

	"console/internal/model"
	"console/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("already exists")
	ErrSystemRole         = errors.New("system role cannot be deleted")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Events published on the change feed.
const (
	EventRoleCreated            = "role.created"
	EventRoleRenamed            = "role.renamed"
	EventRoleDeleted            = "role.deleted"
	EventRolePermissionsUpdated = "role.permissions_updated"
)

// EventPublisher fans change events out to connected clients.
type EventPublisher interface {
	Publish(event string, data interface{})
}

// PermissionCache drops the cached permission codes of a role.
type PermissionCache interface {
	Purge(roleID string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

type nopCache struct{}

func (nopCache) Purge(string) {}

func mapRepoErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// writeAudit records an action inside the caller's transaction.
func writeAudit(ctx context.Context, repo repository.AuditRepository, userID, action, entityID, entityName string, details interface{}) error {
	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	payload := "{}"
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			payload = string(raw)
		}
	}

	return repo.Log(ctx, &model.AuditLog{
		UserID:     uid,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    payload,
	})
}
