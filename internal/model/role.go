package model

import (
	"time"

	"github.com/google/uuid"
)

// Role groups users that share one set of module permissions
type Role struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string           `gorm:"type:text" json:"description"`
	IsSystem    bool             `gorm:"default:false" json:"is_system"` // Prevent deletion of built-in roles
	Permissions []RolePermission `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE;" json:"-"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Module is a functional area permissions are granted on (Invoice, Leads, ...)
type Module struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RolePermission is one granted kind on one module. A role's permission set
// is the set of its rows; absence means not granted.
type RolePermission struct {
	RoleID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"role_id"`
	ModuleID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"module_id"`
	Permission string    `gorm:"type:varchar(20);primaryKey" json:"permission"` // view, create, edit, delete
	Module     Module    `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE;" json:"-"`
}
