package model

import (
	"time"
)

// PermissionStatistics summarises how permissions are spread over roles and
// how much changed within a time range.
type PermissionStatistics struct {
	TotalRoles         int64            `json:"total_roles"`
	TotalUsers         int64            `json:"total_users"`
	UsersWithoutRole   int64            `json:"users_without_role"`
	Coverage           []ModuleCoverage `json:"coverage"`
	TopRoles           []RoleRanking    `json:"top_roles"`
	Changes            int64            `json:"changes"`
	TimeRangeStartDate time.Time        `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time        `json:"time_range_end_date"`
}

// ModuleCoverage counts, per permission kind, the roles granted it on a module.
type ModuleCoverage struct {
	Module string `json:"module"`
	View   int    `json:"view"`
	Create int    `json:"create"`
	Edit   int    `json:"edit"`
	Delete int    `json:"delete"`
}

// RoleRanking ranks a role by the number of grants it holds
type RoleRanking struct {
	RoleID   string `json:"role_id"`
	RoleName string `json:"role_name"`
	Grants   int    `json:"grants"`
	Users    int    `json:"users"`
	IsSystem bool   `json:"is_system"`
}
