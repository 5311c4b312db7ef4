package models

import "time"

// Permission names. The catalog is closed: grants of unknown names are rejected.
const (
	PermViewStock        = "view_stock"
	PermManageStock      = "manage_stock"
	PermAdjustStock      = "adjust_stock"
	PermAcceptDeliveries = "accept_deliveries"
	PermViewStockReports = "view_stock_reports"
	PermCreateTasks      = "create_tasks"
	PermEditTasks        = "edit_tasks"
	PermDeleteTasks      = "delete_tasks"
	PermViewAuditLog     = "view_audit_log"
)

// PermissionInfo describes one entry of the permission catalog.
type PermissionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PermissionCatalog is every permission that may be granted.
var PermissionCatalog = []PermissionInfo{
	{Name: PermViewStock, Description: "View stock items, batches and deliveries"},
	{Name: PermManageStock, Description: "Create, edit and delete stock items and deliveries"},
	{Name: PermAdjustStock, Description: "Adjust and consume stock quantities"},
	{Name: PermAcceptDeliveries, Description: "Accept or reject stock deliveries"},
	{Name: PermViewStockReports, Description: "View stock reports and valuation"},
	{Name: PermCreateTasks, Description: "Create tasks"},
	{Name: PermEditTasks, Description: "Edit tasks"},
	{Name: PermDeleteTasks, Description: "Delete tasks"},
	{Name: PermViewAuditLog, Description: "View the audit log"},
}

// IsKnownPermission reports whether name is in the catalog.
func IsKnownPermission(name string) bool {
	for _, p := range PermissionCatalog {
		if p.Name == name {
			return true
		}
	}
	return false
}

// RoleBaselines are the permissions implied by each role. They are seeded into
// role_permissions when the schema is applied.
var RoleBaselines = map[string][]string{
	RoleAdmin: {
		PermViewStock, PermManageStock, PermAdjustStock, PermAcceptDeliveries, PermViewStockReports,
		PermCreateTasks, PermEditTasks, PermDeleteTasks, PermViewAuditLog,
	},
	RoleManager: {
		PermViewStock, PermManageStock, PermAdjustStock, PermAcceptDeliveries, PermViewStockReports,
		PermCreateTasks, PermEditTasks, PermDeleteTasks,
	},
	RoleSupervisor: {PermViewStock, PermAdjustStock, PermAcceptDeliveries, PermCreateTasks, PermEditTasks},
	RoleBarStaff:   {PermViewStock, PermAcceptDeliveries},
	RoleCleaner:    {},
	RoleEmployee:   {},
}

// RolePermission is a baseline grant for a role.
type RolePermission struct {
	Role       string `json:"role" db:"role"`
	Permission string `json:"permission" db:"permission"`
}

// UserPermission is an additive per-user override.
type UserPermission struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Permission string    `json:"permission" db:"permission"`
	GrantedBy  *int64    `json:"granted_by,omitempty" db:"granted_by"`
	GrantedAt  time.Time `json:"granted_at" db:"granted_at"`
}

// UserPermissionSet is the read model returned for a user's permissions.
type UserPermissionSet struct {
	UserID          int64            `json:"user_id"`
	Role            string           `json:"role"`
	Effective       []string         `json:"effective"`
	RolePermissions []string         `json:"role_permissions"`
	Custom          []UserPermission `json:"custom_permissions"`
}
