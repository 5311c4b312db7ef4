package models

import "time"

// Roles known to the system. Management is admin or manager.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleSupervisor = "supervisor"
	RoleBarStaff   = "bar_staff"
	RoleCleaner    = "cleaner"
	RoleEmployee   = "employee"
)

// AllRoles lists every valid role in display order.
var AllRoles = []string{RoleAdmin, RoleManager, RoleSupervisor, RoleBarStaff, RoleCleaner, RoleEmployee}

// IsValidRole reports whether role is one of AllRoles.
func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a user in the system
type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         string     `json:"role" db:"role"`
	FullName     string     `json:"full_name" db:"full_name"`
	Email        *string    `json:"email,omitempty" db:"email"`
	Phone        *string    `json:"phone,omitempty" db:"phone"`
	Active       bool       `json:"active" db:"active"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Principal is the authenticated caller of a service operation.
type Principal struct {
	UserID   int64
	Username string
	Role     string
	Origin   string // client IP, recorded in the audit log
}

// Credentials for login request
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
