package auth

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRole = errors.New("invalid role")

const (
	AuthorityUserRead   = "user:read"
	AuthorityUserCreate = "user:create"
	AuthorityUserUpdate = "user:update"
	AuthorityUserDelete = "user:delete"
)

// Role is a closed enumeration. The zero value is not a valid role.
type Role int

const (
	RoleUser Role = iota + 1
	RoleHR
	RoleManager
	RoleAdmin
	RoleSuperAdmin
)

var roleNames = map[Role]string{
	RoleUser:       "ROLE_USER",
	RoleHR:         "ROLE_HR",
	RoleManager:    "ROLE_MANAGER",
	RoleAdmin:      "ROLE_ADMIN",
	RoleSuperAdmin: "ROLE_SUPER_ADMIN",
}

var roleAuthorities = map[Role][]string{
	RoleUser:       {AuthorityUserRead},
	RoleHR:         {AuthorityUserRead, AuthorityUserUpdate},
	RoleManager:    {AuthorityUserRead, AuthorityUserUpdate},
	RoleAdmin:      {AuthorityUserRead, AuthorityUserCreate, AuthorityUserUpdate},
	RoleSuperAdmin: {AuthorityUserRead, AuthorityUserCreate, AuthorityUserUpdate, AuthorityUserDelete},
}

// ParseRole accepts "ROLE_ADMIN", "role_admin" and "admin" alike.
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name != "" && !strings.HasPrefix(name, "ROLE_") {
		name = "ROLE_" + name
	}
	for role, roleName := range roleNames {
		if roleName == name {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Authorities returns a copy of the authority labels granted to r.
func (r Role) Authorities() []string {
	return append([]string(nil), roleAuthorities[r]...)
}

func HasAuthority(authorities []string, authority string) bool {
	for _, a := range authorities {
		if a == authority {
			return true
		}
	}
	return false
}
