// Package authroles maps IdP group claims onto application roles.
package authroles

import (
	"strings"

	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
)

// StaticRoleMapper maps groups by membership in two configured groups.
// Group names compare case-insensitively; admin wins over user.
type StaticRoleMapper struct {
	AdminGroup string
	UserGroup  string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	if hasGroup(groups, m.AdminGroup) {
		return domainauth.RoleAdmin
	}
	if hasGroup(groups, m.UserGroup) {
		return domainauth.RoleUser
	}
	return domainauth.RoleGuest
}

func hasGroup(groups []string, want string) bool {
	if want == "" {
		return false
	}
	for _, g := range groups {
		if strings.EqualFold(strings.TrimSpace(g), want) {
			return true
		}
	}
	return false
}
