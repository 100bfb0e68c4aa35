package model

import (
	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "ADMIN"
	UserRoleOperator UserRole = "OPERATOR"
	UserRoleAuditor  UserRole = "AUDITOR"
)

type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

// CanReadHistory reports whether the caller may list recognitions.
func (p Principal) CanReadHistory() bool {
	switch p.Role {
	case UserRoleAdmin, UserRoleOperator, UserRoleAuditor:
		return true
	}
	return false
}

// CanExportHistory is narrower: operators see the feed but cannot bulk export.
func (p Principal) CanExportHistory() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleAuditor
}
