package model

import (
	"time"

	"github.com/google/uuid"
)

type ProviderRole string

const (
	ProviderRoleDoctor      ProviderRole = "doctor"
	ProviderRoleNurse       ProviderRole = "nurse"
	ProviderRoleAdmin       ProviderRole = "admin"
	ProviderRoleCoordinator ProviderRole = "coordinator"
)

type Provider struct {
	Base
	Email        string       `json:"email" db:"email"`
	PasswordHash string       `json:"-" db:"password_hash"`
	Name         string       `json:"name" db:"name"`
	Phone        string       `json:"phone" db:"phone"`
	FacilityID   uuid.UUID    `json:"facilityId" db:"facility_id"`
	DepartmentID *uuid.UUID   `json:"departmentId,omitempty" db:"department_id"`
	Role         ProviderRole `json:"role" db:"role"`
	Permissions  []Permission `json:"permissions" db:"-"`
	IsActive     bool         `json:"isActive" db:"is_active"`
	LastLogin    *time.Time   `json:"lastLogin,omitempty" db:"last_login"`
}

func (p *Provider) HasPermission(perm Permission) bool {
	for _, granted := range p.Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

type ProviderFilter struct {
	ActiveOnly   bool
	FacilityID   *uuid.UUID
	DepartmentID *uuid.UUID
}

type CreateProviderRequest struct {
	Email        string       `json:"email" binding:"required,email"`
	Password     string       `json:"password" binding:"required,min=8"`
	Name         string       `json:"name" binding:"required"`
	Phone        string       `json:"phone" binding:"required"`
	FacilityID   uuid.UUID    `json:"facilityId" binding:"required"`
	DepartmentID *uuid.UUID   `json:"departmentId"`
	Role         ProviderRole `json:"role" binding:"required,oneof=doctor nurse admin coordinator"`
	Permissions  []Permission `json:"permissions" binding:"omitempty,dive,oneof=create_referrals manage_slots view_analytics manage_events"`
}

// UpdateProviderRequest never carries a password
type UpdateProviderRequest struct {
	Name         *string       `json:"name"`
	Phone        *string       `json:"phone"`
	FacilityID   *uuid.UUID    `json:"facilityId"`
	DepartmentID *uuid.UUID    `json:"departmentId"`
	Role         *ProviderRole `json:"role" binding:"omitempty,oneof=doctor nurse admin coordinator"`
	Permissions  *[]Permission `json:"permissions" binding:"omitempty,dive,oneof=create_referrals manage_slots view_analytics manage_events"`
	IsActive     *bool         `json:"isActive"`
}
