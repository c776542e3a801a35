package model

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccountType identifies which account collection a token belongs to
type AccountType string

const (
	AccountAdmin         AccountType = "admin"
	AccountProvider      AccountType = "provider"
	AccountPatient       AccountType = "patient"
	AccountFacilityAdmin AccountType = "facility_admin"
)

// Permission gates provider endpoints
type Permission string

const (
	PermissionCreateReferrals Permission = "create_referrals"
	PermissionManageSlots     Permission = "manage_slots"
	PermissionViewAnalytics   Permission = "view_analytics"
	PermissionManageEvents    Permission = "manage_events"
)

func (p Permission) Valid() bool {
	switch p {
	case PermissionCreateReferrals, PermissionManageSlots, PermissionViewAnalytics, PermissionManageEvents:
		return true
	}
	return false
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	AccountID    uuid.UUID    `json:"account_id"`
	Type         AccountType  `json:"type"`
	Email        string       `json:"email,omitempty"`
	Role         string       `json:"role,omitempty"`
	FacilityID   *uuid.UUID   `json:"facility_id,omitempty"`
	DepartmentID *uuid.UUID   `json:"department_id,omitempty"`
	Permissions  []Permission `json:"permissions,omitempty"`
}

func (c *TokenClaims) HasPermission(p Permission) bool {
	for _, granted := range c.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type PatientLoginRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type TokenResponse struct {
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expires_in"`
	Type      AccountType `json:"type"`
	Account   interface{} `json:"account"`
}
