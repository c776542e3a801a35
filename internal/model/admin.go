package model

import (
	"time"

	"github.com/google/uuid"
)

type Admin struct {
	Base
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Name         string     `json:"name" db:"name"`
	Role         string     `json:"role" db:"role"`
	IsActive     bool       `json:"isActive" db:"is_active"`
	LastLogin    *time.Time `json:"lastLogin,omitempty" db:"last_login"`
}

type FacilityAdmin struct {
	Base
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	FacilityID   uuid.UUID `json:"facilityId" db:"facility_id"`
}

type FacilityAdminProfile struct {
	*FacilityAdmin
	Facility *Facility `json:"facility"`
}

// DashboardStats are the platform totals shown to admins
type DashboardStats struct {
	TotalFacilities int `json:"totalFacilities"`
	TotalProviders  int `json:"totalProviders"`
	TotalPatients   int `json:"totalPatients"`
	ActiveReferrals int `json:"activeReferrals"`
}
