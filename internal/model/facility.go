package model

import (
	"github.com/google/uuid"
)

type FacilityType string

const (
	FacilityTypeHospital FacilityType = "hospital"
	FacilityTypeClinic   FacilityType = "clinic"
	FacilityTypeMobile   FacilityType = "mobile"
)

type Facility struct {
	Base
	Name        string        `json:"name" db:"name"`
	Type        FacilityType  `json:"type" db:"type"`
	Location    GeoPoint      `json:"location" db:"-"`
	Departments []*Department `json:"departments" db:"-"`
}

// Department returns the department with the given id, or nil
func (f *Facility) Department(id uuid.UUID) *Department {
	for _, d := range f.Departments {
		if d.ID == id {
			return d
		}
	}
	return nil
}

type Department struct {
	ID         uuid.UUID `json:"id" db:"id"`
	FacilityID uuid.UUID `json:"facilityId" db:"facility_id"`
	Name       string    `json:"name" db:"name"`
}

type CreateFacilityRequest struct {
	Name        string                    `json:"name" binding:"required"`
	Type        FacilityType              `json:"type" binding:"required,oneof=hospital clinic mobile"`
	Location    GeoPoint                  `json:"location" binding:"required"`
	Departments []CreateDepartmentRequest `json:"departments" binding:"omitempty,dive"`
}

type CreateDepartmentRequest struct {
	Name string `json:"name" binding:"required"`
}
