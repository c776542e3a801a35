package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusOpen   SlotStatus = "open"
	SlotStatusHeld   SlotStatus = "held"
	SlotStatusBooked SlotStatus = "booked"
	SlotStatusClosed SlotStatus = "closed"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusOpen, SlotStatusHeld, SlotStatusBooked, SlotStatusClosed:
		return true
	}
	return false
}

// Settable reports whether a provider may put a slot into this status directly.
// Booked is only reachable through a claim.
func (s SlotStatus) Settable() bool {
	return s == SlotStatusOpen || s == SlotStatusHeld || s == SlotStatusClosed
}

type Slot struct {
	Base
	FacilityID   uuid.UUID  `json:"facilityId" db:"facility_id"`
	DepartmentID uuid.UUID  `json:"departmentId" db:"department_id"`
	StartAt      time.Time  `json:"startAt" db:"start_at"`
	EndAt        time.Time  `json:"endAt" db:"end_at"`
	Status       SlotStatus `json:"status" db:"status"`
	Version      int        `json:"version" db:"version"`
}

type SlotFilter struct {
	FacilityID   *uuid.UUID
	DepartmentID *uuid.UUID
	Status       *SlotStatus
	StartFrom    *time.Time
	StartTo      *time.Time
	IDs          []uuid.UUID
}

type SlotQuery struct {
	DepartmentID string     `form:"departmentId" binding:"omitempty,uuid"`
	StartFrom    *time.Time `form:"startFrom" time_format:"2006-01-02T15:04:05Z07:00"`
	StartTo      *time.Time `form:"startTo" time_format:"2006-01-02T15:04:05Z07:00"`
}

type CreateSlotRequest struct {
	StartAt time.Time  `json:"startAt" binding:"required"`
	EndAt   time.Time  `json:"endAt" binding:"required,gtfield=StartAt"`
	Status  SlotStatus `json:"status" binding:"omitempty,slot_status"`
}

type UpdateSlotRequest struct {
	StartAt *time.Time  `json:"startAt"`
	EndAt   *time.Time  `json:"endAt"`
	Status  *SlotStatus `json:"status" binding:"omitempty,slot_status"`
}

type SlotStatusRequest struct {
	Status SlotStatus `json:"status" binding:"required,slot_status"`
}

// ProviderSlots is the provider's view of their department schedule
type ProviderSlots struct {
	FacilityID   uuid.UUID `json:"facilityId"`
	DepartmentID uuid.UUID `json:"departmentId"`
	Department   string    `json:"department"`
	Slots        []*Slot   `json:"slots"`
}
