package model

import (
	"time"

	"github.com/google/uuid"
)

type ReferralStatus string

const (
	ReferralStatusBooked    ReferralStatus = "booked"
	ReferralStatusConfirmed ReferralStatus = "confirmed"
	ReferralStatusCancelled ReferralStatus = "cancelled"
)

// Active reports whether the referral still holds its slot
func (s ReferralStatus) Active() bool {
	return s == ReferralStatusBooked || s == ReferralStatusConfirmed
}

type Referral struct {
	Base
	FromFacilityID uuid.UUID      `json:"fromFacilityId" db:"from_facility_id"`
	ToDepartmentID uuid.UUID      `json:"toDepartmentId" db:"to_department_id"`
	PatientID      uuid.UUID      `json:"patientId" db:"patient_id"`
	SlotID         uuid.UUID      `json:"slotId" db:"slot_id"`
	Status         ReferralStatus `json:"status" db:"status"`
	Reason         string         `json:"reason" db:"reason"`
	ReminderSentAt *time.Time     `json:"reminderSentAt,omitempty" db:"reminder_sent_at"`
	Version        int            `json:"version" db:"version"`
}

type ReferralFilter struct {
	PatientID       *uuid.UUID
	FromFacilityID  *uuid.UUID
	ToDepartmentIDs []uuid.UUID
	SlotIDs         []uuid.UUID
	Statuses        []ReferralStatus
	ReminderPending bool
	CreatedSince    *time.Time
}

type CreateReferralRequest struct {
	FromFacilityID uuid.UUID `json:"fromFacilityId" binding:"required"`
	ToDepartmentID uuid.UUID `json:"toDepartmentId" binding:"required"`
	PatientID      uuid.UUID `json:"patientId" binding:"required"`
	SlotID         uuid.UUID `json:"slotId" binding:"required"`
	Reason         string    `json:"reason" binding:"max=1000"`
}

type RescheduleRequest struct {
	NewSlotID uuid.UUID `json:"newSlotId" binding:"required"`
}

type ReferralQuery struct {
	PatientID      string `form:"patientId" binding:"omitempty,uuid"`
	FromFacilityID string `form:"fromFacilityId" binding:"omitempty,uuid"`
}

// ReferralView is a referral with its related documents resolved
type ReferralView struct {
	*Referral
	Patient      *PatientSummary `json:"patient,omitempty"`
	FromFacility *NamedRef       `json:"fromFacility,omitempty"`
	ToDepartment *NamedRef       `json:"toDepartment,omitempty"`
	Slot         *Slot           `json:"slot,omitempty"`
}

type NamedRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ReferralAnalytics holds status totals and a per-month breakdown keyed YYYY-MM
type ReferralAnalytics struct {
	StatusCounts map[ReferralStatus]int            `json:"statusCounts"`
	Monthly      map[string]map[ReferralStatus]int `json:"monthly"`
}

type MonthlyStatusCount struct {
	Year   int            `db:"year"`
	Month  int            `db:"month"`
	Status ReferralStatus `db:"status"`
	Count  int            `db:"count"`
}
