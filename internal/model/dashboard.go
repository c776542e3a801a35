package model

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is the patient-facing view of a referral and its slot
type Appointment struct {
	ID         uuid.UUID      `json:"id"`
	Date       *time.Time     `json:"date"`
	End        *time.Time     `json:"end"`
	Status     ReferralStatus `json:"status"`
	Slot       *Slot          `json:"slot"`
	Referral   *Referral      `json:"referral"`
	Provider   *NamedRef      `json:"provider"`
	Department *string        `json:"department"`
	Facility   *NamedRef      `json:"facility"`
}

// PatientReferral adds display names to a referral
type PatientReferral struct {
	*Referral
	FromFacilityName *string `json:"fromFacilityName"`
	ToDepartmentName *string `json:"toDepartmentName"`
}

type ProviderAnalytics struct {
	Referrals map[string]int `json:"referrals"`
	Slots     map[string]int `json:"slots"`
	Events    EventAnalytics `json:"events"`
}

type EventAnalytics struct {
	Total               int     `json:"total"`
	TotalRSVPs          int     `json:"totalRsvps"`
	TotalCapacity       int     `json:"totalCapacity"`
	CapacityUtilization float64 `json:"capacityUtilization"`
}
