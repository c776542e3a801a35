package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeMobileClinic EventType = "mobile_clinic"
	EventTypeMedsPickup   EventType = "meds_pickup"
)

// RSVPAction is what a patient asks for. Only "yes" is ever stored.
type RSVPAction string

const (
	RSVPYes    RSVPAction = "yes"
	RSVPNo     RSVPAction = "no"
	RSVPCancel RSVPAction = "cancel"
)

func ParseRSVPAction(s string) (RSVPAction, bool) {
	switch a := RSVPAction(strings.ToLower(strings.TrimSpace(s))); a {
	case RSVPYes, RSVPNo, RSVPCancel:
		return a, true
	}
	return "", false
}

func (a RSVPAction) Positive() bool {
	return a == RSVPYes
}

type MobileClinicEvent struct {
	Base
	FacilityID  uuid.UUID `json:"facilityId" db:"facility_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Type        EventType `json:"type" db:"type"`
	Location    GeoPoint  `json:"location" db:"-"`
	Services    []string  `json:"services" db:"-"`
	StartsAt    time.Time `json:"startsAt" db:"starts_at"`
	Capacity    int       `json:"capacity" db:"capacity"`
	RSVPs       []RSVP    `json:"rsvps" db:"-"`
	Version     int       `json:"version" db:"version"`
}

type RSVP struct {
	PatientID   uuid.UUID  `json:"patientId"`
	Status      RSVPAction `json:"status"`
	RespondedAt time.Time  `json:"respondedAt"`
}

// ApplyRSVP drops any entry for the patient and appends a fresh one when the
// action is positive. It reports whether the event is at capacity for a new
// attendee, in which case nothing is changed.
func (e *MobileClinicEvent) ApplyRSVP(patientID uuid.UUID, action RSVPAction, now time.Time) (full bool) {
	kept := make([]RSVP, 0, len(e.RSVPs)+1)
	existed := false
	for _, r := range e.RSVPs {
		if r.PatientID == patientID {
			existed = true
			continue
		}
		kept = append(kept, r)
	}

	if action.Positive() {
		if !existed && e.Capacity > 0 && len(kept) >= e.Capacity {
			return true
		}
		kept = append(kept, RSVP{PatientID: patientID, Status: RSVPYes, RespondedAt: now})
	}

	e.RSVPs = kept
	return false
}

func (e *MobileClinicEvent) HasRSVP(patientID uuid.UUID) bool {
	for _, r := range e.RSVPs {
		if r.PatientID == patientID {
			return true
		}
	}
	return false
}

type EventFilter struct {
	FacilityID *uuid.UUID
	PatientID  *uuid.UUID
}

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Type        EventType `json:"type" binding:"required,oneof=mobile_clinic meds_pickup"`
	Location    GeoPoint  `json:"location" binding:"required"`
	Services    []string  `json:"services" binding:"required,min=1"`
	StartsAt    time.Time `json:"startsAt" binding:"required"`
	Capacity    int       `json:"capacity" binding:"required,min=1"`
}

type UpdateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Type        *EventType `json:"type" binding:"omitempty,oneof=mobile_clinic meds_pickup"`
	Location    *GeoPoint  `json:"location"`
	Services    *[]string  `json:"services"`
	StartsAt    *time.Time `json:"startsAt"`
	Capacity    *int       `json:"capacity" binding:"omitempty,min=1"`
}

// RSVPRequest accepts either field name
type RSVPRequest struct {
	Action string `json:"action" binding:"omitempty,rsvp_action"`
	Status string `json:"status" binding:"omitempty,rsvp_action"`
}

func (r RSVPRequest) Value() string {
	if r.Action != "" {
		return r.Action
	}
	return r.Status
}

// EventDetails is an event whose RSVPs carry patient contact data
type EventDetails struct {
	*MobileClinicEvent
	RSVPs []RSVPDetail `json:"rsvps"`
}

type RSVPDetail struct {
	PatientID         uuid.UUID  `json:"patientId"`
	Status            RSVPAction `json:"status"`
	RespondedAt       time.Time  `json:"respondedAt"`
	Name              string     `json:"name,omitempty"`
	Phone             string     `json:"phone"`
	PreferredLanguage string     `json:"preferredLanguage"`
}
