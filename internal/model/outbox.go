package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Domain event types relayed through the outbox
const (
	EventReferralBooked      = "referral.booked"
	EventReferralConfirmed   = "referral.confirmed"
	EventReferralCancelled   = "referral.cancelled"
	EventReferralRescheduled = "referral.rescheduled"
	EventReferralReminder    = "referral.reminder"
	EventRSVPUpdated         = "rsvp.updated"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"eventType"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"errorMessage,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retryCount"`
	RetryAt      *time.Time      `db:"retry_at" json:"retryAt,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// ReferralEvent is the payload of every referral.* event
type ReferralEvent struct {
	ReferralID     uuid.UUID      `json:"referralId"`
	PatientID      uuid.UUID      `json:"patientId"`
	FromFacilityID uuid.UUID      `json:"fromFacilityId"`
	ToDepartmentID uuid.UUID      `json:"toDepartmentId"`
	SlotID         uuid.UUID      `json:"slotId"`
	PreviousSlotID *uuid.UUID     `json:"previousSlotId,omitempty"`
	Status         ReferralStatus `json:"status"`
	StartAt        time.Time      `json:"startAt"`
	EndAt          time.Time      `json:"endAt"`
}

// RSVPEvent is the payload of rsvp.updated
type RSVPEvent struct {
	EventID   uuid.UUID  `json:"eventId"`
	Title     string     `json:"title"`
	PatientID uuid.UUID  `json:"patientId"`
	Action    RSVPAction `json:"action"`
	StartsAt  time.Time  `json:"startsAt"`
}

// Envelope is what travels over the broker
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}
