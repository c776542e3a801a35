package model

import (
	"time"

	"github.com/google/uuid"
)

const DefaultLanguage = "en"

type Patient struct {
	Base
	Name              string          `json:"name" db:"name"`
	Phone             string          `json:"phone" db:"phone"`
	PreferredLanguage string          `json:"preferredLanguage" db:"preferred_language"`
	Consented         bool            `json:"consented" db:"consented"`
	Notifications     []*Notification `json:"notifications" db:"-"`
}

type Notification struct {
	ID      uuid.UUID `json:"id" db:"id"`
	Message string    `json:"message" db:"message"`
	SentAt  time.Time `json:"sentAt" db:"sent_at"`
}

// PatientSummary is the subset of a patient shown to providers
type PatientSummary struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone"`
	PreferredLanguage string    `json:"preferredLanguage"`
	Consented         bool      `json:"consented"`
}

func (p *Patient) Summary() *PatientSummary {
	return &PatientSummary{
		ID:                p.ID,
		Name:              p.Name,
		Phone:             p.Phone,
		PreferredLanguage: p.PreferredLanguage,
		Consented:         p.Consented,
	}
}

type CreatePatientRequest struct {
	Name              string `json:"name" binding:"required"`
	Phone             string `json:"phone" binding:"required,e164"`
	PreferredLanguage string `json:"preferredLanguage" binding:"omitempty,bcp47_language_tag"`
	Consented         bool   `json:"consented"`
}
