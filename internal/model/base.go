package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Touch stamps a new entity
func (b *Base) Touch(now time.Time) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// GeoPoint is a GeoJSON point, coordinates are [longitude, latitude]
type GeoPoint struct {
	Type        string    `json:"type" binding:"omitempty,eq=Point"`
	Coordinates []float64 `json:"coordinates" binding:"required,len=2,dive,min=-180,max=180"`
}

func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// Normalize fills the GeoJSON type
func (p GeoPoint) Normalize() GeoPoint {
	p.Type = "Point"
	if p.Coordinates == nil {
		p.Coordinates = []float64{0, 0}
	}
	return p
}
