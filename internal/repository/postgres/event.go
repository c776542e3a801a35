package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type eventRow struct {
	model.MobileClinicEvent
	Longitude   float64        `db:"longitude"`
	Latitude    float64        `db:"latitude"`
	ServiceList pq.StringArray `db:"services"`
	RSVPData    []byte         `db:"rsvps"`
}

func (r *eventRow) toModel() (*model.MobileClinicEvent, error) {
	e := r.MobileClinicEvent
	e.Location = model.NewGeoPoint(r.Longitude, r.Latitude)
	e.Services = []string(r.ServiceList)
	e.RSVPs = []model.RSVP{}
	if len(r.RSVPData) > 0 {
		if err := json.Unmarshal(r.RSVPData, &e.RSVPs); err != nil {
			return nil, fmt.Errorf("failed to decode rsvps: %w", err)
		}
	}
	return &e, nil
}

func encodeRSVPs(rsvps []model.RSVP) ([]byte, error) {
	if rsvps == nil {
		rsvps = []model.RSVP{}
	}
	return json.Marshal(rsvps)
}

type eventRepository struct {
	BaseRepository
}

func NewEventRepository(base BaseRepository) repository.EventRepository {
	return &eventRepository{base}
}

func (r *eventRepository) Create(ctx context.Context, event *model.MobileClinicEvent) error {
	rsvps, err := encodeRSVPs(event.RSVPs)
	if err != nil {
		return err
	}

	_, err = r.exec(ctx, `
		INSERT INTO events (
			id, facility_id, title, description, type, longitude, latitude,
			services, starts_at, capacity, rsvps, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.FacilityID, event.Title, event.Description, event.Type,
		event.Location.Lng(), event.Location.Lat(), pq.StringArray(event.Services),
		event.StartsAt, event.Capacity, string(rsvps), event.Version, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *eventRepository) Get(ctx context.Context, id uuid.UUID) (*model.MobileClinicEvent, error) {
	var row eventRow
	if err := r.get(ctx, &row, `SELECT * FROM events WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return row.toModel()
}

func (r *eventRepository) List(ctx context.Context, filter model.EventFilter) ([]*model.MobileClinicEvent, error) {
	var w where
	if filter.FacilityID != nil {
		w.add("facility_id = ?", *filter.FacilityID)
	}
	if filter.PatientID != nil {
		probe, _ := json.Marshal([]map[string]string{{"patientId": filter.PatientID.String()}})
		w.add("rsvps @> ?::jsonb", string(probe))
	}

	var rows []eventRow
	if err := r.selectAll(ctx, &rows, `SELECT * FROM events`+w.String()+` ORDER BY starts_at DESC`, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*model.MobileClinicEvent, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *eventRepository) Update(ctx context.Context, event *model.MobileClinicEvent) error {
	rsvps, err := encodeRSVPs(event.RSVPs)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	n, err := r.exec(ctx, `
		UPDATE events
		SET title = ?, description = ?, type = ?, longitude = ?, latitude = ?, services = ?,
			starts_at = ?, capacity = ?, rsvps = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		event.Title, event.Description, event.Type, event.Location.Lng(), event.Location.Lat(),
		pq.StringArray(event.Services), event.StartsAt, event.Capacity, string(rsvps), now,
		event.ID, event.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if n == 0 {
		ok, err := r.exists(ctx, "events", event.ID)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}
	event.Version++
	event.UpdatedAt = now
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.exec(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
