package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type specialityRow struct {
	model.Speciality
	Longitude   float64        `db:"longitude"`
	Latitude    float64        `db:"latitude"`
	ServiceList pq.StringArray `db:"services"`
}

func (r *specialityRow) toModel() *model.Speciality {
	s := r.Speciality
	s.Location = model.NewGeoPoint(r.Longitude, r.Latitude)
	s.Services = []string(r.ServiceList)
	return &s
}

type specialityRepository struct {
	BaseRepository
}

func NewSpecialityRepository(base BaseRepository) repository.SpecialityRepository {
	return &specialityRepository{base}
}

func (r *specialityRepository) Create(ctx context.Context, s *model.Speciality) error {
	_, err := r.exec(ctx, `
		INSERT INTO specialities (
			id, name, longitude, latitude, description, department, services,
			referral_contact, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Location.Lng(), s.Location.Lat(), s.Description, s.Department,
		pq.StringArray(s.Services), s.ReferralContact, s.Notes, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create speciality: %w", err)
	}
	return nil
}

func (r *specialityRepository) Get(ctx context.Context, id uuid.UUID) (*model.Speciality, error) {
	var row specialityRow
	if err := r.get(ctx, &row, `SELECT * FROM specialities WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (r *specialityRepository) List(ctx context.Context) ([]*model.Speciality, error) {
	var rows []specialityRow
	if err := r.selectAll(ctx, &rows, `SELECT * FROM specialities ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list specialities: %w", err)
	}
	out := make([]*model.Speciality, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (r *specialityRepository) Update(ctx context.Context, s *model.Speciality) error {
	s.UpdatedAt = time.Now().UTC()
	n, err := r.exec(ctx, `
		UPDATE specialities
		SET name = ?, longitude = ?, latitude = ?, description = ?, department = ?,
			services = ?, referral_contact = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		s.Name, s.Location.Lng(), s.Location.Lat(), s.Description, s.Department,
		pq.StringArray(s.Services), s.ReferralContact, s.Notes, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update speciality: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *specialityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.exec(ctx, `DELETE FROM specialities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete speciality: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
