package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type facilityRow struct {
	model.Facility
	Longitude float64 `db:"longitude"`
	Latitude  float64 `db:"latitude"`
}

func (r *facilityRow) toModel() *model.Facility {
	f := r.Facility
	f.Location = model.NewGeoPoint(r.Longitude, r.Latitude)
	f.Departments = []*model.Department{}
	return &f
}

type facilityRepository struct {
	BaseRepository
}

func NewFacilityRepository(base BaseRepository) repository.FacilityRepository {
	return &facilityRepository{base}
}

func (r *facilityRepository) Create(ctx context.Context, facility *model.Facility) error {
	return r.WithinTx(ctx, func(ctx context.Context) error {
		_, err := r.exec(ctx, `
			INSERT INTO facilities (id, name, type, longitude, latitude, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			facility.ID, facility.Name, facility.Type,
			facility.Location.Lng(), facility.Location.Lat(),
			facility.CreatedAt, facility.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create facility: %w", err)
		}

		for _, d := range facility.Departments {
			if err := r.AddDepartment(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *facilityRepository) Get(ctx context.Context, id uuid.UUID) (*model.Facility, error) {
	var row facilityRow
	if err := r.get(ctx, &row, `SELECT * FROM facilities WHERE id = ?`, id); err != nil {
		return nil, err
	}

	facility := row.toModel()
	if err := r.selectAll(ctx, &facility.Departments,
		`SELECT id, facility_id, name FROM departments WHERE facility_id = ? ORDER BY name`, id); err != nil {
		return nil, fmt.Errorf("failed to get departments: %w", err)
	}
	return facility, nil
}

func (r *facilityRepository) List(ctx context.Context) ([]*model.Facility, error) {
	var rows []facilityRow
	if err := r.selectAll(ctx, &rows, `SELECT * FROM facilities ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}

	var departments []*model.Department
	if err := r.selectAll(ctx, &departments, `SELECT id, facility_id, name FROM departments ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}

	byFacility := make(map[uuid.UUID][]*model.Department)
	for _, d := range departments {
		byFacility[d.FacilityID] = append(byFacility[d.FacilityID], d)
	}

	facilities := make([]*model.Facility, 0, len(rows))
	for i := range rows {
		f := rows[i].toModel()
		if ds, ok := byFacility[f.ID]; ok {
			f.Departments = ds
		}
		facilities = append(facilities, f)
	}
	return facilities, nil
}

func (r *facilityRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.get(ctx, &n, `SELECT COUNT(*) FROM facilities`)
	return n, err
}

func (r *facilityRepository) AddDepartment(ctx context.Context, department *model.Department) error {
	_, err := r.exec(ctx,
		`INSERT INTO departments (id, facility_id, name) VALUES (?, ?, ?)`,
		department.ID, department.FacilityID, department.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to create department: %w", err)
	}
	return nil
}

func (r *facilityRepository) GetDepartment(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	var d model.Department
	if err := r.get(ctx, &d, `SELECT id, facility_id, name FROM departments WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &d, nil
}
