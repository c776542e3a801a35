package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type slotRepository struct {
	BaseRepository
}

func NewSlotRepository(base BaseRepository) repository.SlotRepository {
	return &slotRepository{base}
}

func (r *slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	_, err := r.exec(ctx, `
		INSERT INTO slots (id, facility_id, department_id, start_at, end_at, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		slot.ID, slot.FacilityID, slot.DepartmentID, slot.StartAt, slot.EndAt,
		slot.Status, slot.Version, slot.CreatedAt, slot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *slotRepository) Get(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	var slot model.Slot
	if err := r.get(ctx, &slot, `SELECT * FROM slots WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *slotRepository) List(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error) {
	var w where
	if filter.FacilityID != nil {
		w.add("facility_id = ?", *filter.FacilityID)
	}
	if filter.DepartmentID != nil {
		w.add("department_id = ?", *filter.DepartmentID)
	}
	if filter.Status != nil {
		w.add("status = ?", *filter.Status)
	}
	if filter.StartFrom != nil {
		w.add("start_at >= ?", *filter.StartFrom)
	}
	if filter.StartTo != nil {
		w.add("start_at <= ?", *filter.StartTo)
	}
	if filter.IDs != nil {
		w.add("id = ANY(?::uuid[])", uuidArray(filter.IDs))
	}

	slots := []*model.Slot{}
	if err := r.selectAll(ctx, &slots, `SELECT * FROM slots`+w.String()+` ORDER BY start_at`, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

func (r *slotRepository) Update(ctx context.Context, slot *model.Slot) error {
	now := time.Now().UTC()
	n, err := r.exec(ctx, `
		UPDATE slots
		SET start_at = ?, end_at = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		slot.StartAt, slot.EndAt, slot.Status, now, slot.ID, slot.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	if n == 0 {
		return r.missingOrConflict(ctx, slot.ID)
	}
	slot.Version++
	slot.UpdatedAt = now
	return nil
}

func (r *slotRepository) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	ok, err := r.exists(ctx, "slots", id)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return repository.ErrVersionConflict
}

func (r *slotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.exec(ctx, `DELETE FROM slots WHERE id = ? AND status <> 'booked'`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if n > 0 {
		return nil
	}

	ok, err := r.exists(ctx, "slots", id)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return repository.ErrSlotBooked
}

func (r *slotRepository) Claim(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	var slot model.Slot
	err := r.get(ctx, &slot, `
		UPDATE slots
		SET status = 'booked', version = version + 1, updated_at = ?
		WHERE id = ? AND status = 'open'
		RETURNING *`,
		time.Now().UTC(), id,
	)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, repository.ErrSlotUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}
	return &slot, nil
}

func (r *slotRepository) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.exec(ctx, `
		UPDATE slots
		SET status = 'open', version = version + 1, updated_at = ?
		WHERE id = ? AND status = 'booked'`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	return nil
}

func (r *slotRepository) ReleaseStaleHolds(ctx context.Context, heldBefore time.Time) (int64, error) {
	n, err := r.exec(ctx, `
		UPDATE slots
		SET status = 'open', version = version + 1, updated_at = ?
		WHERE status = 'held' AND updated_at < ?`,
		time.Now().UTC(), heldBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to release held slots: %w", err)
	}
	return n, nil
}

type statusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

func (r *slotRepository) CountByStatus(ctx context.Context, facilityID *uuid.UUID) (map[model.SlotStatus]int, error) {
	var w where
	if facilityID != nil {
		w.add("facility_id = ?", *facilityID)
	}

	var rows []statusCount
	if err := r.selectAll(ctx, &rows, `SELECT status, COUNT(*) AS count FROM slots`+w.String()+` GROUP BY status`, w.args...); err != nil {
		return nil, fmt.Errorf("failed to count slots: %w", err)
	}

	counts := make(map[model.SlotStatus]int, len(rows))
	for _, row := range rows {
		counts[model.SlotStatus(row.Status)] = row.Count
	}
	return counts, nil
}
