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

type referralRepository struct {
	BaseRepository
}

func NewReferralRepository(base BaseRepository) repository.ReferralRepository {
	return &referralRepository{base}
}

func (r *referralRepository) Create(ctx context.Context, referral *model.Referral) error {
	_, err := r.exec(ctx, `
		INSERT INTO referrals (
			id, from_facility_id, to_department_id, patient_id, slot_id,
			status, reason, reminder_sent_at, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		referral.ID, referral.FromFacilityID, referral.ToDepartmentID, referral.PatientID, referral.SlotID,
		referral.Status, referral.Reason, referral.ReminderSentAt, referral.Version,
		referral.CreatedAt, referral.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create referral: %w", err)
	}
	return nil
}

func (r *referralRepository) Get(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	var referral model.Referral
	if err := r.get(ctx, &referral, `SELECT * FROM referrals WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *referralRepository) List(ctx context.Context, filter model.ReferralFilter) ([]*model.Referral, error) {
	var w where
	if filter.PatientID != nil {
		w.add("patient_id = ?", *filter.PatientID)
	}
	if filter.FromFacilityID != nil {
		w.add("from_facility_id = ?", *filter.FromFacilityID)
	}
	if filter.ToDepartmentIDs != nil {
		w.add("to_department_id = ANY(?::uuid[])", uuidArray(filter.ToDepartmentIDs))
	}
	if filter.SlotIDs != nil {
		w.add("slot_id = ANY(?::uuid[])", uuidArray(filter.SlotIDs))
	}
	if filter.Statuses != nil {
		statuses := make(pq.StringArray, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		w.add("status = ANY(?)", statuses)
	}
	if filter.ReminderPending {
		w.add("reminder_sent_at IS NULL")
	}
	if filter.CreatedSince != nil {
		w.add("created_at >= ?", *filter.CreatedSince)
	}

	referrals := []*model.Referral{}
	if err := r.selectAll(ctx, &referrals, `SELECT * FROM referrals`+w.String()+` ORDER BY created_at DESC`, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return referrals, nil
}

func (r *referralRepository) Update(ctx context.Context, referral *model.Referral) error {
	now := time.Now().UTC()
	n, err := r.exec(ctx, `
		UPDATE referrals
		SET slot_id = ?, status = ?, reminder_sent_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		referral.SlotID, referral.Status, referral.ReminderSentAt, now, referral.ID, referral.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update referral: %w", err)
	}
	if n == 0 {
		ok, err := r.exists(ctx, "referrals", referral.ID)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}
	referral.Version++
	referral.UpdatedAt = now
	return nil
}

func (r *referralRepository) CountByStatus(ctx context.Context, fromFacilityID *uuid.UUID) (map[model.ReferralStatus]int, error) {
	var w where
	if fromFacilityID != nil {
		w.add("from_facility_id = ?", *fromFacilityID)
	}

	var rows []statusCount
	if err := r.selectAll(ctx, &rows, `SELECT status, COUNT(*) AS count FROM referrals`+w.String()+` GROUP BY status`, w.args...); err != nil {
		return nil, fmt.Errorf("failed to count referrals: %w", err)
	}

	counts := make(map[model.ReferralStatus]int, len(rows))
	for _, row := range rows {
		counts[model.ReferralStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *referralRepository) MonthlyCounts(ctx context.Context, since time.Time) ([]model.MonthlyStatusCount, error) {
	var rows []model.MonthlyStatusCount
	err := r.selectAll(ctx, &rows, `
		SELECT
			EXTRACT(YEAR FROM created_at AT TIME ZONE 'UTC')::int AS year,
			EXTRACT(MONTH FROM created_at AT TIME ZONE 'UTC')::int AS month,
			status,
			COUNT(*) AS count
		FROM referrals
		WHERE created_at >= ?
		GROUP BY 1, 2, 3
		ORDER BY 1, 2, 3`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate referrals: %w", err)
	}
	return rows, nil
}
