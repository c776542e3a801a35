package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	_, err := r.exec(ctx, `
		INSERT INTO patients (id, name, phone, preferred_language, consented, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		patient.ID, patient.Name, patient.Phone, patient.PreferredLanguage,
		patient.Consented, patient.CreatedAt, patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return r.getOne(ctx, `SELECT * FROM patients WHERE id = ?`, id)
}

func (r *patientRepository) GetByPhone(ctx context.Context, phone string) (*model.Patient, error) {
	return r.getOne(ctx, `SELECT * FROM patients WHERE phone = ?`, phone)
}

func (r *patientRepository) getOne(ctx context.Context, query string, arg interface{}) (*model.Patient, error) {
	var patient model.Patient
	if err := r.get(ctx, &patient, query, arg); err != nil {
		return nil, err
	}

	patient.Notifications = []*model.Notification{}
	if err := r.selectAll(ctx, &patient.Notifications, `
		SELECT id, message, sent_at FROM patient_notifications
		WHERE patient_id = ? ORDER BY sent_at`, patient.ID); err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Patient, error) {
	patients := []*model.Patient{}
	if len(ids) == 0 {
		return patients, nil
	}
	if err := r.selectAll(ctx, &patients, `SELECT * FROM patients WHERE id = ANY(?::uuid[])`, uuidArray(ids)); err != nil {
		return nil, fmt.Errorf("failed to get patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	patients := []*model.Patient{}
	if err := r.selectAll(ctx, &patients, `SELECT * FROM patients ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.get(ctx, &n, `SELECT COUNT(*) FROM patients`)
	return n, err
}

func (r *patientRepository) AddNotification(ctx context.Context, patientID uuid.UUID, notification *model.Notification) error {
	_, err := r.exec(ctx, `
		INSERT INTO patient_notifications (id, patient_id, message, sent_at)
		VALUES (?, ?, ?, ?)`,
		notification.ID, patientID, notification.Message, notification.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add notification: %w", err)
	}
	return nil
}

func (r *patientRepository) ClearNotifications(ctx context.Context, patientID uuid.UUID) error {
	ok, err := r.exists(ctx, "patients", patientID)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	_, err = r.exec(ctx, `DELETE FROM patient_notifications WHERE patient_id = ?`, patientID)
	return err
}
