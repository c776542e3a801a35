package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/pkg/security"
)

type patientRepository struct {
	col *mongo.Collection
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	if _, err := r.col.InsertOne(ctx, newPatientDoc(patient)); err != nil {
		return fmt.Errorf("failed to create patient: %w", mapError(err))
	}
	return nil
}

func (r *patientRepository) findOne(ctx context.Context, filter bson.M) (*model.Patient, error) {
	var doc patientDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return r.findOne(ctx, bson.M{"_id": idOf(id)})
}

func (r *patientRepository) GetByPhone(ctx context.Context, phone string) (*model.Patient, error) {
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *patientRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Patient, error) {
	if len(ids) == 0 {
		return []*model.Patient{}, nil
	}
	docs, err := findAll[patientDoc](ctx, r.col, bson.M{"_id": bson.M{"$in": idStrings(ids)}})
	if err != nil {
		return nil, fmt.Errorf("failed to get patients: %w", err)
	}
	out := make([]*model.Patient, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	docs, err := findAll[patientDoc](ctx, r.col, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	out := make([]*model.Patient, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *patientRepository) Count(ctx context.Context) (int, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (r *patientRepository) AddNotification(ctx context.Context, patientID uuid.UUID, n *model.Notification) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": idOf(patientID)},
		bson.M{"$push": bson.M{"notifications": notificationDoc{ID: idOf(n.ID), Message: n.Message, SentAt: n.SentAt}}},
	)
	if err != nil {
		return fmt.Errorf("failed to add notification: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *patientRepository) ClearNotifications(ctx context.Context, patientID uuid.UUID) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": idOf(patientID)},
		bson.M{"$set": bson.M{"notifications": []notificationDoc{}}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear notifications: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type providerRepository struct {
	col *mongo.Collection
}

func (r *providerRepository) Create(ctx context.Context, provider *model.Provider) error {
	if _, err := r.col.InsertOne(ctx, newProviderDoc(provider)); err != nil {
		return fmt.Errorf("failed to create provider: %w", mapError(err))
	}
	return nil
}

func (r *providerRepository) findOne(ctx context.Context, filter bson.M) (*model.Provider, error) {
	var doc providerDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (r *providerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	return r.findOne(ctx, bson.M{"_id": idOf(id)})
}

func (r *providerRepository) GetByEmail(ctx context.Context, email string) (*model.Provider, error) {
	return r.findOne(ctx, bson.M{"email": security.NormalizeEmail(email)})
}

func (r *providerRepository) List(ctx context.Context, filter model.ProviderFilter) ([]*model.Provider, error) {
	q := bson.M{}
	if filter.ActiveOnly {
		q["isActive"] = true
	}
	if filter.FacilityID != nil {
		q["facilityId"] = idOf(*filter.FacilityID)
	}
	if filter.DepartmentID != nil {
		q["departmentId"] = idOf(*filter.DepartmentID)
	}

	docs, err := findAll[providerDoc](ctx, r.col, q, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	out := make([]*model.Provider, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *providerRepository) Update(ctx context.Context, provider *model.Provider) error {
	provider.UpdatedAt = time.Now().UTC()
	doc := newProviderDoc(provider)
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("failed to update provider: %w", mapError(err))
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *providerRepository) Count(ctx context.Context, activeOnly bool) (int, error) {
	q := bson.M{}
	if activeOnly {
		q["isActive"] = true
	}
	n, err := r.col.CountDocuments(ctx, q)
	return int(n), err
}

type adminRepository struct {
	col *mongo.Collection
}

func (r *adminRepository) Create(ctx context.Context, admin *model.Admin) error {
	if _, err := r.col.InsertOne(ctx, newAdminDoc(admin)); err != nil {
		return fmt.Errorf("failed to create admin: %w", mapError(err))
	}
	return nil
}

func (r *adminRepository) findOne(ctx context.Context, filter bson.M) (*model.Admin, error) {
	var doc adminDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (r *adminRepository) Get(ctx context.Context, id uuid.UUID) (*model.Admin, error) {
	return r.findOne(ctx, bson.M{"_id": idOf(id)})
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	return r.findOne(ctx, bson.M{"email": security.NormalizeEmail(email)})
}

func (r *adminRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": idOf(id)}, bson.M{"$set": bson.M{"lastLogin": at}})
	if err != nil {
		return fmt.Errorf("failed to update admin: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type facilityAdminRepository struct {
	col *mongo.Collection
}

func (r *facilityAdminRepository) Create(ctx context.Context, admin *model.FacilityAdmin) error {
	if _, err := r.col.InsertOne(ctx, newFacilityAdminDoc(admin)); err != nil {
		return fmt.Errorf("failed to create facility admin: %w", mapError(err))
	}
	return nil
}

func (r *facilityAdminRepository) findOne(ctx context.Context, filter bson.M) (*model.FacilityAdmin, error) {
	var doc facilityAdminDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (r *facilityAdminRepository) Get(ctx context.Context, id uuid.UUID) (*model.FacilityAdmin, error) {
	return r.findOne(ctx, bson.M{"_id": idOf(id)})
}

func (r *facilityAdminRepository) GetByEmail(ctx context.Context, email string) (*model.FacilityAdmin, error) {
	return r.findOne(ctx, bson.M{"email": security.NormalizeEmail(email)})
}
