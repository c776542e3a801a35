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
)

type eventRepository struct {
	col *mongo.Collection
}

func (r *eventRepository) Create(ctx context.Context, event *model.MobileClinicEvent) error {
	if _, err := r.col.InsertOne(ctx, newEventDoc(event)); err != nil {
		return fmt.Errorf("failed to create event: %w", mapError(err))
	}
	return nil
}

func (r *eventRepository) Get(ctx context.Context, id uuid.UUID) (*model.MobileClinicEvent, error) {
	var doc eventDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": idOf(id)}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (r *eventRepository) List(ctx context.Context, filter model.EventFilter) ([]*model.MobileClinicEvent, error) {
	q := bson.M{}
	if filter.FacilityID != nil {
		q["facilityId"] = idOf(*filter.FacilityID)
	}
	if filter.PatientID != nil {
		q["rsvps.patientId"] = idOf(*filter.PatientID)
	}

	docs, err := findAll[eventDoc](ctx, r.col, q, options.Find().SetSort(bson.D{{Key: "startsAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	out := make([]*model.MobileClinicEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// Update replaces the whole document, RSVP list included, guarded by version
func (r *eventRepository) Update(ctx context.Context, event *model.MobileClinicEvent) error {
	expected := event.Version
	next := *event
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()

	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": idOf(event.ID), "version": expected}, newEventDoc(&next))
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if res.MatchedCount == 0 {
		return missingOrConflict(ctx, r.col, event.ID)
	}
	event.Version = next.Version
	event.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": idOf(id)})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type specialityRepository struct {
	col *mongo.Collection
}

func (r *specialityRepository) Create(ctx context.Context, s *model.Speciality) error {
	if _, err := r.col.InsertOne(ctx, newSpecialityDoc(s)); err != nil {
		return fmt.Errorf("failed to create speciality: %w", mapError(err))
	}
	return nil
}

func (r *specialityRepository) Get(ctx context.Context, id uuid.UUID) (*model.Speciality, error) {
	var doc specialityDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": idOf(id)}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (r *specialityRepository) List(ctx context.Context) ([]*model.Speciality, error) {
	docs, err := findAll[specialityDoc](ctx, r.col, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list specialities: %w", err)
	}
	out := make([]*model.Speciality, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *specialityRepository) Update(ctx context.Context, s *model.Speciality) error {
	s.UpdatedAt = time.Now().UTC()
	doc := newSpecialityDoc(s)
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("failed to update speciality: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *specialityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": idOf(id)})
	if err != nil {
		return fmt.Errorf("failed to delete speciality: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type outboxRepository struct {
	col *mongo.Collection
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if _, err := r.col.InsertOne(ctx, newOutboxDoc(event)); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	q := bson.M{
		"status": bson.M{"$in": []string{string(model.OutboxStatusPending), string(model.OutboxStatusRetry)}},
		"$or": []bson.M{
			{"retryAt": nil},
			{"retryAt": bson.M{"$lte": time.Now().UTC()}},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))

	docs, err := findAll[outboxDoc](ctx, r.col, q, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	out := make([]*model.OutboxEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	now := time.Now().UTC()
	set := bson.M{
		"status":       string(status),
		"errorMessage": errorMessage,
		"retryAt":      retryAt,
		"updatedAt":    now,
	}
	if status == model.OutboxStatusProcessed {
		set["processedAt"] = now
	}
	update := bson.M{"$set": set}
	if status == model.OutboxStatusRetry {
		update["$inc"] = bson.M{"retryCount": 1}
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": idOf(id)}, update)
	if err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{
		"status":      string(model.OutboxStatusProcessed),
		"processedAt": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return res.DeletedCount, nil
}
