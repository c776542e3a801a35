package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type facilityRepository struct {
	col *mongo.Collection
}

func (r *facilityRepository) Create(ctx context.Context, facility *model.Facility) error {
	if _, err := r.col.InsertOne(ctx, newFacilityDoc(facility)); err != nil {
		return fmt.Errorf("failed to create facility: %w", mapError(err))
	}
	return nil
}

func (r *facilityRepository) Get(ctx context.Context, id uuid.UUID) (*model.Facility, error) {
	var doc facilityDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": idOf(id)}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (r *facilityRepository) List(ctx context.Context) ([]*model.Facility, error) {
	docs, err := findAll[facilityDoc](ctx, r.col, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	out := make([]*model.Facility, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *facilityRepository) Count(ctx context.Context) (int, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (r *facilityRepository) AddDepartment(ctx context.Context, department *model.Department) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": idOf(department.FacilityID)},
		bson.M{
			"$push": bson.M{"departments": departmentDoc{ID: idOf(department.ID), Name: department.Name}},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add department: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *facilityRepository) GetDepartment(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	var doc facilityDoc
	if err := r.col.FindOne(ctx, bson.M{"departments._id": idOf(id)}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	if d := doc.toModel().Department(id); d != nil {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

type slotRepository struct {
	col *mongo.Collection
}

func (r *slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	if _, err := r.col.InsertOne(ctx, newSlotDoc(slot)); err != nil {
		return fmt.Errorf("failed to create slot: %w", mapError(err))
	}
	return nil
}

func (r *slotRepository) Get(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	var doc slotDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": idOf(id)}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (r *slotRepository) List(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error) {
	q := bson.M{}
	if filter.FacilityID != nil {
		q["facilityId"] = idOf(*filter.FacilityID)
	}
	if filter.DepartmentID != nil {
		q["departmentId"] = idOf(*filter.DepartmentID)
	}
	if filter.Status != nil {
		q["status"] = string(*filter.Status)
	}
	if filter.StartFrom != nil || filter.StartTo != nil {
		rng := bson.M{}
		if filter.StartFrom != nil {
			rng["$gte"] = *filter.StartFrom
		}
		if filter.StartTo != nil {
			rng["$lte"] = *filter.StartTo
		}
		q["startAt"] = rng
	}
	if filter.IDs != nil {
		q["_id"] = bson.M{"$in": idStrings(filter.IDs)}
	}

	docs, err := findAll[slotDoc](ctx, r.col, q, options.Find().SetSort(bson.D{{Key: "startAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	out := make([]*model.Slot, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *slotRepository) Update(ctx context.Context, slot *model.Slot) error {
	now := time.Now().UTC()
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": idOf(slot.ID), "version": slot.Version},
		bson.M{
			"$set": bson.M{"startAt": slot.StartAt, "endAt": slot.EndAt, "status": string(slot.Status), "updatedAt": now},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	if res.MatchedCount == 0 {
		return missingOrConflict(ctx, r.col, slot.ID)
	}
	slot.Version++
	slot.UpdatedAt = now
	return nil
}

func missingOrConflict(ctx context.Context, col *mongo.Collection, id uuid.UUID) error {
	n, err := col.CountDocuments(ctx, bson.M{"_id": idOf(id)})
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrVersionConflict
}

func (r *slotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": idOf(id), "status": bson.M{"$ne": string(model.SlotStatusBooked)}})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if res.DeletedCount > 0 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": idOf(id)})
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrSlotBooked
}

func (r *slotRepository) Claim(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	var doc slotDoc
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": idOf(id), "status": string(model.SlotStatusOpen)},
		bson.M{
			"$set": bson.M{"status": string(model.SlotStatusBooked), "updatedAt": time.Now().UTC()},
			"$inc": bson.M{"version": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrSlotUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}
	return doc.toModel(), nil
}

func (r *slotRepository) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": idOf(id), "status": string(model.SlotStatusBooked)},
		bson.M{
			"$set": bson.M{"status": string(model.SlotStatusOpen), "updatedAt": time.Now().UTC()},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	return nil
}

func (r *slotRepository) ReleaseStaleHolds(ctx context.Context, heldBefore time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"status": string(model.SlotStatusHeld), "updatedAt": bson.M{"$lt": heldBefore}},
		bson.M{
			"$set": bson.M{"status": string(model.SlotStatusOpen), "updatedAt": time.Now().UTC()},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to release held slots: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *slotRepository) CountByStatus(ctx context.Context, facilityID *uuid.UUID) (map[model.SlotStatus]int, error) {
	match := bson.M{}
	if facilityID != nil {
		match["facilityId"] = idOf(*facilityID)
	}
	rows, err := countByStatus(ctx, r.col, match)
	if err != nil {
		return nil, fmt.Errorf("failed to count slots: %w", err)
	}
	counts := make(map[model.SlotStatus]int, len(rows))
	for _, row := range rows {
		counts[model.SlotStatus(row.Status)] = row.Count
	}
	return counts, nil
}

type referralRepository struct {
	col *mongo.Collection
}

func (r *referralRepository) Create(ctx context.Context, referral *model.Referral) error {
	if _, err := r.col.InsertOne(ctx, newReferralDoc(referral)); err != nil {
		return fmt.Errorf("failed to create referral: %w", mapError(err))
	}
	return nil
}

func (r *referralRepository) Get(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	var doc referralDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": idOf(id)}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return doc.toModel(), nil
}

func (r *referralRepository) List(ctx context.Context, filter model.ReferralFilter) ([]*model.Referral, error) {
	q := bson.M{}
	if filter.PatientID != nil {
		q["patientId"] = idOf(*filter.PatientID)
	}
	if filter.FromFacilityID != nil {
		q["fromFacilityId"] = idOf(*filter.FromFacilityID)
	}
	if filter.ToDepartmentIDs != nil {
		q["toDepartmentId"] = bson.M{"$in": idStrings(filter.ToDepartmentIDs)}
	}
	if filter.SlotIDs != nil {
		q["slotId"] = bson.M{"$in": idStrings(filter.SlotIDs)}
	}
	if filter.Statuses != nil {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		q["status"] = bson.M{"$in": statuses}
	}
	if filter.ReminderPending {
		q["reminderSentAt"] = nil
	}
	if filter.CreatedSince != nil {
		q["createdAt"] = bson.M{"$gte": *filter.CreatedSince}
	}

	docs, err := findAll[referralDoc](ctx, r.col, q, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	out := make([]*model.Referral, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *referralRepository) Update(ctx context.Context, referral *model.Referral) error {
	now := time.Now().UTC()
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": idOf(referral.ID), "version": referral.Version},
		bson.M{
			"$set": bson.M{
				"slotId":         idOf(referral.SlotID),
				"status":         string(referral.Status),
				"reminderSentAt": referral.ReminderSentAt,
				"updatedAt":      now,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to update referral: %w", err)
	}
	if res.MatchedCount == 0 {
		return missingOrConflict(ctx, r.col, referral.ID)
	}
	referral.Version++
	referral.UpdatedAt = now
	return nil
}

func (r *referralRepository) CountByStatus(ctx context.Context, fromFacilityID *uuid.UUID) (map[model.ReferralStatus]int, error) {
	match := bson.M{}
	if fromFacilityID != nil {
		match["fromFacilityId"] = idOf(*fromFacilityID)
	}
	rows, err := countByStatus(ctx, r.col, match)
	if err != nil {
		return nil, fmt.Errorf("failed to count referrals: %w", err)
	}
	counts := make(map[model.ReferralStatus]int, len(rows))
	for _, row := range rows {
		counts[model.ReferralStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *referralRepository) MonthlyCounts(ctx context.Context, since time.Time) ([]model.MonthlyStatusCount, error) {
	cur, err := r.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"createdAt": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"year":   bson.M{"$year": "$createdAt"},
				"month":  bson.M{"$month": "$createdAt"},
				"status": "$status",
			},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate referrals: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID struct {
			Year   int    `bson:"year"`
			Month  int    `bson:"month"`
			Status string `bson:"status"`
		} `bson:"_id"`
		Count int `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode referral aggregates: %w", err)
	}

	out := make([]model.MonthlyStatusCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.MonthlyStatusCount{
			Year:   row.ID.Year,
			Month:  row.ID.Month,
			Status: model.ReferralStatus(row.ID.Status),
			Count:  row.Count,
		})
	}
	return out, nil
}
