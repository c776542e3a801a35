// Package mongo stores every aggregate as a document. Transactions need a
// replica set deployment.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/jwalitptl/referral-api/internal/config"
	"github.com/jwalitptl/referral-api/internal/repository"
)

// Collection names
const (
	colFacilities     = "facilities"
	colSlots          = "slots"
	colReferrals      = "referrals"
	colPatients       = "patients"
	colProviders      = "providers"
	colAdmins         = "admins"
	colFacilityAdmins = "facility_admins"
	colEvents         = "events"
	colSpecialities   = "specialities"
	colOutbox         = "outbox_events"
)

func NewClient(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes every repository relies on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		colFacilities: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "departments._id", Value: 1}}},
		},
		colSlots: {
			{Keys: bson.D{{Key: "departmentId", Value: 1}, {Key: "startAt", Value: 1}}},
			{Keys: bson.D{{Key: "facilityId", Value: 1}, {Key: "status", Value: 1}}},
		},
		colReferrals: {
			{Keys: bson.D{{Key: "patientId", Value: 1}}},
			{Keys: bson.D{{Key: "fromFacilityId", Value: 1}}},
			{Keys: bson.D{{Key: "slotId", Value: 1}}},
		},
		colPatients: {
			{Keys: bson.D{{Key: "phone", Value: 1}}, Options: unique},
		},
		colProviders: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "departmentId", Value: 1}, {Key: "isActive", Value: 1}}},
		},
		colAdmins: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		colFacilityAdmins: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		colEvents: {
			{Keys: bson.D{{Key: "facilityId", Value: 1}, {Key: "startsAt", Value: -1}}},
			{Keys: bson.D{{Key: "rsvps.patientId", Value: 1}}},
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		},
		colSpecialities: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		},
		colOutbox: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

type transactor struct {
	client *mongo.Client
}

// WithinTx runs fn in a session transaction. Nested calls join the outer one.
func (t transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// NewStore wires every document repository around one database
func NewStore(client *mongo.Client, database string) *repository.Store {
	db := client.Database(database)
	return &repository.Store{
		Tx:             transactor{client: client},
		Facilities:     &facilityRepository{col: db.Collection(colFacilities)},
		Slots:          &slotRepository{col: db.Collection(colSlots)},
		Referrals:      &referralRepository{col: db.Collection(colReferrals)},
		Patients:       &patientRepository{col: db.Collection(colPatients)},
		Providers:      &providerRepository{col: db.Collection(colProviders)},
		Admins:         &adminRepository{col: db.Collection(colAdmins)},
		FacilityAdmins: &facilityAdminRepository{col: db.Collection(colFacilityAdmins)},
		Events:         &eventRepository{col: db.Collection(colEvents)},
		Specialities:   &specialityRepository{col: db.Collection(colSpecialities)},
		Outbox:         &outboxRepository{col: db.Collection(colOutbox)},
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		Close: client.Disconnect,
	}
}

func idOf(id uuid.UUID) string {
	return id.String()
}

func parseID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func idPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseIDPtr(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id := parseID(*s)
	return &id
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}

// findAll decodes every document matched by filter into out
func findAll[T any](ctx context.Context, col *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type statusCount struct {
	Status string `bson:"_id"`
	Count  int    `bson:"count"`
}

func countByStatus(ctx context.Context, col *mongo.Collection, match bson.M) ([]statusCount, error) {
	cur, err := col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []statusCount
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
