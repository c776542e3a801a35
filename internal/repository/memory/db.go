// Package memory is a process-local backend used for development and tests.
// Transactions are serialized and roll back by restoring a snapshot. Writes
// outside a transaction wait for the open one to finish, so a rollback never
// discards them.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type txKey struct{}

type tables struct {
	facilities     map[uuid.UUID]*model.Facility
	slots          map[uuid.UUID]*model.Slot
	referrals      map[uuid.UUID]*model.Referral
	patients       map[uuid.UUID]*model.Patient
	providers      map[uuid.UUID]*model.Provider
	admins         map[uuid.UUID]*model.Admin
	facilityAdmins map[uuid.UUID]*model.FacilityAdmin
	events         map[uuid.UUID]*model.MobileClinicEvent
	specialities   map[uuid.UUID]*model.Speciality
	outbox         map[uuid.UUID]*model.OutboxEvent
}

func newTables() tables {
	return tables{
		facilities:     map[uuid.UUID]*model.Facility{},
		slots:          map[uuid.UUID]*model.Slot{},
		referrals:      map[uuid.UUID]*model.Referral{},
		patients:       map[uuid.UUID]*model.Patient{},
		providers:      map[uuid.UUID]*model.Provider{},
		admins:         map[uuid.UUID]*model.Admin{},
		facilityAdmins: map[uuid.UUID]*model.FacilityAdmin{},
		events:         map[uuid.UUID]*model.MobileClinicEvent{},
		specialities:   map[uuid.UUID]*model.Speciality{},
		outbox:         map[uuid.UUID]*model.OutboxEvent{},
	}
}

func (t tables) clone() tables {
	return tables{
		facilities:     cloneMap(t.facilities, cloneFacility),
		slots:          cloneMap(t.slots, cloneSlot),
		referrals:      cloneMap(t.referrals, cloneReferral),
		patients:       cloneMap(t.patients, clonePatient),
		providers:      cloneMap(t.providers, cloneProvider),
		admins:         cloneMap(t.admins, cloneAdmin),
		facilityAdmins: cloneMap(t.facilityAdmins, cloneFacilityAdmin),
		events:         cloneMap(t.events, cloneEvent),
		specialities:   cloneMap(t.specialities, cloneSpeciality),
		outbox:         cloneMap(t.outbox, cloneOutbox),
	}
}

// DB holds every table behind one lock
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	t    tables
}

func New() *DB {
	return &DB{t: newTables()}
}

// Store exposes the backend through the repository interfaces
func (db *DB) Store() *repository.Store {
	return &repository.Store{
		Tx:             db,
		Facilities:     &facilityRepo{db},
		Slots:          &slotRepo{db},
		Referrals:      &referralRepo{db},
		Patients:       &patientRepo{db},
		Providers:      &providerRepo{db},
		Admins:         &adminRepo{db},
		FacilityAdmins: &facilityAdminRepo{db},
		Events:         &eventRepo{db},
		Specialities:   &specialityRepo{db},
		Outbox:         &outboxRepo{db},
		Ping:           func(context.Context) error { return nil },
		Close:          func(context.Context) error { return nil },
	}
}

func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.t.clone()
	db.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			db.restore(snapshot)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		db.restore(snapshot)
		return err
	}
	return nil
}

func (db *DB) restore(snapshot tables) {
	db.mu.Lock()
	db.t = snapshot
	db.mu.Unlock()
}

func (db *DB) read(fn func(t *tables)) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn(&db.t)
}

func (db *DB) write(ctx context.Context, fn func(t *tables)) {
	if ctx.Value(txKey{}) == nil {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(&db.t)
}

func cloneMap[T any](m map[uuid.UUID]*T, fn func(*T) *T) map[uuid.UUID]*T {
	out := make(map[uuid.UUID]*T, len(m))
	for k, v := range m {
		out[k] = fn(v)
	}
	return out
}

func cloneFacility(f *model.Facility) *model.Facility {
	c := *f
	c.Location.Coordinates = append([]float64(nil), f.Location.Coordinates...)
	c.Departments = make([]*model.Department, 0, len(f.Departments))
	for _, d := range f.Departments {
		dc := *d
		c.Departments = append(c.Departments, &dc)
	}
	return &c
}

func cloneSlot(s *model.Slot) *model.Slot {
	c := *s
	return &c
}

func cloneReferral(r *model.Referral) *model.Referral {
	c := *r
	if r.ReminderSentAt != nil {
		t := *r.ReminderSentAt
		c.ReminderSentAt = &t
	}
	return &c
}

func clonePatient(p *model.Patient) *model.Patient {
	c := *p
	c.Notifications = make([]*model.Notification, 0, len(p.Notifications))
	for _, n := range p.Notifications {
		nc := *n
		c.Notifications = append(c.Notifications, &nc)
	}
	return &c
}

func cloneProvider(p *model.Provider) *model.Provider {
	c := *p
	c.Permissions = append([]model.Permission(nil), p.Permissions...)
	if p.DepartmentID != nil {
		id := *p.DepartmentID
		c.DepartmentID = &id
	}
	if p.LastLogin != nil {
		t := *p.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func cloneAdmin(a *model.Admin) *model.Admin {
	c := *a
	if a.LastLogin != nil {
		t := *a.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func cloneFacilityAdmin(a *model.FacilityAdmin) *model.FacilityAdmin {
	c := *a
	return &c
}

func cloneEvent(e *model.MobileClinicEvent) *model.MobileClinicEvent {
	c := *e
	c.Location.Coordinates = append([]float64(nil), e.Location.Coordinates...)
	c.Services = append([]string(nil), e.Services...)
	c.RSVPs = append([]model.RSVP(nil), e.RSVPs...)
	return &c
}

func cloneSpeciality(s *model.Speciality) *model.Speciality {
	c := *s
	c.Location.Coordinates = append([]float64(nil), s.Location.Coordinates...)
	c.Services = append([]string(nil), s.Services...)
	return &c
}

func cloneOutbox(e *model.OutboxEvent) *model.OutboxEvent {
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	return &c
}
