package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/jwalitptl/referral-api/internal/lock"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/internal/service/outbox"
	"github.com/jwalitptl/referral-api/internal/service/patient"
	"github.com/jwalitptl/referral-api/internal/service/provider"
	"github.com/jwalitptl/referral-api/internal/service/speciality"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/metrics"
	"github.com/jwalitptl/referral-api/pkg/security"
)

var departmentNames = []string{
	"Cardiology",
	"Dermatology",
	"General Practice",
	"Maternity",
	"Neurology",
	"Ophthalmology",
	"Orthopedics",
	"Pediatrics",
}

var eventServices = []string{
	"vaccination",
	"blood pressure screening",
	"eye checks",
	"HIV testing",
	"medication refill",
	"antenatal checkup",
}

type Options struct {
	Facilities             int
	DepartmentsPerFacility int
	SlotsPerDepartment     int
	Patients               int
	EventsPerFacility      int
	Password               string
	AdminEmail             string
	Seed                   uint64
}

type Result struct {
	Facilities   int
	Departments  int
	Slots        int
	Patients     int
	Providers    int
	Events       int
	Specialities int
}

// Seeder writes demo data through the services so the usual validation
// applies. Slots and accounts without a service constructor go straight to
// the repositories.
type Seeder struct {
	store        *repository.Store
	faker        *gofakeit.Faker
	hasher       security.PasswordHasher
	facilities   *facility.Service
	patients     *patient.Service
	providers    *provider.Service
	events       *event.Service
	specialities *speciality.Service
	logger       *logger.Logger
	now          time.Time
}

func NewSeeder(store *repository.Store, hasher security.PasswordHasher, seed uint64, log *logger.Logger) *Seeder {
	facilities := facility.NewService(store.Facilities, store.FacilityAdmins, time.Minute, time.Minute, log)
	return &Seeder{
		store:        store,
		faker:        gofakeit.New(seed),
		hasher:       hasher,
		facilities:   facilities,
		patients:     patient.NewService(store.Patients, log),
		providers:    provider.NewService(store.Providers, facilities, hasher, log),
		events:       event.NewService(store, outbox.NewEmitter(store.Outbox), lock.NewLocalLocker(), metrics.Noop(), log),
		specialities: speciality.NewService(store.Specialities),
		logger:       log,
		now:          time.Now().UTC(),
	}
}

func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{}

	hash, err := s.hasher.Hash(opts.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash seed password: %w", err)
	}

	admin := &model.Admin{
		Email:        strings.ToLower(opts.AdminEmail),
		PasswordHash: hash,
		Name:         "System Admin",
		Role:         "superadmin",
		IsActive:     true,
	}
	admin.Touch(s.now)
	if err := s.store.Admins.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	for i := 0; i < opts.Facilities; i++ {
		f, err := s.facility(ctx, i, opts.DepartmentsPerFacility)
		if err != nil {
			return nil, err
		}
		res.Facilities++
		res.Departments += len(f.Departments)

		fa := &model.FacilityAdmin{
			Email:        fmt.Sprintf("facility%d@referrals.local", i+1),
			PasswordHash: hash,
			Name:         s.faker.Name(),
			FacilityID:   f.ID,
		}
		fa.Touch(s.now)
		if err := s.store.FacilityAdmins.Create(ctx, fa); err != nil {
			return nil, fmt.Errorf("failed to create facility admin: %w", err)
		}

		var coordinator *model.Provider
		for j, d := range f.Departments {
			p, err := s.provider(ctx, f, d, fmt.Sprintf("dr%d.%d@referrals.local", i+1, j+1), opts.Password)
			if err != nil {
				return nil, err
			}
			res.Providers++
			if coordinator == nil {
				coordinator = p
			}

			n, err := s.slots(ctx, f, d, opts.SlotsPerDepartment)
			if err != nil {
				return nil, err
			}
			res.Slots += n
		}

		if coordinator != nil {
			for k := 0; k < opts.EventsPerFacility; k++ {
				if err := s.event(ctx, coordinator, f, k); err != nil {
					return nil, err
				}
				res.Events++
			}
		}
	}

	for i := 0; i < opts.Patients; i++ {
		if _, err := s.patients.Register(ctx, &model.CreatePatientRequest{
			Name:              s.faker.Name(),
			Phone:             fmt.Sprintf("+2547%08d", i+1),
			PreferredLanguage: s.faker.RandomString([]string{"en", "sw", "fr"}),
			Consented:         s.faker.Bool(),
		}); err != nil {
			return nil, fmt.Errorf("failed to register patient: %w", err)
		}
		res.Patients++
	}

	for _, name := range departmentNames[:min(len(departmentNames), opts.DepartmentsPerFacility)] {
		if _, err := s.specialities.Create(ctx, &model.SpecialityRequest{
			Name:            name,
			Description:     s.faker.Sentence(8),
			Department:      name,
			Services:        []string{"consultation", "follow-up"},
			ReferralContact: s.faker.Email(),
			Notes:           s.faker.Sentence(6),
		}); err != nil {
			return nil, fmt.Errorf("failed to create speciality: %w", err)
		}
		res.Specialities++
	}

	s.logger.Info("Seed complete",
		"facilities", res.Facilities,
		"slots", res.Slots,
		"patients", res.Patients,
		"providers", res.Providers,
		"events", res.Events)
	return res, nil
}

func (s *Seeder) location() model.GeoPoint {
	// Nairobi metro area
	lng := 36.6 + float64(s.faker.Number(0, 5000))/10000
	lat := -1.45 + float64(s.faker.Number(0, 3000))/10000
	return model.NewGeoPoint(lng, lat)
}

func (s *Seeder) facility(ctx context.Context, i, departments int) (*model.Facility, error) {
	types := []model.FacilityType{model.FacilityTypeHospital, model.FacilityTypeClinic, model.FacilityTypeMobile}
	labels := map[model.FacilityType]string{
		model.FacilityTypeHospital: "Hospital",
		model.FacilityTypeClinic:   "Clinic",
		model.FacilityTypeMobile:   "Mobile Unit",
	}
	t := types[i%len(types)]
	req := &model.CreateFacilityRequest{
		Name:     fmt.Sprintf("%s %s", s.faker.LastName(), labels[t]),
		Type:     t,
		Location: s.location(),
	}
	for j := 0; j < departments && j < len(departmentNames); j++ {
		req.Departments = append(req.Departments, model.CreateDepartmentRequest{
			Name: departmentNames[(i+j)%len(departmentNames)],
		})
	}

	f, err := s.facilities.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create facility: %w", err)
	}
	return f, nil
}

func (s *Seeder) provider(ctx context.Context, f *model.Facility, d *model.Department, email, password string) (*model.Provider, error) {
	deptID := d.ID
	p, err := s.providers.Create(ctx, &model.CreateProviderRequest{
		Email:        email,
		Password:     password,
		Name:         "Dr. " + s.faker.Name(),
		Phone:        s.faker.Phone(),
		FacilityID:   f.ID,
		DepartmentID: &deptID,
		Role:         model.ProviderRoleDoctor,
		Permissions: []model.Permission{
			model.PermissionCreateReferrals,
			model.PermissionManageSlots,
			model.PermissionViewAnalytics,
			model.PermissionManageEvents,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return p, nil
}

// slots creates half-hour open slots on weekday mornings starting tomorrow
func (s *Seeder) slots(ctx context.Context, f *model.Facility, d *model.Department, count int) (int, error) {
	day := time.Date(s.now.Year(), s.now.Month(), s.now.Day(), 8, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	created := 0
	for created < count {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			day = day.AddDate(0, 0, 1)
			continue
		}
		for h := 0; h < 8 && created < count; h++ {
			start := day.Add(time.Duration(h) * 30 * time.Minute)
			slot := &model.Slot{
				FacilityID:   f.ID,
				DepartmentID: d.ID,
				StartAt:      start,
				EndAt:        start.Add(30 * time.Minute),
				Status:       model.SlotStatusOpen,
				Version:      1,
			}
			slot.Touch(s.now)
			if err := s.store.Slots.Create(ctx, slot); err != nil {
				return created, fmt.Errorf("failed to create slot: %w", err)
			}
			created++
		}
		day = day.AddDate(0, 0, 1)
	}
	return created, nil
}

func (s *Seeder) event(ctx context.Context, p *model.Provider, f *model.Facility, k int) error {
	eventType := model.EventTypeMobileClinic
	if k%2 == 1 {
		eventType = model.EventTypeMedsPickup
	}
	_, err := s.events.Create(ctx, p, &model.CreateEventRequest{
		Title:       fmt.Sprintf("%s outreach %d", f.Name, k+1),
		Description: s.faker.Sentence(10),
		Type:        eventType,
		Location:    s.location(),
		Services:    []string{eventServices[k%len(eventServices)], eventServices[(k+1)%len(eventServices)]},
		StartsAt:    s.now.AddDate(0, 0, 7*(k+1)).Truncate(time.Hour),
		Capacity:    s.faker.Number(20, 80),
	})
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}
