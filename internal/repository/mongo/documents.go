package mongo

import (
	"time"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/pkg/security"
)

type departmentDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

type facilityDoc struct {
	ID          string          `bson:"_id"`
	Name        string          `bson:"name"`
	Type        string          `bson:"type"`
	Location    model.GeoPoint  `bson:"location"`
	Departments []departmentDoc `bson:"departments"`
	CreatedAt   time.Time       `bson:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}

func newFacilityDoc(f *model.Facility) facilityDoc {
	doc := facilityDoc{
		ID:          idOf(f.ID),
		Name:        f.Name,
		Type:        string(f.Type),
		Location:    f.Location.Normalize(),
		Departments: make([]departmentDoc, 0, len(f.Departments)),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	for _, d := range f.Departments {
		doc.Departments = append(doc.Departments, departmentDoc{ID: idOf(d.ID), Name: d.Name})
	}
	return doc
}

func (d facilityDoc) toModel() *model.Facility {
	f := &model.Facility{
		Base:        model.Base{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Name:        d.Name,
		Type:        model.FacilityType(d.Type),
		Location:    d.Location,
		Departments: make([]*model.Department, 0, len(d.Departments)),
	}
	for _, dep := range d.Departments {
		f.Departments = append(f.Departments, &model.Department{ID: parseID(dep.ID), FacilityID: f.ID, Name: dep.Name})
	}
	return f
}

type slotDoc struct {
	ID           string    `bson:"_id"`
	FacilityID   string    `bson:"facilityId"`
	DepartmentID string    `bson:"departmentId"`
	StartAt      time.Time `bson:"startAt"`
	EndAt        time.Time `bson:"endAt"`
	Status       string    `bson:"status"`
	Version      int       `bson:"version"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func newSlotDoc(s *model.Slot) slotDoc {
	return slotDoc{
		ID:           idOf(s.ID),
		FacilityID:   idOf(s.FacilityID),
		DepartmentID: idOf(s.DepartmentID),
		StartAt:      s.StartAt,
		EndAt:        s.EndAt,
		Status:       string(s.Status),
		Version:      s.Version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (d slotDoc) toModel() *model.Slot {
	return &model.Slot{
		Base:         model.Base{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		FacilityID:   parseID(d.FacilityID),
		DepartmentID: parseID(d.DepartmentID),
		StartAt:      d.StartAt,
		EndAt:        d.EndAt,
		Status:       model.SlotStatus(d.Status),
		Version:      d.Version,
	}
}

type referralDoc struct {
	ID             string     `bson:"_id"`
	FromFacilityID string     `bson:"fromFacilityId"`
	ToDepartmentID string     `bson:"toDepartmentId"`
	PatientID      string     `bson:"patientId"`
	SlotID         string     `bson:"slotId"`
	Status         string     `bson:"status"`
	Reason         string     `bson:"reason"`
	ReminderSentAt *time.Time `bson:"reminderSentAt"`
	Version        int        `bson:"version"`
	CreatedAt      time.Time  `bson:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt"`
}

func newReferralDoc(r *model.Referral) referralDoc {
	return referralDoc{
		ID:             idOf(r.ID),
		FromFacilityID: idOf(r.FromFacilityID),
		ToDepartmentID: idOf(r.ToDepartmentID),
		PatientID:      idOf(r.PatientID),
		SlotID:         idOf(r.SlotID),
		Status:         string(r.Status),
		Reason:         r.Reason,
		ReminderSentAt: r.ReminderSentAt,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (d referralDoc) toModel() *model.Referral {
	return &model.Referral{
		Base:           model.Base{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		FromFacilityID: parseID(d.FromFacilityID),
		ToDepartmentID: parseID(d.ToDepartmentID),
		PatientID:      parseID(d.PatientID),
		SlotID:         parseID(d.SlotID),
		Status:         model.ReferralStatus(d.Status),
		Reason:         d.Reason,
		ReminderSentAt: d.ReminderSentAt,
		Version:        d.Version,
	}
}

type notificationDoc struct {
	ID      string    `bson:"_id"`
	Message string    `bson:"message"`
	SentAt  time.Time `bson:"sentAt"`
}

type patientDoc struct {
	ID                string            `bson:"_id"`
	Name              string            `bson:"name"`
	Phone             string            `bson:"phone"`
	PreferredLanguage string            `bson:"preferredLanguage"`
	Consented         bool              `bson:"consented"`
	Notifications     []notificationDoc `bson:"notifications"`
	CreatedAt         time.Time         `bson:"createdAt"`
	UpdatedAt         time.Time         `bson:"updatedAt"`
}

func newPatientDoc(p *model.Patient) patientDoc {
	doc := patientDoc{
		ID:                idOf(p.ID),
		Name:              p.Name,
		Phone:             p.Phone,
		PreferredLanguage: p.PreferredLanguage,
		Consented:         p.Consented,
		Notifications:     make([]notificationDoc, 0, len(p.Notifications)),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	for _, n := range p.Notifications {
		doc.Notifications = append(doc.Notifications, notificationDoc{ID: idOf(n.ID), Message: n.Message, SentAt: n.SentAt})
	}
	return doc
}

func (d patientDoc) toModel() *model.Patient {
	p := &model.Patient{
		Base:              model.Base{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Name:              d.Name,
		Phone:             d.Phone,
		PreferredLanguage: d.PreferredLanguage,
		Consented:         d.Consented,
		Notifications:     make([]*model.Notification, 0, len(d.Notifications)),
	}
	for _, n := range d.Notifications {
		p.Notifications = append(p.Notifications, &model.Notification{ID: parseID(n.ID), Message: n.Message, SentAt: n.SentAt})
	}
	return p
}

type providerDoc struct {
	ID           string     `bson:"_id"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"passwordHash"`
	Name         string     `bson:"name"`
	Phone        string     `bson:"phone"`
	FacilityID   string     `bson:"facilityId"`
	DepartmentID *string    `bson:"departmentId"`
	Role         string     `bson:"role"`
	Permissions  []string   `bson:"permissions"`
	IsActive     bool       `bson:"isActive"`
	LastLogin    *time.Time `bson:"lastLogin"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
}

func newProviderDoc(p *model.Provider) providerDoc {
	doc := providerDoc{
		ID:           idOf(p.ID),
		Email:        security.NormalizeEmail(p.Email),
		PasswordHash: p.PasswordHash,
		Name:         p.Name,
		Phone:        p.Phone,
		FacilityID:   idOf(p.FacilityID),
		DepartmentID: idPtr(p.DepartmentID),
		Role:         string(p.Role),
		Permissions:  make([]string, 0, len(p.Permissions)),
		IsActive:     p.IsActive,
		LastLogin:    p.LastLogin,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	for _, perm := range p.Permissions {
		doc.Permissions = append(doc.Permissions, string(perm))
	}
	return doc
}

func (d providerDoc) toModel() *model.Provider {
	p := &model.Provider{
		Base:         model.Base{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Name:         d.Name,
		Phone:        d.Phone,
		FacilityID:   parseID(d.FacilityID),
		DepartmentID: parseIDPtr(d.DepartmentID),
		Role:         model.ProviderRole(d.Role),
		Permissions:  make([]model.Permission, 0, len(d.Permissions)),
		IsActive:     d.IsActive,
		LastLogin:    d.LastLogin,
	}
	for _, perm := range d.Permissions {
		p.Permissions = append(p.Permissions, model.Permission(perm))
	}
	return p
}

type adminDoc struct {
	ID           string     `bson:"_id"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"passwordHash"`
	Name         string     `bson:"name"`
	Role         string     `bson:"role"`
	IsActive     bool       `bson:"isActive"`
	LastLogin    *time.Time `bson:"lastLogin"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
}

func newAdminDoc(a *model.Admin) adminDoc {
	return adminDoc{
		ID:           idOf(a.ID),
		Email:        security.NormalizeEmail(a.Email),
		PasswordHash: a.PasswordHash,
		Name:         a.Name,
		Role:         a.Role,
		IsActive:     a.IsActive,
		LastLogin:    a.LastLogin,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (d adminDoc) toModel() *model.Admin {
	return &model.Admin{
		Base:         model.Base{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Name:         d.Name,
		Role:         d.Role,
		IsActive:     d.IsActive,
		LastLogin:    d.LastLogin,
	}
}

type facilityAdminDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	Name         string    `bson:"name"`
	FacilityID   string    `bson:"facilityId"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func newFacilityAdminDoc(a *model.FacilityAdmin) facilityAdminDoc {
	return facilityAdminDoc{
		ID:           idOf(a.ID),
		Email:        security.NormalizeEmail(a.Email),
		PasswordHash: a.PasswordHash,
		Name:         a.Name,
		FacilityID:   idOf(a.FacilityID),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (d facilityAdminDoc) toModel() *model.FacilityAdmin {
	return &model.FacilityAdmin{
		Base:         model.Base{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Name:         d.Name,
		FacilityID:   parseID(d.FacilityID),
	}
}

type rsvpDoc struct {
	PatientID   string    `bson:"patientId"`
	Status      string    `bson:"status"`
	RespondedAt time.Time `bson:"respondedAt"`
}

type eventDoc struct {
	ID          string         `bson:"_id"`
	FacilityID  string         `bson:"facilityId"`
	Title       string         `bson:"title"`
	Description string         `bson:"description"`
	Type        string         `bson:"type"`
	Location    model.GeoPoint `bson:"location"`
	Services    []string       `bson:"services"`
	StartsAt    time.Time      `bson:"startsAt"`
	Capacity    int            `bson:"capacity"`
	RSVPs       []rsvpDoc      `bson:"rsvps"`
	Version     int            `bson:"version"`
	CreatedAt   time.Time      `bson:"createdAt"`
	UpdatedAt   time.Time      `bson:"updatedAt"`
}

func newEventDoc(e *model.MobileClinicEvent) eventDoc {
	doc := eventDoc{
		ID:          idOf(e.ID),
		FacilityID:  idOf(e.FacilityID),
		Title:       e.Title,
		Description: e.Description,
		Type:        string(e.Type),
		Location:    e.Location.Normalize(),
		Services:    append([]string{}, e.Services...),
		StartsAt:    e.StartsAt,
		Capacity:    e.Capacity,
		RSVPs:       make([]rsvpDoc, 0, len(e.RSVPs)),
		Version:     e.Version,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	for _, r := range e.RSVPs {
		doc.RSVPs = append(doc.RSVPs, rsvpDoc{PatientID: idOf(r.PatientID), Status: string(r.Status), RespondedAt: r.RespondedAt})
	}
	return doc
}

func (d eventDoc) toModel() *model.MobileClinicEvent {
	e := &model.MobileClinicEvent{
		Base:        model.Base{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		FacilityID:  parseID(d.FacilityID),
		Title:       d.Title,
		Description: d.Description,
		Type:        model.EventType(d.Type),
		Location:    d.Location,
		Services:    d.Services,
		StartsAt:    d.StartsAt,
		Capacity:    d.Capacity,
		RSVPs:       make([]model.RSVP, 0, len(d.RSVPs)),
		Version:     d.Version,
	}
	for _, r := range d.RSVPs {
		e.RSVPs = append(e.RSVPs, model.RSVP{PatientID: parseID(r.PatientID), Status: model.RSVPAction(r.Status), RespondedAt: r.RespondedAt})
	}
	return e
}

type specialityDoc struct {
	ID              string         `bson:"_id"`
	Name            string         `bson:"name"`
	Location        model.GeoPoint `bson:"location"`
	Description     string         `bson:"description"`
	Department      string         `bson:"department"`
	Services        []string       `bson:"services"`
	ReferralContact string         `bson:"referralContact"`
	Notes           string         `bson:"notes"`
	CreatedAt       time.Time      `bson:"createdAt"`
	UpdatedAt       time.Time      `bson:"updatedAt"`
}

func newSpecialityDoc(s *model.Speciality) specialityDoc {
	return specialityDoc{
		ID:              idOf(s.ID),
		Name:            s.Name,
		Location:        s.Location.Normalize(),
		Description:     s.Description,
		Department:      s.Department,
		Services:        append([]string{}, s.Services...),
		ReferralContact: s.ReferralContact,
		Notes:           s.Notes,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (d specialityDoc) toModel() *model.Speciality {
	return &model.Speciality{
		Base:            model.Base{ID: parseID(d.ID), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		Name:            d.Name,
		Location:        d.Location,
		Description:     d.Description,
		Department:      d.Department,
		Services:        d.Services,
		ReferralContact: d.ReferralContact,
		Notes:           d.Notes,
	}
}

type outboxDoc struct {
	ID           string     `bson:"_id"`
	EventType    string     `bson:"eventType"`
	Payload      string     `bson:"payload"`
	Status       string     `bson:"status"`
	ErrorMessage *string    `bson:"errorMessage"`
	RetryCount   int        `bson:"retryCount"`
	RetryAt      *time.Time `bson:"retryAt"`
	CreatedAt    time.Time  `bson:"createdAt"`
	ProcessedAt  *time.Time `bson:"processedAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
}

func newOutboxDoc(e *model.OutboxEvent) outboxDoc {
	return outboxDoc{
		ID:           idOf(e.ID),
		EventType:    e.EventType,
		Payload:      string(e.Payload),
		Status:       string(e.Status),
		ErrorMessage: e.ErrorMessage,
		RetryCount:   e.RetryCount,
		RetryAt:      e.RetryAt,
		CreatedAt:    e.CreatedAt,
		ProcessedAt:  e.ProcessedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func (d outboxDoc) toModel() *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:           parseID(d.ID),
		EventType:    d.EventType,
		Payload:      []byte(d.Payload),
		Status:       model.OutboxStatus(d.Status),
		ErrorMessage: d.ErrorMessage,
		RetryCount:   d.RetryCount,
		RetryAt:      d.RetryAt,
		CreatedAt:    d.CreatedAt,
		ProcessedAt:  d.ProcessedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
