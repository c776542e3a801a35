package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/pkg/messaging"
	"github.com/jwalitptl/referral-api/pkg/metrics"
	"github.com/jwalitptl/referral-api/pkg/notify"
)

const (
	channelInApp = "in_app"
	timeLayout   = "Mon Jan 2 15:04 MST"
)

// Topics lists every channel the consumer handles
var Topics = []string{
	model.EventReferralBooked,
	model.EventReferralConfirmed,
	model.EventReferralCancelled,
	model.EventReferralRescheduled,
	model.EventReferralReminder,
	model.EventRSVPUpdated,
}

// PatientNotifier appends in-app notifications
type PatientNotifier interface {
	Notify(ctx context.Context, patientID uuid.UUID, message string) error
}

// Consumer turns relayed domain events into patient notifications and
// provider emails
type Consumer struct {
	patients   PatientNotifier
	providers  repository.ProviderRepository
	facilities facility.Lookup
	mailer     notify.Notifier
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewConsumer(patients PatientNotifier, providers repository.ProviderRepository, facilities facility.Lookup, mailer notify.Notifier, m *metrics.Metrics, log *zap.Logger) *Consumer {
	if mailer == nil {
		mailer = notify.NewNull()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		patients:   patients,
		providers:  providers,
		facilities: facilities,
		mailer:     mailer,
		metrics:    m,
		logger:     log,
	}
}

// Handle is a messaging.Handler
func (c *Consumer) Handle(ctx context.Context, msg messaging.Message) error {
	var env model.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return fmt.Errorf("failed to decode envelope: %w", err)
	}

	log := c.logger.With(zap.String("event_id", env.ID.String()), zap.String("event_type", env.Type))

	switch env.Type {
	case model.EventRSVPUpdated:
		var payload model.RSVPEvent
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("failed to decode rsvp event: %w", err)
		}
		return c.handleRSVP(ctx, log, &payload)

	case model.EventReferralBooked, model.EventReferralConfirmed, model.EventReferralCancelled,
		model.EventReferralRescheduled, model.EventReferralReminder:
		var payload model.ReferralEvent
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("failed to decode referral event: %w", err)
		}
		return c.handleReferral(ctx, log, env.Type, &payload)

	default:
		log.Debug("Ignoring unknown event type")
		return nil
	}
}

func (c *Consumer) handleRSVP(ctx context.Context, log *zap.Logger, e *model.RSVPEvent) error {
	if e.Action != model.RSVPYes {
		return nil
	}
	msg := fmt.Sprintf("RSVP confirmed for %s on %s", e.Title, e.StartsAt.Format(timeLayout))
	return c.notifyPatient(ctx, log, e.PatientID, msg)
}

func (c *Consumer) handleReferral(ctx context.Context, log *zap.Logger, eventType string, e *model.ReferralEvent) error {
	deptName := "the department"
	if dept, err := c.facilities.Department(ctx, e.ToDepartmentID); err == nil {
		deptName = dept.Name
	} else {
		log.Warn("Department lookup failed", zap.String("department_id", e.ToDepartmentID.String()), zap.Error(err))
	}
	when := e.StartAt.Format(timeLayout)

	var patientMsg, subject string
	switch eventType {
	case model.EventReferralBooked:
		patientMsg = fmt.Sprintf("Your appointment with %s is booked for %s", deptName, when)
		subject = "New referral booked"
	case model.EventReferralRescheduled:
		patientMsg = fmt.Sprintf("Your appointment with %s was moved to %s", deptName, when)
		subject = "Referral rescheduled"
	case model.EventReferralCancelled:
		patientMsg = fmt.Sprintf("Your appointment with %s on %s was cancelled", deptName, when)
		subject = "Referral cancelled"
	case model.EventReferralReminder:
		patientMsg = fmt.Sprintf("Reminder: appointment with %s on %s", deptName, when)
	case model.EventReferralConfirmed:
		subject = "Referral confirmed"
	}

	if patientMsg != "" {
		if err := c.notifyPatient(ctx, log, e.PatientID, patientMsg); err != nil {
			return err
		}
	}
	if subject != "" {
		c.emailProviders(ctx, log, e, subject, deptName, when)
	}
	return nil
}

func (c *Consumer) notifyPatient(ctx context.Context, log *zap.Logger, patientID uuid.UUID, message string) error {
	err := c.patients.Notify(ctx, patientID, message)
	c.metrics.Notification(channelInApp, err)
	if err != nil {
		return fmt.Errorf("failed to notify patient %s: %w", patientID, err)
	}
	log.Debug("Patient notified", zap.String("patient_id", patientID.String()))
	return nil
}

// emailProviders is best effort. Failures are logged and counted only.
func (c *Consumer) emailProviders(ctx context.Context, log *zap.Logger, e *model.ReferralEvent, subject, deptName, when string) {
	deptID := e.ToDepartmentID
	providers, err := c.providers.List(ctx, model.ProviderFilter{ActiveOnly: true, DepartmentID: &deptID})
	if err != nil {
		log.Error("Failed to list department providers", zap.Error(err))
		return
	}

	to := make([]string, 0, len(providers))
	for _, p := range providers {
		if p.Email != "" {
			to = append(to, p.Email)
		}
	}
	if len(to) == 0 {
		return
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s\n\n", subject)
	fmt.Fprintf(&body, "Department: %s\n", deptName)
	fmt.Fprintf(&body, "Appointment: %s\n", when)
	fmt.Fprintf(&body, "Referral: %s\n", e.ReferralID)
	fmt.Fprintf(&body, "Status: %s\n", e.Status)

	err = c.mailer.Send(ctx, to, subject, body.String())
	c.metrics.Notification(c.mailer.Name(), err)
	if err != nil {
		log.Error("Failed to email providers", zap.Int("recipients", len(to)), zap.Error(err))
		return
	}
	log.Info("Providers emailed", zap.Int("recipients", len(to)))
}
