package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/handler"
	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/dashboard"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/internal/service/patient"
	"github.com/jwalitptl/referral-api/internal/service/referral"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

// Handler serves the patient dashboard and the provider's patient registry
type Handler struct {
	patients  *patient.Service
	dashboard *dashboard.Service
	referrals *referral.Service
	events    *event.Service
}

func NewHandler(patients *patient.Service, dash *dashboard.Service, referrals *referral.Service, events *event.Service) *Handler {
	return &Handler{
		patients:  patients,
		dashboard: dash,
		referrals: referrals,
		events:    events,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	registry := r.Group("/provider/patients", mw.Authenticate(), mw.RequireType(model.AccountProvider))
	{
		registry.GET("", h.ListPatients)
		registry.POST("", mw.RequirePermission(model.PermissionCreateReferrals), h.CreatePatient)
	}

	me := r.Group("/patient", mw.Authenticate(), mw.RequireType(model.AccountPatient))
	{
		me.GET("/appointments", h.Appointments)
		me.POST("/appointments/:appointmentId/cancel", h.CancelAppointment)
		me.POST("/appointments/:appointmentId/reschedule", h.RescheduleAppointment)
		me.GET("/referrals", h.Referrals)
		me.GET("/events", h.Events)
		me.GET("/reminders", h.Reminders)
		me.GET("/notifications", h.Notifications)
		me.POST("/notifications/clear", h.ClearNotifications)
	}
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.patients.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, patients)
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.patients.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Patient registered", p.Summary())
}

func (h *Handler) Appointments(c *gin.Context) {
	id, ok := handler.AccountID(c)
	if !ok {
		return
	}

	appts, err := h.dashboard.PatientAppointments(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appts)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := handler.AccountID(c)
	if !ok {
		return
	}
	refID, ok := handler.ParamUUID(c, "appointmentId")
	if !ok {
		return
	}

	ref, err := h.referrals.Cancel(c.Request.Context(), refID, &id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Appointment cancelled", ref)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, ok := handler.AccountID(c)
	if !ok {
		return
	}
	refID, ok := handler.ParamUUID(c, "appointmentId")
	if !ok {
		return
	}

	var req model.RescheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	ref, err := h.referrals.Reschedule(c.Request.Context(), refID, req.NewSlotID, &id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Appointment rescheduled", ref)
}

func (h *Handler) Referrals(c *gin.Context) {
	id, ok := handler.AccountID(c)
	if !ok {
		return
	}

	refs, err := h.dashboard.PatientReferrals(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, refs)
}

func (h *Handler) Events(c *gin.Context) {
	id, ok := handler.AccountID(c)
	if !ok {
		return
	}

	events, err := h.events.ListForPatient(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, events)
}

func (h *Handler) Reminders(c *gin.Context) {
	id, ok := handler.AccountID(c)
	if !ok {
		return
	}

	reminders, err := h.dashboard.PatientReminders(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, reminders)
}

func (h *Handler) Notifications(c *gin.Context) {
	id, ok := handler.AccountID(c)
	if !ok {
		return
	}

	notes, err := h.patients.Notifications(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, notes)
}

func (h *Handler) ClearNotifications(c *gin.Context) {
	id, ok := handler.AccountID(c)
	if !ok {
		return
	}

	if err := h.patients.ClearNotifications(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Notifications cleared", nil)
}
