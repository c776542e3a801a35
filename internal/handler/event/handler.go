package event

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/handler"
	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/event"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

type Handler struct {
	svc *event.Service
}

func NewHandler(svc *event.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	events := r.Group("/events")
	{
		events.POST("/public/:eventId/:patientId/rsvp", h.PublicRSVP)
		events.POST("/:eventId/rsvp",
			mw.Authenticate(), mw.RequireType(model.AccountPatient), h.RSVP)
		events.GET("/:eventId/details",
			mw.Authenticate(), mw.RequireAdminOrPermission(model.PermissionManageEvents), h.Details)
	}

	provider := r.Group("/provider/events", mw.Authenticate(), mw.RequirePermission(model.PermissionManageEvents))
	{
		provider.GET("", h.ListForFacility)
		provider.POST("", h.Create)
		provider.PATCH("/:eventId", h.Update)
		provider.DELETE("/:eventId", h.Delete)
	}
}

func (h *Handler) PublicRSVP(c *gin.Context) {
	eventID, ok := handler.ParamUUID(c, "eventId")
	if !ok {
		return
	}
	patientID, ok := handler.ParamUUID(c, "patientId")
	if !ok {
		return
	}

	var req model.RSVPRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	e, err := h.svc.PublicRSVP(c.Request.Context(), eventID, patientID, req.Value())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "RSVP recorded", e)
}

func (h *Handler) RSVP(c *gin.Context) {
	patientID, ok := handler.AccountID(c)
	if !ok {
		return
	}
	eventID, ok := handler.ParamUUID(c, "eventId")
	if !ok {
		return
	}

	var req model.RSVPRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	e, err := h.svc.RSVP(c.Request.Context(), eventID, patientID, req.Value())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "RSVP recorded", e)
}

func (h *Handler) Details(c *gin.Context) {
	eventID, ok := handler.ParamUUID(c, "eventId")
	if !ok {
		return
	}

	details, err := h.svc.Details(c.Request.Context(), eventID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, details)
}

func (h *Handler) ListForFacility(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}

	events, err := h.svc.ListForFacility(c.Request.Context(), p.FacilityID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, events)
}

func (h *Handler) Create(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}

	var req model.CreateEventRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	e, err := h.svc.Create(c.Request.Context(), p, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Event created", e)
}

func (h *Handler) Update(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}
	eventID, ok := handler.ParamUUID(c, "eventId")
	if !ok {
		return
	}

	var req model.UpdateEventRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	e, err := h.svc.Update(c.Request.Context(), p, eventID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Event updated", e)
}

func (h *Handler) Delete(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}
	eventID, ok := handler.ParamUUID(c, "eventId")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), p, eventID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Event deleted", nil)
}
