package slot

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/handler"
	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/slot"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

type Handler struct {
	svc *slot.Service
}

func NewHandler(svc *slot.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	r.GET("/slots", h.ListOpen)

	slots := r.Group("/provider/slots", mw.Authenticate(), mw.RequirePermission(model.PermissionManageSlots))
	{
		slots.GET("", h.ListMine)
		slots.POST("", h.Create)
		slots.PUT("/:slotId", h.Update)
		slots.DELETE("/:slotId", h.Delete)
		slots.PATCH("/:slotId/status", h.SetStatus)
		slots.POST("/:slotId/book", h.Book)
	}
}

func (h *Handler) ListOpen(c *gin.Context) {
	var q model.SlotQuery
	if !handler.BindQuery(c, &q) {
		return
	}

	filter := slot.OpenFilter{StartFrom: q.StartFrom, StartTo: q.StartTo}
	var ok bool
	if filter.DepartmentID, ok = handler.QueryUUID(c, "departmentId"); !ok {
		return
	}

	slots, err := h.svc.ListOpen(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, slots)
}

func (h *Handler) ListMine(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}

	slots, err := h.svc.ListForProvider(c.Request.Context(), p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, slots)
}

func (h *Handler) Create(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}

	var req model.CreateSlotRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	s, err := h.svc.Create(c.Request.Context(), p, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Slot created", s)
}

func (h *Handler) Update(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "slotId")
	if !ok {
		return
	}

	var req model.UpdateSlotRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	s, err := h.svc.Update(c.Request.Context(), p, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Slot updated", s)
}

func (h *Handler) Delete(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "slotId")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), p, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Slot deleted", nil)
}

func (h *Handler) SetStatus(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "slotId")
	if !ok {
		return
	}

	var req model.SlotStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	s, err := h.svc.SetStatus(c.Request.Context(), p, id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Slot status updated", s)
}

func (h *Handler) Book(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "slotId")
	if !ok {
		return
	}

	s, err := h.svc.Book(c.Request.Context(), p, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Slot booked", s)
}
