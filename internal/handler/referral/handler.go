package referral

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/handler"
	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/referral"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

type Handler struct {
	svc *referral.Service
}

func NewHandler(svc *referral.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	referrals := r.Group("/referrals", mw.Authenticate(), mw.RequireType(model.AccountProvider))
	{
		referrals.POST("", mw.RequirePermission(model.PermissionCreateReferrals), h.Create)
		referrals.GET("", h.List)
		referrals.PATCH("/:id/cancel", h.Cancel)
		referrals.PATCH("/:id/reschedule", h.Reschedule)
		referrals.PATCH("/:id/confirm", h.Confirm)
	}

	r.GET("/provider/referrals",
		mw.Authenticate(), mw.RequirePermission(model.PermissionManageSlots), h.ListForFacility)
	r.GET("/admin/referrals/analytics",
		mw.Authenticate(), mw.RequireType(model.AccountAdmin), h.Analytics)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateReferralRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	ref, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Referral created", ref)
}

func (h *Handler) List(c *gin.Context) {
	var q model.ReferralQuery
	if !handler.BindQuery(c, &q) {
		return
	}

	var filter model.ReferralFilter
	var ok bool
	if filter.PatientID, ok = handler.QueryUUID(c, "patientId"); !ok {
		return
	}
	if filter.FromFacilityID, ok = handler.QueryUUID(c, "fromFacilityId"); !ok {
		return
	}

	refs, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, refs)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	ref, err := h.svc.Cancel(c.Request.Context(), id, nil)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Referral cancelled", ref)
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	var req model.RescheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	ref, err := h.svc.Reschedule(c.Request.Context(), id, req.NewSlotID, nil)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Referral rescheduled", ref)
}

func (h *Handler) Confirm(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	ref, err := h.svc.Confirm(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Referral confirmed", ref)
}

func (h *Handler) ListForFacility(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}

	views, err := h.svc.ListForFacility(c.Request.Context(), p.FacilityID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, views)
}

func (h *Handler) Analytics(c *gin.Context) {
	a, err := h.svc.Analytics(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, a)
}
