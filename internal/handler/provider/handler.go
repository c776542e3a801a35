package provider

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/handler"
	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/dashboard"
	"github.com/jwalitptl/referral-api/internal/service/provider"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

type Handler struct {
	svc       *provider.Service
	dashboard *dashboard.Service
}

func NewHandler(svc *provider.Service, dash *dashboard.Service) *Handler {
	return &Handler{svc: svc, dashboard: dash}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	admin := r.Group("/admin/providers", mw.Authenticate(), mw.RequireType(model.AccountAdmin))
	{
		admin.POST("", h.CreateProvider)
		admin.GET("", h.ListProviders)
		admin.PUT("/:id", h.UpdateProvider)
		admin.DELETE("/:id", h.DeactivateProvider)
	}

	me := r.Group("/provider", mw.Authenticate(), mw.RequireType(model.AccountProvider))
	{
		me.GET("/profile", h.Profile)
		me.GET("/analytics", mw.RequirePermission(model.PermissionViewAnalytics), h.Analytics)
	}
}

func (h *Handler) CreateProvider(c *gin.Context) {
	var req model.CreateProviderRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Provider created", p)
}

func (h *Handler) ListProviders(c *gin.Context) {
	providers, err := h.svc.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, providers)
}

func (h *Handler) UpdateProvider(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateProviderRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Provider updated", p)
}

// DeactivateProvider is a soft delete
func (h *Handler) DeactivateProvider(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Deactivate(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "Provider deactivated", nil)
}

func (h *Handler) Profile(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) Analytics(c *gin.Context) {
	p, ok := handler.Provider(c)
	if !ok {
		return
	}

	a, err := h.dashboard.ProviderAnalytics(c.Request.Context(), p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, a)
}
