package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/dashboard"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

type Handler struct {
	dashboard *dashboard.Service
}

func NewHandler(dash *dashboard.Service) *Handler {
	return &Handler{dashboard: dash}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	admin := r.Group("/admin/dashboard", mw.Authenticate(), mw.RequireType(model.AccountAdmin))
	admin.GET("/stats", h.Stats)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.dashboard.AdminStats(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, stats)
}
