package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/handler"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/auth"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/admin/login", h.AdminLogin)
	r.POST("/provider/login", h.ProviderLogin)
	r.POST("/facility-admin/login", h.FacilityAdminLogin)
	r.POST("/patient/login", h.PatientLogin)
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.AdminLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, resp)
}

func (h *Handler) ProviderLogin(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.ProviderLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, resp)
}

func (h *Handler) FacilityAdminLogin(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.FacilityAdminLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, resp)
}

func (h *Handler) PatientLogin(c *gin.Context) {
	var req model.PatientLoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.PatientLogin(c.Request.Context(), req.Phone)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, resp)
}
