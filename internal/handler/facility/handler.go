package facility

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/handler"
	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/service/facility"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

type Handler struct {
	svc *facility.Service
}

func NewHandler(svc *facility.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw *middleware.AuthMiddleware) {
	facilities := r.Group("/facilities")
	{
		facilities.GET("", h.ListFacilities)
		facilities.GET("/:facilityId/departments", h.ListDepartments)
	}

	admin := r.Group("/admin/facilities", mw.Authenticate(), mw.RequireType(model.AccountAdmin))
	{
		admin.POST("", h.CreateFacility)
		admin.GET("", h.ListFacilities)
	}

	fa := r.Group("/facility-admin", mw.Authenticate(), mw.RequireType(model.AccountFacilityAdmin))
	{
		fa.GET("/profile", h.Profile)
		fa.GET("/my-facility", h.MyFacility)
		fa.POST("/departments", h.AddDepartment)
	}
}

func (h *Handler) ListFacilities(c *gin.Context) {
	facilities, err := h.svc.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, facilities)
}

func (h *Handler) ListDepartments(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "facilityId")
	if !ok {
		return
	}

	departments, err := h.svc.Departments(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, departments)
}

func (h *Handler) CreateFacility(c *gin.Context) {
	var req model.CreateFacilityRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	f, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Facility created", f)
}

func (h *Handler) Profile(c *gin.Context) {
	adminID, ok := handler.AccountID(c)
	if !ok {
		return
	}

	profile, err := h.svc.AdminProfile(c.Request.Context(), adminID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, profile)
}

func (h *Handler) MyFacility(c *gin.Context) {
	adminID, ok := handler.AccountID(c)
	if !ok {
		return
	}

	f, err := h.svc.AdminFacility(c.Request.Context(), adminID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, f)
}

func (h *Handler) AddDepartment(c *gin.Context) {
	adminID, ok := handler.AccountID(c)
	if !ok {
		return
	}

	var req model.CreateDepartmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	dept, err := h.svc.AddAdminDepartment(c.Request.Context(), adminID, req.Name)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusCreated, "Department added", dept)
}
