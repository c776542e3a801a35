package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	apperrors "github.com/jwalitptl/referral-api/pkg/errors"
	"github.com/jwalitptl/referral-api/pkg/httputil"
)

// BindJSON binds and validates the body, writing a 400 on failure
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(middleware.ValidationMessage(err), err))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters, writing a 400 on failure
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(middleware.ValidationMessage(err), err))
		return false
	}
	return true
}

// ParamUUID parses a path parameter, writing a 400 when it is not a UUID
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("Invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID parses an optional query parameter
func QueryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("Invalid "+name, err))
		return nil, false
	}
	return &id, true
}

// Claims returns the verified token claims. Routes using it sit behind
// AuthMiddleware.Authenticate.
func Claims(c *gin.Context) (*model.TokenClaims, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("Not authenticated", nil))
		return nil, false
	}
	return p.Claims, true
}

// Provider returns the authenticated provider, loaded fresh for this request
func Provider(c *gin.Context) (*model.Provider, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok || p.Provider == nil {
		httputil.RespondWithError(c, apperrors.Forbidden("Provider access required"))
		return nil, false
	}
	return p.Provider, true
}

// AccountID returns the id of the authenticated account
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	claims, ok := Claims(c)
	if !ok {
		return uuid.Nil, false
	}
	return claims.AccountID, true
}
