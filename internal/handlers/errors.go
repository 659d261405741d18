package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"outsourcing-market/internal/auth"
	"outsourcing-market/internal/lifecycle"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, lifecycle.ErrAuthorization):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, lifecycle.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, lifecycle.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, lifecycle.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "internal"
}

// respondError renders err. Unexpected errors are logged and hidden.
func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "Internal server error", "code": code})
		return
	}
	if status == http.StatusNotFound && !errors.As(err, new(*lifecycle.Error)) {
		c.JSON(status, gin.H{"error": "Not found", "code": code})
		return
	}

	body := gin.H{"error": lifecycle.Reason(err), "code": code}
	var lerr *lifecycle.Error
	if errors.As(err, &lerr) && lerr.From != "" {
		body["status"] = lerr.From
		if lerr.To != "" {
			body["attempted_status"] = lerr.To
		}
	}
	c.JSON(status, body)
}

// actorFrom builds the acting user from the auth context. Admin routes run
// behind AdminMiddleware, which sets admin_id.
func actorFrom(c *gin.Context) (lifecycle.Actor, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return lifecycle.Actor{}, false
	}
	_, isAdmin := c.Get("admin_id")
	return lifecycle.Actor{UserID: userID, IsAdmin: isAdmin}, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// pagination reads limit and offset, capping limit at 100.
func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
