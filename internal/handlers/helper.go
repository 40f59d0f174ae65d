package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ownerKey        = "owner"
	requestStartKey = "request_start"

	// OwnerHeader carries the authenticated user id set by the gateway
	OwnerHeader = "X-User-ID"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := c.Param(param)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// OwnerMiddleware stores the caller's id and the request start time on the context
func OwnerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		if owner := strings.TrimSpace(c.GetHeader(OwnerHeader)); owner != "" {
			c.Set(ownerKey, owner)
		}
		c.Next()
	}
}

// requireOwner writes 401 and returns false when the caller is anonymous
func requireOwner(c *gin.Context) (string, bool) {
	owner := c.GetString(ownerKey)
	if owner == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return owner, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
