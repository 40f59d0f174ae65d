package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/SAP-F-2025/vrp-import-service/internal/errors"
	"github.com/SAP-F-2025/vrp-import-service/internal/services"
	"github.com/SAP-F-2025/vrp-import-service/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// ListResponse wraps paginated results
type ListResponse struct {
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

// NewBaseHandler creates a new base handler with logging capability
func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// log returns the request-scoped logger with the caller attached
func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	if scoped := utils.GetLoggerFromContext(c, nil); scoped != nil {
		return scoped.With("owner", c.GetString(ownerKey))
	}
	return h.logger.With(
		"request_id", c.GetHeader(utils.RequestIDHeader),
		"owner", c.GetString(ownerKey),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	)
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := append([]interface{}{"remote_addr", c.ClientIP(), "user_agent", c.Request.UserAgent()}, additionalFields...)
	h.log(c).Info(message, fields...)
}

// LogResponse logs HTTP responses with timing and status information
func (h *BaseHandler) LogResponse(c *gin.Context, statusCode int, additionalFields ...interface{}) {
	var duration time.Duration
	if start, ok := c.Get(requestStartKey); ok {
		duration = time.Since(start.(time.Time))
	}

	fields := append([]interface{}{"request_id", c.GetHeader(utils.RequestIDHeader)}, additionalFields...)
	h.logger.LogRequest(c.Request.Method, c.Request.URL.Path, statusCode, duration.String(), fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	h.log(c).LogError(err, message, additionalFields...)
}

func (h *BaseHandler) LogInfo(c *gin.Context, message string, additionalFields ...interface{}) {
	h.log(c).Info(message, additionalFields...)
}

func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	h.log(c).Warn(message, additionalFields...)
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{
		Message: message,
	}

	if len(details) > 0 {
		errorResp.Details = details[0]
	}

	// Server faults are errors, client mistakes are warnings
	if err != nil && statusCode >= http.StatusInternalServerError {
		h.LogError(c, err, message, "status_code", statusCode)
	} else {
		h.LogWarn(c, message, "status_code", statusCode, "error", errString(err))
	}

	c.JSON(statusCode, errorResp)
}

// ===== SERVICE ERROR MAPPING =====

// handleServiceError maps service errors to HTTP status codes
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err, validationErrors)
		return
	}

	var parseErr *apperrors.ParseError
	if errors.As(err, &parseErr) {
		status := http.StatusBadRequest
		switch parseErr.Reason {
		case apperrors.ReasonTooLarge:
			status = http.StatusRequestEntityTooLarge
		case apperrors.ReasonUnsupportedFormat:
			status = http.StatusUnsupportedMediaType
		}
		h.RespondWithError(c, status, parseErr.Message, err, map[string]interface{}{"reason": parseErr.Reason})
		return
	}

	switch {
	case services.IsBlocking(err):
		h.RespondWithError(c, http.StatusUnprocessableEntity, "Import step is blocked", err, services.FormatError(err))
	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err, err.Error())
	case services.IsForbidden(err):
		h.RespondWithError(c, http.StatusForbidden, "Access denied to import session", err)
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, notFoundMessage(err), err)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, err.Error(), err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

func notFoundMessage(err error) string {
	if errors.Is(err, services.ErrSessionNotFound) {
		return "Import session not found"
	}
	return err.Error()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
