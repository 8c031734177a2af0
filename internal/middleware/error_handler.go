package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"roles-service/internal/apperrors"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails contains the error information
type ErrorDetails struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	TraceID   string                 `json:"trace_id"`
}

// Common error codes
const (
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeConfigurationError = "CONFIGURATION_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorHandler maps service errors onto the standard error envelope.
// Validation, conflict, configuration and retryable errors each carry
// their own status; anything unrecognized is a 500.
func ErrorHandler(logger *logrus.Logger) gin.HandlerFunc {
	log := logger.WithField("component", "error-handler")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		traceID, exists := c.Get("trace_id")
		if !exists {
			traceID = uuid.New().String()
		}

		statusCode := http.StatusInternalServerError
		details := ErrorDetails{
			Code:      ErrCodeInternalServer,
			Message:   "An unexpected error occurred",
			Timestamp: time.Now().UTC(),
			TraceID:   traceID.(string),
		}

		switch {
		case apperrors.IsValidation(err):
			statusCode = http.StatusBadRequest
			details.Code = ErrCodeValidationFailed
			details.Message = err.Error()
		case apperrors.IsConflict(err):
			statusCode = http.StatusConflict
			details.Code = ErrCodeConflict
			details.Message = err.Error()
		case apperrors.IsConfiguration(err):
			// Misconfigured role catalog, not caller error. Keep the
			// detail out of the response.
			details.Code = ErrCodeConfigurationError
			details.Message = "Role configuration error"
		case apperrors.IsRetryable(err):
			statusCode = http.StatusServiceUnavailable
			details.Code = ErrCodeServiceUnavailable
			details.Message = err.Error()
		}

		entry := log.WithFields(logrus.Fields{
			"trace_id": details.TraceID,
			"code":     details.Code,
			"path":     c.Request.URL.Path,
			"method":   c.Request.Method,
		})
		if statusCode >= http.StatusInternalServerError {
			entry.WithError(err).Error("Request failed")
		} else {
			entry.WithError(err).Warn("Request rejected")
		}

		c.JSON(statusCode, ErrorResponse{Error: details})
	}
}

// AbortNotFound writes a 404 envelope for a missing resource.
func AbortNotFound(c *gin.Context, resource string) {
	traceID := c.GetString("trace_id")
	if traceID == "" {
		traceID = uuid.New().String()
	}
	c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
		Error: ErrorDetails{
			Code:      ErrCodeNotFound,
			Message:   resource + " not found",
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
	})
}

// AbortBadRequest writes a 400 envelope for a malformed request.
func AbortBadRequest(c *gin.Context, message string) {
	traceID := c.GetString("trace_id")
	if traceID == "" {
		traceID = uuid.New().String()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetails{
			Code:      ErrCodeBadRequest,
			Message:   message,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
	})
}
