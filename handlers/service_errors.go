package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	var writeErr error

	switch {
	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, err.Error(), details)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, err.Error())

	case services.IsTimeoutError(err):
		writeErr = utils.WriteError(w, http.StatusGatewayTimeout, "The model endpoint timed out", details)

	case services.IsExternalError(err):
		writeErr = utils.WriteBadGateway(w, "The model endpoint is unavailable", details)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError writes a 400 for a request that failed struct validation
func HandleValidationError(w http.ResponseWriter, message string, err error, logger *zap.Logger) {
	var details map[string]interface{}
	if fields := utils.GetValidationFields(err); len(fields) > 0 {
		details = make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
	}
	if err := utils.WriteValidationError(w, message, details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
