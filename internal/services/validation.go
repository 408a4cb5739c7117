package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/astroline/backend/internal/models"
)

// Response is the uniform envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendSuccessResponse writes the success envelope.
func SendSuccessResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

// SendErrorResponse sends a JSON error response, with per-field details when
// a validation error is supplied.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := Response{Success: false, Message: message}
	var verrs validator.ValidationErrors
	if validationErr != nil && errors.As(validationErr, &verrs) {
		details := make(map[string]string)
		for _, err := range verrs {
			details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
		resp.Details = details
	}

	json.NewEncoder(w).Encode(resp)
}

// SendDomainError maps a domain error to its HTTP status and writes the
// failure envelope. Unrecognized errors become an opaque 500 but are logged
// with full context.
func SendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		SendErrorResponse(w, "Unauthenticated", http.StatusUnauthorized, nil)
	case errors.Is(err, models.ErrUnauthorized):
		SendErrorResponse(w, "You are not a party to this session", http.StatusForbidden, nil)
	case errors.Is(err, models.ErrNotFound):
		SendErrorResponse(w, "Not found", http.StatusNotFound, nil)
	case errors.Is(err, models.ErrInsufficientBalance):
		SendErrorResponse(w, "Insufficient balance", http.StatusBadRequest, nil)
	case errors.Is(err, models.ErrRateNotConfigured):
		SendErrorResponse(w, "Astrologer has no rate for this session type", http.StatusBadRequest, nil)
	case errors.Is(err, models.ErrAstrologerNotAvailable):
		SendErrorResponse(w, "Astrologer is not available", http.StatusBadRequest, nil)
	case errors.Is(err, models.ErrStateConflict):
		SendErrorResponse(w, "A concurrent update won; refresh the session state", http.StatusConflict, nil)
	default:
		if ste, ok := models.IsInvalidTransition(err); ok {
			// Surface the authoritative state so the client can resync its
			// view instead of blindly retrying.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(Response{
				Success: false,
				Message: ste.Error(),
				Details: map[string]string{"currentState": ste.Current},
			})
			return
		}
		log.Printf("[API] Unexpected error: %v", err)
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
	}
}
