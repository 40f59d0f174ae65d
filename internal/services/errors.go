package services

import (
	"errors"

	"github.com/SAP-F-2025/vrp-import-service/internal/duplicates"
	apperrors "github.com/SAP-F-2025/vrp-import-service/internal/errors"
	"github.com/SAP-F-2025/vrp-import-service/internal/locations"
	"github.com/SAP-F-2025/vrp-import-service/internal/mapping"
	"github.com/SAP-F-2025/vrp-import-service/internal/wizard"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrForbidden = errors.New("forbidden - session belongs to another user")

	// Import session errors
	ErrSessionNotFound   = errors.New("import session not found")
	ErrSessionActive     = errors.New("an import session is already active for this user")
	ErrSessionTerminated = errors.New("import session has already finished")
	ErrInvalidTransition = wizard.ErrInvalidTransition
	ErrSessionLocked     = wizard.ErrLocked
	ErrNothingToUndo     = wizard.ErrNothingToUndo
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// BlockingError names the rows and fields a user must act on before moving on
type BlockingError = wizard.BlockingError

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, duplicates.ErrNoMatch) ||
		errors.Is(err, locations.ErrNoResolution)
}

// IsForbidden checks if error represents an access violation
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, mapping.ErrUnknownColumn) ||
		errors.Is(err, mapping.ErrUnknownField) ||
		errors.Is(err, duplicates.ErrInvalidResolution) ||
		errors.Is(err, locations.ErrNoLocationID) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

// IsParse checks if the upload itself could not be parsed
func IsParse(err error) bool {
	return apperrors.IsParseError(err)
}

// IsBlocking checks if a wizard step still needs user action
func IsBlocking(err error) bool {
	var be *BlockingError
	return errors.As(err, &be)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrSessionActive) ||
		errors.Is(err, ErrSessionTerminated) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrSessionLocked) ||
		errors.Is(err, ErrNothingToUndo)
}
