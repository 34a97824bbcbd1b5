package app

import (
	"errors"
	"fmt"

	"github.com/PeacockIllustrated/project-manager/internal/invoice"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrReadOnly       = errors.New("sample data is read-only")
	ErrNotFound       = errors.New("not found")
	ErrNotReady       = errors.New("data not loaded yet")
	ErrPersistence    = errors.New("persistence failed")
	ErrPartialCascade = errors.New("cascade delete partially failed")
	ErrUnsupported    = errors.ErrUnsupported
	ErrExtraction     = invoice.ErrExtraction
)

type DomainError struct {
	Kind    error
	Code    string
	Message string
	Details any
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func domainError(kind error, code, message string, details any, cause error) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Details: details,
		Err:     cause,
	}
}

// FieldError names one rejected field in a ValidationError.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Value any    `json:"value,omitempty"`
}

func validationError(message string, fields ...FieldError) *DomainError {
	var details any
	if len(fields) > 0 {
		details = fields
	}
	return domainError(ErrValidation, "VALIDATION_ERROR", message, details, nil)
}

func readOnlyError(op, collection, id string) *DomainError {
	return domainError(ErrReadOnly, "READ_ONLY", fmt.Sprintf("cannot %s sample %s %q", op, collection, id), nil, nil)
}

func notFoundError(collection, id string, cause error) *DomainError {
	return domainError(ErrNotFound, "NOT_FOUND", fmt.Sprintf("%s %q not found", collection, id), nil, cause)
}

func persistenceError(op, collection, id string, cause error) *DomainError {
	return domainError(ErrPersistence, "PERSISTENCE_ERROR", fmt.Sprintf("%s %s %q failed", op, collection, id), nil, cause)
}

// CascadeDetails reports how far blob deletion got before a cascade gave up.
type CascadeDetails struct {
	ProjectID string            `json:"projectId"`
	Deleted   []string          `json:"deletedPaths"`
	Failed    map[string]string `json:"failedPaths"`
}

func cascadeError(details CascadeDetails, cause error) *DomainError {
	return domainError(ErrPartialCascade, "PARTIAL_CASCADE_FAILURE",
		fmt.Sprintf("deleting project %q stopped: %d of %d documents could not be removed",
			details.ProjectID, len(details.Failed), len(details.Failed)+len(details.Deleted)),
		details, cause)
}
