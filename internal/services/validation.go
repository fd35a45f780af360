package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("decimalgte0", func(fl validator.FieldLevel) bool {
		f, ok := fl.Field().Interface().(float64)
		return ok && f >= 0
	})
	_ = v.RegisterValidation("decimalgt0", func(fl validator.FieldLevel) bool {
		f, ok := fl.Field().Interface().(float64)
		return ok && f > 0
	})

	return &ValidationHelper{validator: v}
}

// decimalValue lets tags see a decimal as a float for sign checks only.
func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// toValidationError converts validator output into the service's ValidationError.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return invalid(verrs[0].Field(), "failed on '%s' tag", verrs[0].Tag())
	}
	return &ValidationError{Message: err.Error()}
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var (
		verrs validator.ValidationErrors
		verr  *ValidationError
	)
	switch {
	case validationErr == nil:
	case errors.As(validationErr, &verrs):
		errorResp.Details = make(map[string]string)
		for _, err := range verrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	case errors.As(validationErr, &verr) && verr.Field != "":
		errorResp.Details = map[string]string{verr.Field: verr.Message}
	}

	json.NewEncoder(w).Encode(errorResp)
}
