package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error kinds. Every service error wraps exactly one of these so handlers can
// map them onto transport codes with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// --- Specific Service Errors ---
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	ErrAccountInactive    = fmt.Errorf("%w: account is inactive", ErrForbidden)
	ErrUserNotFound       = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrUsernameExists     = fmt.Errorf("%w: username already exists", ErrConflict)
	ErrInvalidRole        = fmt.Errorf("%w: invalid role", ErrValidation)
	ErrWrongPassword      = fmt.Errorf("%w: current password is incorrect", ErrValidation)

	ErrUnknownPermission = fmt.Errorf("%w: unknown permission", ErrValidation)

	ErrCategoryNotFound  = fmt.Errorf("%w: stock category does not exist", ErrValidation)
	ErrCategoryExists    = fmt.Errorf("%w: stock category already exists", ErrConflict)
	ErrStockItemNotFound = fmt.Errorf("%w: stock item not found", ErrNotFound)
	ErrStockItemInUse    = fmt.Errorf("%w: stock item has batches or transactions; deactivate it instead", ErrConflict)
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrConflict)
	ErrBatchNotFound     = fmt.Errorf("%w: batch not found", ErrNotFound)

	ErrDeliveryNotFound         = fmt.Errorf("%w: delivery not found", ErrNotFound)
	ErrDeliveryAlreadyProcessed = fmt.Errorf("%w: delivery already processed", ErrConflict)
	ErrUnknownDeliveryLine      = fmt.Errorf("%w: delivery item does not belong to this delivery", ErrValidation)

	ErrAlertNotFound = fmt.Errorf("%w: alert not found", ErrNotFound)

	ErrNotificationNotFound = fmt.Errorf("%w: notification not found", ErrNotFound)
	ErrShiftNotFound        = fmt.Errorf("%w: shift not found", ErrNotFound)
	ErrTaskNotFound         = fmt.Errorf("%w: task not found", ErrNotFound)
	ErrTemplateNotFound     = fmt.Errorf("%w: template not found", ErrNotFound)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// validateRequest checks the binding tags of req and folds any failure into ErrValidation.
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
