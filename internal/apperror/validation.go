package apperror

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FromValidator converts validator failures into a Validation error whose details
// map each failing field to a message.
func FromValidator(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Internal(err, "validation could not run")
	}
	details := make(map[string]string, len(verrs))
	for _, e := range verrs {
		details[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return Validation("Validation failed").WithDetails(details)
}
