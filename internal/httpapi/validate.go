package httpapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/Cray-HPE/ims-sub000/internal/apierrors"
)

// validate is shared across handlers; validator.Validate is safe for
// concurrent use once built, matching the ecosystem convention of
// constructing one instance per process.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs struct-tag validation on v, mapping any failure to
// a ValidationFailure problem (§7: "schema errors").
func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return apierrors.Wrap(apierrors.KindValidationFailure, "request body failed schema validation", err)
	}
	return nil
}
