package core

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"weekplan/internal/types"
)

// Validator wraps go-playground/validator with domain-specific rules
// registered for request payloads.
type Validator struct {
	logger   *slog.Logger
	validate *validator.Validate
}

// NewValidator creates a new Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	// Domain enums. Each tag accepts the empty string so optional fields
	// can be omitted; required-ness is expressed separately.
	_ = v.RegisterValidation("intensity", func(fl validator.FieldLevel) bool {
		_, ok := types.ParseIntensity(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("time_of_day", func(fl validator.FieldLevel) bool {
		_, ok := types.ParseTimeOfDay(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("temp_unit", func(fl validator.FieldLevel) bool {
		_, ok := types.ParseTemperatureUnit(fl.Field().String())
		return ok
	})

	return &Validator{
		logger:   logger,
		validate: v,
	}
}

// ValidateStruct runs struct-tag validation on the given value and translates
// validator errors into a *types.AppError suitable for API responses. The
// first failing field determines the error code; all failing fields are
// reported in the Details map as field -> violated rule.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		// InvalidValidationError or similar: a programming error, not a
		// client error.
		v.logger.Error("validator received an invalid value", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed unexpectedly", err)
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}

	code := codeForTag(verrs[0].Tag())
	return types.NewAppErrorWithDetails(code, "request validation failed", err, details)
}

// codeForTag maps a validator tag to the domain error code clients receive.
func codeForTag(tag string) types.ErrorCode {
	switch tag {
	case "required":
		return types.ErrCodeValidationMissingField
	case "min", "max", "gte", "lte":
		return types.ErrCodeValidationScoreRange
	case "gt":
		return types.ErrCodeValidationDuration
	case "temp_unit":
		return types.ErrCodeValidationInvalidUnit
	case "intensity", "time_of_day", "oneof":
		return types.ErrCodeValidationEnum
	default:
		return types.ErrCodeValidationInvalidJSON
	}
}
