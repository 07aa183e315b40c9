package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"volcast/internal/crossval"
	"volcast/internal/regression"
	"volcast/internal/volatility"
)

// newValidator builds the struct validator with the domain validators
// registered. yaml tag names appear in error messages instead of Go
// field names.
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("family", isModelFamily)
	v.RegisterValidation("cvmode", isCrossValMode)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// isModelFamily accepts any name ParseFamily accepts, including aliases.
func isModelFamily(fl validator.FieldLevel) bool {
	_, err := regression.ParseFamily(fl.Field().String())
	return err == nil
}

// isCrossValMode accepts the fold partitioner mode names.
func isCrossValMode(fl validator.FieldLevel) bool {
	_, err := crossval.ParseMode(fl.Field().String())
	return err == nil
}

// validate checks the assembled configuration, reporting the first failed
// field as a field-scoped error.
func (c *Config) validate() error {
	v := newValidator()
	if err := v.Struct(c); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok || len(errs) == 0 {
			return err
		}
		fe := errs[0]
		return &volatility.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
			Value:   fmt.Sprintf("%v", fe.Value()),
		}
	}
	return nil
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	tag := err.Tag()
	param := err.Param()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Replace(param, " ", ", ", -1))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	case "family":
		return fmt.Sprintf("%s must be a known model family", field)
	case "cvmode":
		return fmt.Sprintf("%s must be a cross-validation mode", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
