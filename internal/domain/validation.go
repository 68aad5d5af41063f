package domain

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/enfty-lab/gateway/pkg/errorx"
	"github.com/enfty-lab/gateway/pkg/xcontext"
	"github.com/go-playground/validator/v10"
)

// NewValidator reports fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

func validateRequest(ctx context.Context, v *validator.Validate, req any) error {
	err := v.StructCtx(ctx, req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		xcontext.Logger(ctx).Errorf("Cannot validate request: %v", err)
		return errorx.Unknown
	}

	fieldErr := fieldErrs[0]
	switch fieldErr.Tag() {
	case "required":
		return errorx.New(errorx.InvalidArgument, "Missing parameter %s", fieldErr.Field())
	case "eth_addr":
		return errorx.New(errorx.InvalidArgument, "Bad request, %s is not a valid address", fieldErr.Field())
	default:
		return errorx.New(errorx.InvalidArgument, "Invalid parameter %s (%s=%s)",
			fieldErr.Field(), fieldErr.Tag(), fieldErr.Param())
	}
}

// sanitize trims the string fields pointed by fields.
func sanitize(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
