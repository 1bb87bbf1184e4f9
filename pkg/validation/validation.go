// Package validation runs the client-side form checks. Failures are returned
// as perrors validation errors and never reach the network.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/curaious/ors/internal/perrors"
	"github.com/curaious/ors/pkg/fleet"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// report json field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return fleet.Role(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("grade", func(fl validator.FieldLevel) bool {
			return fleet.Grade(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("score", func(fl validator.FieldLevel) bool {
			return fleet.ValidScore(fl.Field().String())
		})

		validate = v
	})
	return validate
}

// Struct validates s and maps every failing field to a user-facing message.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return perrors.NewErrInvalidRequest("validation failed", err)
	}

	fields := make(map[string]interface{}, len(verrs))
	first := ""
	for _, fe := range verrs {
		msg := message(fe)
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = msg
		}
		if first == "" {
			first = msg
		}
	}
	return perrors.NewErrValidation(first, fields)
}

func message(fe validator.FieldError) string {
	switch fe.Field() {
	case "email":
		if fe.Tag() == "required" {
			return "Email is required"
		}
		return "Invalid email format"
	case "password":
		return "Password must be at least 6 characters"
	case "username":
		return "Full name must be at least 5 characters"
	case "role":
		return "Please select a role"
	case "vehicle":
		return "Vehicle is required"
	case "roadWorthinessScore":
		return "Roadworthiness score must be a number, optionally followed by %"
	case "overallTrafficScore":
		return "Traffic score must be one of A, B, C or Failed"
	}
	return fmt.Sprintf("%s failed the %q check", fe.Field(), fe.Tag())
}
