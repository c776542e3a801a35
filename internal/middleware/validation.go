package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/referral-api/internal/model"
)

var customValidators = map[string]validator.Func{
	"slot_status": func(fl validator.FieldLevel) bool {
		return model.SlotStatus(fl.Field().String()).Settable()
	},
	"rsvp_action": func(fl validator.FieldLevel) bool {
		_, ok := model.ParseRSVPAction(fl.Field().String())
		return ok
	},
}

var tagMessages = map[string]string{
	"required":    "is required",
	"email":       "must be a valid email",
	"uuid":        "must be a valid id",
	"slot_status": "must be one of open, held, closed",
	"rsvp_action": "must be one of yes, no, cancel",
}

// RegisterValidators installs the custom tags on gin's validator and reports
// fields by their JSON names
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	for tag, fn := range customValidators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return nil
}

// ValidationMessage turns a binding error into one readable sentence
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}

	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := tagMessages[e.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed %s validation", e.Tag())
			if e.Param() != "" {
				msg = fmt.Sprintf("failed %s=%s validation", e.Tag(), e.Param())
			}
		}
		parts = append(parts, e.Field()+" "+msg)
	}
	return strings.Join(parts, "; ")
}
