package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules and reports JSON field
// names in validation errors. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("future", func(fl validator.FieldLevel) bool {
			t, ok := fl.Field().Interface().(time.Time)
			return ok && t.After(time.Now())
		})
	})
}

// BindJSON decodes and validates the request body into req. On failure it
// writes a 400 response and returns false.
func BindJSON(c *gin.Context, req any) bool {
	RegisterValidators()
	if err := c.ShouldBindJSON(req); err != nil {
		Fail(c, http.StatusBadRequest, "validation_error", describe(err))
		return false
	}
	return true
}

// BindQuery decodes and validates query parameters into req.
func BindQuery(c *gin.Context, req any) bool {
	RegisterValidators()
	if err := c.ShouldBindQuery(req); err != nil {
		Fail(c, http.StatusBadRequest, "validation_error", describe(err))
		return false
	}
	return true
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", field)
	case "min":
		return fmt.Sprintf("%q length must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%q length must be less than or equal to %s characters long", field, fe.Param())
	case "email":
		return fmt.Sprintf("%q must be a valid email", field)
	case "eqfield":
		return fmt.Sprintf("%q must match %q", field, strings.ToLower(fe.Param()[:1])+fe.Param()[1:])
	case "future":
		return fmt.Sprintf("%q must be in the future", field)
	case "len", "hexadecimal":
		return fmt.Sprintf("%q must be a 24 character hex id", field)
	default:
		return fmt.Sprintf("%q failed the %q rule", field, fe.Tag())
	}
}
