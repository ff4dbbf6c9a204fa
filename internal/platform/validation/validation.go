// Package validation checks request payloads with struct tags and turns
// failures into 400 responses with readable messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/asilo/asilo/internal/platform/apierr"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var (
	validate       *validator.Validate
	nationalIDExpr = regexp.MustCompile(`^[0-9]{10}$`)
	// now is swapped in tests.
	now = time.Now
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister("cedula", func(fl validator.FieldLevel) bool {
		return nationalIDExpr.MatchString(fl.Field().String())
	})
	// bcrypt only reads the first 72 bytes of a password.
	mustRegister("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})
	mustRegister("pastdate", func(fl validator.FieldLevel) bool {
		d, err := time.Parse(DateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		return !d.After(now())
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

var messages = map[string]string{
	"required":  "El campo '%s' es requerido",
	"email":     "El campo '%s' debe ser un correo válido",
	"min":       "El campo '%s' debe tener al menos %s caracteres",
	"max":       "El campo '%s' no debe exceder %s caracteres",
	"oneof":     "El campo '%s' debe ser uno de: %s",
	"cedula":    "El campo '%s' debe tener exactamente 10 dígitos",
	"pastdate":  "El campo '%s' debe ser una fecha válida (AAAA-MM-DD) no futura",
	"bcryptlen": "El campo '%s' no debe exceder 72 bytes",
}

func parseMessage(e validator.FieldError) string {
	msg, ok := messages[e.Tag()]
	if !ok {
		return fmt.Sprintf("El campo '%s' no es válido", e.Field())
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, e.Field(), e.Param())
	}
	return fmt.Sprintf(msg, e.Field())
}

// ValidateStruct returns json field name to message for every failed rule.
func ValidateStruct(s any) map[string]string {
	out := make(map[string]string)
	err := validate.Struct(s)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			out[e.Field()] = parseMessage(e)
		}
	}
	return out
}

// Struct returns an apierr validation error naming the failed fields, or
// nil.
func Struct(s any) error {
	fields := ValidateStruct(s)
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fields[k])
	}
	return apierr.Validation(strings.Join(msgs, "; "))
}

// NationalID reports whether s is a 10-digit national id.
func NationalID(s string) bool {
	return nationalIDExpr.MatchString(s)
}

// Echo adapts the package to echo.Validator.
type Echo struct{}

func (Echo) Validate(i interface{}) error {
	return Struct(i)
}
