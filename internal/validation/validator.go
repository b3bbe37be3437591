package validation

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps JSON field paths (e.g. "classes[0].section") to messages.
type FieldErrors map[string][]string

// ValidationError implements a DomainProblem (from internal/httpx) without importing it directly,
// by providing the required method set. This avoids cycles and lets httpx.ToProblem format it.
type ValidationError struct {
	summary string
	fields  FieldErrors
}

func (e *ValidationError) Error() string { return e.summary }

// Fields returns the per-field messages.
func (e *ValidationError) Fields() FieldErrors { return e.fields }

// Domain-problem methods (structural typing against httpx.DomainProblem)

func (e *ValidationError) ProblemCode() string    { return "ErrValidation" }
func (e *ValidationError) ProblemStatus() int     { return 400 }
func (e *ValidationError) ProblemTitle() string   { return "Validation error" }
func (e *ValidationError) ProblemDetail() string  { return e.summary }
func (e *ValidationError) ProblemTypeURI() string { return "urn:problem:validation-error" }
func (e *ValidationError) ProblemContext() any    { return map[string]any{"fields": e.fields} }

// validate is safe for concurrent use and caches struct metadata.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.Split(fld.Tag.Get("json"), ",")[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return lowerFirst(fld.Name)
		}
		return name
	})

	// weekdays: meeting days such as "MWF" or "TR", each day at most once.
	_ = v.RegisterValidation("weekdays", func(fl validator.FieldLevel) bool {
		days := strings.ToUpper(fl.Field().String())
		if days == "" {
			return false
		}
		seen := map[rune]bool{}
		for _, d := range days {
			if !strings.ContainsRune("MTWRFSU", d) || seen[d] {
				return false
			}
			seen[d] = true
		}
		return true
	})

	// clock: a 24h time of day, "09:00".
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})

	return v
}

// ValidateStruct validates v according to its `validate` tags. On failure it
// returns a *ValidationError whose summary names the first failing field, for
// example "email must be a valid email, and 2 other errors".
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{summary: "validation failed", fields: FieldErrors{}}
	}

	fields := make(FieldErrors)
	for _, fe := range verrs {
		path := fieldPath(fe)
		fields[path] = append(fields[path], messageForTag(fe))
	}
	return &ValidationError{summary: summarize(fields), fields: fields}
}

// fieldPath drops the root struct name from the namespace, so
// "Body.classes[0].section" becomes "classes[0].section".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "eqfield":
		return fmt.Sprintf("must match %s", lowerFirst(fe.Param()))
	case "excludes":
		return fmt.Sprintf("must not contain %q", fe.Param())
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "weekdays":
		return "must list meeting days using M, T, W, R, F, S and U"
	case "clock":
		return "must be a time of day such as 09:30"
	default:
		return "is invalid"
	}
}

// summarize names the alphabetically first field so the detail is stable.
func summarize(fields FieldErrors) string {
	names := make([]string, 0, len(fields))
	total := 0
	for name, msgs := range fields {
		if len(msgs) > 0 {
			names = append(names, name)
			total += len(msgs)
		}
	}
	if len(names) == 0 {
		return "validation failed"
	}
	slices.Sort(names)

	first := names[0]
	summary := first + " " + fields[first][0]
	if others := total - 1; others > 0 {
		summary += fmt.Sprintf(", and %d other error%s", others, plural(others))
	}
	return summary
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
