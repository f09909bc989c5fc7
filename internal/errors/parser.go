package errors

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// ErrorInfo is an API code plus a user-facing message
type ErrorInfo struct {
	Code    string
	Message string
}

// ParseError converts storage and network errors into an API error without
// leaking driver details. context names the resource, e.g. "order".
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{Code: InternalServerError, Message: "Something went wrong"}
	}

	lower := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrorInfo{Code: ResourceNotFound, Message: notFoundMessage(context)}
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(lower, "duplicate key"),
		strings.Contains(lower, "unique constraint"):
		return ErrorInfo{Code: ResourceAlreadyExists, Message: fmt.Sprintf("This %s already exists", orDefault(context, "record"))}
	case errors.Is(err, gorm.ErrForeignKeyViolated), strings.Contains(lower, "foreign key constraint"):
		return ErrorInfo{Code: ResourceConflict, Message: fmt.Sprintf("The %s references data that does not exist", orDefault(context, "record"))}
	case strings.Contains(lower, "violates not-null constraint"), strings.Contains(lower, "not null constraint"):
		return ErrorInfo{Code: ValidationRequired, Message: "A required value is missing"}
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "timeout"):
		return ErrorInfo{Code: InternalExternalAPI, Message: "An upstream service is unavailable. Please try again shortly"}
	}

	return ErrorInfo{Code: InternalDatabaseError, Message: "Something went wrong. Please try again shortly"}
}

func notFoundMessage(context string) string {
	if context == "" {
		return "The requested resource was not found"
	}
	return fmt.Sprintf("%s not found", strings.ToUpper(context[:1])+context[1:])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// FieldErrors flattens validator errors into json-field -> message
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe)] = FieldMessage(fe.Tag(), fe.Param())
	}
	return fields
}

// fieldName prefers the json name registered on the validator, falling back
// to snake-casing the Go field name.
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name != fe.StructField() {
		return name
	}
	return toSnake(name)
}

// FieldMessage renders a validator tag as a readable message
func FieldMessage(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "pincode":
		return "must be a 6-digit postal code"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", param)
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", param)
	case "gt":
		return fmt.Sprintf("must be greater than %s", param)
	case "oneof":
		return fmt.Sprintf("must be one of: %s", param)
	default:
		return "is invalid"
	}
}

// JSONTagName is registered with validators so errors use wire field names
func JSONTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
