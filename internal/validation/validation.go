package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"localeloop/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterValidation("hasupper", hasRune(unicode.IsUpper))
	validate.RegisterValidation("haslower", hasRune(unicode.IsLower))
	validate.RegisterValidation("hasdigit", hasRune(unicode.IsDigit))
}

func hasRune(pred func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), pred) >= 0
	}
}

// 以 "字段路径.tag" 为 key，字段路径去掉根结构体名和下标
var messages = map[string]string{
	"Title.required":       "Title is required",
	"Title.max":            "Title must be at most 100 characters",
	"Description.required": "Description is required",
	"Description.max":      "Description must be at most 500 characters",
	"City.required":        "City is required",
	"Places.min":           "At least one place is required",

	"Places.Name.required":        "Place name is required",
	"Places.Description.required": "Place description is required",
	"Places.Category.required":    "Category is required",
	"Places.MapURL.required":      "Valid Google Maps URL is required",
	"Places.MapURL.url":           "Valid Google Maps URL is required",
	"Places.Latitude.latitude":    "Invalid latitude",
	"Places.Longitude.longitude":  "Invalid longitude",

	"Content.required": "Comment cannot be empty",
	"Content.max":      "Comment too long",
	"LoopID.required":  "Loop ID is required",
	"UserID.required":  "User ID is required",

	"Name.required":     "Name must be at least 2 characters",
	"Name.min":          "Name must be at least 2 characters",
	"Name.max":          "Name must be at most 50 characters",
	"Email.required":    "Invalid email address",
	"Email.email":       "Invalid email address",
	"Password.required": "Password must be at least 8 characters",
	"Password.min":      "Password must be at least 8 characters",
	"Password.hasupper": "Password must contain at least one uppercase letter",
	"Password.haslower": "Password must contain at least one lowercase letter",
	"Password.hasdigit": "Password must contain at least one number",
}

var indexRe = regexp.MustCompile(`\[\d+\]`)

// Struct validates v and reports only the first violated constraint.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Wrap(apperr.ValidationFailed, "Invalid input", err)
	}
	return apperr.Validation(message(verrs[0]))
}

func message(fe validator.FieldError) string {
	path := indexRe.ReplaceAllString(fe.StructNamespace(), "")
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}
	if msg, ok := messages[path+"."+fe.Tag()]; ok {
		return msg
	}
	return fe.Field() + " is invalid"
}
