package content

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var sectionKeyPattern = regexp.MustCompile(`^[a-z0-9_]{1,100}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names so messages match the request fields
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("section_key", func(fl validator.FieldLevel) bool {
		return sectionKeyPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	return v
}

type postFields struct {
	Title           string `json:"title" validate:"required,max=255"`
	Description     string `json:"description" validate:"required"`
	CategoryID      int64  `json:"category_id" validate:"required,gt=0"`
	Tags            string `json:"tags" validate:"max=1000"`
	MetaTitle       string `json:"meta_title" validate:"max=255"`
	MetaDescription string `json:"meta_description" validate:"max=500"`
}

type categoryFields struct {
	Name string `json:"name" validate:"required,max=100"`
}

type sectionFields struct {
	Name    string  `json:"section_name" validate:"section_key"`
	Content *string `json:"content" validate:"required"`
}

// check validates v and converts the first failure into a *ValidationError.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalid("", err.Error())
	}

	fe := fieldErrs[0]
	return invalid(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt":
		return fe.Field() + " must be a positive number"
	case "section_key":
		return "section name must be 1-100 characters of a-z, 0-9 or _"
	default:
		return fe.Field() + " is invalid"
	}
}

// ValidSectionName reports whether name can key a website section.
func ValidSectionName(name string) bool {
	return sectionKeyPattern.MatchString(name)
}
