package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/learnforge/assessment-core/internal/models"
)

// Validator wraps go-playground/validator with the custom rules the request
// DTOs use.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// question_type restricts a field to the supported QuestionType values.
	_ = validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).IsValid()
	})

	return &Validator{validate: validate}
}

// Validate runs struct validation and flattens the result into a single
// error with one fragment per failing field.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return err
	}

	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = fmt.Sprintf("%s: failed %q", fieldName(fe), fe.Tag())
	}
	return fmt.Errorf("validation failed: %s", strings.Join(parts, "; "))
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func fieldName(fe validator.FieldError) string {
	// StructNamespace reads e.g. "QuestionCreateRequest.Points"; keep the leaf.
	ns := fe.StructNamespace()
	if i := strings.LastIndex(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
