package planner

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"

	"studyplan/internal/apperr"
	"studyplan/internal/datetime"
	"studyplan/internal/model"
)

var (
	// custom validation tags & texts
	isoDateTag  = "isodate"
	isoDateText = "{0} must be an ISO 8601 date"

	notBlankTag  = "notblank"
	notBlankText = "{0} cannot be empty"

	categoryTag  = "category"
	categoryText = "{0} must be one of lecture, exercise, lab, other"

	requiredTag  = "required"
	requiredText = "{0} is required"
)

type inputValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newInputValidator() *inputValidator {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(isoDateTag, func(fl validator.FieldLevel) bool {
		return datetime.Valid(fl.Field().String())
	})
	registerTranslation(validate, translator, isoDateTag, isoDateText, false)

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	registerTranslation(validate, translator, notBlankTag, notBlankText, false)
	_ = validate.RegisterValidation(categoryTag, func(fl validator.FieldLevel) bool {
		_, ok := model.Category(fl.Field().String()).Color()
		return ok
	})
	registerTranslation(validate, translator, categoryTag, categoryText, false)

	registerTranslation(validate, translator, requiredTag, requiredText, true)

	return &inputValidator{validate: validate, translator: translator}
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates in and converts failures into an apperr.ValidationError.
func (v *inputValidator) Struct(in any) error {
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Error: fe.Translate(v.translator)})
	}
	return apperr.NewValidationError(errors.New("invalid input"), fields...)
}

// parseDate parses a validated date field. A failure here means the caller
// skipped validation, so it is still reported as a validation error.
func parseDate(field, s string) (time.Time, error) {
	t, err := datetime.Parse(s)
	if err != nil {
		return t, apperr.Invalid(field, err.Error())
	}
	return t, nil
}
