package core

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	nowFunc = time.Now // mockable

	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	pincodeTag   = "pincode"
	pincodeText  = "pincode must be made of 6 digits"
	pincodeRegex = regexp.MustCompile(`^[1-9][0-9]{5}$`)

	atlYearTag  = "atlyear"
	atlYearText = "invalid establishment year"
	atlYearMin  = 2016 // first ATL labs

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterCustomTypeFunc(patchIntValue, PatchInt{})

	// register custom validators
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(pincodeTag, pincodeValidation)
	RegisterCustomTranslation(validate, translator, pincodeTag, pincodeText)

	_ = validate.RegisterValidation(atlYearTag, atlYearValidation)
	RegisterCustomTranslation(validate, translator, atlYearTag, atlYearText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// notBlankValidation rejects strings made only of whitespace.
func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// pincodeValidation only allows 6-digit postal index numbers.
func pincodeValidation(fl validator.FieldLevel) bool {
	return pincodeRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

// atlYearValidation checks that a lab establishment year lies between the programme launch and now.
func atlYearValidation(fl validator.FieldLevel) bool {
	year := int(fl.Field().Int())
	return year >= atlYearMin && year <= nowFunc().Year()
}
