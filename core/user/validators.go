package user

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/atlportal/backend/core"
)

var (
	metaKeysTag   = "metakeys"
	metaKeysText  = "metadata keys may only contain letters, digits and underscores"
	metaKeysRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(metaKeysTag, metaKeysValidation)
	core.RegisterCustomTranslation(validate, translator, metaKeysTag, metaKeysText)
}

// Custom Validators

// metaKeysValidation checks that every key of a MetaData is a plain identifier and every value a scalar.
func metaKeysValidation(fl validator.FieldLevel) bool {
	md, ok := fl.Field().Interface().(MetaData)
	if !ok {
		return false
	}
	for k, v := range md {
		if !metaKeysRegex.MatchString(k) {
			return false
		}
		switch v.(type) {
		case nil, string, bool, float64, int, int64:
		default:
			return false
		}
	}
	return true
}
