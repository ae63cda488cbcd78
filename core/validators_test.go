package core

import (
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	InitValidators(validate, translator)
	return validate, translator
}

func TestInitValidators(t *testing.T) {
	nowFunc = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { nowFunc = time.Now }()

	validate, translator := newValidator()

	type form struct {
		Name    string `json:"name" validate:"required,notblank"`
		Pincode string `json:"pincode" validate:"omitempty,pincode"`
		Year    int    `json:"year" validate:"omitempty,atlyear"`
	}

	tests := []struct {
		name     string
		form     form
		wantErrs map[string]string
	}{
		{name: "valid", form: form{Name: "DPS", Pincode: "560001", Year: 2018}},
		{name: "required", form: form{}, wantErrs: map[string]string{"name": "this field is required"}},
		{name: "blank", form: form{Name: "   "}, wantErrs: map[string]string{"name": "this field cannot be blank"}},
		{name: "short pincode", form: form{Name: "DPS", Pincode: "5600"}, wantErrs: map[string]string{"pincode": "pincode must be made of 6 digits"}},
		{name: "leading zero pincode", form: form{Name: "DPS", Pincode: "060001"}, wantErrs: map[string]string{"pincode": "pincode must be made of 6 digits"}},
		{name: "year before programme", form: form{Name: "DPS", Year: 2015}, wantErrs: map[string]string{"year": "invalid establishment year"}},
		{name: "year in the future", form: form{Name: "DPS", Year: 2025}, wantErrs: map[string]string{"year": "invalid establishment year"}},
		{name: "current year", form: form{Name: "DPS", Year: 2024}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.Struct(tc.form)
			if tc.wantErrs == nil {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.ErrorAs(t, err, &vErrs)
			got := make(map[string]string, len(vErrs))
			for _, fe := range vErrs {
				got[fe.Field()] = fe.Translate(translator)
			}
			assert.Equal(t, tc.wantErrs, got)
		})
	}
}
