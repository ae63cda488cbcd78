package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchInt(t *testing.T) {
	nowFunc = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { nowFunc = time.Now }()

	validate, _ := newValidator()

	type form struct {
		Year PatchInt `json:"year" validate:"omitempty,atlyear"`
	}

	tests := []struct {
		name      string
		body      string
		wantSet   bool
		wantValid bool
		wantYear  int
		wantErr   bool
	}{
		{name: "absent", body: `{}`},
		{name: "null", body: `{"year":null}`, wantSet: true},
		{name: "value", body: `{"year":2019}`, wantSet: true, wantValid: true, wantYear: 2019},
		{name: "invalid value", body: `{"year":1999}`, wantSet: true, wantValid: true, wantYear: 1999, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var f form
			require.NoError(t, json.Unmarshal([]byte(tc.body), &f))
			assert.Equal(t, tc.wantSet, f.Year.Set)
			assert.Equal(t, tc.wantValid, f.Year.Valid)
			assert.Equal(t, tc.wantYear, f.Year.Int.Int)

			err := validate.Struct(f)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.ErrorAs(t, err, &vErrs)
			assert.Equal(t, "year", vErrs[0].Field())
		})
	}

	assert.Equal(t, PatchInt{Set: true}, PatchIntNull())
	assert.True(t, PatchIntFrom(2020).Valid)
}
