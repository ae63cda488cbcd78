package core

import (
	"reflect"

	"github.com/volatiletech/null/v8"
)

// PatchInt is a nullable int field of a partial update.
// Set tells an absent field (keep the stored value) from an explicit null (clear it).
type PatchInt struct {
	null.Int
	Set bool
}

func PatchIntFrom(i int) PatchInt { return PatchInt{Int: null.IntFrom(i), Set: true} }

// PatchIntNull clears the stored value.
func PatchIntNull() PatchInt { return PatchInt{Set: true} }

func (p *PatchInt) UnmarshalJSON(data []byte) error {
	p.Set = true
	return p.Int.UnmarshalJSON(data)
}

// patchIntValue exposes the int of a valid PatchInt to the validator; absent and null values are empty.
func patchIntValue(field reflect.Value) interface{} {
	if p, ok := field.Interface().(PatchInt); ok && p.Valid {
		return p.Int.Int
	}
	return nil
}
