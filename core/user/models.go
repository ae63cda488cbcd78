package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atlportal/backend/core"
)

// MetaData is the open-ended key-value bag attached to a User (phone number, designation...).
type MetaData map[string]interface{}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	UserMetaData MetaData  `json:"user_meta_data"`
	SchoolIDs    []string  `json:"school_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Identity is the payload identifying a User by email, as submitted for a school role or to the users API.
// Nil fields are left untouched when the User already exists.
type Identity struct {
	Email        string   `json:"email" validate:"required,email"`
	FirstName    *string  `json:"first_name" validate:"omitempty,notblank"`
	LastName     *string  `json:"last_name"`
	UserMetaData MetaData `json:"user_meta_data" validate:"omitempty,metakeys"`
}

func (idt *Identity) Clean() {
	idt.Email = core.CleanString(idt.Email, true /* lower */)
	if idt.FirstName != nil {
		fn := core.CleanString(*idt.FirstName)
		idt.FirstName = &fn
	}
	if idt.LastName != nil {
		ln := core.CleanString(*idt.LastName)
		idt.LastName = &ln
	}
}

func (idt *Identity) Validate(validate *validator.Validate) error {
	idt.Clean()
	return validate.Struct(idt)
}

// NewUser builds the User to create from the Identity. The first name is mandatory for new users.
func (idt Identity) NewUser(field string) (User, error) {
	if idt.FirstName == nil || *idt.FirstName == "" {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: field + "first_name", Error: errFirstNameRequired})
	}
	now := nowFunc().UTC()
	usr := User{
		Email:        idt.Email,
		FirstName:    *idt.FirstName,
		UserMetaData: idt.UserMetaData,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if idt.LastName != nil {
		usr.LastName = *idt.LastName
	}
	if usr.UserMetaData == nil {
		usr.UserMetaData = MetaData{}
	}
	return usr, nil
}

// ApplyTo overwrites the fields of usr provided by the Identity.
func (idt Identity) ApplyTo(usr User) User {
	if idt.FirstName != nil {
		usr.FirstName = *idt.FirstName
	}
	if idt.LastName != nil {
		usr.LastName = *idt.LastName
	}
	if idt.UserMetaData != nil {
		usr.UserMetaData = idt.UserMetaData
	}
	usr.UpdatedAt = nowFunc().UTC()
	return usr
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search   string `query:"search"`
	SchoolID string `query:"school_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.SchoolID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.SchoolID = core.CleanString(qf.SchoolID)
}

// OrderingFields maps the API ordering fields to storage columns.
var OrderingFields = map[string]string{
	"email":      "email",
	"first_name": "first_name",
	"last_name":  "last_name",
	"created_at": "created_at",
}
