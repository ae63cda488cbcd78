package school

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/location"
	"github.com/atlportal/backend/core/user"
)

type Address struct {
	ID           string         `json:"id"`
	AddressLine1 string         `json:"address_line1"`
	AddressLine2 null.String    `json:"address_line2"`
	Pincode      string         `json:"pincode"`
	CityID       int            `json:"city_id"`
	City         *location.City `json:"city,omitempty"`
}

type School struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	IsATL                bool        `json:"is_ATL"`
	ATLEstablishmentYear null.Int    `json:"ATL_establishment_year"`
	AddressID            string      `json:"address_id"`
	Address              Address     `json:"address"`
	PrincipalID          null.String `json:"principal_id"`
	CorrespondentID      null.String `json:"correspondent_id"`
	InChargeID           null.String `json:"in_charge_id"`
	Syllabus             []string    `json:"syllabus"`
	WebsiteURL           string      `json:"website_url"`
	PaidSubscription     bool        `json:"paid_subscription"`
	SocialLinks          []string    `json:"social_links"`
	Users                []user.User `json:"users"`
	CreatedAt            time.Time   `json:"created_at"` // UTC
	UpdatedAt            time.Time   `json:"updated_at"` // UTC
}

func (sch School) roleID(role Role) null.String {
	switch role {
	case RolePrincipal:
		return sch.PrincipalID
	case RoleCorrespondent:
		return sch.CorrespondentID
	case RoleInCharge:
		return sch.InChargeID
	}
	return null.String{}
}

func (sch *School) setRoleID(role Role, id null.String) {
	switch role {
	case RolePrincipal:
		sch.PrincipalID = id
	case RoleCorrespondent:
		sch.CorrespondentID = id
	case RoleInCharge:
		sch.InChargeID = id
	}
}

// HasUser reports whether the User with id is a member of the School.
func (sch School) HasUser(id string) bool {
	for _, u := range sch.Users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (sch School) user(id string) (user.User, bool) {
	for _, u := range sch.Users {
		if u.ID == id {
			return u, true
		}
	}
	return user.User{}, false
}

// NewAddress contains information needed to create the Address of a new School.
type NewAddress struct {
	AddressLine1 string `json:"address_line1" validate:"required,notblank"`
	AddressLine2 string `json:"address_line2"`
	Pincode      string `json:"pincode" validate:"required,pincode"`
	CityID       int    `json:"city_id" validate:"required,gt=0"`
}

func (na *NewAddress) Clean() {
	na.AddressLine1 = core.CleanString(na.AddressLine1)
	na.AddressLine2 = core.CleanString(na.AddressLine2)
	na.Pincode = core.CleanString(na.Pincode)
}

func (na NewAddress) address() Address {
	return Address{
		AddressLine1: na.AddressLine1,
		AddressLine2: null.NewString(na.AddressLine2, na.AddressLine2 != ""),
		Pincode:      na.Pincode,
		CityID:       na.CityID,
	}
}

// NewSchool contains information needed to register a new School.
type NewSchool struct {
	Name                 string         `json:"name" validate:"required,notblank"`
	IsATL                bool           `json:"is_ATL"`
	ATLEstablishmentYear *int           `json:"ATL_establishment_year" validate:"omitempty,atlyear"`
	Syllabus             []string       `json:"syllabus"`
	WebsiteURL           string         `json:"website_url" validate:"omitempty,url"`
	PaidSubscription     bool           `json:"paid_subscription"`
	SocialLinks          []string       `json:"social_links" validate:"omitempty,dive,url"`
	Address              NewAddress     `json:"address"`
	Principal            *user.Identity `json:"principal"`
	Correspondent        *user.Identity `json:"correspondent"`
	InCharge             *user.Identity `json:"in_charge"`
}

func (ns *NewSchool) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Syllabus = core.CleanStringSet(ns.Syllabus)
	ns.WebsiteURL = core.CleanString(ns.WebsiteURL)
	ns.SocialLinks = core.CleanStringList(ns.SocialLinks)
	ns.Address.Clean()
	for _, idt := range []*user.Identity{ns.Principal, ns.Correspondent, ns.InCharge} {
		if idt != nil {
			idt.Clean()
		}
	}
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Clean()
	return validate.Struct(ns)
}

func (ns NewSchool) identity(role Role) *user.Identity {
	return roleIdentity(role, ns.Principal, ns.Correspondent, ns.InCharge)
}

func (ns NewSchool) school(addr Address) School {
	now := nowFunc().UTC()
	return School{
		Name:                 ns.Name,
		IsATL:                ns.IsATL,
		ATLEstablishmentYear: null.IntFromPtr(ns.ATLEstablishmentYear),
		AddressID:            addr.ID,
		Address:              addr,
		Syllabus:             ns.Syllabus,
		WebsiteURL:           ns.WebsiteURL,
		PaidSubscription:     ns.PaidSubscription,
		SocialLinks:          ns.SocialLinks,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// UpdateAddress is a partial Address patch: nil fields keep their stored value.
// An empty AddressLine2 clears it.
type UpdateAddress struct {
	AddressLine1 *string `json:"address_line1" validate:"omitempty,notblank"`
	AddressLine2 *string `json:"address_line2"`
	Pincode      *string `json:"pincode" validate:"omitempty,pincode"`
	CityID       *int    `json:"city_id" validate:"omitempty,gt=0"`
}

func (ua *UpdateAddress) Clean() {
	cleanStringPtr(ua.AddressLine1)
	cleanStringPtr(ua.AddressLine2)
	cleanStringPtr(ua.Pincode)
}

func (ua UpdateAddress) ApplyTo(addr Address) Address {
	if ua.AddressLine1 != nil {
		addr.AddressLine1 = *ua.AddressLine1
	}
	if ua.AddressLine2 != nil {
		addr.AddressLine2 = null.NewString(*ua.AddressLine2, *ua.AddressLine2 != "")
	}
	if ua.Pincode != nil {
		addr.Pincode = *ua.Pincode
	}
	if ua.CityID != nil {
		addr.CityID = *ua.CityID
	}
	return addr
}

// UpdateSchool is the edit-school form state: a partial patch where nil fields mean "no change".
// A nil slice keeps the stored list; an empty one clears it. A null ATL_establishment_year clears it.
type UpdateSchool struct {
	Name                 *string        `json:"name" validate:"omitempty,notblank"`
	IsATL                *bool          `json:"is_ATL"`
	ATLEstablishmentYear core.PatchInt  `json:"ATL_establishment_year" validate:"omitempty,atlyear"`
	Syllabus             []string       `json:"syllabus"`
	WebsiteURL           *string        `json:"website_url" validate:"omitempty,url"`
	PaidSubscription     *bool          `json:"paid_subscription"`
	SocialLinks          []string       `json:"social_links" validate:"omitempty,dive,url"`
	Address              *UpdateAddress `json:"address"`
	Principal            *user.Identity `json:"principal"`
	Correspondent        *user.Identity `json:"correspondent"`
	InCharge             *user.Identity `json:"in_charge"`
}

func (us *UpdateSchool) Clean() {
	cleanStringPtr(us.Name)
	cleanStringPtr(us.WebsiteURL)
	if us.Syllabus != nil {
		us.Syllabus = core.CleanStringSet(us.Syllabus)
	}
	if us.SocialLinks != nil {
		us.SocialLinks = core.CleanStringList(us.SocialLinks)
	}
	if us.Address != nil {
		us.Address.Clean()
	}
	for _, idt := range []*user.Identity{us.Principal, us.Correspondent, us.InCharge} {
		if idt != nil {
			idt.Clean()
		}
	}
}

func (us *UpdateSchool) Validate(validate *validator.Validate) error {
	us.Clean()
	return validate.Struct(us)
}

func (us UpdateSchool) identity(role Role) *user.Identity {
	return roleIdentity(role, us.Principal, us.Correspondent, us.InCharge)
}

// ApplyTo merges the scalar fields of the patch into sch.
func (us UpdateSchool) ApplyTo(sch School) School {
	if us.Name != nil {
		sch.Name = *us.Name
	}
	if us.IsATL != nil {
		sch.IsATL = *us.IsATL
	}
	if us.ATLEstablishmentYear.Set {
		sch.ATLEstablishmentYear = us.ATLEstablishmentYear.Int
	}
	if us.Syllabus != nil {
		sch.Syllabus = us.Syllabus
	}
	if us.WebsiteURL != nil {
		sch.WebsiteURL = *us.WebsiteURL
	}
	if us.PaidSubscription != nil {
		sch.PaidSubscription = *us.PaidSubscription
	}
	if us.SocialLinks != nil {
		sch.SocialLinks = us.SocialLinks
	}
	return sch
}

type QueryFilter struct {
	Search           string `query:"search"`
	IsATL            *bool  `query:"is_ATL"`
	PaidSubscription *bool  `query:"paid_subscription"`
	CityID           int    `query:"city_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.IsATL == nil && qf.PaidSubscription == nil && qf.CityID == 0
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderingFields maps the API ordering fields to storage columns.
var OrderingFields = map[string]string{
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func roleIdentity(role Role, principal, correspondent, inCharge *user.Identity) *user.Identity {
	switch role {
	case RolePrincipal:
		return principal
	case RoleCorrespondent:
		return correspondent
	case RoleInCharge:
		return inCharge
	}
	return nil
}

func cleanStringPtr(s *string) {
	if s != nil {
		*s = core.CleanString(*s)
	}
}
