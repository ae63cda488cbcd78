package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/location"
	"github.com/atlportal/backend/core/school"
	"github.com/atlportal/backend/core/user"
	"github.com/atlportal/backend/storage"
)

// PrepareDB opens a fresh in-memory store seeded with the default cities.
func PrepareDB(t *testing.T) *storage.Repositories {
	t.Helper()
	repos, err := storage.Open(core.NewTestConfig())
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	email, firstName, lastName string,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr, err := repo.CreateUser(context.Background(), user.User{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		UserMetaData: user.MetaData{},
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// City returns the seeded city named name.
func City(t *testing.T, repo location.Repository, name string) location.City {
	t.Helper()
	cities, err := repo.QueryCities(context.Background(), &location.QueryFilter{Search: name})
	if err != nil {
		t.Fatalf("City() failed: %v", err)
	}
	for _, c := range cities {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("City() failed: %q not found", name)
	return location.City{}
}

// Roles are the users holding the roles of a school created by CreateSchool. Nil means vacant.
type Roles struct {
	Principal     *user.User
	Correspondent *user.User
	InCharge      *user.User
}

// CreateSchool stores a School with its Address and links the role holders.
func CreateSchool(t *testing.T, repo school.Repository, name string, cityID int, roles Roles) school.School {
	t.Helper()
	ctx := context.Background()

	addr, err := repo.CreateAddress(ctx, school.Address{
		AddressLine1: "1 " + name + " Road",
		AddressLine2: null.StringFrom("Near the lake"),
		Pincode:      "560001",
		CityID:       cityID,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}

	now := time.Now().UTC()
	sch, err := repo.CreateSchool(ctx, school.School{
		Name:        name,
		IsATL:       true,
		AddressID:   addr.ID,
		Syllabus:    []string{"CBSE"},
		WebsiteURL:  "https://school.example.in",
		SocialLinks: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}

	var ids []string
	for _, r := range []struct {
		usr *user.User
		id  *null.String
	}{
		{roles.Principal, &sch.PrincipalID},
		{roles.Correspondent, &sch.CorrespondentID},
		{roles.InCharge, &sch.InChargeID},
	} {
		if r.usr != nil {
			*r.id = null.StringFrom(r.usr.ID)
			ids = append(ids, r.usr.ID)
		}
	}
	if _, err = repo.UpdateSchool(ctx, sch); err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	if len(ids) > 0 {
		if err = repo.LinkUsers(ctx, sch.ID, ids...); err != nil {
			t.Fatalf("CreateSchool() failed: %v", err)
		}
	}

	sch, err = repo.GetSchool(ctx, sch.ID)
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return sch
}

func StrPtr(s string) *string { return &s }
func IntPtr(i int) *int       { return &i }
func BoolPtr(b bool) *bool    { return &b }
