package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/location"
	"github.com/atlportal/backend/core/school"
	"github.com/atlportal/backend/core/user"
	"github.com/atlportal/backend/storage"
	"github.com/atlportal/backend/testutil"
)

const unknownID = "9b2b7c1e-4c8f-4d3e-9d7e-3a1f2b3c4d5e"

// backends lists the stores to run the repository tests against.
// The postgres backends need TEST_POSTGRES and the TEST_DATABASE_* variables read by core.NewConfig.
func backends(t *testing.T) map[string]func(t *testing.T) *storage.Repositories {
	t.Helper()
	open := func(conf *core.Config) func(t *testing.T) *storage.Repositories {
		return func(t *testing.T) *storage.Repositories {
			repos, err := storage.Open(conf)
			require.NoError(t, err)
			t.Cleanup(func() {
				if repos.SQL != nil {
					_, err := repos.SQL.Exec("TRUNCATE school_users, schools, addresses, users")
					assert.NoError(t, err)
				}
				assert.NoError(t, repos.Close())
			})
			return repos
		}
	}

	sqlite := core.NewTestConfig()
	sqlite.Database.Backend = core.BackendGorm
	sqlite.Database.Engine = "sqlite3"
	sqlite.Database.Name = "file::memory:"

	all := map[string]func(t *testing.T) *storage.Repositories{
		"inmem":       open(core.NewTestConfig()),
		"gorm sqlite": open(sqlite),
	}
	if os.Getenv("TEST_POSTGRES") != "" {
		for _, backend := range []string{core.BackendSQLX, core.BackendGorm} {
			conf := core.NewConfig()
			conf.Database.Backend = backend
			conf.Database.Engine = "postgres"
			all[backend+" postgres"] = open(conf)
		}
	}
	return all
}

func TestUserRepository(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := open(t)
			ctx := context.Background()

			asha := testutil.CreateUser(t, repos.Users, "asha@school.in", "Asha", "Rao")
			asha.UserMetaData = user.MetaData{"phone": "9876543210"}

			_, err := repos.Users.CreateUser(ctx, user.User{Email: "asha@school.in", FirstName: "Other", UserMetaData: user.MetaData{}})
			var conflict *core.ConflictError
			require.True(t, errors.As(err, &conflict), "%v", err)
			assert.Equal(t, "email", conflict.Field)

			asha.LastName = "Rao-Iyer"
			updated, err := repos.Users.UpdateUser(ctx, asha)
			require.NoError(t, err)
			assert.Equal(t, "Rao-Iyer", updated.LastName)

			got, err := repos.Users.GetUser(ctx, user.GetFilter{Email: "asha@school.in"})
			require.NoError(t, err)
			assert.Equal(t, asha.ID, got.ID)
			assert.Equal(t, "Rao-Iyer", got.LastName)
			assert.Equal(t, "9876543210", got.UserMetaData["phone"])
			assert.Empty(t, got.SchoolIDs)

			_, err = repos.Users.GetUser(ctx, user.GetFilter{ID: unknownID})
			assert.Equal(t, user.ErrNotFound, errors.Cause(err))
			_, err = repos.Users.UpdateUser(ctx, user.User{ID: unknownID, Email: "x@school.in", UserMetaData: user.MetaData{}})
			assert.Equal(t, user.ErrNotFound, errors.Cause(err))
			assert.Equal(t, user.ErrNotFound, errors.Cause(repos.Users.DeleteUser(ctx, unknownID)))

			testutil.CreateUser(t, repos.Users, "ravi@school.in", "Ravi", "Kumar")
			users, err := repos.Users.QueryUsers(ctx, &user.QueryFilter{Search: "RAVI"}, nil)
			require.NoError(t, err)
			require.Len(t, users, 1)
			assert.Equal(t, "ravi@school.in", users[0].Email)

			users, err = repos.Users.QueryUsers(ctx, &user.QueryFilter{}, []core.DBOrdering{{Field: "email"}})
			require.NoError(t, err)
			require.Len(t, users, 2)
			assert.Equal(t, "ravi@school.in", users[0].Email)
		})
	}
}

func TestSchoolRepository(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := open(t)
			ctx := context.Background()
			pune := testutil.City(t, repos.Locations, "Pune")
			mysuru := testutil.City(t, repos.Locations, "Mysuru")

			ravi := testutil.CreateUser(t, repos.Users, "ravi@school.in", "Ravi", "Kumar")
			asha := testutil.CreateUser(t, repos.Users, "asha@school.in", "Asha", "Rao")
			dps := testutil.CreateSchool(t, repos.Schools, "DPS", pune.ID, testutil.Roles{Principal: &ravi, InCharge: &asha})
			kv := testutil.CreateSchool(t, repos.Schools, "Kendriya Vidyalaya", mysuru.ID, testutil.Roles{})

			assert.Equal(t, null.StringFrom(ravi.ID), dps.PrincipalID)
			assert.False(t, dps.CorrespondentID.Valid)
			require.Len(t, dps.Users, 2)
			assert.Equal(t, asha.ID, dps.Users[0].ID) // ordered by email
			assert.Equal(t, "Near the lake", dps.Address.AddressLine2.String)
			assert.Equal(t, []string{"CBSE"}, dps.Syllabus)

			// linking is idempotent
			require.NoError(t, repos.Schools.LinkUsers(ctx, dps.ID, ravi.ID, asha.ID))
			got, err := repos.Schools.GetSchool(ctx, dps.ID)
			require.NoError(t, err)
			assert.Len(t, got.Users, 2)

			usr, err := repos.Users.GetUser(ctx, user.GetFilter{ID: asha.ID})
			require.NoError(t, err)
			assert.Equal(t, []string{dps.ID}, usr.SchoolIDs)

			require.NoError(t, repos.Schools.UnlinkUsers(ctx, dps.ID, asha.ID))
			got, err = repos.Schools.GetSchool(ctx, dps.ID)
			require.NoError(t, err)
			assert.False(t, got.HasUser(asha.ID))

			got.Name = "Delhi Public School"
			got.Syllabus = []string{"CBSE", "ICSE"}
			got.SocialLinks = []string{"https://x.com/dps"}
			got.ATLEstablishmentYear = null.IntFrom(2018)
			got.InChargeID = null.String{}
			_, err = repos.Schools.UpdateSchool(ctx, got)
			require.NoError(t, err)

			addr := got.Address
			addr.Pincode = "411001"
			addr.AddressLine2 = null.String{}
			_, err = repos.Schools.UpdateAddress(ctx, addr)
			require.NoError(t, err)

			got, err = repos.Schools.GetSchool(ctx, dps.ID)
			require.NoError(t, err)
			assert.Equal(t, "Delhi Public School", got.Name)
			assert.Equal(t, []string{"CBSE", "ICSE"}, got.Syllabus)
			assert.Equal(t, []string{"https://x.com/dps"}, got.SocialLinks)
			assert.Equal(t, 2018, got.ATLEstablishmentYear.Int)
			assert.False(t, got.InChargeID.Valid)
			assert.Equal(t, "411001", got.Address.Pincode)
			assert.False(t, got.Address.AddressLine2.Valid)

			schools, err := repos.Schools.QuerySchools(ctx, &school.QueryFilter{CityID: mysuru.ID}, nil)
			require.NoError(t, err)
			require.Len(t, schools, 1)
			assert.Equal(t, kv.ID, schools[0].ID)
			assert.Equal(t, mysuru.ID, schools[0].Address.CityID)

			schools, err = repos.Schools.QuerySchools(ctx, &school.QueryFilter{Search: "delhi", IsATL: testutil.BoolPtr(true)}, nil)
			require.NoError(t, err)
			require.Len(t, schools, 1)
			assert.Equal(t, dps.ID, schools[0].ID)

			schools, err = repos.Schools.QuerySchools(ctx, nil, []core.DBOrdering{{Field: "name"}})
			require.NoError(t, err)
			require.Len(t, schools, 2)
			assert.Equal(t, kv.ID, schools[0].ID)

			require.NoError(t, repos.Schools.DeleteSchool(ctx, dps.ID))
			require.NoError(t, repos.Schools.DeleteAddress(ctx, dps.AddressID))
			_, err = repos.Schools.GetSchool(ctx, dps.ID)
			assert.Equal(t, school.ErrNotFound, errors.Cause(err))
			_, err = repos.Schools.GetAddress(ctx, dps.AddressID)
			assert.Equal(t, school.ErrAddressNotFound, errors.Cause(err))
			assert.Equal(t, school.ErrNotFound, errors.Cause(repos.Schools.DeleteSchool(ctx, unknownID)))

			usr, err = repos.Users.GetUser(ctx, user.GetFilter{ID: ravi.ID})
			require.NoError(t, err)
			assert.Empty(t, usr.SchoolIDs)
		})
	}
}

func TestUserRepository_DeleteUser(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := open(t)
			ctx := context.Background()
			pune := testutil.City(t, repos.Locations, "Pune")

			ravi := testutil.CreateUser(t, repos.Users, "ravi@school.in", "Ravi", "Kumar")
			asha := testutil.CreateUser(t, repos.Users, "asha@school.in", "Asha", "Rao")
			sch := testutil.CreateSchool(t, repos.Schools, "DPS", pune.ID, testutil.Roles{
				Principal:     &ravi,
				Correspondent: &ravi,
				InCharge:      &asha,
			})

			require.NoError(t, repos.Users.DeleteUser(ctx, ravi.ID))

			got, err := repos.Schools.GetSchool(ctx, sch.ID)
			require.NoError(t, err)
			assert.False(t, got.PrincipalID.Valid)
			assert.False(t, got.CorrespondentID.Valid)
			assert.Equal(t, asha.ID, got.InChargeID.String)
			require.Len(t, got.Users, 1)
			assert.Equal(t, asha.ID, got.Users[0].ID)
		})
	}
}

func TestTransactor(t *testing.T) {
	errBoom := errors.New("boom")

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := open(t)
			ctx := context.Background()

			err := repos.Tx.InTx(ctx, func(ctx context.Context) error {
				_, err := repos.Users.CreateUser(ctx, user.User{Email: "asha@school.in", FirstName: "Asha", UserMetaData: user.MetaData{}})
				require.NoError(t, err)
				// nested calls join the running transaction
				return repos.Tx.InTx(ctx, func(ctx context.Context) error {
					_, err := repos.Users.GetUser(ctx, user.GetFilter{Email: "asha@school.in"})
					require.NoError(t, err)
					return errBoom
				})
			})
			assert.Equal(t, errBoom, errors.Cause(err))

			_, err = repos.Users.GetUser(ctx, user.GetFilter{Email: "asha@school.in"})
			assert.Equal(t, user.ErrNotFound, errors.Cause(err))

			require.NoError(t, repos.Tx.InTx(ctx, func(ctx context.Context) error {
				_, err := repos.Users.CreateUser(ctx, user.User{Email: "ravi@school.in", FirstName: "Ravi", UserMetaData: user.MetaData{}})
				return err
			}))
			_, err = repos.Users.GetUser(ctx, user.GetFilter{Email: "ravi@school.in"})
			assert.NoError(t, err)
		})
	}
}

func TestTransactor_panic(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := open(t)
			ctx := context.Background()

			assert.PanicsWithValue(t, "boom", func() {
				_ = repos.Tx.InTx(ctx, func(ctx context.Context) error {
					_, err := repos.Users.CreateUser(ctx, user.User{Email: "asha@school.in", FirstName: "Asha", UserMetaData: user.MetaData{}})
					require.NoError(t, err)
					panic("boom")
				})
			})

			_, err := repos.Users.GetUser(ctx, user.GetFilter{Email: "asha@school.in"})
			assert.Equal(t, user.ErrNotFound, errors.Cause(err))

			// the store is usable after the rollback
			require.NoError(t, repos.Tx.InTx(ctx, func(ctx context.Context) error {
				_, err := repos.Users.CreateUser(ctx, user.User{Email: "asha@school.in", FirstName: "Asha", UserMetaData: user.MetaData{}})
				return err
			}))
		})
	}
}

func TestLocationRepository(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repos := open(t)
			ctx := context.Background()

			city, err := repos.Locations.UpsertCity(ctx, "India", "Karnataka", "Hubballi")
			require.NoError(t, err)
			again, err := repos.Locations.UpsertCity(ctx, "India", "Karnataka", "Hubballi")
			require.NoError(t, err)
			assert.Equal(t, city.ID, again.ID)

			got, err := repos.Locations.GetCity(ctx, city.ID)
			require.NoError(t, err)
			assert.Equal(t, "Hubballi", got.Name)
			assert.Equal(t, "Karnataka", got.State)
			assert.Equal(t, "India", got.Country)

			_, err = repos.Locations.GetCity(ctx, 99999)
			assert.Equal(t, location.ErrCityNotFound, errors.Cause(err))

			cities, err := repos.Locations.QueryCities(ctx, &location.QueryFilter{StateID: got.StateID})
			require.NoError(t, err)
			names := make([]string, 0, len(cities))
			for _, c := range cities {
				names = append(names, c.Name)
			}
			assert.Equal(t, []string{"Bengaluru", "Hubballi", "Mysuru"}, names)
		})
	}
}
