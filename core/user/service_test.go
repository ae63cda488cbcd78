package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/user"
	"github.com/atlportal/backend/testutil"
)

func TestService_Upsert(t *testing.T) {
	repos := testutil.PrepareDB(t)
	svc := user.NewService(repos.Tx, repos.Users)
	ctx := context.Background()

	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := testutil.CreateUser(t, repos.Users, "asha@school.in", "Asha", "Rao", created)

	tests := []struct {
		name        string
		idt         user.Identity
		wantCreated bool
		wantFirst   string
		wantLast    string
		wantErr     bool
	}{
		{
			name:      "existing user keeps omitted fields",
			idt:       user.Identity{Email: "asha@school.in", FirstName: testutil.StrPtr("Asha Devi")},
			wantFirst: "Asha Devi",
			wantLast:  "Rao",
		},
		{
			name:        "new user",
			idt:         user.Identity{Email: "ravi@school.in", FirstName: testutil.StrPtr("Ravi")},
			wantCreated: true,
			wantFirst:   "Ravi",
		},
		{
			name:    "new user without first name",
			idt:     user.Identity{Email: "nobody@school.in"},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			usr, wasCreated, err := svc.Upsert(ctx, tc.idt)
			if tc.wantErr {
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "first_name", vErr.Fields[0].Field)

				_, err = svc.GetByEmail(ctx, tc.idt.Email)
				assert.Equal(t, user.ErrNotFound, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCreated, wasCreated)
			assert.Equal(t, tc.wantFirst, usr.FirstName)
			assert.Equal(t, tc.wantLast, usr.LastName)
			assert.Equal(t, tc.idt.Email, usr.Email)
		})
	}

	usr, err := svc.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, created, usr.CreatedAt)
	assert.True(t, usr.UpdatedAt.After(created))
}

func TestService_Query(t *testing.T) {
	repos := testutil.PrepareDB(t)
	svc := user.NewService(repos.Tx, repos.Users)
	ctx := context.Background()

	asha := testutil.CreateUser(t, repos.Users, "asha@school.in", "Asha", "Rao")
	ravi := testutil.CreateUser(t, repos.Users, "ravi@school.in", "Ravi", "Kumar")
	city := testutil.City(t, repos.Locations, "Pune")
	sch := testutil.CreateSchool(t, repos.Schools, "DPS", city.ID, testutil.Roles{Principal: &ravi})

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all by email", filter: &user.QueryFilter{}, ordering: []core.DBOrdering{{Field: "email", Ascending: true}}, want: []string{asha.ID, ravi.ID}},
		{name: "search", filter: &user.QueryFilter{Search: "KUM"}, want: []string{ravi.ID}},
		{name: "school members", filter: &user.QueryFilter{SchoolID: sch.ID}, want: []string{ravi.ID}},
		{name: "unknown ordering field ignored", filter: &user.QueryFilter{}, ordering: []core.DBOrdering{{Field: "password"}, {Field: "first_name", Ascending: false}}, want: []string{ravi.ID, asha.ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users, err := svc.Query(ctx, tc.filter, tc.ordering)
			require.NoError(t, err)
			ids := make([]string, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestService_Delete(t *testing.T) {
	repos := testutil.PrepareDB(t)
	svc := user.NewService(repos.Tx, repos.Users)
	ctx := context.Background()

	ravi := testutil.CreateUser(t, repos.Users, "ravi@school.in", "Ravi", "Kumar")
	city := testutil.City(t, repos.Locations, "Pune")
	sch := testutil.CreateSchool(t, repos.Schools, "DPS", city.ID, testutil.Roles{Principal: &ravi, InCharge: &ravi})

	require.NoError(t, svc.Delete(ctx, ravi.ID))
	assert.Equal(t, user.ErrNotFound, errors.Cause(svc.Delete(ctx, ravi.ID)))

	sch, err := repos.Schools.GetSchool(ctx, sch.ID)
	require.NoError(t, err)
	assert.False(t, sch.PrincipalID.Valid)
	assert.False(t, sch.InChargeID.Valid)
	assert.Empty(t, sch.Users)
}
