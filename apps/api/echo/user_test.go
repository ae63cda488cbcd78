package echoapi_test

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlportal/backend/core/location"
	"github.com/atlportal/backend/core/user"
	"github.com/atlportal/backend/testutil"
)

func itoa(i int) string { return strconv.Itoa(i) }

func Test_userAPI(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.token(t, admin)
	pune := testutil.City(t, app.repos.Locations, "Pune")

	asha := testutil.CreateUser(t, app.repos.Users, "asha@school.in", "Asha", "Rao")
	ravi := testutil.CreateUser(t, app.repos.Users, "ravi@school.in", "Ravi", "Kumar")
	sch := testutil.CreateSchool(t, app.repos.Schools, "DPS", pune.ID, testutil.Roles{Principal: &asha})

	runHTTPTests(t, app, []httpTest{
		{
			name: "upsert requires admin", method: http.MethodPost, path: "/api/users", token: app.token(t, viewer),
			body: []byte(`{"email":"new@school.in","first_name":"New"}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "upsert invalid", method: http.MethodPost, path: "/api/users", token: adminToken,
			body:     []byte(`{"email":"lol","user_meta_data":{"phone number":"1"}}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"email": "email must be a valid email address",
				"user_meta_data": "metadata keys may only contain letters, digits and underscores"
			}`),
		},
		{
			name: "user not found", path: "/api/users/" + unknownID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "User not found"}),
		},
		{
			name: "delete requires admin", method: http.MethodDelete, path: "/api/users/" + ravi.ID, token: app.token(t, viewer),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
	})

	t.Run("upsert updates by email", func(t *testing.T) {
		rec := app.do(httpTest{
			method: http.MethodPost, path: "/api/users", token: adminToken,
			body: []byte(`{"email":" ASHA@school.in","last_name":"Rao-Iyer"}`),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, asha.ID, got.ID)
		assert.Equal(t, "Asha", got.FirstName)
		assert.Equal(t, "Rao-Iyer", got.LastName)
	})

	t.Run("retrieve lists the schools", func(t *testing.T) {
		rec := app.do(httpTest{path: "/api/users/" + asha.ID, token: app.token(t, viewer)})
		require.Equal(t, http.StatusOK, rec.Code)
		var got user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, []string{sch.ID}, got.SchoolIDs)
	})

	t.Run("query by school", func(t *testing.T) {
		rec := app.do(httpTest{path: "/api/users?school_id=" + sch.ID, token: app.token(t, viewer)})
		require.Equal(t, http.StatusOK, rec.Code)
		var got []user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, asha.ID, got[0].ID)
	})

	t.Run("delete vacates the roles", func(t *testing.T) {
		rec := app.do(httpTest{method: http.MethodDelete, path: "/api/users/" + asha.ID, token: adminToken})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(httpTest{path: "/api/schools/" + sch.ID, token: adminToken})
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeSchool(t, rec.Body.Bytes())
		assert.False(t, got.PrincipalID.Valid)
		assert.Empty(t, got.Users)
	})
}

func Test_locationAPI_queryCities(t *testing.T) {
	app := newTestApp(t)
	token := app.token(t, viewer)
	mysuru := testutil.City(t, app.repos.Locations, "Mysuru")

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "search", query: "?search=pun", want: []string{"Pune"}},
		{name: "state", query: "?state_id=" + itoa(mysuru.StateID), want: []string{"Bengaluru", "Mysuru"}},
		{name: "unknown", query: "?search=lol", want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := app.do(httpTest{path: "/api/cities" + tc.query, token: token})
			require.Equal(t, http.StatusOK, rec.Code)
			var cities []location.City
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cities))
			names := make([]string, 0, len(cities))
			for _, c := range cities {
				names = append(names, c.Name)
			}
			assert.Equal(t, tc.want, names)
		})
	}
}
