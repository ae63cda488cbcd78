package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlportal/backend/core/school"
	"github.com/atlportal/backend/core/user"
	emailsvc "github.com/atlportal/backend/services/email"
	"github.com/atlportal/backend/testutil"
)

const unknownID = "9b2b7c1e-4c8f-4d3e-9d7e-3a1f2b3c4d5e"

func decodeSchool(t *testing.T, body []byte) school.School {
	t.Helper()
	var sch school.School
	require.NoError(t, json.Unmarshal(body, &sch))
	return sch
}

func Test_schoolAPI_update(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.token(t, admin)
	pune := testutil.City(t, app.repos.Locations, "Pune")

	asha := testutil.CreateUser(t, app.repos.Users, "asha@school.in", "Asha", "Rao")
	meena := testutil.CreateUser(t, app.repos.Users, "meena@school.in", "Meena", "Iyer")
	sch := testutil.CreateSchool(t, app.repos.Schools, "DPS", pune.ID, testutil.Roles{Principal: &asha, InCharge: &meena})
	path := "/api/schools/" + sch.ID

	runHTTPTests(t, app, []httpTest{
		{
			name: "admin required", method: http.MethodPut, path: path, body: []byte(`{"name":"x"}`), token: app.token(t, viewer),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "school not found", method: http.MethodPut, path: "/api/schools/" + unknownID, body: []byte(`{"name":"x"}`), token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "School not found"}),
		},
		{
			name: "invalid fields", method: http.MethodPut, path: path, token: adminToken,
			body:     []byte(`{"name":"  ","address":{"pincode":"5600"},"principal":{"email":"not-an-email"},"ATL_establishment_year":1999}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"name": "this field cannot be blank",
				"address.pincode": "pincode must be made of 6 digits",
				"principal.email": "email must be a valid email address",
				"ATL_establishment_year": "invalid establishment year"
			}`),
		},
		{
			name: "new user without first name", method: http.MethodPut, path: path, token: adminToken,
			body:     []byte(`{"name":"Renamed","in_charge":{"email":"lata@school.in"}}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"in_charge.first_name": "first name is required for a new user"}`),
		},
		{
			name: "unknown city", method: http.MethodPut, path: path, token: adminToken,
			body:     []byte(`{"address":{"city_id":99999}}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"address.city_id": "city not found"}`),
		},
	})

	// nothing was written by the failed calls
	got, err := app.repos.Schools.GetSchool(context.Background(), sch.ID)
	require.NoError(t, err)
	assert.Equal(t, sch, got)

	t.Run("success", func(t *testing.T) {
		body := []byte(`{
			"name": "Delhi Public School",
			"paid_subscription": true,
			"address": {"pincode": "411001"},
			"principal": {"email": "ravi@school.in", "first_name": "Ravi", "user_meta_data": {"phone": "9876543210"}},
			"correspondent": {"email": "RAVI@school.in"},
			"in_charge": {"email": "asha@school.in", "last_name": "Rao-Iyer"}
		}`)
		rec := app.do(httpTest{method: http.MethodPut, path: path, body: body, token: adminToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got := decodeSchool(t, rec.Body.Bytes())
		assert.Equal(t, "Delhi Public School", got.Name)
		assert.True(t, got.IsATL)
		assert.True(t, got.PaidSubscription)
		assert.Equal(t, "411001", got.Address.Pincode)
		assert.Equal(t, sch.Address.AddressLine1, got.Address.AddressLine1)
		require.NotNil(t, got.Address.City)
		assert.Equal(t, "Pune", got.Address.City.Name)

		ravi, err := app.repos.Users.GetUser(context.Background(), user.GetFilter{Email: "ravi@school.in"})
		require.NoError(t, err)
		assert.Equal(t, ravi.ID, got.PrincipalID.String)
		assert.Equal(t, ravi.ID, got.CorrespondentID.String)
		assert.Equal(t, asha.ID, got.InChargeID.String)
		assert.True(t, got.HasUser(ravi.ID))
		assert.True(t, got.HasUser(asha.ID))
		assert.False(t, got.HasUser(meena.ID))
		assert.Len(t, got.Users, 2)

		require.Len(t, emailsvc.SentMessages, 1)
		assert.Equal(t, "ravi@school.in", emailsvc.SentMessages[0].To[0].Address)
	})

	t.Run("ATL year set, kept and cleared", func(t *testing.T) {
		steps := []struct {
			body      string
			wantValid bool
		}{
			{body: `{"ATL_establishment_year": 2019}`, wantValid: true},
			{body: `{"name": "DPS Pune"}`, wantValid: true},
			{body: `{"ATL_establishment_year": null}`, wantValid: false},
		}
		for _, step := range steps {
			rec := app.do(httpTest{method: http.MethodPut, path: path, body: []byte(step.body), token: adminToken})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			got := decodeSchool(t, rec.Body.Bytes())
			assert.Equal(t, step.wantValid, got.ATLEstablishmentYear.Valid, step.body)
			if step.wantValid {
				assert.Equal(t, 2019, got.ATLEstablishmentYear.Int)
			}
		}
	})
}

func Test_schoolAPI_create(t *testing.T) {
	app := newTestApp(t)
	pune := testutil.City(t, app.repos.Locations, "Pune")

	valid := []byte(`{
		"name": "Kendriya Vidyalaya",
		"is_ATL": true,
		"ATL_establishment_year": 2018,
		"syllabus": ["CBSE", "State", "CBSE"],
		"website_url": "https://kv.example.in",
		"social_links": ["https://x.com/kv"],
		"address": {"address_line1": "12 MG Road", "pincode": "411001", "city_id": ` + itoa(pune.ID) + `},
		"principal": {"email": "asha@school.in", "first_name": "Asha"}
	}`)

	runHTTPTests(t, app, []httpTest{
		{
			name: "admin required", method: http.MethodPost, path: "/api/schools", body: valid, token: app.token(t, viewer),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/api/schools", body: []byte(`{"website_url":"lol"}`), token: app.token(t, admin),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"name": "this field is required",
				"website_url": "website_url must be a valid URL",
				"address.address_line1": "this field is required",
				"address.pincode": "this field is required",
				"address.city_id": "this field is required"
			}`),
		},
	})

	rec := app.do(httpTest{method: http.MethodPost, path: "/api/schools", body: valid, token: app.token(t, admin)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sch := decodeSchool(t, rec.Body.Bytes())
	assert.NotEmpty(t, sch.ID)
	assert.Equal(t, []string{"CBSE", "State"}, sch.Syllabus)
	assert.Equal(t, 2018, sch.ATLEstablishmentYear.Int)
	require.Len(t, sch.Users, 1)
	assert.Equal(t, sch.PrincipalID.String, sch.Users[0].ID)

	rec = app.do(httpTest{path: "/api/schools/" + sch.ID, token: app.token(t, viewer)})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sch.ID, decodeSchool(t, rec.Body.Bytes()).ID)
}

func Test_schoolAPI_query(t *testing.T) {
	app := newTestApp(t)
	token := app.token(t, viewer)
	pune := testutil.City(t, app.repos.Locations, "Pune")
	mysuru := testutil.City(t, app.repos.Locations, "Mysuru")

	dps := testutil.CreateSchool(t, app.repos.Schools, "DPS", pune.ID, testutil.Roles{})
	kv := testutil.CreateSchool(t, app.repos.Schools, "Kendriya Vidyalaya", mysuru.ID, testutil.Roles{})

	tests := []struct {
		name     string
		query    string
		wantCode int
		want     []string
	}{
		{name: "all", query: "", wantCode: http.StatusOK, want: []string{dps.ID, kv.ID}},
		{name: "ordering", query: "?ordering=-name", wantCode: http.StatusOK, want: []string{kv.ID, dps.ID}},
		{name: "search", query: "?search=VIDYA", wantCode: http.StatusOK, want: []string{kv.ID}},
		{name: "city", query: "?city_id=" + itoa(pune.ID), wantCode: http.StatusOK, want: []string{dps.ID}},
		{name: "is_ATL", query: "?is_ATL=false", wantCode: http.StatusOK, want: []string{}},
		{name: "paid_subscription", query: "?paid_subscription=false", wantCode: http.StatusOK, want: []string{dps.ID, kv.ID}},
		{name: "bad bool", query: "?is_ATL=lol", wantCode: http.StatusBadRequest},
		{name: "unknown ordering field", query: "?ordering=-name,password", wantCode: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := app.do(httpTest{path: "/api/schools" + tc.query, token: token})
			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.wantCode != http.StatusOK {
				return
			}
			var schools []school.School
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schools))
			ids := make([]string, 0, len(schools))
			for _, sch := range schools {
				ids = append(ids, sch.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func Test_schoolAPI_destroy(t *testing.T) {
	app := newTestApp(t)
	adminToken := app.token(t, admin)
	pune := testutil.City(t, app.repos.Locations, "Pune")
	asha := testutil.CreateUser(t, app.repos.Users, "asha@school.in", "Asha", "Rao")
	sch := testutil.CreateSchool(t, app.repos.Schools, "DPS", pune.ID, testutil.Roles{Principal: &asha})

	runHTTPTests(t, app, []httpTest{
		{
			name: "admin required", method: http.MethodDelete, path: "/api/schools/" + sch.ID, token: app.token(t, viewer),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "deleted", method: http.MethodDelete, path: "/api/schools/" + sch.ID, token: adminToken,
			wantCode: http.StatusOK, wantData: []byte(`{"message":"School deleted successfully"}`),
		},
		{
			name: "already deleted", method: http.MethodDelete, path: "/api/schools/" + sch.ID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "School not found"}),
		},
		{
			name: "retrieve deleted", path: "/api/schools/" + sch.ID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "School not found"}),
		},
		{
			name: "users are kept", path: "/api/users/" + asha.ID, token: adminToken,
			wantCode: http.StatusOK,
		},
	})
}
