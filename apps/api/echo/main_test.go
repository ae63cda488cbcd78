package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/atlportal/backend/apps/api/echo"
	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/school"
	"github.com/atlportal/backend/core/user"
	emailsvc "github.com/atlportal/backend/services/email"
	logsvc "github.com/atlportal/backend/services/logger"
	metricsvc "github.com/atlportal/backend/services/metrics"
	"github.com/atlportal/backend/storage"
	"github.com/atlportal/backend/testutil"
)

var (
	errMissingToken     = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken     = httpErr{Error: "invalid or expired jwt"}
	errPermissionDenied = httpErr{Error: "permission denied"}

	admin  = core.Actor{ID: "3f0c7a52-5a0e-4d43-8f0e-2d2f0a7c1b11", Email: "admin@atl.gov.in", IsAdmin: true}
	viewer = core.Actor{ID: "8d7b4c2e-1f3a-4e5b-9c6d-7e8f9a0b1c2d", Email: "viewer@atl.gov.in"}
)

type testApp struct {
	Server
	conf  *core.Config
	repos *storage.Repositories
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	conf := core.NewTestConfig()
	std := logrus.New()
	std.SetOutput(io.Discard)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(false)
	require.NoError(t, core.ParseEmailTemplates(conf, logger))
	emailsvc.ResetSentMessages()

	repos := testutil.PrepareDB(t)
	validate, translator := testutil.NewValidator()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    user.NewService(repos.Tx, repos.Users),
		SchoolSvc:  school.NewService(repos.Tx, repos.Schools, repos.Users, repos.Locations, mailSvc, metricsvc.NewRecorder()),
		LocRepo:    repos.Locations,
		Validate:   validate,
		Translator: translator,
	})
	return testApp{Server: srv, conf: conf, repos: repos}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func (app testApp) do(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func (app testApp) token(t *testing.T, actor core.Actor, ttl ...time.Duration) string {
	t.Helper()
	exp := time.Hour
	if len(ttl) > 0 {
		exp = ttl[0]
	}
	token, err := GenerateToken(app.conf.SecretKey, NewClaims(actor, exp))
	require.NoError(t, err)
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code)
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}

func TestServer_public(t *testing.T) {
	app := newTestApp(t)

	runHTTPTests(t, app, []httpTest{
		{name: "healthz", path: "/healthz", wantCode: http.StatusOK, wantData: []byte(`{"status":"ok"}`)},
		{name: "auth required", path: "/api/schools", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "garbage token", path: "/api/schools", token: "lol", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errInvalidToken)},
		{
			name: "expired token", path: "/api/schools", token: app.token(t, viewer, -time.Minute),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errInvalidToken),
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/api/schools", "")
	req.Header.Set("Authorization", "Basic YWRtaW46YWRtaW4=")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/metrics", "")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "atlportal_requests_total")
}
