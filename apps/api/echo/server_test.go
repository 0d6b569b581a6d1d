package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/backpack"
	"github.com/trezcool/smartbackpack/core/grade"
	"github.com/trezcool/smartbackpack/core/leave"
	"github.com/trezcool/smartbackpack/core/user"
	emailsvc "github.com/trezcool/smartbackpack/services/email"
	"github.com/trezcool/smartbackpack/storage"
	"github.com/trezcool/smartbackpack/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func TestMain(m *testing.M) {
	if err := core.ParseEmailTemplates(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testApp struct {
	Server
	conf      *core.Config
	auth      *auth
	repos     *storage.Repositories
	assistant *testutil.Assistant
	mailSvc   *emailsvc.ConsoleService
	logger    *testutil.Logger
}

type setupOption func(conf *core.Config, withAssistant *bool)

func withoutAssistant() setupOption {
	return func(_ *core.Config, withAssistant *bool) { *withAssistant = false }
}

func withAIRate(perSecond float64, burst int) setupOption {
	return func(conf *core.Config, _ *bool) {
		conf.Server.AIRateLimit = perSecond
		conf.Server.AIRateBurst = burst
	}
}

func setup(t *testing.T, opts ...setupOption) *testApp {
	t.Helper()

	conf := core.NewTestConfig()
	withAssistant := true
	for _, opt := range opts {
		opt(conf, &withAssistant)
	}

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	repos := storage.NewMemory()
	logger := new(testutil.Logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	fake := new(testutil.Assistant)

	var (
		bpAssistant    backpack.Assistant
		attAssistant   attendance.Assistant
		leaveAssistant leave.Assistant
	)
	if withAssistant {
		bpAssistant, attAssistant, leaveAssistant = fake, fake, fake
	}

	usrSvc := user.NewServiceMock(repos.User, mailSvc, conf)
	attSvc := attendance.NewService(repos.Attendance, usrSvc, attAssistant, mailSvc, logger, conf)
	gradeSvc := grade.NewService(repos.Grade, usrSvc)

	srv := NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		BackpackSvc:    backpack.NewService(repos.Backpack, usrSvc, bpAssistant, logger),
		AttendanceSvc:  attSvc,
		GradeSvc:       gradeSvc,
		LeaveSvc:       leave.NewService(repos.Leave, usrSvc, attSvc, gradeSvc, leaveAssistant, mailSvc, conf),
	})

	return &testApp{
		Server:    srv,
		conf:      conf,
		auth:      newAuth(conf),
		repos:     repos,
		assistant: fake,
		mailSvc:   mailSvc,
		logger:    logger,
	}
}

func (app *testApp) createUser(t *testing.T, name, uname string, roles []string) user.User {
	t.Helper()
	return testutil.CreateUser(t, app.repos.User, name, uname, uname+"@test.cd", "Secret#123", roles, true)
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.auth.generateToken(app.auth.userClaims(usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

// do serves one request and returns the recorded response.
func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestServer_home(t *testing.T) {
	app := setup(t)
	rec := app.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to SmartBackpack API!", rec.Body.String())
}

func TestServer_rateLimitsAI(t *testing.T) {
	app := setup(t, withAIRate(0.001, 1))
	student := app.createUser(t, "Amina", "amina_d", user.StudentRoles)
	hw, err := app.repos.Backpack.CreateHomework(context.Background(), backpack.Homework{ID: "hw1", Title: "Maths", RequiredBooks: []string{"Maths 5"}})
	require.NoError(t, err)
	app.assistant.BookMessageFunc = func(backpack.MessageInput) (string, error) { return "Go get it!", nil }

	body := marchallObj(t, CheckRequest{HomeworkID: hw.ID})
	token := app.token(t, student)
	assert.Equal(t, http.StatusOK, app.do(http.MethodPost, "/v1/backpack/check", token, body).Code)
	rec := app.do(http.MethodPost, "/v1/backpack/check", token, body)
	checkCodeAndData(t, httpTest{wantCode: http.StatusTooManyRequests, wantData: marchallObj(t, httpErr{Error: "too many requests, slow down"})}, rec)

	// another user has their own budget
	other := app.createUser(t, "Bob", "bob_kab", user.StudentRoles)
	assert.Equal(t, http.StatusOK, app.do(http.MethodPost, "/v1/backpack/check", app.token(t, other), body).Code)
}
