package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/leave"
	"github.com/trezcool/smartbackpack/core/user"
	genaisvc "github.com/trezcool/smartbackpack/services/genai"
)

func Test_leaveApi_submit(t *testing.T) {
	app := setup(t)
	teacher := app.createUser(t, "Teacher", "teacher_u", user.TeacherRoles)
	amina := app.createUser(t, "Amina", "amina_d", user.StudentRoles)
	token := app.token(t, amina)

	tests := []httpTest{
		{
			name: "teacher forbidden", token: app.token(t, teacher), wantCode: http.StatusForbidden,
			body: marchallObj(t, leave.NewRequest{StartDate: "2024-05-02", Reason: "family wedding upcountry"}),
		},
		{
			name: "end before start", token: token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, leave.NewRequest{StartDate: "2024-05-02", EndDate: "2024-05-01", Reason: "family wedding upcountry"}),
			wantData: marchallObj(t, map[string]string{"end_date": "end date cannot be before start date"}),
		},
		{
			name: "start date required", token: token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, leave.NewRequest{Reason: "family wedding upcountry"}),
			wantData: marchallObj(t, map[string]string{"start_date": "this field is required"}),
		},
		{
			name: "reason too short", token: token, wantCode: http.StatusBadRequest,
			body: marchallObj(t, leave.NewRequest{StartDate: "2024-05-02", Reason: " sick      "}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(http.MethodPost, "/v1/leave-requests", tt.token, tt.body))
		})
	}

	rec := app.do(http.MethodPost, "/v1/leave-requests", token, marchallObj(t, leave.NewRequest{StartDate: "2024-05-02", Reason: "family wedding upcountry"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var req leave.Request
	decode(t, rec, &req)
	assert.Equal(t, "2024-05-02", req.EndDate)
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Equal(t, "Amina", req.StudentName)
	assert.Empty(t, req.Chat)
	assert.Nil(t, req.Analysis)

	rec = app.do(http.MethodGet, "/v1/leave-requests/mine", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []leave.Request
	decode(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, req.ID, mine[0].ID)

	// the owner and staff can see it, other students cannot
	bob := app.createUser(t, "Bob", "bob_kab", user.StudentRoles)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/v1/leave-requests/"+req.ID, token).Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/v1/leave-requests/"+req.ID, app.token(t, teacher)).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/v1/leave-requests/"+req.ID, app.token(t, bob)).Code)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, app.do(http.MethodGet, "/v1/leave-requests/mine", app.token(t, bob)))
}

func Test_leaveApi_workflow(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	teacher := app.createUser(t, "Teacher", "teacher_u", user.TeacherRoles)
	amina := app.createUser(t, "Amina", "amina_d", user.StudentRoles)
	sToken, tToken := app.token(t, amina), app.token(t, teacher)

	require.NoError(t, app.repos.Attendance.UpsertRecords(ctx,
		attendance.Record{StudentID: amina.ID, Date: "2024-04-02", Status: attendance.StatusAbsent},
		attendance.Record{StudentID: amina.ID, Date: "2024-04-01", Status: attendance.StatusPresent},
	))

	submit := func(start, reason string) leave.Request {
		rec := app.do(http.MethodPost, "/v1/leave-requests", sToken, marchallObj(t, leave.NewRequest{StartDate: start, Reason: reason}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var req leave.Request
		decode(t, rec, &req)
		return req
	}
	past := submit("2024-03-01", "dentist appointment downtown")
	rec := app.do(http.MethodPost, "/v1/leave-requests/"+past.ID+"/decision", tToken, marchallObj(t, leave.Decision{Status: "Rejected"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	other := submit("2024-06-01", "another pending request")
	req := submit("2024-05-02", "family wedding upcountry")

	t.Run("pending queue", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, app.do(http.MethodGet, "/v1/leave-requests/pending", sToken).Code)
		rec := app.do(http.MethodGet, "/v1/leave-requests/pending", tToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var pending []leave.Request
		decode(t, rec, &pending)
		require.Len(t, pending, 2)
		assert.Equal(t, other.ID, pending[0].ID) // oldest first
		assert.Equal(t, req.ID, pending[1].ID)
	})

	t.Run("chat requires an analysis", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/chat", tToken, marchallObj(t, leave.ChatQuestion{Question: "Why?"}))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"analysis": leave.ErrNotAnalyzed.Error()})}, rec)
	})

	t.Run("analyze", func(t *testing.T) {
		app.assistant.LeaveAnalyzeFunc = func(leave.AnalysisInput) (leave.Analysis, error) {
			return leave.Analysis{}, errors.Wrap(genaisvc.ErrInvalidOutput, "riskScore: must be 1 or less")
		}
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: marchallObj(t, httpErr{Error: "AI assistant returned an invalid answer"})},
			app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/analyze", tToken))
		assert.Contains(t, app.logger.Messages(), "assistant call failed")

		var got leave.AnalysisInput
		app.assistant.LeaveAnalyzeFunc = func(in leave.AnalysisInput) (leave.Analysis, error) {
			got = in
			return leave.Analysis{Summary: "Low risk, one past rejection.", RiskScore: 0.3}, nil
		}
		assert.Equal(t, http.StatusForbidden, app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/analyze", sToken).Code)

		rec := app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/analyze", tToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var analyzed leave.Request
		decode(t, rec, &analyzed)
		require.NotNil(t, analyzed.Analysis)
		assert.Equal(t, 0.3, analyzed.Analysis.RiskScore)
		assert.False(t, analyzed.Analysis.AnalyzedAt.IsZero())

		// decided history only, without the request itself
		assert.Equal(t, []leave.PastLeave{{StartDate: "2024-03-01", EndDate: "2024-03-01", Reason: "dentist appointment downtown", Status: leave.StatusRejected}}, got.PastLeaveRequests)
		assert.Equal(t, "2024-05-02", got.LeaveStartDate)
		require.Len(t, got.PastAttendance, 2)
		assert.Equal(t, "2024-04-01", got.PastAttendance[0].Date)
		assert.Empty(t, got.Grades)
	})

	t.Run("chat", func(t *testing.T) {
		app.assistant.LeaveChatFunc = func(in leave.ChatInput) (string, error) {
			assert.Equal(t, 0.3, in.InitialAnalysis.RiskScore)
			return "Her attendance is mostly fine. ", nil
		}
		rec := app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/chat", tToken, marchallObj(t, leave.ChatQuestion{Question: " Is she often absent? "}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var chatted leave.Request
		decode(t, rec, &chatted)
		want := []leave.ChatMessage{
			{Role: leave.RoleUser, Content: "Is she often absent?"},
			{Role: leave.RoleModel, Content: "Her attendance is mostly fine."},
		}
		assert.Equal(t, want, chatted.Chat)

		// a failed answer leaves the thread as it was
		app.assistant.LeaveChatFunc = func(in leave.ChatInput) (string, error) {
			assert.Equal(t, want, in.History)
			return "", context.DeadlineExceeded
		}
		checkCodeAndData(t, httpTest{wantCode: http.StatusGatewayTimeout, wantData: marchallObj(t, httpErr{Error: "AI assistant took too long to answer"})},
			app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/chat", tToken, marchallObj(t, leave.ChatQuestion{Question: "And grades?"})))

		stored, err := app.repos.Leave.GetRequestByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, want, stored.Chat)

		assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/chat", tToken, marchallObj(t, leave.ChatQuestion{Question: "   "})).Code)
	})

	t.Run("decision", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/decision", tToken, marchallObj(t, leave.Decision{Status: "pending"})).Code)
		assert.Equal(t, http.StatusForbidden, app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/decision", sToken, marchallObj(t, leave.Decision{Status: "approved"})).Code)

		rec := app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/decision", tToken, marchallObj(t, leave.Decision{Status: "approved"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var decided leave.Request
		decode(t, rec, &decided)
		assert.Equal(t, leave.StatusApproved, decided.Status)
		assert.Equal(t, teacher.ID, decided.DecidedBy)
		require.NotNil(t, decided.DecidedAt)

		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": leave.ErrAlreadyDecided.Error()})},
			app.do(http.MethodPost, "/v1/leave-requests/"+req.ID+"/decision", tToken, marchallObj(t, leave.Decision{Status: "rejected"})))

		// the student is told about both decisions
		sent := app.mailSvc.Sent()
		require.Len(t, sent, 2)
		assert.Equal(t, "amina_d@test.cd", sent[1].To[0].Address)
		assert.Contains(t, sent[1].TextContent, "has been approved")

		assert.Equal(t, http.StatusNotFound, app.do(http.MethodPost, "/v1/leave-requests/nope/decision", tToken, marchallObj(t, leave.Decision{Status: "approved"})).Code)
	})
}

func Test_leaveApi_withoutAssistant(t *testing.T) {
	app := setup(t, withoutAssistant())
	teacher := app.createUser(t, "Teacher", "teacher_u", user.TeacherRoles)

	checkCodeAndData(t, httpTest{wantCode: http.StatusServiceUnavailable, wantData: marchallObj(t, httpErr{Error: "AI assistant unavailable"})},
		app.do(http.MethodPost, "/v1/leave-requests/nope/analyze", app.token(t, teacher)))
}
