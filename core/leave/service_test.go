package leave_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/grade"
	"github.com/trezcool/smartbackpack/core/leave"
	"github.com/trezcool/smartbackpack/core/user"
	inmemdb "github.com/trezcool/smartbackpack/storage/database/inmem"
	"github.com/trezcool/smartbackpack/testutil"
)

type fixture struct {
	svc        leave.Service
	repo       leave.Repository
	users      user.Repository
	attendance attendance.Service
	grades     grade.Service
	assistant  *testutil.Assistant
	mailbox    *testutil.Mailbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.Open()
	conf := core.NewTestConfig()
	f := &fixture{
		repo:      inmemdb.NewLeaveRepository(db),
		users:     inmemdb.NewUserRepository(db),
		assistant: new(testutil.Assistant),
		mailbox:   new(testutil.Mailbox),
	}
	usrSvc := user.NewService(f.users, f.mailbox, conf)
	f.attendance = attendance.NewService(inmemdb.NewAttendanceRepository(db), usrSvc, nil, nil, nil, conf)
	f.grades = grade.NewService(inmemdb.NewGradeRepository(db), usrSvc)
	f.svc = leave.NewService(f.repo, usrSvc, f.attendance, f.grades, f.assistant, f.mailbox, conf)
	return f
}

func TestNewRequest_Validate(t *testing.T) {
	validate := core.NewValidator(core.NewTranslator())

	nr := leave.NewRequest{StartDate: " 2024-05-02 ", Reason: "  family wedding  "}
	require.NoError(t, nr.Validate(validate))
	assert.Equal(t, "2024-05-02", nr.EndDate)
	assert.Equal(t, "family wedding", nr.Reason)

	tests := []struct {
		name string
		nr   leave.NewRequest
	}{
		{name: "end before start", nr: leave.NewRequest{StartDate: "2024-05-02", EndDate: "2024-04-30", Reason: "family wedding"}},
		{name: "short reason", nr: leave.NewRequest{StartDate: "2024-05-02", Reason: "sick"}},
		{name: "bad date", nr: leave.NewRequest{StartDate: "02/05/2024", Reason: "family wedding"}},
		{name: "no start", nr: leave.NewRequest{Reason: "family wedding"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.nr.Validate(validate))
		})
	}
}

func TestService_Analyze(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	amina := testutil.CreateStudent(t, f.users, "Amina", 0, 0)
	teacher := testutil.CreateUser(t, f.users, "Teacher", "teacher_u", "t@test.cd", "", user.TeacherRoles, true)

	old, err := f.svc.Submit(ctx, amina, leave.NewRequest{StartDate: "2024-02-01", EndDate: "2024-02-02", Reason: "medical appointment"})
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, old.ID, leave.Decision{Status: leave.StatusApproved}, teacher)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, amina, leave.NewRequest{StartDate: "2024-06-01", EndDate: "2024-06-01", Reason: "still waiting for it"})
	require.NoError(t, err)
	req, err := f.svc.Submit(ctx, amina, leave.NewRequest{StartDate: "2024-05-02", EndDate: "2024-05-03", Reason: "family wedding upcountry"})
	require.NoError(t, err)

	score := 71.0
	_, err = f.grades.Record(ctx, grade.NewGrade{StudentID: amina.ID, Subject: "Maths", Grade: &score}, teacher)
	require.NoError(t, err)

	var got leave.AnalysisInput
	f.assistant.LeaveAnalyzeFunc = func(in leave.AnalysisInput) (leave.Analysis, error) {
		got = in
		return leave.Analysis{Summary: "Low risk.", RiskScore: 0.1}, nil
	}
	analyzed, err := f.svc.Analyze(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, analyzed.Analysis)
	assert.Equal(t, 0.1, analyzed.Analysis.RiskScore)
	assert.Equal(t, leave.StatusPending, analyzed.Status)

	assert.Equal(t, []leave.PastLeave{{StartDate: "2024-02-01", EndDate: "2024-02-02", Reason: "medical appointment", Status: leave.StatusApproved}}, got.PastLeaveRequests)
	assert.Equal(t, "Amina", got.StudentName)
	assert.Equal(t, "2024-05-03", got.LeaveEndDate)
	require.Len(t, got.Grades, 1)
	assert.Equal(t, 71.0, got.Grades[0].Grade)
	assert.Empty(t, got.PastAttendance)

	_, err = f.svc.Analyze(ctx, "nope")
	assert.True(t, core.IsNotFound(err))
}

func TestService_Chat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	amina := testutil.CreateStudent(t, f.users, "Amina", 0, 0)
	req, err := f.svc.Submit(ctx, amina, leave.NewRequest{StartDate: "2024-05-02", EndDate: "2024-05-02", Reason: "family wedding upcountry"})
	require.NoError(t, err)

	_, err = f.svc.Chat(ctx, req.ID, "Why?")
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, leave.ErrNotAnalyzed, vErr.Err)

	var analyzedWith leave.AnalysisInput
	f.assistant.LeaveAnalyzeFunc = func(in leave.AnalysisInput) (leave.Analysis, error) {
		analyzedWith = in
		return leave.Analysis{Summary: "Low risk.", RiskScore: 0.1}, nil
	}
	analyzed, err := f.svc.Analyze(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, analyzed.Analysis.Input)
	assert.Equal(t, analyzedWith, *analyzed.Analysis.Input)

	// attendance marked after the analysis does not leak into the conversation
	teacher := testutil.CreateUser(t, f.users, "Teacher", "teacher_u", "t@test.cd", "", user.TeacherRoles, true)
	_, err = f.attendance.Mark(ctx, attendance.MarkDay{Date: "2024-04-29", Marks: map[string]string{amina.ID: attendance.StatusAbsent}}, teacher)
	require.NoError(t, err)

	f.assistant.LeaveChatFunc = func(in leave.ChatInput) (string, error) {
		assert.Equal(t, analyzedWith, in.OriginalRequest)
		assert.Empty(t, in.OriginalRequest.PastAttendance)
		assert.Nil(t, in.InitialAnalysis.Input)
		assert.Equal(t, "Low risk.", in.InitialAnalysis.Summary)
		return "Answer " + in.Question, nil
	}
	_, err = f.svc.Chat(ctx, req.ID, "one")
	require.NoError(t, err)
	chatted, err := f.svc.Chat(ctx, req.ID, "two")
	require.NoError(t, err)
	assert.Equal(t, []leave.ChatMessage{
		{Role: leave.RoleUser, Content: "one"},
		{Role: leave.RoleModel, Content: "Answer one"},
		{Role: leave.RoleUser, Content: "two"},
		{Role: leave.RoleModel, Content: "Answer two"},
	}, chatted.Chat)

	f.assistant.LeaveChatFunc = func(in leave.ChatInput) (string, error) {
		assert.Len(t, in.History, 4)
		return "", errors.New("model down")
	}
	_, err = f.svc.Chat(ctx, req.ID, "three")
	assert.Error(t, err)
	stored, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, chatted.Chat, stored.Chat)

	// re-analyzing starts a new thread
	_, err = f.svc.Analyze(ctx, req.ID)
	require.NoError(t, err)
	stored, err = f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Chat)
}

func TestService_Decide(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	amina := testutil.CreateUser(t, f.users, "Amina", "amina_d", "amina@test.cd", "", user.StudentRoles, true)
	teacher := testutil.CreateUser(t, f.users, "Teacher", "teacher_u", "t@test.cd", "", user.TeacherRoles, true)
	req, err := f.svc.Submit(ctx, amina, leave.NewRequest{StartDate: "2024-05-02", EndDate: "2024-05-02", Reason: "family wedding upcountry"})
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	decided, err := f.svc.Decide(ctx, req.ID, leave.Decision{Status: leave.StatusRejected}, teacher)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, decided.Status)
	assert.Equal(t, teacher.ID, decided.DecidedBy)
	require.NotNil(t, decided.DecidedAt)

	_, err = f.svc.Decide(ctx, req.ID, leave.Decision{Status: leave.StatusApproved}, teacher)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, leave.ErrAlreadyDecided, vErr.Err)

	msgs := f.mailbox.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "leave_decision", msgs[0].TemplateName)
	assert.Equal(t, "amina@test.cd", msgs[0].To[0].Address)

	pending, err = f.svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	mine, err := f.svc.ListByStudent(ctx, amina.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestService_withoutAssistant(t *testing.T) {
	db := inmemdb.Open()
	svc := leave.NewService(inmemdb.NewLeaveRepository(db), nil, nil, nil, nil, nil, core.NewTestConfig())

	_, err := svc.Analyze(context.Background(), "r1")
	assert.Equal(t, leave.ErrNoAssistant, err)
	_, err = svc.Chat(context.Background(), "r1", "Why?")
	assert.Equal(t, leave.ErrNoAssistant, err)
}
