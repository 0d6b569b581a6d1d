package attendance_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/user"
	inmemdb "github.com/trezcool/smartbackpack/storage/database/inmem"
	"github.com/trezcool/smartbackpack/testutil"
)

type fixture struct {
	svc       attendance.Service
	users     user.Repository
	assistant *testutil.Assistant
	mailbox   *testutil.Mailbox
	logger    *testutil.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.Open()
	conf := core.NewTestConfig()
	f := &fixture{
		users:     inmemdb.NewUserRepository(db),
		assistant: new(testutil.Assistant),
		mailbox:   new(testutil.Mailbox),
		logger:    new(testutil.Logger),
	}
	usrSvc := user.NewService(f.users, f.mailbox, conf)
	f.svc = attendance.NewService(inmemdb.NewAttendanceRepository(db), usrSvc, f.assistant, f.mailbox, f.logger, conf)
	return f
}

func TestService_Mark(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	amina := testutil.CreateStudent(t, f.users, "Amina", 0, 0)
	bob := testutil.CreateStudent(t, f.users, "Bob", 0, 0)
	teacher := testutil.CreateUser(t, f.users, "Teacher", "teacher_u", "t@test.cd", "", user.TeacherRoles, true)

	recs, err := f.svc.Mark(ctx, attendance.MarkDay{Date: "2024-05-02", Marks: map[string]string{}}, teacher)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = f.svc.Mark(ctx, attendance.MarkDay{Date: "2024-05-02", Marks: map[string]string{amina.ID: "absent", bob.ID: "present"}}, teacher)
	require.NoError(t, err)
	// re-marking overwrites
	_, err = f.svc.Mark(ctx, attendance.MarkDay{Date: "2024-05-02", Marks: map[string]string{amina.ID: "present"}}, teacher)
	require.NoError(t, err)
	_, err = f.svc.Mark(ctx, attendance.MarkDay{Date: "2024-05-01", Marks: map[string]string{amina.ID: "absent"}}, teacher)
	require.NoError(t, err)

	history, err := f.svc.History(ctx, amina.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-05-01", history[0].Date)
	assert.Equal(t, attendance.StatusPresent, history[1].Status)
	assert.Equal(t, teacher.ID, history[1].MarkedBy)

	day, err := f.svc.ByDate(ctx, "2024-05-02")
	require.NoError(t, err)
	assert.Len(t, day, 2)

	_, err = f.svc.Mark(ctx, attendance.MarkDay{Date: "2024-05-03", Marks: map[string]string{"nobody": "absent"}}, teacher)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "marks", vErr.Fields[0].Field)

	_, err = f.svc.Mark(ctx, attendance.MarkDay{Date: "2024-05-03", Marks: map[string]string{teacher.ID: "absent"}}, teacher)
	require.ErrorAs(t, err, &vErr)

	_, err = f.svc.History(ctx, "nobody")
	assert.True(t, core.IsNotFound(err))
}

func TestService_Analyze(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	amina := testutil.CreateStudent(t, f.users, "Amina", 0, 0)
	teacher := testutil.CreateUser(t, f.users, "Teacher", "teacher_u", "t@test.cd", "", user.TeacherRoles, true)

	core.NowFunc = func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) }
	defer func() { core.NowFunc = time.Now }()

	_, err := f.svc.Mark(ctx, attendance.MarkDay{Date: "2024-05-02", Marks: map[string]string{amina.ID: "absent"}}, teacher)
	require.NoError(t, err)

	var got attendance.AnomalyInput
	f.assistant.AttendanceFunc = func(in attendance.AnomalyInput) (attendance.Analysis, error) {
		got = in
		return attendance.Analysis{Summary: "One absence.", RiskScore: 0.2}, nil
	}
	rep, err := f.svc.Analyze(ctx, amina.ID)
	require.NoError(t, err)
	assert.False(t, rep.Flagged)
	assert.Equal(t, "2024-05-10", got.CurrentDate)
	assert.Equal(t, 1, got.Summary.Absent)
	assert.Empty(t, f.mailbox.Messages())

	// at the threshold staff are alerted
	f.assistant.AttendanceFunc = func(attendance.AnomalyInput) (attendance.Analysis, error) {
		return attendance.Analysis{Summary: "Pattern of absences.", RiskScore: 0.66}, nil
	}
	rep, err = f.svc.Analyze(ctx, amina.ID)
	require.NoError(t, err)
	assert.True(t, rep.Flagged)
	msgs := f.mailbox.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "attendance_alert", msgs[0].TemplateName)
	assert.Equal(t, "staff@test.test", msgs[0].To[0].Address)

	// the history goes along as CSV
	require.True(t, msgs[0].HasAttachments())
	at := msgs[0].Attachments[0]
	assert.Equal(t, "attendance_"+amina.ID+".csv", at.Filename)
	assert.Equal(t, "text/csv", at.ContentType)
	content, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Equal(t, "date,status\n2024-05-02,absent\n", string(content))
}

func TestHistoryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, attendance.HistoryCSV(&buf, []attendance.Record{
		{Date: "2024-05-02", Status: attendance.StatusAbsent},
		{Date: "2024-05-03", Status: attendance.StatusPresent},
	}))
	assert.Equal(t, "date,status\n2024-05-02,absent\n2024-05-03,present\n", buf.String())

	buf.Reset()
	require.NoError(t, attendance.HistoryCSV(&buf, nil))
	assert.Equal(t, "date,status\n", buf.String())
}

func TestService_Sweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	teacher := testutil.CreateUser(t, f.users, "Teacher", "teacher_u", "t@test.cd", "", user.TeacherRoles, true)
	amina := testutil.CreateStudent(t, f.users, "Amina", 0, 0)
	bob := testutil.CreateStudent(t, f.users, "Bob", 0, 0)
	chloe := testutil.CreateStudent(t, f.users, "Chloe", 0, 0)
	testutil.CreateStudent(t, f.users, "Dan", 0, 0) // no records

	_, err := f.svc.Mark(ctx, attendance.MarkDay{Date: "2024-05-02", Marks: map[string]string{
		amina.ID: "absent",
		bob.ID:   "present",
		chloe.ID: "absent",
	}}, teacher)
	require.NoError(t, err)

	var analyzed []string
	f.assistant.AttendanceFunc = func(in attendance.AnomalyInput) (attendance.Analysis, error) {
		analyzed = append(analyzed, in.StudentName)
		if in.StudentID == chloe.ID {
			return attendance.Analysis{}, errors.New("model down")
		}
		return attendance.Analysis{Summary: "Absent.", RiskScore: 0.9}, nil
	}

	flagged, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Amina", "Chloe"}, analyzed)
	require.Len(t, flagged, 1)
	assert.Equal(t, amina.ID, flagged[0].StudentID)
	assert.Len(t, f.logger.Messages(), 1)
}

func TestService_withoutAssistant(t *testing.T) {
	db := inmemdb.Open()
	conf := core.NewTestConfig()
	users := inmemdb.NewUserRepository(db)
	svc := attendance.NewService(inmemdb.NewAttendanceRepository(db), user.NewService(users, nil, conf), nil, nil, nil, conf)

	_, err := svc.Analyze(context.Background(), "s1")
	assert.Equal(t, attendance.ErrNoAssistant, err)
	_, err = svc.Sweep(context.Background())
	assert.Equal(t, attendance.ErrNoAssistant, err)
}
