// Package storagetest checks that a set of repositories behaves the way the services expect.
package storagetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/backpack"
	"github.com/trezcool/smartbackpack/core/grade"
	"github.com/trezcool/smartbackpack/core/leave"
	"github.com/trezcool/smartbackpack/core/user"
	"github.com/trezcool/smartbackpack/storage"
	"github.com/trezcool/smartbackpack/testutil"
)

// OpenFunc returns empty repositories for one test.
type OpenFunc func(t *testing.T) *storage.Repositories

// Run runs every conformance test against the repositories returned by open.
func Run(t *testing.T, open OpenFunc) {
	t.Run("User", func(t *testing.T) { testUser(t, open(t).User) })
	t.Run("Backpack", func(t *testing.T) { testBackpack(t, open(t)) })
	t.Run("Attendance", func(t *testing.T) { testAttendance(t, open(t)) })
	t.Run("Grade", func(t *testing.T) { testGrade(t, open(t)) })
	t.Run("Leave", func(t *testing.T) { testLeave(t, open(t)) })
}

// student stores a student the other records can reference.
func student(t *testing.T, repo user.Repository, name string) user.User {
	t.Helper()
	uname := "s_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return testutil.CreateUser(t, repo, name, uname, uname+"@test.cd", "", user.StudentRoles, true, base)
}

// byID returns the IDs of a and b in ascending order.
func byID(a, b user.User) (user.User, user.User) {
	if b.ID < a.ID {
		return b, a
	}
	return a, b
}

// base is a fixed, microsecond-aligned instant every store can represent exactly.
var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func testUser(t *testing.T, repo user.Repository) {
	ctx := context.Background()

	amina := testutil.CreateUser(t, repo, "Amina Diallo", "amina_d", "amina@test.cd", "Secret#123", user.StudentRoles, true, base)
	bob := testutil.CreateUser(t, repo, "Bob Kabila", "bob_kab", "bob@test.cd", "", user.StudentRoles, false, base.Add(time.Hour))
	teacher := testutil.CreateUser(t, repo, "Mrs Smith", "msmith", "smith@test.cd", "", user.TeacherRoles, true, base.Add(2*time.Hour))

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetUserByID(ctx, amina.ID)
		require.NoError(t, err)
		assert.Equal(t, amina.Name, got.Name)
		assert.Equal(t, user.StudentRoles, got.Roles)
		assert.NoError(t, got.CheckPassword("Secret#123"))
		assert.True(t, got.CreatedAt.Equal(base))

		got, err = repo.GetUserByEmail(ctx, "bob@test.cd")
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.ID)

		got, err = repo.GetUserByUsernameOrEmail(ctx, "msmith")
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, got.ID)
		got, err = repo.GetUserByUsernameOrEmail(ctx, "smith@test.cd")
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, got.ID)

		_, err = repo.GetUserByID(ctx, uuid.New().String())
		assert.True(t, core.IsNotFound(err))
		_, err = repo.GetUserByEmail(ctx, "nobody@test.cd")
		assert.True(t, core.IsNotFound(err))
		_, err = repo.GetUserByUsernameOrEmail(ctx, "nobody")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "amina_d", "new@test.cd"))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "newname", "amina@test.cd"))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "amina_d", "amina@test.cd", amina))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "newname", "new@test.cd"))
	})

	t.Run("query", func(t *testing.T) {
		users, err := repo.QueryUsers(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{amina.ID, bob.ID, teacher.ID}, ids(users)) // by name

		active := true
		users, err = repo.QueryUsers(ctx, &user.QueryFilter{Roles: user.StudentRoles, IsActive: &active}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{amina.ID}, ids(users))

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{Search: "SMITH"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{teacher.ID}, ids(users))

		users, err = repo.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "created_at", Ascending: false}})
		require.NoError(t, err)
		assert.Equal(t, []string{teacher.ID, bob.ID, amina.ID}, ids(users))
	})

	t.Run("update", func(t *testing.T) {
		usr := amina
		usr.Points = 30
		usr.Streak = 3
		usr.LastLogin = base.Add(24 * time.Hour)
		usr.CreatedAt = time.Time{} // ignored
		_, err := repo.UpdateUser(ctx, usr)
		require.NoError(t, err)

		got, err := repo.GetUserByID(ctx, amina.ID)
		require.NoError(t, err)
		assert.Equal(t, 30, got.Points)
		assert.Equal(t, 3, got.Streak)
		assert.True(t, got.LastLogin.Equal(base.Add(24*time.Hour)))
		assert.True(t, got.CreatedAt.Equal(base))

		_, err = repo.UpdateUser(ctx, user.User{ID: uuid.New().String(), Name: "ghost"})
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteUsersByID(ctx, bob.ID, teacher.ID))
		users, err := repo.QueryUsers(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{amina.ID}, ids(users))
	})
}

func ids(users []user.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func testBackpack(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	repo := repos.Backpack

	older := backpack.Homework{
		ID: uuid.New().String(), Title: "Fractions", Subject: "Maths", DueDate: "2024-05-03",
		RequiredBooks: []string{"Maths 5"}, CreatedBy: uuid.New().String(), CreatedAt: base,
	}
	newer := backpack.Homework{
		ID: uuid.New().String(), Title: "Rivers", Subject: "Geography",
		RequiredBooks: []string{"Atlas", "Geography 5"}, CreatedBy: uuid.New().String(), CreatedAt: base.Add(time.Hour),
	}
	for _, hw := range []backpack.Homework{older, newer} {
		_, err := repo.CreateHomework(ctx, hw)
		require.NoError(t, err)
	}

	got, err := repo.GetHomeworkByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.Title, got.Title)
	assert.Equal(t, newer.RequiredBooks, got.RequiredBooks)
	assert.Equal(t, "", got.DueDate)

	hws, err := repo.QueryHomework(ctx)
	require.NoError(t, err)
	require.Len(t, hws, 2)
	assert.Equal(t, newer.ID, hws[0].ID)
	assert.Equal(t, older.ID, hws[1].ID)
	assert.Equal(t, "2024-05-03", hws[1].DueDate)

	edited, err := repo.UpdateHomework(ctx, backpack.Homework{
		ID: newer.ID, Title: "Rivers and lakes", Subject: "Geography", DueDate: "2024-05-10",
		RequiredBooks: []string{"Atlas"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Rivers and lakes", edited.Title)
	assert.Equal(t, newer.CreatedBy, edited.CreatedBy)
	assert.True(t, edited.CreatedAt.Equal(newer.CreatedAt))

	got, err = repo.GetHomeworkByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rivers and lakes", got.Title)
	assert.Equal(t, "2024-05-10", got.DueDate)
	assert.Equal(t, []string{"Atlas"}, got.RequiredBooks)
	assert.Equal(t, newer.CreatedBy, got.CreatedBy)

	_, err = repo.UpdateHomework(ctx, backpack.Homework{ID: uuid.New().String(), Title: "Ghost", RequiredBooks: []string{"Atlas"}})
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, repo.DeleteHomework(ctx, older.ID))
	_, err = repo.GetHomeworkByID(ctx, older.ID)
	assert.True(t, core.IsNotFound(err))

	studentID := student(t, repos.User, "Amina").ID
	_, err = repo.GetBackpack(ctx, studentID)
	assert.True(t, core.IsNotFound(err))

	_, err = repo.SaveBackpack(ctx, backpack.Backpack{StudentID: studentID, Books: []string{"Atlas"}, UpdatedAt: base})
	require.NoError(t, err)
	_, err = repo.SaveBackpack(ctx, backpack.Backpack{StudentID: studentID, Books: []string{"Maths 5", "Atlas"}, UpdatedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	bp, err := repo.GetBackpack(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Maths 5", "Atlas"}, bp.Books)
	assert.True(t, bp.UpdatedAt.Equal(base.Add(time.Minute)))

	_, err = repo.SaveBackpack(ctx, backpack.Backpack{StudentID: studentID, Books: []string{}, UpdatedAt: base})
	require.NoError(t, err)
	bp, err = repo.GetBackpack(ctx, studentID)
	require.NoError(t, err)
	assert.Empty(t, bp.Books)
}

func testAttendance(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	repo := repos.Attendance
	first, second := byID(student(t, repos.User, "Amina"), student(t, repos.User, "Bob"))
	s1, s2 := first.ID, second.ID

	require.NoError(t, repo.UpsertRecords(ctx,
		attendance.Record{StudentID: s1, Date: "2024-05-02", Status: attendance.StatusPresent, UpdatedAt: base},
		attendance.Record{StudentID: s1, Date: "2024-05-01", Status: attendance.StatusAbsent, UpdatedAt: base},
		attendance.Record{StudentID: s2, Date: "2024-05-01", Status: attendance.StatusPresent, UpdatedAt: base},
	))
	// re-marking overwrites
	require.NoError(t, repo.UpsertRecords(ctx,
		attendance.Record{StudentID: s1, Date: "2024-05-02", Status: attendance.StatusAbsent, MarkedBy: "t1", UpdatedAt: base.Add(time.Hour)},
	))
	require.NoError(t, repo.UpsertRecords(ctx))

	records, err := repo.QueryRecordsByStudent(ctx, s1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-05-01", records[0].Date)
	assert.Equal(t, "2024-05-02", records[1].Date)
	assert.Equal(t, attendance.StatusAbsent, records[1].Status)
	assert.Equal(t, "t1", records[1].MarkedBy)

	records, err = repo.QueryRecordsByDate(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, s1, records[0].StudentID)
	assert.Equal(t, s2, records[1].StudentID)

	records, err = repo.QueryRecordsByStudent(ctx, student(t, repos.User, "Chloe").ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func testGrade(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	repo := repos.Grade
	studentID := student(t, repos.User, "Amina").ID

	second := grade.Grade{ID: uuid.New().String(), StudentID: studentID, Subject: "Maths", Grade: 72.5, RecordedBy: "t1", CreatedAt: base.Add(time.Hour)}
	first := grade.Grade{ID: uuid.New().String(), StudentID: studentID, Subject: "French", Grade: 64, RecordedBy: "t1", CreatedAt: base}
	other := grade.Grade{ID: uuid.New().String(), StudentID: student(t, repos.User, "Bob").ID, Subject: "Maths", Grade: 90, RecordedBy: "t1", CreatedAt: base}
	for _, g := range []grade.Grade{second, first, other} {
		_, err := repo.CreateGrade(ctx, g)
		require.NoError(t, err)
	}

	grades, err := repo.QueryGradesByStudent(ctx, studentID)
	require.NoError(t, err)
	require.Len(t, grades, 2)
	assert.Equal(t, first.ID, grades[0].ID)
	assert.Equal(t, second.ID, grades[1].ID)
	assert.Equal(t, 72.5, grades[1].Grade)
	assert.Equal(t, "Maths", grades[1].Subject)
}

func testLeave(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	repo := repos.Leave
	studentID := student(t, repos.User, "Amina").ID

	newRequest := func(createdAt time.Time, status string) leave.Request {
		return leave.Request{
			ID:          uuid.New().String(),
			StudentID:   studentID,
			StudentName: "Amina",
			StartDate:   "2024-05-02",
			EndDate:     "2024-05-03",
			Reason:      "family wedding upcountry",
			Status:      status,
			Chat:        []leave.ChatMessage{},
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		}
	}
	old := newRequest(base, leave.StatusApproved)
	recent := newRequest(base.Add(time.Hour), leave.StatusPending)
	otherStudent := newRequest(base.Add(30*time.Minute), leave.StatusPending)
	otherStudent.StudentID = student(t, repos.User, "Bob").ID
	for _, r := range []leave.Request{old, recent, otherStudent} {
		_, err := repo.CreateRequest(ctx, r)
		require.NoError(t, err)
	}

	got, err := repo.GetRequestByID(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, recent.Reason, got.Reason)
	assert.Nil(t, got.Analysis)
	assert.Empty(t, got.Chat)
	assert.Nil(t, got.DecidedAt)

	_, err = repo.GetRequestByID(ctx, uuid.New().String())
	assert.True(t, core.IsNotFound(err))

	reqs, err := repo.QueryRequestsByStudent(ctx, studentID)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, recent.ID, reqs[0].ID) // newest first
	assert.Equal(t, old.ID, reqs[1].ID)

	reqs, err = repo.QueryRequestsByStatus(ctx, leave.StatusPending)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, otherStudent.ID, reqs[0].ID) // oldest first
	assert.Equal(t, recent.ID, reqs[1].ID)

	decidedAt := base.Add(48 * time.Hour)
	recent.Analysis = &leave.Analysis{Summary: "Low risk.", RiskScore: 0.25, AnalyzedAt: base.Add(2 * time.Hour), Input: &leave.AnalysisInput{
		StudentID:         studentID,
		StudentName:       "Amina",
		LeaveStartDate:    recent.StartDate,
		LeaveEndDate:      recent.EndDate,
		Reason:            recent.Reason,
		PastLeaveRequests: []leave.PastLeave{{StartDate: old.StartDate, EndDate: old.EndDate, Reason: old.Reason, Status: leave.StatusApproved}},
		PastAttendance:    []attendance.Record{{StudentID: studentID, Date: "2024-04-29", Status: attendance.StatusAbsent}},
		Grades:            []grade.Grade{{ID: "g1", StudentID: studentID, Subject: "Maths", Grade: 71}},
	}}
	recent.Chat = []leave.ChatMessage{
		{Role: leave.RoleUser, Content: "Why?"},
		{Role: leave.RoleModel, Content: "Good attendance."},
	}
	recent.Status = leave.StatusApproved
	recent.DecidedBy = "t1"
	recent.DecidedAt = &decidedAt
	recent.UpdatedAt = decidedAt
	_, err = repo.UpdateRequest(ctx, recent)
	require.NoError(t, err)

	got, err = repo.GetRequestByID(ctx, recent.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "Low risk.", got.Analysis.Summary)
	assert.Equal(t, 0.25, got.Analysis.RiskScore)
	require.NotNil(t, got.Analysis.Input)
	assert.Equal(t, "Amina", got.Analysis.Input.StudentName)
	assert.Equal(t, recent.Analysis.Input.PastLeaveRequests, got.Analysis.Input.PastLeaveRequests)
	require.Len(t, got.Analysis.Input.PastAttendance, 1)
	assert.Equal(t, "2024-04-29", got.Analysis.Input.PastAttendance[0].Date)
	require.Len(t, got.Analysis.Input.Grades, 1)
	assert.Equal(t, 71.0, got.Analysis.Input.Grades[0].Grade)
	assert.Equal(t, recent.Chat, got.Chat)
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, "t1", got.DecidedBy)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, got.DecidedAt.Equal(decidedAt))
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Hour)))

	reqs, err = repo.QueryRequestsByStatus(ctx, leave.StatusPending)
	require.NoError(t, err)
	assert.Len(t, reqs, 1)

	_, err = repo.UpdateRequest(ctx, newRequest(base, leave.StatusPending))
	assert.True(t, core.IsNotFound(err))
}
