package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/user"
	inmemdb "github.com/trezcool/smartbackpack/storage/database/inmem"
	"github.com/trezcool/smartbackpack/testutil"
)

func newService(t *testing.T) (user.Service, user.Repository, *testutil.Mailbox) {
	t.Helper()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	mailbox := new(testutil.Mailbox)
	return user.NewServiceMock(repo, mailbox, core.NewTestConfig()), repo, mailbox
}

func TestService_RecordCheck(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)
	amina := testutil.CreateStudent(t, repo, "Amina", 40, 3)

	usr, err := svc.RecordCheck(ctx, amina.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 50, usr.Points)
	assert.Equal(t, 4, usr.Streak)

	usr, err = svc.RecordCheck(ctx, amina.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 50, usr.Points)
	assert.Equal(t, 0, usr.Streak)

	stored, err := svc.GetByID(ctx, amina.ID)
	require.NoError(t, err)
	assert.Equal(t, usr.Points, stored.Points)

	_, err = svc.RecordCheck(ctx, "nope", true)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Leaderboard(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)
	testutil.CreateStudent(t, repo, "Amina", 20, 2)
	testutil.CreateStudent(t, repo, "Bob", 30, 0)
	testutil.CreateStudent(t, repo, "Chloe", 20, 5)
	testutil.CreateUser(t, repo, "Teacher", "teacher_u", "t@test.cd", "", user.TeacherRoles, true)
	testutil.CreateUser(t, repo, "Gone", "gone_student", "g@test.cd", "", user.StudentRoles, false)

	board, err := svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	names := make([]string, 0, len(board))
	for _, st := range board {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"Bob", "Chloe", "Amina"}, names)
	assert.Equal(t, 3, board[2].Rank)

	board, err = svc.Leaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, board, 2)
}

func TestService_CheckUniqueness(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)
	usr := testutil.CreateUser(t, repo, "Amina", "amina_d", "amina@test.cd", "", user.StudentRoles, true)

	err := svc.CheckUniqueness(ctx, "amina_d", "")
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "username", vErr.Fields[0].Field)

	err = svc.CheckUniqueness(ctx, "other_u", "amina@test.cd")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email", vErr.Fields[0].Field)

	assert.NoError(t, svc.CheckUniqueness(ctx, "amina_d", "amina@test.cd", usr))
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, repo, mailbox := newService(t)
	usr := testutil.CreateUser(t, repo, "Amina", "amina_d", "amina@test.cd", "Secret#123", user.StudentRoles, true)

	assert.True(t, core.IsNotFound(svc.RequestPasswordReset(ctx, "nobody@test.cd")))
	require.NoError(t, svc.RequestPasswordReset(ctx, " AMINA@test.cd "))

	msgs := mailbox.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "password_reset", msgs[0].TemplateName)
	data := msgs[0].TemplateData.(map[string]string)

	err := svc.ResetPassword(ctx, user.ResetUserPassword{UID: data["UID"], Token: "bad-token", Password: "N3w#Secret", PasswordConfirm: "N3w#Secret"})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "token", vErr.Fields[0].Field)

	require.NoError(t, svc.ResetPassword(ctx, user.ResetUserPassword{UID: data["UID"], Token: data["Token"], Password: "N3w#Secret", PasswordConfirm: "N3w#Secret"}))
	usr, err = svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3w#Secret"))
}
