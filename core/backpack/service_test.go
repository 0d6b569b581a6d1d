package backpack_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/backpack"
	"github.com/trezcool/smartbackpack/core/user"
	inmemdb "github.com/trezcool/smartbackpack/storage/database/inmem"
	"github.com/trezcool/smartbackpack/testutil"
)

type fixture struct {
	svc       backpack.Service
	users     user.Repository
	assistant *testutil.Assistant
	logger    *testutil.Logger
}

func newFixture(t *testing.T, withAssistant bool) *fixture {
	t.Helper()
	db := inmemdb.Open()
	f := &fixture{
		users:     inmemdb.NewUserRepository(db),
		assistant: new(testutil.Assistant),
		logger:    new(testutil.Logger),
	}
	var assistant backpack.Assistant
	if withAssistant {
		assistant = f.assistant
	}
	usrSvc := user.NewService(f.users, new(testutil.Mailbox), core.NewTestConfig())
	f.svc = backpack.NewService(inmemdb.NewBackpackRepository(db), usrSvc, assistant, f.logger)
	return f
}

func TestService_Check(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	amina := testutil.CreateStudent(t, f.users, "Amina", 0, 0)

	hw, err := f.svc.CreateHomework(ctx, backpack.NewHomework{Title: "Map reading", RequiredBooks: []string{"Atlas", "Geography 5"}}, user.User{ID: "t1"})
	require.NoError(t, err)

	// empty backpack: the assistant phrases the result
	var got backpack.MessageInput
	f.assistant.BookMessageFunc = func(in backpack.MessageInput) (string, error) {
		got = in
		return "  Pack your Atlas and Geography 5!  ", nil
	}
	res, err := f.svc.Check(ctx, amina, hw.ID)
	require.NoError(t, err)
	assert.Equal(t, backpack.StatusIncomplete, res.Status)
	assert.Equal(t, []string{"Atlas", "Geography 5"}, res.MissingBooks)
	assert.Equal(t, "Pack your Atlas and Geography 5!", res.Message)
	assert.Equal(t, 0, res.Points)
	assert.Equal(t, "Amina", got.StudentName)
	assert.Equal(t, []string{}, got.CurrentBooks)

	_, err = f.svc.UpdateBackpack(ctx, amina.ID, backpack.UpdateBackpack{Books: []string{" Atlas ", "Geography 5"}})
	require.NoError(t, err)

	// assistant failure falls back to the computed message
	f.assistant.BookMessageFunc = func(backpack.MessageInput) (string, error) { return "", errors.New("boom") }
	res, err = f.svc.Check(ctx, amina, hw.ID)
	require.NoError(t, err)
	assert.True(t, res.IsComplete())
	assert.Equal(t, "You have all the required books.", res.Message)
	assert.Equal(t, 10, res.Points)
	assert.Equal(t, 1, res.Streak)
	assert.Len(t, f.logger.Messages(), 1)

	_, err = f.svc.Check(ctx, amina, "nope")
	assert.True(t, core.IsNotFound(err))
}

func TestService_Check_withoutAssistant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	amina := testutil.CreateStudent(t, f.users, "Amina", 20, 2)

	hw, err := f.svc.CreateHomework(ctx, backpack.NewHomework{Title: "Essay", RequiredBooks: []string{"French"}}, user.User{ID: "t1"})
	require.NoError(t, err)

	res, err := f.svc.Check(ctx, amina, hw.ID)
	require.NoError(t, err)
	assert.Equal(t, "You are missing: French", res.Message)
	assert.Equal(t, 20, res.Points)
	assert.Equal(t, 0, res.Streak)
	assert.Empty(t, f.assistant.Calls())
}

func TestService_homework(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	bp, err := f.svc.GetBackpack(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, bp.Books)

	hw, err := f.svc.CreateHomework(ctx, backpack.NewHomework{Title: "Essay", RequiredBooks: []string{"French"}}, user.User{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "t1", hw.CreatedBy)

	list, err := f.svc.ListHomework(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	edited, err := f.svc.UpdateHomework(ctx, hw.ID, backpack.NewHomework{Title: "Long essay", Subject: "French", RequiredBooks: []string{"French", "Dictionary"}})
	require.NoError(t, err)
	assert.Equal(t, hw.ID, edited.ID)
	assert.Equal(t, "Long essay", edited.Title)
	assert.Equal(t, "t1", edited.CreatedBy)
	assert.True(t, edited.CreatedAt.Equal(hw.CreatedAt))

	// the next check uses the edited book list
	amina := testutil.CreateStudent(t, f.users, "Amina", 0, 0)
	_, err = f.svc.UpdateBackpack(ctx, amina.ID, backpack.UpdateBackpack{Books: []string{"French"}})
	require.NoError(t, err)
	res, err := f.svc.Check(ctx, amina, hw.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dictionary"}, res.MissingBooks)

	_, err = f.svc.UpdateHomework(ctx, "nope", backpack.NewHomework{Title: "Ghost", RequiredBooks: []string{"French"}})
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, f.svc.DeleteHomework(ctx, hw.ID))
	assert.True(t, core.IsNotFound(f.svc.DeleteHomework(ctx, hw.ID)))
}
