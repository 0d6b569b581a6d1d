// Package testutil holds helpers shared by the tests of several packages.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/backpack"
	"github.com/trezcool/smartbackpack/core/leave"
	"github.com/trezcool/smartbackpack/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an active student with the given reward counters.
func CreateStudent(t *testing.T, repo user.Repository, name string, points, streak int) user.User {
	t.Helper()
	usr := CreateUser(t, repo, name, "", "", "", user.StudentRoles, true)
	usr.Points = points
	usr.Streak = streak
	usr, err := repo.UpdateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr
}

// Assistant is a scripted AI assistant. Unset funcs fail with ErrNotScripted.
type Assistant struct {
	BookMessageFunc  func(in backpack.MessageInput) (string, error)
	AttendanceFunc   func(in attendance.AnomalyInput) (attendance.Analysis, error)
	LeaveAnalyzeFunc func(in leave.AnalysisInput) (leave.Analysis, error)
	LeaveChatFunc    func(in leave.ChatInput) (string, error)

	mu    sync.Mutex
	calls []string
}

var ErrNotScripted = fmt.Errorf("assistant call not scripted")

var (
	_ backpack.Assistant   = (*Assistant)(nil)
	_ attendance.Assistant = (*Assistant)(nil)
	_ leave.Assistant      = (*Assistant)(nil)
)

func (a *Assistant) record(call string) {
	a.mu.Lock()
	a.calls = append(a.calls, call)
	a.mu.Unlock()
}

// Calls returns the names of the methods called so far, in order.
func (a *Assistant) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *Assistant) BookRequirementMessage(_ context.Context, in backpack.MessageInput) (string, error) {
	a.record("BookRequirementMessage")
	if a.BookMessageFunc == nil {
		return "", ErrNotScripted
	}
	return a.BookMessageFunc(in)
}

func (a *Assistant) DetectAttendanceAnomaly(_ context.Context, in attendance.AnomalyInput) (attendance.Analysis, error) {
	a.record("DetectAttendanceAnomaly")
	if a.AttendanceFunc == nil {
		return attendance.Analysis{}, ErrNotScripted
	}
	return a.AttendanceFunc(in)
}

func (a *Assistant) AnalyzeLeaveRequest(_ context.Context, in leave.AnalysisInput) (leave.Analysis, error) {
	a.record("AnalyzeLeaveRequest")
	if a.LeaveAnalyzeFunc == nil {
		return leave.Analysis{}, ErrNotScripted
	}
	return a.LeaveAnalyzeFunc(in)
}

func (a *Assistant) LeaveRequestChat(_ context.Context, in leave.ChatInput) (string, error) {
	a.record("LeaveRequestChat")
	if a.LeaveChatFunc == nil {
		return "", ErrNotScripted
	}
	return a.LeaveChatFunc(in)
}

// Mailbox is an EmailService keeping the messages it is asked to send.
type Mailbox struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

var _ core.EmailService = (*Mailbox)(nil)

func (m *Mailbox) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	m.messages = append(m.messages, messages...)
	m.mu.Unlock()
}

func (m *Mailbox) Messages() []*core.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*core.EmailMessage(nil), m.messages...)
}

// Logger discards entries, keeping the messages logged at warn level or above.
type Logger struct {
	mu       sync.Mutex
	messages []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) keep(msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

func (l *Logger) Debug(string, ...interface{})       {}
func (l *Logger) Info(string, ...interface{})        {}
func (l *Logger) Warn(msg string, _ ...interface{})  { l.keep(msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.keep(msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.keep(msg) }

func (l *Logger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}
