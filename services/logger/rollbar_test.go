package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/user"
)

func newTestLogger(debug bool) (*RollbarLogger, *bytes.Buffer) {
	color.NoColor = true
	var buf bytes.Buffer
	conf := core.NewTestConfig()
	conf.Debug = debug
	l := NewRollbarLogger(log.New(&buf, "", 0), conf)
	l.Enable(false)
	return l, &buf
}

func TestRollbarLogger_prepare(t *testing.T) {
	l, _ := newTestLogger(false)
	err := errors.New("boom")
	extra := map[string]interface{}{"student_id": "s1"}

	got := l.prepare("analyzing", []interface{}{err, user.User{ID: "u1"}, extra, user.User{ID: "u2"}})
	assert.Equal(t, []interface{}{"analyzing", err, extra}, got)
}

func TestRollbarLogger_levels(t *testing.T) {
	l, buf := newTestLogger(false)
	l.Debug("hidden")
	l.Warn("assistant slow", errors.New("timeout"))
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "WARN assistant slow")
	assert.Contains(t, buf.String(), "timeout")

	l, buf = newTestLogger(true)
	l.Debug("shown", user.User{ID: "u1", Name: "secret name"})
	assert.Contains(t, buf.String(), "DEBUG shown")
	assert.NotContains(t, buf.String(), "secret name")
}
