package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/grade"
	"github.com/trezcool/smartbackpack/core/user"
)

func Test_attendanceApi(t *testing.T) {
	app := setup(t)
	teacher := app.createUser(t, "Teacher", "teacher_u", user.TeacherRoles)
	amina := app.createUser(t, "Amina", "amina_d", user.StudentRoles)
	bob := app.createUser(t, "Bob", "bob_kab", user.StudentRoles)
	tToken := app.token(t, teacher)

	mark := func(date string, marks map[string]string) int {
		return app.do(http.MethodPost, "/v1/attendance", tToken, marchallObj(t, attendance.MarkDay{Date: date, Marks: marks})).Code
	}

	assert.Equal(t, http.StatusForbidden, app.do(http.MethodPost, "/v1/attendance", app.token(t, amina),
		marchallObj(t, attendance.MarkDay{Date: "2024-05-01", Marks: map[string]string{amina.ID: "present"}})).Code)

	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"marks": `unknown student "nobody"`})},
		app.do(http.MethodPost, "/v1/attendance", tToken, marchallObj(t, attendance.MarkDay{Date: "2024-05-01", Marks: map[string]string{"nobody": "present"}})))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"marks": `"` + teacher.ID + `" is not a student`})},
		app.do(http.MethodPost, "/v1/attendance", tToken, marchallObj(t, attendance.MarkDay{Date: "2024-05-01", Marks: map[string]string{teacher.ID: "present"}})))
	assert.Equal(t, http.StatusBadRequest, mark("2024-05-01", map[string]string{amina.ID: "late"}))
	assert.Equal(t, http.StatusBadRequest, mark("01/05/2024", map[string]string{amina.ID: "present"}))

	require.Equal(t, http.StatusOK, mark("2024-05-02", map[string]string{amina.ID: "Absent", bob.ID: "present"}))
	require.Equal(t, http.StatusOK, mark("2024-05-01", map[string]string{amina.ID: "absent"}))
	require.Equal(t, http.StatusOK, mark("2024-05-03", map[string]string{amina.ID: "present"}))
	require.Equal(t, http.StatusOK, mark("2024-05-03", map[string]string{amina.ID: "absent"})) // overwrites

	t.Run("history", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/attendance/"+amina.ID, app.token(t, amina))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp HistoryResponse
		decode(t, rec, &resp)
		require.Len(t, resp.Records, 3)
		assert.Equal(t, "2024-05-01", resp.Records[0].Date)
		assert.Equal(t, "2024-05-03", resp.Records[2].Date)
		assert.Equal(t, attendance.StatusAbsent, resp.Records[2].Status)
		assert.Equal(t, attendance.Summary{
			Total: 3, Absent: 3, AbsenceRate: 1, LongestAbsenceRun: 3, LastDate: "2024-05-03", LastStatus: attendance.StatusAbsent,
		}, resp.Summary)

		assert.Equal(t, http.StatusForbidden, app.do(http.MethodGet, "/v1/attendance/"+amina.ID, app.token(t, bob)).Code)
		assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/v1/attendance/"+bob.ID, tToken).Code)
		assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/v1/attendance/nobody", tToken).Code)
	})

	t.Run("analyze", func(t *testing.T) {
		var got attendance.AnomalyInput
		app.assistant.AttendanceFunc = func(in attendance.AnomalyInput) (attendance.Analysis, error) {
			got = in
			return attendance.Analysis{Summary: "Three absences in a row.", RiskScore: 0.8}, nil
		}

		assert.Equal(t, http.StatusForbidden, app.do(http.MethodPost, "/v1/attendance/"+amina.ID+"/analyze", app.token(t, amina)).Code)

		rec := app.do(http.MethodPost, "/v1/attendance/"+amina.ID+"/analyze", tToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rep attendance.Report
		decode(t, rec, &rep)
		assert.True(t, rep.Flagged)
		assert.Equal(t, 0.8, rep.Analysis.RiskScore)
		assert.Equal(t, "Amina", rep.StudentName)

		assert.Equal(t, amina.ID, got.StudentID)
		assert.Equal(t, core.Today(), got.CurrentDate)
		assert.Len(t, got.History, 3)
		assert.Equal(t, 3, got.Summary.Absent)

		sent := app.mailSvc.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "staff@test.test", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "80")
	})
}

func Test_attendanceApi_withoutAssistant(t *testing.T) {
	app := setup(t, withoutAssistant())
	teacher := app.createUser(t, "Teacher", "teacher_u", user.TeacherRoles)
	amina := app.createUser(t, "Amina", "amina_d", user.StudentRoles)

	checkCodeAndData(t, httpTest{wantCode: http.StatusServiceUnavailable, wantData: marchallObj(t, httpErr{Error: "AI assistant unavailable"})},
		app.do(http.MethodPost, "/v1/attendance/"+amina.ID+"/analyze", app.token(t, teacher)))
}

func Test_gradeApi(t *testing.T) {
	app := setup(t)
	teacher := app.createUser(t, "Teacher", "teacher_u", user.TeacherRoles)
	amina := app.createUser(t, "Amina", "amina_d", user.StudentRoles)
	bob := app.createUser(t, "Bob", "bob_kab", user.StudentRoles)
	tToken := app.token(t, teacher)

	score := func(f float64) *float64 { return &f }

	assert.Equal(t, http.StatusForbidden, app.do(http.MethodPost, "/v1/grades", app.token(t, amina),
		marchallObj(t, grade.NewGrade{StudentID: amina.ID, Subject: "Maths", Grade: score(100)})).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodPost, "/v1/grades", tToken,
		marchallObj(t, grade.NewGrade{StudentID: amina.ID, Subject: "Maths", Grade: score(120)})).Code)
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": "unknown student"})},
		app.do(http.MethodPost, "/v1/grades", tToken, marchallObj(t, grade.NewGrade{StudentID: "nobody", Subject: "Maths", Grade: score(50)})))

	for _, g := range []float64{0, 72.5} {
		rec := app.do(http.MethodPost, "/v1/grades", tToken, marchallObj(t, grade.NewGrade{StudentID: amina.ID, Subject: "Maths", Grade: score(g)}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := app.do(http.MethodGet, "/v1/grades/"+amina.ID, app.token(t, amina))
	require.Equal(t, http.StatusOK, rec.Code)
	var grades []grade.Grade
	decode(t, rec, &grades)
	require.Len(t, grades, 2)
	assert.Equal(t, 0.0, grades[0].Grade)
	assert.Equal(t, 72.5, grades[1].Grade)
	assert.Equal(t, teacher.ID, grades[1].RecordedBy)

	assert.Equal(t, http.StatusForbidden, app.do(http.MethodGet, "/v1/grades/"+amina.ID, app.token(t, bob)).Code)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, app.do(http.MethodGet, "/v1/grades/"+bob.ID, tToken))
}
