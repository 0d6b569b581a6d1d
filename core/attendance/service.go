package attendance

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/user"
)

type (
	Repository interface {
		// UpsertRecords stores records keyed by (StudentID, Date), overwriting existing ones.
		UpsertRecords(ctx context.Context, records ...Record) error
		// QueryRecordsByStudent returns the student's records ordered by date ascending.
		QueryRecordsByStudent(ctx context.Context, studentID string) ([]Record, error)
		QueryRecordsByDate(ctx context.Context, date string) ([]Record, error)
	}

	// AnomalyInput is what the assistant gets to assess a student's attendance.
	AnomalyInput struct {
		StudentID   string   `json:"studentId"`
		StudentName string   `json:"studentName"`
		CurrentDate string   `json:"currentDate"`
		History     []Record `json:"history"`
		Summary     Summary  `json:"summary"`
	}

	// Assistant detects abnormal attendance patterns.
	Assistant interface {
		DetectAttendanceAnomaly(ctx context.Context, in AnomalyInput) (Analysis, error)
	}

	// Students looks up the students whose attendance is tracked.
	Students interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	Service interface {
		Mark(ctx context.Context, md MarkDay, marker user.User) ([]Record, error)
		History(ctx context.Context, studentID string) ([]Record, error)
		ByDate(ctx context.Context, date string) ([]Record, error)
		Analyze(ctx context.Context, studentID string) (Report, error)
		Sweep(ctx context.Context) ([]Report, error)
	}

	service struct {
		repo      Repository
		students  Students
		assistant Assistant
		mailSvc   core.EmailService
		logger    core.Logger
		conf      *core.Config
	}
)

var (
	_ Service = (*service)(nil)

	// errors
	ErrNoAssistant = errors.New("attendance analysis is not available")
)

func NewService(
	repo Repository,
	students Students,
	assistant Assistant,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:      repo,
		students:  students,
		assistant: assistant,
		mailSvc:   mailSvc,
		logger:    logger,
		conf:      conf,
	}
}

// Mark upserts one record per student for the day; empty marks are a no-op.
func (svc *service) Mark(ctx context.Context, md MarkDay, marker user.User) ([]Record, error) {
	if len(md.Marks) == 0 {
		return []Record{}, nil
	}

	ids := make([]string, 0, len(md.Marks))
	for id := range md.Marks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := core.NowFunc().UTC()
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		usr, err := svc.students.GetByID(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				return nil, core.NewFieldError("marks", fmt.Sprintf("unknown student %q", id))
			}
			return nil, errors.Wrap(err, "getting student")
		}
		if !usr.IsStudent() {
			return nil, core.NewFieldError("marks", fmt.Sprintf("%q is not a student", id))
		}
		records = append(records, Record{
			StudentID: id,
			Date:      md.Date,
			Status:    md.Marks[id],
			MarkedBy:  marker.ID,
			UpdatedAt: now,
		})
	}

	if err := svc.repo.UpsertRecords(ctx, records...); err != nil {
		return nil, errors.Wrap(err, "saving records")
	}
	return records, nil
}

func (svc *service) History(ctx context.Context, studentID string) ([]Record, error) {
	if _, err := svc.students.GetByID(ctx, studentID); err != nil {
		return nil, err
	}
	records, err := svc.repo.QueryRecordsByStudent(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	return SortByDate(records), nil
}

func (svc *service) ByDate(ctx context.Context, date string) ([]Record, error) {
	return svc.repo.QueryRecordsByDate(ctx, date)
}

// Analyze asks the assistant to assess the student's attendance and alerts staff when the risk is high.
func (svc *service) Analyze(ctx context.Context, studentID string) (Report, error) {
	if svc.assistant == nil {
		return Report{}, ErrNoAssistant
	}
	usr, err := svc.students.GetByID(ctx, studentID)
	if err != nil {
		return Report{}, err
	}
	records, err := svc.repo.QueryRecordsByStudent(ctx, studentID)
	if err != nil {
		return Report{}, errors.Wrap(err, "querying records")
	}
	return svc.analyze(ctx, usr, SortByDate(records))
}

func (svc *service) analyze(ctx context.Context, usr user.User, records []Record) (Report, error) {
	analysis, err := svc.assistant.DetectAttendanceAnomaly(ctx, AnomalyInput{
		StudentID:   usr.ID,
		StudentName: usr.Name,
		CurrentDate: core.Today(),
		History:     records,
		Summary:     Summarize(records),
	})
	if err != nil {
		return Report{}, errors.Wrap(err, "detecting anomaly")
	}

	rep := Report{
		StudentID:   usr.ID,
		StudentName: usr.Name,
		Analysis:    analysis,
		Flagged:     analysis.RiskScore >= svc.conf.Attendance.RiskThreshold,
		AnalyzedAt:  core.NowFunc().UTC(),
	}
	if rep.Flagged {
		svc.notifyStaff(rep, records)
	}
	return rep, nil
}

// Sweep analyzes every active student with at least one absence and returns the flagged reports.
// A failed analysis is logged and does not stop the sweep.
func (svc *service) Sweep(ctx context.Context) ([]Report, error) {
	if svc.assistant == nil {
		return nil, ErrNoAssistant
	}
	active := true
	students, err := svc.students.Query(ctx, &user.QueryFilter{Roles: user.StudentRoles, IsActive: &active}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	flagged := make([]Report, 0)
	for _, usr := range students {
		if err := ctx.Err(); err != nil {
			return flagged, err
		}
		records, err := svc.repo.QueryRecordsByStudent(ctx, usr.ID)
		if err != nil {
			return flagged, errors.Wrap(err, "querying records")
		}
		records = SortByDate(records)
		if Summarize(records).Absent == 0 {
			continue
		}
		rep, err := svc.analyze(ctx, usr, records)
		if err != nil {
			if svc.logger != nil {
				svc.logger.Error(fmt.Sprintf("attendance sweep: analyzing %s", usr.ID), err)
			}
			continue
		}
		if rep.Flagged {
			flagged = append(flagged, rep)
		}
	}
	return flagged, nil
}

// notifyStaff emails the alert to the configured staff, with the history attached as CSV.
func (svc *service) notifyStaff(rep Report, records []Record) {
	if svc.mailSvc == nil || len(svc.conf.Attendance.StaffEmails) == 0 {
		return
	}
	to := make([]mail.Address, 0, len(svc.conf.Attendance.StaffEmails))
	for _, email := range svc.conf.Attendance.StaffEmails {
		to = append(to, mail.Address{Address: email})
	}
	msg := core.NewEmailMessage(
		svc.conf.FrontendBaseURL,
		"Attendance alert: "+rep.StudentName,
		"attendance_alert",
		map[string]interface{}{
			"StudentName": rep.StudentName,
			"StudentID":   rep.StudentID,
			"RiskPercent": fmt.Sprintf("%.0f", rep.Analysis.RiskScore*100),
			"Summary":     rep.Analysis.Summary,
		},
		to...,
	)
	var buf bytes.Buffer
	err := HistoryCSV(&buf, records)
	if err == nil {
		err = msg.Attach(&buf, "attendance_"+rep.StudentID+".csv", "text/csv")
	}
	if err != nil && svc.logger != nil {
		svc.logger.Error(fmt.Sprintf("attaching attendance history of %s", rep.StudentID), err)
	}
	svc.mailSvc.SendMessages(msg)
}

// HistoryCSV writes records as "date,status" rows under a header.
func HistoryCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "status"}); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write([]string{rec.Date, rec.Status}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
