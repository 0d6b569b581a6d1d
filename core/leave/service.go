package leave

import (
	"context"
	"net/mail"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/grade"
	"github.com/trezcool/smartbackpack/core/user"
)

var (
	// errors
	ErrNotFound       = core.NotFoundError{Entity: "leave request"}
	ErrNotAnalyzed    = errors.New("leave request has not been analyzed yet")
	ErrAlreadyDecided = errors.New("leave request has already been decided")
	ErrNoAssistant    = errors.New("leave request analysis is not available")
)

type (
	Repository interface {
		CreateRequest(ctx context.Context, r Request) (Request, error)
		GetRequestByID(ctx context.Context, id string) (Request, error)
		// QueryRequestsByStudent returns the student's requests, newest first.
		QueryRequestsByStudent(ctx context.Context, studentID string) ([]Request, error)
		// QueryRequestsByStatus returns the requests with status, oldest first.
		QueryRequestsByStatus(ctx context.Context, status string) ([]Request, error)
		UpdateRequest(ctx context.Context, r Request) (Request, error)
	}

	// Assistant assesses leave requests and answers questions about its assessment.
	Assistant interface {
		AnalyzeLeaveRequest(ctx context.Context, in AnalysisInput) (Analysis, error)
		LeaveRequestChat(ctx context.Context, in ChatInput) (string, error)
	}

	Students interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	AttendanceSource interface {
		History(ctx context.Context, studentID string) ([]attendance.Record, error)
	}

	GradeSource interface {
		List(ctx context.Context, studentID string) ([]grade.Grade, error)
	}

	Service interface {
		Submit(ctx context.Context, student user.User, nr NewRequest) (Request, error)
		Get(ctx context.Context, id string) (Request, error)
		ListByStudent(ctx context.Context, studentID string) ([]Request, error)
		ListPending(ctx context.Context) ([]Request, error)
		Analyze(ctx context.Context, id string) (Request, error)
		Chat(ctx context.Context, id, question string) (Request, error)
		Decide(ctx context.Context, id string, d Decision, teacher user.User) (Request, error)
	}

	service struct {
		repo       Repository
		students   Students
		attendance AttendanceSource
		grades     GradeSource
		assistant  Assistant
		mailSvc    core.EmailService
		conf       *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	students Students,
	attendance AttendanceSource,
	grades GradeSource,
	assistant Assistant,
	mailSvc core.EmailService,
	conf *core.Config,
) Service {
	return &service{
		repo:       repo,
		students:   students,
		attendance: attendance,
		grades:     grades,
		assistant:  assistant,
		mailSvc:    mailSvc,
		conf:       conf,
	}
}

func (svc *service) Submit(ctx context.Context, student user.User, nr NewRequest) (Request, error) {
	now := core.NowFunc().UTC()
	return svc.repo.CreateRequest(ctx, Request{
		ID:          uuid.New().String(),
		StudentID:   student.ID,
		StudentName: student.Name,
		StartDate:   nr.StartDate,
		EndDate:     nr.EndDate,
		Reason:      nr.Reason,
		Status:      StatusPending,
		Chat:        []ChatMessage{},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) Get(ctx context.Context, id string) (Request, error) {
	return svc.repo.GetRequestByID(ctx, id)
}

func (svc *service) ListByStudent(ctx context.Context, studentID string) ([]Request, error) {
	return svc.repo.QueryRequestsByStudent(ctx, studentID)
}

func (svc *service) ListPending(ctx context.Context) ([]Request, error) {
	return svc.repo.QueryRequestsByStatus(ctx, StatusPending)
}

// Analyze assesses the request against the student's history and stores the result.
func (svc *service) Analyze(ctx context.Context, id string) (Request, error) {
	if svc.assistant == nil {
		return Request{}, ErrNoAssistant
	}
	req, err := svc.repo.GetRequestByID(ctx, id)
	if err != nil {
		return Request{}, err
	}
	in, err := svc.analysisInput(ctx, req)
	if err != nil {
		return Request{}, err
	}

	analysis, err := svc.assistant.AnalyzeLeaveRequest(ctx, in)
	if err != nil {
		return Request{}, errors.Wrap(err, "analyzing leave request")
	}
	analysis.AnalyzedAt = core.NowFunc().UTC()
	analysis.Input = &in

	req.Analysis = &analysis
	req.Chat = []ChatMessage{} // a new analysis starts a new conversation
	req.UpdatedAt = analysis.AnalyzedAt
	return svc.repo.UpdateRequest(ctx, req)
}

// analysisInput gathers the student's decided past requests, attendance and grades.
func (svc *service) analysisInput(ctx context.Context, req Request) (AnalysisInput, error) {
	past, err := svc.repo.QueryRequestsByStudent(ctx, req.StudentID)
	if err != nil {
		return AnalysisInput{}, errors.Wrap(err, "querying past requests")
	}
	sort.SliceStable(past, func(i, j int) bool { return past[i].StartDate < past[j].StartDate })
	pastLeaves := make([]PastLeave, 0, len(past))
	for _, r := range past {
		if r.ID == req.ID || r.IsPending() {
			continue
		}
		pastLeaves = append(pastLeaves, PastLeave{
			StartDate: r.StartDate,
			EndDate:   r.EndDate,
			Reason:    r.Reason,
			Status:    r.Status,
		})
	}

	records, err := svc.attendance.History(ctx, req.StudentID)
	if err != nil {
		return AnalysisInput{}, errors.Wrap(err, "getting attendance")
	}
	grades, err := svc.grades.List(ctx, req.StudentID)
	if err != nil {
		return AnalysisInput{}, errors.Wrap(err, "getting grades")
	}

	return AnalysisInput{
		StudentID:         req.StudentID,
		StudentName:       req.StudentName,
		LeaveStartDate:    req.StartDate,
		LeaveEndDate:      req.EndDate,
		Reason:            req.Reason,
		PastLeaveRequests: pastLeaves,
		PastAttendance:    records,
		Grades:            grades,
	}, nil
}

// Chat asks the assistant a follow-up question about the stored analysis.
// The question and answer are appended to the thread only when the assistant answers.
func (svc *service) Chat(ctx context.Context, id, question string) (Request, error) {
	if svc.assistant == nil {
		return Request{}, ErrNoAssistant
	}
	req, err := svc.repo.GetRequestByID(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Analysis == nil {
		return Request{}, core.NewValidationError(ErrNotAnalyzed, core.FieldError{Field: "analysis", Error: ErrNotAnalyzed.Error()})
	}
	// the conversation stays on the context the analysis was made in
	initial := *req.Analysis
	in := initial.Input
	if in == nil {
		snapshot, err := svc.analysisInput(ctx, req)
		if err != nil {
			return Request{}, err
		}
		in = &snapshot
	}
	initial.Input = nil

	history := make([]ChatMessage, len(req.Chat))
	copy(history, req.Chat)
	answer, err := svc.assistant.LeaveRequestChat(ctx, ChatInput{
		OriginalRequest: *in,
		InitialAnalysis: initial,
		History:         history,
		Question:        question,
	})
	if err != nil {
		return Request{}, errors.Wrap(err, "chatting about leave request")
	}

	req.Chat = append(history,
		ChatMessage{Role: RoleUser, Content: question},
		ChatMessage{Role: RoleModel, Content: core.CleanString(answer)},
	)
	req.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateRequest(ctx, req)
}

// Decide approves or rejects a pending request and notifies the student.
func (svc *service) Decide(ctx context.Context, id string, d Decision, teacher user.User) (Request, error) {
	req, err := svc.repo.GetRequestByID(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !req.IsPending() {
		return Request{}, core.NewValidationError(ErrAlreadyDecided, core.FieldError{Field: "status", Error: ErrAlreadyDecided.Error()})
	}

	now := core.NowFunc().UTC()
	req.Status = d.Status
	req.DecidedBy = teacher.ID
	req.DecidedAt = &now
	req.UpdatedAt = now
	req, err = svc.repo.UpdateRequest(ctx, req)
	if err != nil {
		return Request{}, errors.Wrap(err, "updating leave request")
	}

	svc.notifyStudent(ctx, req)
	return req, nil
}

func (svc *service) notifyStudent(ctx context.Context, req Request) {
	if svc.mailSvc == nil {
		return
	}
	student, err := svc.students.GetByID(ctx, req.StudentID)
	if err != nil || student.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(core.NewEmailMessage(
		svc.conf.FrontendBaseURL,
		"Leave request "+req.Status,
		"leave_decision",
		map[string]string{
			"Name":      student.Name,
			"StartDate": req.StartDate,
			"EndDate":   req.EndDate,
			"Status":    req.Status,
			"Reason":    req.Reason,
		},
		mail.Address{Name: student.Name, Address: student.Email},
	))
}
