package leave

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/grade"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Chat roles
const (
	RoleUser  = "user"
	RoleModel = "model"
)

const reasonMinLen = 10

// Request is a student's leave request.
type Request struct {
	ID          string        `json:"id"`
	StudentID   string        `json:"student_id"`
	StudentName string        `json:"student_name"`
	StartDate   string        `json:"start_date"` // YYYY-MM-DD
	EndDate     string        `json:"end_date"`   // YYYY-MM-DD
	Reason      string        `json:"reason"`
	Status      string        `json:"status"`
	Analysis    *Analysis     `json:"analysis,omitempty"`
	Chat        []ChatMessage `json:"chat"`
	DecidedBy   string        `json:"decided_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"` // UTC
	UpdatedAt   time.Time     `json:"updated_at"` // UTC
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
}

func (r Request) IsPending() bool { return r.Status == StatusPending }

// Analysis is the assistant's risk assessment of a request.
// Input is the context it was made in; follow-up chat replays it.
type Analysis struct {
	Summary    string         `json:"summary"`
	RiskScore  float64        `json:"riskScore"`
	AnalyzedAt time.Time      `json:"analyzed_at"` // UTC
	Input      *AnalysisInput `json:"input,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PastLeave is a decided request, as given to the assistant.
type PastLeave struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
}

// AnalysisInput is the context the assistant assesses a request in.
type AnalysisInput struct {
	StudentID         string              `json:"studentId"`
	StudentName       string              `json:"studentName"`
	LeaveStartDate    string              `json:"leaveStartDate"`
	LeaveEndDate      string              `json:"leaveEndDate"`
	Reason            string              `json:"reason"`
	PastLeaveRequests []PastLeave         `json:"pastLeaveRequests"`
	PastAttendance    []attendance.Record `json:"pastAttendance"`
	Grades            []grade.Grade       `json:"grades"`
}

// ChatInput continues the conversation about an analysis.
type ChatInput struct {
	OriginalRequest AnalysisInput `json:"originalRequest"`
	InitialAnalysis Analysis      `json:"initialAnalysis"`
	History         []ChatMessage `json:"history"`
	Question        string        `json:"question"`
}

// NewRequest contains information needed to submit a Request.
type NewRequest struct {
	StartDate string `json:"start_date" validate:"required,isodate"`
	EndDate   string `json:"end_date" validate:"omitempty,isodate"`
	Reason    string `json:"reason" validate:"required,min=10"`
}

// Validate cleans nr and checks it; a missing end date defaults to the start date.
func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.StartDate = core.CleanString(nr.StartDate)
	nr.EndDate = core.CleanString(nr.EndDate)
	nr.Reason = core.CleanString(nr.Reason)
	if nr.EndDate == "" {
		nr.EndDate = nr.StartDate
	}
	if err := validate.Struct(nr); err != nil {
		return err
	}
	// YYYY-MM-DD dates order lexically
	if nr.EndDate < nr.StartDate {
		return core.NewFieldError("end_date", "end date cannot be before start date")
	}
	return nil
}

// Decision approves or rejects a pending Request.
type Decision struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Status = core.CleanString(d.Status, true /* lower */)
	return validate.Struct(d)
}

// ChatQuestion is a teacher's follow-up question about an analysis.
type ChatQuestion struct {
	Question string `json:"question" validate:"required,notblank"`
}

func (q *ChatQuestion) Validate(validate *validator.Validate) error {
	q.Question = core.CleanString(q.Question)
	return validate.Struct(q)
}
