package grade

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/user"
)

// Grade is a student's mark in a subject, out of 100.
type Grade struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Subject    string    `json:"subject"`
	Grade      float64   `json:"grade"`
	RecordedBy string    `json:"recorded_by"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// NewGrade contains information needed to record a Grade.
type NewGrade struct {
	StudentID string   `json:"student_id" validate:"required"`
	Subject   string   `json:"subject" validate:"required,notblank"`
	Grade     *float64 `json:"grade" validate:"required,min=0,max=100"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.StudentID = core.CleanString(ng.StudentID)
	ng.Subject = core.CleanString(ng.Subject)
	return validate.Struct(ng)
}

type (
	Repository interface {
		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		// QueryGradesByStudent returns the student's grades, oldest first.
		QueryGradesByStudent(ctx context.Context, studentID string) ([]Grade, error)
	}

	Students interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		Record(ctx context.Context, ng NewGrade, teacher user.User) (Grade, error)
		List(ctx context.Context, studentID string) ([]Grade, error)
	}

	service struct {
		repo     Repository
		students Students
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, students Students) Service {
	return &service{repo: repo, students: students}
}

func (svc *service) Record(ctx context.Context, ng NewGrade, teacher user.User) (Grade, error) {
	usr, err := svc.students.GetByID(ctx, ng.StudentID)
	if err != nil {
		if core.IsNotFound(err) {
			return Grade{}, core.NewFieldError("student_id", "unknown student")
		}
		return Grade{}, errors.Wrap(err, "getting student")
	}
	if !usr.IsStudent() {
		return Grade{}, core.NewFieldError("student_id", "not a student")
	}
	return svc.repo.CreateGrade(ctx, Grade{
		ID:         uuid.New().String(),
		StudentID:  usr.ID,
		Subject:    ng.Subject,
		Grade:      *ng.Grade,
		RecordedBy: teacher.ID,
		CreatedAt:  core.NowFunc().UTC(),
	})
}

func (svc *service) List(ctx context.Context, studentID string) ([]Grade, error) {
	if _, err := svc.students.GetByID(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryGradesByStudent(ctx, studentID)
}
