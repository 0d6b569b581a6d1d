package backpack

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/user"
)

var (
	// errors
	ErrHomeworkNotFound = core.NotFoundError{Entity: "homework"}
	ErrBackpackNotFound = core.NotFoundError{Entity: "backpack"}
)

type (
	Repository interface {
		CreateHomework(ctx context.Context, hw Homework) (Homework, error)
		// QueryHomework returns every homework, newest first.
		QueryHomework(ctx context.Context) ([]Homework, error)
		GetHomeworkByID(ctx context.Context, id string) (Homework, error)
		// UpdateHomework replaces the editable fields; the author and creation time are kept.
		UpdateHomework(ctx context.Context, hw Homework) (Homework, error)
		DeleteHomework(ctx context.Context, id string) error
		GetBackpack(ctx context.Context, studentID string) (Backpack, error)
		SaveBackpack(ctx context.Context, bp Backpack) (Backpack, error)
	}

	// MessageInput is what the assistant gets to phrase a check result.
	MessageInput struct {
		StudentName   string   `json:"studentName"`
		HomeworkTitle string   `json:"homeworkTitle"`
		CurrentBooks  []string `json:"currentBooks"`
		RequiredBooks []string `json:"requiredBooks"`
		MissingBooks  []string `json:"missingBooks"`
		Status        string   `json:"status"`
	}

	// Assistant phrases check results for students.
	Assistant interface {
		BookRequirementMessage(ctx context.Context, in MessageInput) (string, error)
	}

	// Rewarder applies the check outcome to the student's points and streak.
	Rewarder interface {
		RecordCheck(ctx context.Context, id string, complete bool) (user.User, error)
	}

	Service interface {
		CreateHomework(ctx context.Context, nh NewHomework, creator user.User) (Homework, error)
		ListHomework(ctx context.Context) ([]Homework, error)
		GetHomework(ctx context.Context, id string) (Homework, error)
		UpdateHomework(ctx context.Context, id string, nh NewHomework) (Homework, error)
		DeleteHomework(ctx context.Context, id string) error
		GetBackpack(ctx context.Context, studentID string) (Backpack, error)
		UpdateBackpack(ctx context.Context, studentID string, ub UpdateBackpack) (Backpack, error)
		Check(ctx context.Context, student user.User, homeworkID string) (CheckResult, error)
	}

	service struct {
		repo      Repository
		rewards   Rewarder
		assistant Assistant
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

// NewService returns the backpack Service; assistant may be nil.
func NewService(repo Repository, rewards Rewarder, assistant Assistant, logger core.Logger) Service {
	return &service{repo: repo, rewards: rewards, assistant: assistant, logger: logger}
}

func (svc *service) CreateHomework(ctx context.Context, nh NewHomework, creator user.User) (Homework, error) {
	hw := Homework{
		ID:            uuid.New().String(),
		Title:         nh.Title,
		Subject:       nh.Subject,
		DueDate:       nh.DueDate,
		RequiredBooks: nh.RequiredBooks,
		CreatedBy:     creator.ID,
		CreatedAt:     core.NowFunc().UTC(),
	}
	return svc.repo.CreateHomework(ctx, hw)
}

func (svc *service) ListHomework(ctx context.Context) ([]Homework, error) {
	return svc.repo.QueryHomework(ctx)
}

func (svc *service) GetHomework(ctx context.Context, id string) (Homework, error) {
	return svc.repo.GetHomeworkByID(ctx, id)
}

func (svc *service) UpdateHomework(ctx context.Context, id string, nh NewHomework) (Homework, error) {
	return svc.repo.UpdateHomework(ctx, Homework{
		ID:            id,
		Title:         nh.Title,
		Subject:       nh.Subject,
		DueDate:       nh.DueDate,
		RequiredBooks: nh.RequiredBooks,
	})
}

func (svc *service) DeleteHomework(ctx context.Context, id string) error {
	if _, err := svc.repo.GetHomeworkByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteHomework(ctx, id)
}

// GetBackpack returns the student's backpack, empty if never set.
func (svc *service) GetBackpack(ctx context.Context, studentID string) (Backpack, error) {
	bp, err := svc.repo.GetBackpack(ctx, studentID)
	if err != nil {
		if core.IsNotFound(err) {
			return Backpack{StudentID: studentID, Books: []string{}}, nil
		}
		return Backpack{}, err
	}
	return bp, nil
}

func (svc *service) UpdateBackpack(ctx context.Context, studentID string, ub UpdateBackpack) (Backpack, error) {
	books := ub.Books
	if books == nil {
		books = []string{}
	}
	return svc.repo.SaveBackpack(ctx, Backpack{
		StudentID: studentID,
		Books:     books,
		UpdatedAt: core.NowFunc().UTC(),
	})
}

// Check compares the student's backpack against the homework's required books and applies the reward rule.
func (svc *service) Check(ctx context.Context, student user.User, homeworkID string) (CheckResult, error) {
	hw, err := svc.repo.GetHomeworkByID(ctx, homeworkID)
	if err != nil {
		return CheckResult{}, err
	}
	bp, err := svc.GetBackpack(ctx, student.ID)
	if err != nil {
		return CheckResult{}, errors.Wrap(err, "getting backpack")
	}

	res := Evaluate(hw, bp)
	if svc.assistant != nil {
		msg, err := svc.assistant.BookRequirementMessage(ctx, MessageInput{
			StudentName:   student.Name,
			HomeworkTitle: hw.Title,
			CurrentBooks:  bp.Books,
			RequiredBooks: hw.RequiredBooks,
			MissingBooks:  res.MissingBooks,
			Status:        res.Status,
		})
		switch {
		case err != nil:
			if svc.logger != nil {
				svc.logger.Warn("backpack: assistant message failed, using default", err)
			}
		case core.CleanString(msg) != "":
			res.Message = core.CleanString(msg)
		}
	}

	usr, err := svc.rewards.RecordCheck(ctx, student.ID, res.IsComplete())
	if err != nil {
		return CheckResult{}, errors.Wrap(err, "recording check")
	}
	res.Points = usr.Points
	res.Streak = usr.Streak
	return res, nil
}
