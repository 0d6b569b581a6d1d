package backpack

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/smartbackpack/core"
)

// Check statuses
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
)

const allBooksMessage = "You have all the required books."

// Homework is an assignment and the books it requires.
type Homework struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Subject       string    `json:"subject"`
	DueDate       string    `json:"due_date"` // YYYY-MM-DD, optional
	RequiredBooks []string  `json:"required_books"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// Backpack holds the books currently in a student's backpack.
type Backpack struct {
	StudentID string    `json:"student_id"`
	Books     []string  `json:"books"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// CheckResult is the outcome of comparing a backpack against a homework's requirements.
type CheckResult struct {
	HomeworkID   string   `json:"homework_id"`
	MissingBooks []string `json:"missing_books"`
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	Points       int      `json:"points"`
	Streak       int      `json:"streak"`
}

func (r CheckResult) IsComplete() bool { return r.Status == StatusComplete }

// NewHomework contains information needed to create a Homework.
type NewHomework struct {
	Title         string   `json:"title" validate:"required,notblank"`
	Subject       string   `json:"subject"`
	DueDate       string   `json:"due_date" validate:"omitempty,isodate"`
	RequiredBooks []string `json:"required_books" validate:"required,min=1,dive,notblank"`
}

func (nh *NewHomework) Validate(validate *validator.Validate) error {
	nh.Title = core.CleanString(nh.Title)
	nh.Subject = core.CleanString(nh.Subject)
	nh.DueDate = core.CleanString(nh.DueDate)
	nh.RequiredBooks = CleanTitles(nh.RequiredBooks)
	return validate.Struct(nh)
}

// UpdateBackpack replaces the contents of a student's backpack.
type UpdateBackpack struct {
	Books []string `json:"books" validate:"dive,notblank"`
}

func (ub *UpdateBackpack) Validate(validate *validator.Validate) error {
	ub.Books = CleanTitles(ub.Books)
	return validate.Struct(ub)
}

// CleanTitles trims titles, drops blank ones and removes duplicates, keeping the first occurrence.
func CleanTitles(titles []string) []string {
	cleaned := make([]string, 0, len(titles))
	seen := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		title = core.CleanString(title)
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		cleaned = append(cleaned, title)
	}
	return cleaned
}

// MissingBooks returns the required books absent from present (R \ P), in required order.
// Titles are compared exactly, once trimmed.
func MissingBooks(required, present []string) []string {
	have := make(map[string]struct{}, len(present))
	for _, book := range present {
		have[core.CleanString(book)] = struct{}{}
	}
	missing := make([]string, 0)
	for _, book := range CleanTitles(required) {
		if _, ok := have[book]; !ok {
			missing = append(missing, book)
		}
	}
	return missing
}

// Evaluate computes the deterministic part of a check.
func Evaluate(hw Homework, bp Backpack) CheckResult {
	missing := MissingBooks(hw.RequiredBooks, bp.Books)
	res := CheckResult{HomeworkID: hw.ID, MissingBooks: missing, Status: StatusComplete, Message: allBooksMessage}
	if len(missing) > 0 {
		res.Status = StatusIncomplete
		res.Message = "You are missing: " + strings.Join(missing, ", ")
	}
	return res
}
