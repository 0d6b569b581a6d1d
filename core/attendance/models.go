package attendance

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/smartbackpack/core"
)

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// Record is a student's attendance on a given day.
type Record struct {
	StudentID string    `json:"student_id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Status    string    `json:"status"`
	MarkedBy  string    `json:"marked_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// MarkDay sets the status of several students for one day.
type MarkDay struct {
	Date  string            `json:"date" validate:"required,isodate"`
	Marks map[string]string `json:"marks" validate:"dive,keys,required,endkeys,oneof=present absent"`
}

func (md *MarkDay) Validate(validate *validator.Validate) error {
	md.Date = core.CleanString(md.Date)
	if md.Date == "" {
		md.Date = core.Today()
	}
	cleaned := make(map[string]string, len(md.Marks))
	for id, status := range md.Marks {
		cleaned[core.CleanString(id)] = core.CleanString(status, true /* lower */)
	}
	md.Marks = cleaned
	return validate.Struct(md)
}

// Summary aggregates a student's attendance history.
type Summary struct {
	Total             int     `json:"total"`
	Present           int     `json:"present"`
	Absent            int     `json:"absent"`
	AbsenceRate       float64 `json:"absence_rate"`
	LongestAbsenceRun int     `json:"longest_absence_run"`
	LastDate          string  `json:"last_date,omitempty"`
	LastStatus        string  `json:"last_status,omitempty"`
}

// Summarize computes the Summary of records, in any order.
func Summarize(records []Record) Summary {
	sorted := SortByDate(records)

	var sum Summary
	var run int
	for _, rec := range sorted {
		sum.Total++
		if rec.Status == StatusAbsent {
			sum.Absent++
			run++
			if run > sum.LongestAbsenceRun {
				sum.LongestAbsenceRun = run
			}
		} else {
			sum.Present++
			run = 0
		}
		sum.LastDate = rec.Date
		sum.LastStatus = rec.Status
	}
	if sum.Total > 0 {
		sum.AbsenceRate = float64(sum.Absent) / float64(sum.Total)
	}
	return sum
}

// SortByDate returns a copy of records ordered by date ascending.
func SortByDate(records []Record) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
	return sorted
}

// Analysis is the assistant's assessment of an attendance history.
type Analysis struct {
	Summary   string  `json:"summary"`
	RiskScore float64 `json:"riskScore"`
}

// Report is the result of analyzing one student.
type Report struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Analysis    Analysis  `json:"analysis"`
	Flagged     bool      `json:"flagged"`
	AnalyzedAt  time.Time `json:"analyzed_at"` // UTC
}
