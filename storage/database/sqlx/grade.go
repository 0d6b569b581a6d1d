package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core/grade"
)

type gradeRow struct {
	ID         string    `db:"id"`
	StudentID  string    `db:"student_id"`
	Subject    string    `db:"subject"`
	Grade      float64   `db:"grade"`
	RecordedBy string    `db:"recorded_by"`
	CreatedAt  time.Time `db:"created_at"`
}

type gradeRepository struct {
	db *sqlx.DB
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *sqlx.DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	q := `INSERT INTO grades (id, student_id, subject, grade, recorded_by, created_at)
		VALUES (:id, :student_id, :subject, :grade, :recorded_by, :created_at)`
	row := gradeRow(g)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return g, nil
}

func (repo *gradeRepository) QueryGradesByStudent(ctx context.Context, studentID string) ([]grade.Grade, error) {
	var rows []gradeRow
	q := `SELECT id, student_id, subject, grade, recorded_by, created_at FROM grades
		WHERE student_id::text = $1 ORDER BY created_at ASC, id ASC`
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]grade.Grade, 0, len(rows))
	for _, r := range rows {
		g := grade.Grade(r)
		g.CreatedAt = g.CreatedAt.UTC()
		grades = append(grades, g)
	}
	return grades, nil
}
