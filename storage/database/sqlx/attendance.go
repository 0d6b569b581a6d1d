package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core/attendance"
)

type attendanceRow struct {
	StudentID string    `db:"student_id"`
	Date      string    `db:"date"`
	Status    string    `db:"status"`
	MarkedBy  string    `db:"marked_by"`
	UpdatedAt time.Time `db:"updated_at"`
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) UpsertRecords(ctx context.Context, records ...attendance.Record) error {
	if len(records) == 0 {
		return nil
	}
	q := `INSERT INTO attendance (student_id, date, status, marked_by, updated_at)
		VALUES (:student_id, :date, :status, :marked_by, :updated_at)
		ON CONFLICT (student_id, date) DO UPDATE
		SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at`

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	for _, rec := range records {
		row := attendanceRow{
			StudentID: rec.StudentID,
			Date:      rec.Date,
			Status:    rec.Status,
			MarkedBy:  rec.MarkedBy,
			UpdatedAt: rec.UpdatedAt,
		}
		if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "upserting attendance")
		}
	}
	return errors.Wrap(tx.Commit(), "committing attendance")
}

func (repo *attendanceRepository) query(ctx context.Context, q string, arg interface{}) ([]attendance.Record, error) {
	var rows []attendanceRow
	if err := repo.db.SelectContext(ctx, &rows, q, arg); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, attendance.Record{
			StudentID: r.StudentID,
			Date:      r.Date,
			Status:    r.Status,
			MarkedBy:  r.MarkedBy,
			UpdatedAt: r.UpdatedAt.UTC(),
		})
	}
	return records, nil
}

func (repo *attendanceRepository) QueryRecordsByStudent(ctx context.Context, studentID string) ([]attendance.Record, error) {
	return repo.query(ctx, `SELECT student_id, date, status, marked_by, updated_at FROM attendance
		WHERE student_id::text = $1 ORDER BY date ASC`, studentID)
}

func (repo *attendanceRepository) QueryRecordsByDate(ctx context.Context, date string) ([]attendance.Record, error) {
	return repo.query(ctx, `SELECT student_id, date, status, marked_by, updated_at FROM attendance
		WHERE date = $1 ORDER BY student_id ASC`, date)
}
