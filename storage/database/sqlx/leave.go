package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core/leave"
)

const leaveColumns = `id, student_id, student_name, start_date, end_date, reason, status, analysis, chat,
	decided_by, created_at, updated_at, decided_at`

type leaveRow struct {
	ID          string         `db:"id"`
	StudentID   string         `db:"student_id"`
	StudentName string         `db:"student_name"`
	StartDate   string         `db:"start_date"`
	EndDate     string         `db:"end_date"`
	Reason      string         `db:"reason"`
	Status      string         `db:"status"`
	Analysis    sql.NullString `db:"analysis"` // JSONB, NULL until analyzed
	Chat        string         `db:"chat"`     // JSONB
	DecidedBy   string         `db:"decided_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	DecidedAt   sql.NullTime   `db:"decided_at"`
}

func toLeaveRow(r leave.Request) (leaveRow, error) {
	row := leaveRow{
		ID:          r.ID,
		StudentID:   r.StudentID,
		StudentName: r.StudentName,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Reason:      r.Reason,
		Status:      r.Status,
		DecidedBy:   r.DecidedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Analysis != nil {
		data, err := json.Marshal(r.Analysis)
		if err != nil {
			return leaveRow{}, err
		}
		row.Analysis = sql.NullString{String: string(data), Valid: true}
	}
	chat := r.Chat
	if chat == nil {
		chat = []leave.ChatMessage{}
	}
	data, err := json.Marshal(chat)
	if err != nil {
		return leaveRow{}, err
	}
	row.Chat = string(data)
	if r.DecidedAt != nil {
		row.DecidedAt = sql.NullTime{Time: *r.DecidedAt, Valid: true}
	}
	return row, nil
}

func (row leaveRow) toRequest() (leave.Request, error) {
	r := leave.Request{
		ID:          row.ID,
		StudentID:   row.StudentID,
		StudentName: row.StudentName,
		StartDate:   row.StartDate,
		EndDate:     row.EndDate,
		Reason:      row.Reason,
		Status:      row.Status,
		Chat:        []leave.ChatMessage{},
		DecidedBy:   row.DecidedBy,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.Analysis.Valid {
		var a leave.Analysis
		if err := json.Unmarshal([]byte(row.Analysis.String), &a); err != nil {
			return leave.Request{}, err
		}
		r.Analysis = &a
	}
	if row.Chat != "" {
		if err := json.Unmarshal([]byte(row.Chat), &r.Chat); err != nil {
			return leave.Request{}, err
		}
	}
	if row.DecidedAt.Valid {
		t := row.DecidedAt.Time.UTC()
		r.DecidedAt = &t
	}
	return r, nil
}

type leaveRepository struct {
	db *sqlx.DB
}

var _ leave.Repository = (*leaveRepository)(nil)

func NewLeaveRepository(db *sqlx.DB) leave.Repository {
	return &leaveRepository{db: db}
}

func (repo *leaveRepository) CreateRequest(ctx context.Context, r leave.Request) (leave.Request, error) {
	row, err := toLeaveRow(r)
	if err != nil {
		return leave.Request{}, errors.Wrap(err, "encoding leave request")
	}
	q := `INSERT INTO leave_requests (` + leaveColumns + `)
		VALUES (:id, :student_id, :student_name, :start_date, :end_date, :reason, :status, :analysis, :chat,
			:decided_by, :created_at, :updated_at, :decided_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return leave.Request{}, errors.Wrap(err, "inserting leave request")
	}
	return r, nil
}

func (repo *leaveRepository) GetRequestByID(ctx context.Context, id string) (leave.Request, error) {
	var row leaveRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+leaveColumns+` FROM leave_requests WHERE id::text = $1`, id); err != nil {
		if isNoRows(err) {
			return leave.Request{}, leave.ErrNotFound
		}
		return leave.Request{}, errors.Wrap(err, "getting leave request")
	}
	r, err := row.toRequest()
	return r, errors.Wrap(err, "decoding leave request")
}

func (repo *leaveRepository) query(ctx context.Context, q string, arg interface{}) ([]leave.Request, error) {
	var rows []leaveRow
	if err := repo.db.SelectContext(ctx, &rows, q, arg); err != nil {
		return nil, errors.Wrap(err, "querying leave requests")
	}
	reqs := make([]leave.Request, 0, len(rows))
	for _, row := range rows {
		r, err := row.toRequest()
		if err != nil {
			return nil, errors.Wrap(err, "decoding leave request")
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

func (repo *leaveRepository) QueryRequestsByStudent(ctx context.Context, studentID string) ([]leave.Request, error) {
	return repo.query(ctx, `SELECT `+leaveColumns+` FROM leave_requests
		WHERE student_id::text = $1 ORDER BY created_at DESC, id DESC`, studentID)
}

func (repo *leaveRepository) QueryRequestsByStatus(ctx context.Context, status string) ([]leave.Request, error) {
	return repo.query(ctx, `SELECT `+leaveColumns+` FROM leave_requests
		WHERE status = $1 ORDER BY created_at ASC, id ASC`, status)
}

func (repo *leaveRepository) UpdateRequest(ctx context.Context, r leave.Request) (leave.Request, error) {
	row, err := toLeaveRow(r)
	if err != nil {
		return leave.Request{}, errors.Wrap(err, "encoding leave request")
	}
	q := `UPDATE leave_requests SET student_name = :student_name, start_date = :start_date, end_date = :end_date,
			reason = :reason, status = :status, analysis = :analysis, chat = :chat, decided_by = :decided_by,
			updated_at = :updated_at, decided_at = :decided_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return leave.Request{}, errors.Wrap(err, "updating leave request")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return leave.Request{}, leave.ErrNotFound
	}
	return repo.GetRequestByID(ctx, r.ID)
}
