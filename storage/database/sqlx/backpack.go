package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core/backpack"
)

type homeworkRow struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	Subject       string         `db:"subject"`
	DueDate       string         `db:"due_date"`
	RequiredBooks pq.StringArray `db:"required_books"`
	CreatedBy     string         `db:"created_by"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r homeworkRow) toHomework() backpack.Homework {
	return backpack.Homework{
		ID:            r.ID,
		Title:         r.Title,
		Subject:       r.Subject,
		DueDate:       r.DueDate,
		RequiredBooks: []string(r.RequiredBooks),
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type backpackRow struct {
	StudentID string         `db:"student_id"`
	Books     pq.StringArray `db:"books"`
	UpdatedAt time.Time      `db:"updated_at"`
}

type backpackRepository struct {
	db *sqlx.DB
}

var _ backpack.Repository = (*backpackRepository)(nil)

func NewBackpackRepository(db *sqlx.DB) backpack.Repository {
	return &backpackRepository{db: db}
}

func (repo *backpackRepository) CreateHomework(ctx context.Context, hw backpack.Homework) (backpack.Homework, error) {
	q := `INSERT INTO homework (id, title, subject, due_date, required_books, created_by, created_at)
		VALUES (:id, :title, :subject, :due_date, :required_books, :created_by, :created_at)`
	row := homeworkRow{
		ID:            hw.ID,
		Title:         hw.Title,
		Subject:       hw.Subject,
		DueDate:       hw.DueDate,
		RequiredBooks: pq.StringArray(hw.RequiredBooks),
		CreatedBy:     hw.CreatedBy,
		CreatedAt:     hw.CreatedAt,
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return backpack.Homework{}, errors.Wrap(err, "inserting homework")
	}
	return hw, nil
}

func (repo *backpackRepository) QueryHomework(ctx context.Context) ([]backpack.Homework, error) {
	var rows []homeworkRow
	q := `SELECT id, title, subject, due_date, required_books, created_by, created_at FROM homework
		ORDER BY created_at DESC, id ASC`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying homework")
	}
	hws := make([]backpack.Homework, 0, len(rows))
	for _, r := range rows {
		hws = append(hws, r.toHomework())
	}
	return hws, nil
}

func (repo *backpackRepository) GetHomeworkByID(ctx context.Context, id string) (backpack.Homework, error) {
	var row homeworkRow
	q := `SELECT id, title, subject, due_date, required_books, created_by, created_at FROM homework WHERE id::text = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return backpack.Homework{}, backpack.ErrHomeworkNotFound
		}
		return backpack.Homework{}, errors.Wrap(err, "getting homework")
	}
	return row.toHomework(), nil
}

func (repo *backpackRepository) UpdateHomework(ctx context.Context, hw backpack.Homework) (backpack.Homework, error) {
	q := `UPDATE homework SET title = $2, subject = $3, due_date = $4, required_books = $5 WHERE id::text = $1`
	res, err := repo.db.ExecContext(ctx, q, hw.ID, hw.Title, hw.Subject, hw.DueDate, pq.StringArray(hw.RequiredBooks))
	if err != nil {
		return backpack.Homework{}, errors.Wrap(err, "updating homework")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return backpack.Homework{}, backpack.ErrHomeworkNotFound
	}
	return repo.GetHomeworkByID(ctx, hw.ID)
}

func (repo *backpackRepository) DeleteHomework(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM homework WHERE id::text = $1`, id); err != nil {
		return errors.Wrap(err, "deleting homework")
	}
	return nil
}

func (repo *backpackRepository) GetBackpack(ctx context.Context, studentID string) (backpack.Backpack, error) {
	var row backpackRow
	q := `SELECT student_id, books, updated_at FROM backpacks WHERE student_id::text = $1`
	if err := repo.db.GetContext(ctx, &row, q, studentID); err != nil {
		if isNoRows(err) {
			return backpack.Backpack{}, backpack.ErrBackpackNotFound
		}
		return backpack.Backpack{}, errors.Wrap(err, "getting backpack")
	}
	return backpack.Backpack{StudentID: row.StudentID, Books: []string(row.Books), UpdatedAt: row.UpdatedAt.UTC()}, nil
}

func (repo *backpackRepository) SaveBackpack(ctx context.Context, bp backpack.Backpack) (backpack.Backpack, error) {
	q := `INSERT INTO backpacks (student_id, books, updated_at) VALUES (:student_id, :books, :updated_at)
		ON CONFLICT (student_id) DO UPDATE SET books = EXCLUDED.books, updated_at = EXCLUDED.updated_at`
	row := backpackRow{StudentID: bp.StudentID, Books: pq.StringArray(bp.Books), UpdatedAt: bp.UpdatedAt}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return backpack.Backpack{}, errors.Wrap(err, "saving backpack")
	}
	return bp, nil
}
