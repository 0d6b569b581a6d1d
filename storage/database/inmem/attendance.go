package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/smartbackpack/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) UpsertRecords(_ context.Context, records ...attendance.Record) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, rec := range records {
		repo.db.table[attendanceKey{studentID: rec.StudentID, date: rec.Date}] = rec
	}
	return nil
}

func (repo *attendanceRepository) QueryRecordsByStudent(_ context.Context, studentID string) ([]attendance.Record, error) {
	return repo.filter(func(rec attendance.Record) bool { return rec.StudentID == studentID }), nil
}

func (repo *attendanceRepository) QueryRecordsByDate(_ context.Context, date string) ([]attendance.Record, error) {
	return repo.filter(func(rec attendance.Record) bool { return rec.Date == date }), nil
}

func (repo *attendanceRepository) filter(keep func(attendance.Record) bool) []attendance.Record {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.table {
		if keep(rec) {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date == records[j].Date {
			return records[i].StudentID < records[j].StudentID
		}
		return records[i].Date < records[j].Date
	})
	return records
}
