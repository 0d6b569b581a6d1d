package boltdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/smartbackpack/core/attendance"
)

type attendanceRepository struct {
	s *Store
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(s *Store) attendance.Repository {
	return &attendanceRepository{s: s}
}

// key orders a student's records by date: "<studentID>:<YYYY-MM-DD>".
func attendanceKey(studentID, date string) string {
	return studentID + ":" + date
}

func (repo *attendanceRepository) UpsertRecords(_ context.Context, records ...attendance.Record) error {
	err := repo.s.db.Update(func(tx *bbolt.Tx) error {
		for _, rec := range records {
			if err := put(tx, attendanceBucket, attendanceKey(rec.StudentID, rec.Date), rec); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "saving attendance")
}

func (repo *attendanceRepository) QueryRecordsByStudent(_ context.Context, studentID string) ([]attendance.Record, error) {
	records, err := list[attendance.Record](repo.s, attendanceBucket, studentID+":", nil)
	if err != nil {
		return nil, errors.Wrap(err, "listing attendance")
	}
	return records, nil
}

func (repo *attendanceRepository) QueryRecordsByDate(_ context.Context, date string) ([]attendance.Record, error) {
	records, err := list[attendance.Record](repo.s, attendanceBucket, "", func(rec attendance.Record) bool {
		return rec.Date == date
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing attendance")
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StudentID < records[j].StudentID })
	return records, nil
}
