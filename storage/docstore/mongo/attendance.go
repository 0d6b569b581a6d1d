package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/smartbackpack/core/attendance"
)

type attendanceDoc struct {
	StudentID string    `bson:"student_id"`
	Date      string    `bson:"date"`
	Status    string    `bson:"status"`
	MarkedBy  string    `bson:"marked_by"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d attendanceDoc) toRecord() attendance.Record {
	return attendance.Record{
		StudentID: d.StudentID,
		Date:      d.Date,
		Status:    d.Status,
		MarkedBy:  d.MarkedBy,
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type attendanceRepository struct {
	col *mongo.Collection
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *mongo.Database) attendance.Repository {
	return &attendanceRepository{col: db.Collection(attendanceCol)}
}

func (repo *attendanceRepository) UpsertRecords(ctx context.Context, records ...attendance.Record) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"student_id": rec.StudentID, "date": rec.Date}).
			SetReplacement(attendanceDoc{
				StudentID: rec.StudentID,
				Date:      rec.Date,
				Status:    rec.Status,
				MarkedBy:  rec.MarkedBy,
				UpdatedAt: rec.UpdatedAt,
			}).
			SetUpsert(true))
	}
	if _, err := repo.col.BulkWrite(ctx, models); err != nil {
		return errors.Wrap(err, "upserting attendance")
	}
	return nil
}

func (repo *attendanceRepository) query(ctx context.Context, q bson.M, sort bson.D) ([]attendance.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cur, err := repo.col.Find(ctx, q, options.Find().SetSort(sort))
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	docs, err := decodeAll[attendanceDoc](ctx, cur)
	if err != nil {
		return nil, errors.Wrap(err, "decoding attendance")
	}
	records := make([]attendance.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.toRecord())
	}
	return records, nil
}

func (repo *attendanceRepository) QueryRecordsByStudent(ctx context.Context, studentID string) ([]attendance.Record, error) {
	return repo.query(ctx, bson.M{"student_id": studentID}, bson.D{{Key: "date", Value: 1}})
}

func (repo *attendanceRepository) QueryRecordsByDate(ctx context.Context, date string) ([]attendance.Record, error) {
	return repo.query(ctx, bson.M{"date": date}, bson.D{{Key: "student_id", Value: 1}})
}
