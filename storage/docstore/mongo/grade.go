package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/smartbackpack/core/grade"
)

type gradeDoc struct {
	ID         string    `bson:"_id"`
	StudentID  string    `bson:"student_id"`
	Subject    string    `bson:"subject"`
	Grade      float64   `bson:"grade"`
	RecordedBy string    `bson:"recorded_by"`
	CreatedAt  time.Time `bson:"created_at"`
}

type gradeRepository struct {
	col *mongo.Collection
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *mongo.Database) grade.Repository {
	return &gradeRepository{col: db.Collection(gradesCol)}
}

func (repo *gradeRepository) CreateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := repo.col.InsertOne(ctx, gradeDoc{
		ID:         g.ID,
		StudentID:  g.StudentID,
		Subject:    g.Subject,
		Grade:      g.Grade,
		RecordedBy: g.RecordedBy,
		CreatedAt:  g.CreatedAt,
	})
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return g, nil
}

func (repo *gradeRepository) QueryGradesByStudent(ctx context.Context, studentID string) ([]grade.Grade, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cur, err := repo.col.Find(ctx, bson.M{"student_id": studentID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	docs, err := decodeAll[gradeDoc](ctx, cur)
	if err != nil {
		return nil, errors.Wrap(err, "decoding grades")
	}
	grades := make([]grade.Grade, 0, len(docs))
	for _, d := range docs {
		grades = append(grades, grade.Grade{
			ID:         d.ID,
			StudentID:  d.StudentID,
			Subject:    d.Subject,
			Grade:      d.Grade,
			RecordedBy: d.RecordedBy,
			CreatedAt:  d.CreatedAt.UTC(),
		})
	}
	return grades, nil
}
