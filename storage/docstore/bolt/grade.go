package boltdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core/grade"
)

type gradeRepository struct {
	s *Store
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(s *Store) grade.Repository {
	return &gradeRepository{s: s}
}

func (repo *gradeRepository) CreateGrade(_ context.Context, g grade.Grade) (grade.Grade, error) {
	if err := save(repo.s, gradesBucket, g.ID, g); err != nil {
		return grade.Grade{}, errors.Wrap(err, "saving grade")
	}
	return g, nil
}

func (repo *gradeRepository) QueryGradesByStudent(_ context.Context, studentID string) ([]grade.Grade, error) {
	grades, err := list[grade.Grade](repo.s, gradesBucket, "", func(g grade.Grade) bool { return g.StudentID == studentID })
	if err != nil {
		return nil, errors.Wrap(err, "listing grades")
	}
	sort.Slice(grades, func(i, j int) bool {
		if grades[i].CreatedAt.Equal(grades[j].CreatedAt) {
			return grades[i].ID < grades[j].ID
		}
		return grades[i].CreatedAt.Before(grades[j].CreatedAt)
	})
	return grades, nil
}
