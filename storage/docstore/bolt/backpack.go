package boltdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/smartbackpack/core/backpack"
)

type backpackRepository struct {
	s *Store
}

var _ backpack.Repository = (*backpackRepository)(nil)

func NewBackpackRepository(s *Store) backpack.Repository {
	return &backpackRepository{s: s}
}

func (repo *backpackRepository) CreateHomework(_ context.Context, hw backpack.Homework) (backpack.Homework, error) {
	if err := save(repo.s, homeworkBucket, hw.ID, hw); err != nil {
		return backpack.Homework{}, errors.Wrap(err, "saving homework")
	}
	return hw, nil
}

func (repo *backpackRepository) QueryHomework(_ context.Context) ([]backpack.Homework, error) {
	hws, err := list[backpack.Homework](repo.s, homeworkBucket, "", nil)
	if err != nil {
		return nil, errors.Wrap(err, "listing homework")
	}
	sort.Slice(hws, func(i, j int) bool {
		if hws[i].CreatedAt.Equal(hws[j].CreatedAt) {
			return hws[i].ID < hws[j].ID
		}
		return hws[i].CreatedAt.After(hws[j].CreatedAt)
	})
	return hws, nil
}

func (repo *backpackRepository) GetHomeworkByID(_ context.Context, id string) (backpack.Homework, error) {
	hw, err := load[backpack.Homework](repo.s, homeworkBucket, id)
	if err != nil {
		if err == errKeyNotFound {
			return backpack.Homework{}, backpack.ErrHomeworkNotFound
		}
		return backpack.Homework{}, errors.Wrap(err, "loading homework")
	}
	return hw, nil
}

func (repo *backpackRepository) UpdateHomework(_ context.Context, hw backpack.Homework) (backpack.Homework, error) {
	err := repo.s.db.Update(func(tx *bbolt.Tx) error {
		orig, err := get[backpack.Homework](tx, homeworkBucket, hw.ID)
		if err != nil {
			return err
		}
		hw.CreatedBy = orig.CreatedBy
		hw.CreatedAt = orig.CreatedAt
		return put(tx, homeworkBucket, hw.ID, hw)
	})
	if err != nil {
		if err == errKeyNotFound {
			return backpack.Homework{}, backpack.ErrHomeworkNotFound
		}
		return backpack.Homework{}, errors.Wrap(err, "updating homework")
	}
	return hw, nil
}

func (repo *backpackRepository) DeleteHomework(_ context.Context, id string) error {
	return remove(repo.s, homeworkBucket, id)
}

func (repo *backpackRepository) GetBackpack(_ context.Context, studentID string) (backpack.Backpack, error) {
	bp, err := load[backpack.Backpack](repo.s, backpacksBucket, studentID)
	if err != nil {
		if err == errKeyNotFound {
			return backpack.Backpack{}, backpack.ErrBackpackNotFound
		}
		return backpack.Backpack{}, errors.Wrap(err, "loading backpack")
	}
	return bp, nil
}

func (repo *backpackRepository) SaveBackpack(_ context.Context, bp backpack.Backpack) (backpack.Backpack, error) {
	if err := save(repo.s, backpacksBucket, bp.StudentID, bp); err != nil {
		return backpack.Backpack{}, errors.Wrap(err, "saving backpack")
	}
	return bp, nil
}
