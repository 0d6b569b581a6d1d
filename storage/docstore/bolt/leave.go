package boltdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/smartbackpack/core/leave"
)

type leaveRepository struct {
	s *Store
}

var _ leave.Repository = (*leaveRepository)(nil)

func NewLeaveRepository(s *Store) leave.Repository {
	return &leaveRepository{s: s}
}

func (repo *leaveRepository) CreateRequest(_ context.Context, r leave.Request) (leave.Request, error) {
	if err := save(repo.s, leaveBucket, r.ID, r); err != nil {
		return leave.Request{}, errors.Wrap(err, "saving leave request")
	}
	return r, nil
}

func (repo *leaveRepository) GetRequestByID(_ context.Context, id string) (leave.Request, error) {
	r, err := load[leave.Request](repo.s, leaveBucket, id)
	if err != nil {
		if err == errKeyNotFound {
			return leave.Request{}, leave.ErrNotFound
		}
		return leave.Request{}, errors.Wrap(err, "loading leave request")
	}
	return r, nil
}

func (repo *leaveRepository) QueryRequestsByStudent(_ context.Context, studentID string) ([]leave.Request, error) {
	reqs, err := repo.filter(func(r leave.Request) bool { return r.StudentID == studentID })
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(reqs)-1; i < j; i, j = i+1, j-1 {
		reqs[i], reqs[j] = reqs[j], reqs[i]
	}
	return reqs, nil
}

func (repo *leaveRepository) QueryRequestsByStatus(_ context.Context, status string) ([]leave.Request, error) {
	return repo.filter(func(r leave.Request) bool { return r.Status == status })
}

func (repo *leaveRepository) UpdateRequest(_ context.Context, r leave.Request) (leave.Request, error) {
	err := repo.s.db.Update(func(tx *bbolt.Tx) error {
		orig, err := get[leave.Request](tx, leaveBucket, r.ID)
		if err != nil {
			return err
		}
		r.CreatedAt = orig.CreatedAt
		return put(tx, leaveBucket, r.ID, r)
	})
	if err != nil {
		if err == errKeyNotFound {
			return leave.Request{}, leave.ErrNotFound
		}
		return leave.Request{}, errors.Wrap(err, "updating leave request")
	}
	return r, nil
}

// filter returns the matching requests, oldest first.
func (repo *leaveRepository) filter(keep func(leave.Request) bool) ([]leave.Request, error) {
	reqs, err := list[leave.Request](repo.s, leaveBucket, "", keep)
	if err != nil {
		return nil, errors.Wrap(err, "listing leave requests")
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs, nil
}
