package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/smartbackpack/core/leave"
)

type leaveRepository struct {
	db *leaveTable
}

var _ leave.Repository = (*leaveRepository)(nil)

func NewLeaveRepository(db *DB) leave.Repository {
	return &leaveRepository{db: db.leave}
}

func (repo *leaveRepository) CreateRequest(_ context.Context, r leave.Request) (leave.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[r.ID] = cloneRequest(r)
	return r, nil
}

func (repo *leaveRepository) GetRequestByID(_ context.Context, id string) (leave.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	r, ok := repo.db.table[id]
	if !ok {
		return leave.Request{}, leave.ErrNotFound
	}
	return cloneRequest(r), nil
}

func (repo *leaveRepository) QueryRequestsByStudent(_ context.Context, studentID string) ([]leave.Request, error) {
	reqs := repo.filter(func(r leave.Request) bool { return r.StudentID == studentID })
	// newest first
	for i, j := 0, len(reqs)-1; i < j; i, j = i+1, j-1 {
		reqs[i], reqs[j] = reqs[j], reqs[i]
	}
	return reqs, nil
}

func (repo *leaveRepository) QueryRequestsByStatus(_ context.Context, status string) ([]leave.Request, error) {
	return repo.filter(func(r leave.Request) bool { return r.Status == status }), nil
}

func (repo *leaveRepository) UpdateRequest(_ context.Context, r leave.Request) (leave.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[r.ID]
	if !ok {
		return leave.Request{}, leave.ErrNotFound
	}
	r.CreatedAt = orig.CreatedAt
	repo.db.table[r.ID] = cloneRequest(r)
	return r, nil
}

// filter returns the matching requests, oldest first.
func (repo *leaveRepository) filter(keep func(leave.Request) bool) []leave.Request {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := make([]leave.Request, 0)
	for _, r := range repo.db.table {
		if keep(r) {
			reqs = append(reqs, cloneRequest(r))
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs
}

func cloneRequest(r leave.Request) leave.Request {
	if r.Analysis != nil {
		a := *r.Analysis
		if a.Input != nil {
			in := *a.Input
			in.PastLeaveRequests = append(in.PastLeaveRequests[:0:0], in.PastLeaveRequests...)
			in.PastAttendance = append(in.PastAttendance[:0:0], in.PastAttendance...)
			in.Grades = append(in.Grades[:0:0], in.Grades...)
			a.Input = &in
		}
		r.Analysis = &a
	}
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		r.DecidedAt = &t
	}
	r.Chat = append(make([]leave.ChatMessage, 0, len(r.Chat)), r.Chat...)
	return r
}
