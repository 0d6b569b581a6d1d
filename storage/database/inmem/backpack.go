package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/smartbackpack/core/backpack"
)

type backpackRepository struct {
	homework *homeworkTable
	backpack *backpackTable
}

var _ backpack.Repository = (*backpackRepository)(nil)

func NewBackpackRepository(db *DB) backpack.Repository {
	return &backpackRepository{homework: db.homework, backpack: db.backpack}
}

func (repo *backpackRepository) CreateHomework(_ context.Context, hw backpack.Homework) (backpack.Homework, error) {
	repo.homework.Lock()
	defer repo.homework.Unlock()

	hw.RequiredBooks = copyStrings(hw.RequiredBooks)
	repo.homework.table[hw.ID] = hw
	return hw, nil
}

func (repo *backpackRepository) QueryHomework(_ context.Context) ([]backpack.Homework, error) {
	repo.homework.RLock()
	defer repo.homework.RUnlock()

	hws := make([]backpack.Homework, 0, len(repo.homework.table))
	for _, hw := range repo.homework.table {
		hw.RequiredBooks = copyStrings(hw.RequiredBooks)
		hws = append(hws, hw)
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
	repo.homework.RLock()
	defer repo.homework.RUnlock()

	hw, ok := repo.homework.table[id]
	if !ok {
		return backpack.Homework{}, backpack.ErrHomeworkNotFound
	}
	hw.RequiredBooks = copyStrings(hw.RequiredBooks)
	return hw, nil
}

func (repo *backpackRepository) UpdateHomework(_ context.Context, hw backpack.Homework) (backpack.Homework, error) {
	repo.homework.Lock()
	defer repo.homework.Unlock()

	orig, ok := repo.homework.table[hw.ID]
	if !ok {
		return backpack.Homework{}, backpack.ErrHomeworkNotFound
	}
	hw.CreatedBy = orig.CreatedBy
	hw.CreatedAt = orig.CreatedAt
	hw.RequiredBooks = copyStrings(hw.RequiredBooks)
	repo.homework.table[hw.ID] = hw
	return hw, nil
}

func (repo *backpackRepository) DeleteHomework(_ context.Context, id string) error {
	repo.homework.Lock()
	defer repo.homework.Unlock()
	delete(repo.homework.table, id)
	return nil
}

func (repo *backpackRepository) GetBackpack(_ context.Context, studentID string) (backpack.Backpack, error) {
	repo.backpack.RLock()
	defer repo.backpack.RUnlock()

	bp, ok := repo.backpack.table[studentID]
	if !ok {
		return backpack.Backpack{}, backpack.ErrBackpackNotFound
	}
	bp.Books = copyStrings(bp.Books)
	return bp, nil
}

func (repo *backpackRepository) SaveBackpack(_ context.Context, bp backpack.Backpack) (backpack.Backpack, error) {
	repo.backpack.Lock()
	defer repo.backpack.Unlock()

	bp.Books = copyStrings(bp.Books)
	repo.backpack.table[bp.StudentID] = bp
	return bp, nil
}
