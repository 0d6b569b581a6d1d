package boltdb

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/user"
)

// userDoc persists the password hash, which User hides from JSON.
type userDoc struct {
	user.User
	PasswordHash []byte `json:"password_hash"`
}

func toUserDoc(usr user.User) userDoc { return userDoc{User: usr, PasswordHash: usr.PasswordHash} }

func (d userDoc) toUser() user.User {
	usr := d.User
	usr.PasswordHash = d.PasswordHash
	return usr
}

type userRepository struct {
	s *Store
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(s *Store) user.Repository {
	return &userRepository{s: s}
}

func (repo *userRepository) all() ([]user.User, error) {
	docs, err := list[userDoc](repo.s, usersBucket, "", nil)
	if err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toUser())
	}
	return users, nil
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	users, err := repo.all()
	if err != nil {
		return errors.Wrap(err, "listing users")
	}
	excluded := make(map[string]struct{}, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = struct{}{}
	}
	for _, usr := range users {
		if _, ok := excluded[usr.ID]; ok {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	if err := save(repo.s, usersBucket, usr.ID, toUserDoc(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "saving user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	users, err := repo.all()
	if err != nil {
		return nil, errors.Wrap(err, "listing users")
	}
	matched := make([]user.User, 0, len(users))
	for _, usr := range users {
		if filter.Match(usr) {
			matched = append(matched, usr)
		}
	}
	user.OrderUsers(matched, ordering)
	return matched, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	d, err := load[userDoc](repo.s, usersBucket, id)
	if err != nil {
		if err == errKeyNotFound {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "loading user")
	}
	return d.toUser(), nil
}

func (repo *userRepository) findOne(match func(user.User) bool) (user.User, error) {
	users, err := repo.all()
	if err != nil {
		return user.User{}, errors.Wrap(err, "listing users")
	}
	for _, usr := range users {
		if match(usr) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	return repo.findOne(func(usr user.User) bool { return email != "" && usr.Email == email })
}

func (repo *userRepository) GetUserByUsernameOrEmail(_ context.Context, username string) (user.User, error) {
	return repo.findOne(func(usr user.User) bool {
		return username != "" && (strings.EqualFold(usr.Username, username) || strings.EqualFold(usr.Email, username))
	})
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	err := repo.s.db.Update(func(tx *bbolt.Tx) error {
		orig, err := get[userDoc](tx, usersBucket, usr.ID)
		if err != nil {
			return err
		}
		usr.CreatedAt = orig.CreatedAt
		return put(tx, usersBucket, usr.ID, toUserDoc(usr))
	})
	if err != nil {
		if err == errKeyNotFound {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	return remove(repo.s, usersBucket, ids...)
}
