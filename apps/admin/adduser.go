package main

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/user"
)

// addUser updates the user matching uname or email, or creates it.
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) (user.User, error) {
	ctx := context.Background()
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	now := core.NowFunc().UTC()

	usr, err := cli.findUser(ctx, uname, email)
	create := core.IsNotFound(err)
	if err != nil && !create {
		return user.User{}, err
	}
	if create {
		usr = user.User{ID: uuid.New().String(), CreatedAt: now}
	}
	if name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	if uname != "" {
		usr.Username = uname
	}
	if email != "" {
		usr.Email = email
	}
	usr.Roles = roles
	usr.IsActive = true
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if create {
		return cli.usrRepo.CreateUser(ctx, usr)
	}
	return cli.usrRepo.UpdateUser(ctx, usr)
}

func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	if uname != "" {
		usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
		if err == nil || !core.IsNotFound(err) {
			return usr, err
		}
	}
	if email != "" {
		return cli.usrRepo.GetUserByEmail(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}
