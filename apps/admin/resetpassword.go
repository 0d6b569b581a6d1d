package main

import (
	"context"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) (err error) {
	ctx := context.Background()
	var usr user.User
	if usr, err = cli.usrRepo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */)); err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = core.NowFunc().UTC()
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
