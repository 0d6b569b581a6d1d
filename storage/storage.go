// Package storage opens the repositories of the configured database engine.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/backpack"
	"github.com/trezcool/smartbackpack/core/grade"
	"github.com/trezcool/smartbackpack/core/leave"
	"github.com/trezcool/smartbackpack/core/user"
	"github.com/trezcool/smartbackpack/storage/database"
	inmemdb "github.com/trezcool/smartbackpack/storage/database/inmem"
	sqlxrepos "github.com/trezcool/smartbackpack/storage/database/sqlx"
	boltdb "github.com/trezcool/smartbackpack/storage/docstore/bolt"
	mongodb "github.com/trezcool/smartbackpack/storage/docstore/mongo"
)

// Engines
const (
	EnginePostgres = "postgres"
	EngineBolt     = "bolt"
	EngineMongo    = "mongo"
	EngineMemory   = "memory"
)

// Repositories groups the repositories of one engine.
type Repositories struct {
	Engine     string
	User       user.Repository
	Backpack   backpack.Repository
	Attendance attendance.Repository
	Grade      grade.Repository
	Leave      leave.Repository

	// SQL is the postgres handle, nil for the other engines.
	SQL *sql.DB

	closeFunc func(ctx context.Context) error
}

// Close releases the underlying connections or files.
func (r *Repositories) Close(ctx context.Context) error {
	if r.closeFunc == nil {
		return nil
	}
	return r.closeFunc(ctx)
}

// Open connects to conf.Database.Engine. With migrate set, postgres is created
// when missing and brought up to date and mongo indexes are ensured.
func Open(ctx context.Context, conf *core.Config, migrate bool) (*Repositories, error) {
	switch conf.Database.Engine {
	case EnginePostgres:
		return openPostgres(ctx, conf, migrate)
	case EngineBolt:
		return openBolt(conf)
	case EngineMongo:
		return openMongo(ctx, conf, migrate)
	case EngineMemory, "":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown database engine %q", conf.Database.Engine)
}

// NewMemory returns repositories backed by a fresh in-memory database.
func NewMemory() *Repositories {
	db := inmemdb.Open()
	return &Repositories{
		Engine:     EngineMemory,
		User:       inmemdb.NewUserRepository(db),
		Backpack:   inmemdb.NewBackpackRepository(db),
		Attendance: inmemdb.NewAttendanceRepository(db),
		Grade:      inmemdb.NewGradeRepository(db),
		Leave:      inmemdb.NewLeaveRepository(db),
	}
}

func openPostgres(ctx context.Context, conf *core.Config, migrate bool) (*Repositories, error) {
	if migrate {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
	}
	sqlDB, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err = database.Migrate(sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	db := sqlxrepos.NewDB(sqlDB)
	return &Repositories{
		Engine:     EnginePostgres,
		User:       sqlxrepos.NewUserRepository(db),
		Backpack:   sqlxrepos.NewBackpackRepository(db),
		Attendance: sqlxrepos.NewAttendanceRepository(db),
		Grade:      sqlxrepos.NewGradeRepository(db),
		Leave:      sqlxrepos.NewLeaveRepository(db),
		SQL:        sqlDB,
		closeFunc:  func(context.Context) error { return sqlDB.Close() },
	}, nil
}

func openBolt(conf *core.Config) (*Repositories, error) {
	path := conf.Database.BoltPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(core.Getwd(), path)
	}
	store, err := boltdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		Engine:     EngineBolt,
		User:       boltdb.NewUserRepository(store),
		Backpack:   boltdb.NewBackpackRepository(store),
		Attendance: boltdb.NewAttendanceRepository(store),
		Grade:      boltdb.NewGradeRepository(store),
		Leave:      boltdb.NewLeaveRepository(store),
		closeFunc:  func(context.Context) error { return store.Close() },
	}, nil
}

func openMongo(ctx context.Context, conf *core.Config, migrate bool) (*Repositories, error) {
	client, db, err := mongodb.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err = mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
	}
	return &Repositories{
		Engine:     EngineMongo,
		User:       mongodb.NewUserRepository(db),
		Backpack:   mongodb.NewBackpackRepository(db),
		Attendance: mongodb.NewAttendanceRepository(db),
		Grade:      mongodb.NewGradeRepository(db),
		Leave:      mongodb.NewLeaveRepository(db),
		closeFunc:  client.Disconnect,
	}, nil
}
