package inmemdb

import (
	"sync"

	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/backpack"
	"github.com/trezcool/smartbackpack/core/grade"
	"github.com/trezcool/smartbackpack/core/leave"
	"github.com/trezcool/smartbackpack/core/user"
)

type (
	// DB keeps every collection in memory. It is safe for concurrent use.
	DB struct {
		user       *userTable
		homework   *homeworkTable
		backpack   *backpackTable
		attendance *attendanceTable
		grade      *gradeTable
		leave      *leaveTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]user.User
	}

	homeworkTable struct {
		sync.RWMutex
		table map[string]backpack.Homework
	}

	backpackTable struct {
		sync.RWMutex
		table map[string]backpack.Backpack // {studentID: Backpack}
	}

	attendanceKey struct {
		studentID string
		date      string
	}

	attendanceTable struct {
		sync.RWMutex
		table map[attendanceKey]attendance.Record
	}

	gradeTable struct {
		sync.RWMutex
		table map[string]grade.Grade
	}

	leaveTable struct {
		sync.RWMutex
		table map[string]leave.Request
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]user.User)},
		homework:   &homeworkTable{table: make(map[string]backpack.Homework)},
		backpack:   &backpackTable{table: make(map[string]backpack.Backpack)},
		attendance: &attendanceTable{table: make(map[attendanceKey]attendance.Record)},
		grade:      &gradeTable{table: make(map[string]grade.Grade)},
		leave:      &leaveTable{table: make(map[string]leave.Request)},
	}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
