package inmemdb

import (
	"sync"

	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/progress"
	"github.com/eligue/academy/core/user"
)

type (
	// DB keeps every table in memory. Rows are copied in and out, callers never share slices with it.
	DB struct {
		user     *userTable
		catalog  *catalogTables
		progress *progressTable
	}

	userTable struct {
		table map[int]*user.User
		seq   int
		mutex sync.RWMutex
	}

	catalogTables struct {
		formations map[int]catalog.Formation
		parts      map[int]catalog.Part
		courses    map[int]catalog.Course
		exams      map[int]catalog.Exam
		seq        struct{ formation, part, course, exam int }
		mutex      sync.RWMutex
	}

	progressKey struct {
		userID, formationID int
	}

	progressTable struct {
		table map[progressKey]progress.FormationProgress
		mutex sync.RWMutex

		locksMu sync.Mutex
		locks   map[progressKey]*sync.Mutex
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:     &userTable{},
		catalog:  &catalogTables{},
		progress: &progressTable{},
	}
	db.Reset()
	return db, nil
}

// Reset empties every table and restarts the id sequences. Repositories opened on db stay valid.
func (db *DB) Reset() {
	db.user.mutex.Lock()
	db.user.table = make(map[int]*user.User)
	db.user.seq = 0
	db.user.mutex.Unlock()

	db.catalog.mutex.Lock()
	db.catalog.formations = make(map[int]catalog.Formation)
	db.catalog.parts = make(map[int]catalog.Part)
	db.catalog.courses = make(map[int]catalog.Course)
	db.catalog.exams = make(map[int]catalog.Exam)
	db.catalog.seq.formation, db.catalog.seq.part, db.catalog.seq.course, db.catalog.seq.exam = 0, 0, 0, 0
	db.catalog.mutex.Unlock()

	db.progress.mutex.Lock()
	db.progress.table = make(map[progressKey]progress.FormationProgress)
	db.progress.mutex.Unlock()
	db.progress.locksMu.Lock()
	db.progress.locks = make(map[progressKey]*sync.Mutex)
	db.progress.locksMu.Unlock()
}

// rowLock returns the mutex serializing updates of one progress record.
func (t *progressTable) rowLock(k progressKey) *sync.Mutex {
	t.locksMu.Lock()
	defer t.locksMu.Unlock()
	l, ok := t.locks[k]
	if !ok {
		l = new(sync.Mutex)
		t.locks[k] = l
	}
	return l
}

// deleteWhere drops the progress records matching, the way the SQL cascades do.
func (t *progressTable) deleteWhere(match func(k progressKey) bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for k := range t.table {
		if match(k) {
			delete(t.table, k)
		}
	}
}

func copyInts(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}
