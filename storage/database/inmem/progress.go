package inmemdb

import (
	"context"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/progress"
)

type progressRepository struct {
	db *progressTable
}

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

func (repo *progressRepository) GetProgress(_ context.Context, userID int) (progress.UserProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	up := make(progress.UserProgress)
	for k, fp := range repo.db.table {
		if k.userID == userID {
			up[k.formationID] = fp.Clone()
		}
	}
	return up, nil
}

func (repo *progressRepository) GetFormationProgress(_ context.Context, userID, formationID int) (progress.FormationProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.table[progressKey{userID, formationID}].Clone(), nil
}

func (repo *progressRepository) PutProgress(_ context.Context, userID, formationID int, fp progress.FormationProgress) error {
	k := progressKey{userID, formationID}
	l := repo.db.rowLock(k)
	l.Lock()
	defer l.Unlock()

	repo.put(k, fp)
	return nil
}

func (repo *progressRepository) put(k progressKey, fp progress.FormationProgress) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	fp = fp.Clone()
	fp.CompletedCourseIDs = core.UniqueInts(fp.CompletedCourseIDs)
	repo.db.table[k] = fp
}

func (repo *progressRepository) UpdateProgress(
	ctx context.Context,
	userID, formationID int,
	fn func(progress.FormationProgress) (progress.FormationProgress, error),
) (progress.FormationProgress, error) {
	k := progressKey{userID, formationID}
	l := repo.db.rowLock(k)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return progress.FormationProgress{}, err
	}

	repo.db.mutex.RLock()
	current := repo.db.table[k].Clone()
	repo.db.mutex.RUnlock()

	fp, err := fn(current)
	if err != nil {
		return progress.FormationProgress{}, err
	}
	repo.put(k, fp)
	return fp.Clone(), nil
}

func (repo *progressRepository) DeleteProgress(_ context.Context, userIDs ...int) error {
	repo.db.deleteWhere(func(k progressKey) bool { return core.ContainsInt(userIDs, k.userID) })
	return nil
}
