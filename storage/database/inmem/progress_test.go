package inmemdb

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/progress"
	"github.com/eligue/academy/core/user"
)

func TestProgressRepository_UpdateProgress(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewProgressRepository(db)
	ctx := context.Background()

	t.Run("updates are serialized", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 1; i <= 50; i++ {
			wg.Add(1)
			go func(courseID int) {
				defer wg.Done()
				_, err := repo.UpdateProgress(ctx, 1, 1, func(fp progress.FormationProgress) (progress.FormationProgress, error) {
					fp.CompletedCourseIDs = append(fp.CompletedCourseIDs, courseID)
					return fp, nil
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		fp, err := repo.GetFormationProgress(ctx, 1, 1)
		require.NoError(t, err)
		assert.Len(t, fp.CompletedCourseIDs, 50)
	})

	t.Run("failed updates are not saved", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := repo.UpdateProgress(ctx, 2, 1, func(fp progress.FormationProgress) (progress.FormationProgress, error) {
			fp.CompletedCourseIDs = append(fp.CompletedCourseIDs, 42)
			return fp, boom
		})
		assert.Equal(t, boom, err)

		up, err := repo.GetProgress(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, up)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		fp, err := repo.GetFormationProgress(ctx, 1, 1)
		require.NoError(t, err)
		fp.CompletedCourseIDs[0] = -1

		again, err := repo.GetFormationProgress(ctx, 1, 1)
		require.NoError(t, err)
		assert.NotEqual(t, -1, again.CompletedCourseIDs[0])
	})
}

func TestCascades(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	ctx := context.Background()
	usrRepo := NewUserRepository(db)
	catalogRepo := NewCatalogRepository(db)
	progressRepo := NewProgressRepository(db)

	usr, err := usrRepo.CreateUser(ctx, user.User{LoginID: "learner", Role: user.RoleArbitre})
	require.NoError(t, err)
	f1, err := catalogRepo.CreateFormation(ctx, catalog.Formation{Title: "Un"})
	require.NoError(t, err)
	f2, err := catalogRepo.CreateFormation(ctx, catalog.Formation{Title: "Deux"})
	require.NoError(t, err)

	fp := progress.FormationProgress{CompletedCourseIDs: []int{1, 1, 2}}
	require.NoError(t, progressRepo.PutProgress(ctx, usr.ID, f1.ID, fp))
	require.NoError(t, progressRepo.PutProgress(ctx, usr.ID, f2.ID, fp))

	up, err := progressRepo.GetProgress(ctx, usr.ID)
	require.NoError(t, err)
	require.Len(t, up, 2)
	assert.Equal(t, []int{1, 2}, up[f1.ID].CompletedCourseIDs)

	require.NoError(t, catalogRepo.DeleteFormation(ctx, f1.ID))
	up, err = progressRepo.GetProgress(ctx, usr.ID)
	require.NoError(t, err)
	assert.Len(t, up, 1)

	require.NoError(t, usrRepo.DeleteUsers(ctx, usr.ID))
	up, err = progressRepo.GetProgress(ctx, usr.ID)
	require.NoError(t, err)
	assert.Empty(t, up)

	db.Reset()
	_, err = catalogRepo.GetFormation(ctx, f2.ID)
	assert.Error(t, err)
}
