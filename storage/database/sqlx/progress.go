package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/progress"
)

const pqForeignKeyViolation = "23503"

type (
	formationProgressRow struct {
		FormationID        int           `db:"formation_id"`
		CompletedCourseIDs pq.Int64Array `db:"completed_course_ids"`
	}

	examAttemptRow struct {
		UserID      int       `db:"user_id"`
		FormationID int       `db:"formation_id"`
		PartID      int       `db:"part_id"`
		Position    int       `db:"position"`
		Attempts    int       `db:"attempts"`
		LastScore   null.Int  `db:"last_score"`
		Passed      bool      `db:"passed"`
		PassedAt    null.Time `db:"passed_at"`
	}
)

func (r examAttemptRow) attempt() progress.ExamAttempt {
	att := progress.ExamAttempt{
		PartID:    r.PartID,
		Attempts:  r.Attempts,
		LastScore: r.LastScore.Ptr(),
		Passed:    r.Passed,
	}
	if r.PassedAt.Valid {
		at := r.PassedAt.Time.UTC()
		att.PassedAt = &at
	}
	return att
}

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo progressRepository) GetProgress(ctx context.Context, userID int) (progress.UserProgress, error) {
	var rows []formationProgressRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT formation_id, completed_course_ids FROM formation_progress WHERE user_id = $1`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	var attRows []examAttemptRow
	err = repo.db.SelectContext(ctx, &attRows, `
		SELECT user_id, formation_id, part_id, position, attempts, last_score, passed, passed_at
		FROM exam_attempts WHERE user_id = $1 ORDER BY formation_id, position`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying exam attempts")
	}

	up := make(progress.UserProgress, len(rows))
	for _, r := range rows {
		up[r.FormationID] = progress.FormationProgress{
			CompletedCourseIDs: toInts(r.CompletedCourseIDs),
			ExamAttempts:       []progress.ExamAttempt{},
		}
	}
	for _, r := range attRows {
		fp := up[r.FormationID]
		fp.ExamAttempts = append(fp.ExamAttempts, r.attempt())
		up[r.FormationID] = fp
	}
	return up, nil
}

func (repo progressRepository) GetFormationProgress(ctx context.Context, userID, formationID int) (progress.FormationProgress, error) {
	return getFormationProgress(ctx, repo.db, userID, formationID, false)
}

// getFormationProgress reads one record. An absent record is an empty progress.
func getFormationProgress(ctx context.Context, q sqlx.QueryerContext, userID, formationID int, forUpdate bool) (progress.FormationProgress, error) {
	fp := progress.FormationProgress{CompletedCourseIDs: []int{}, ExamAttempts: []progress.ExamAttempt{}}

	query := `SELECT formation_id, completed_course_ids FROM formation_progress WHERE user_id = $1 AND formation_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var row formationProgressRow
	if err := sqlx.GetContext(ctx, q, &row, query, userID, formationID); err != nil {
		if err = trapNoRowsErr(err, nil, "getting progress"); err != nil {
			return progress.FormationProgress{}, err
		}
		return fp, nil
	}
	fp.CompletedCourseIDs = toInts(row.CompletedCourseIDs)

	var attRows []examAttemptRow
	err := sqlx.SelectContext(ctx, q, &attRows, `
		SELECT user_id, formation_id, part_id, position, attempts, last_score, passed, passed_at
		FROM exam_attempts WHERE user_id = $1 AND formation_id = $2 ORDER BY position`, userID, formationID)
	if err != nil {
		return progress.FormationProgress{}, errors.Wrap(err, "querying exam attempts")
	}
	for _, r := range attRows {
		fp.ExamAttempts = append(fp.ExamAttempts, r.attempt())
	}
	return fp, nil
}

func (repo progressRepository) PutProgress(ctx context.Context, userID, formationID int, fp progress.FormationProgress) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		return putProgress(ctx, tx, userID, formationID, fp)
	})
}

// putProgress upserts the record and replaces its exam attempts, keeping their order.
func putProgress(ctx context.Context, tx *sqlx.Tx, userID, formationID int, fp progress.FormationProgress) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO formation_progress (user_id, formation_id, completed_course_ids, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, formation_id)
		DO UPDATE SET completed_course_ids = EXCLUDED.completed_course_ids, updated_at = EXCLUDED.updated_at`,
		userID, formationID, pq.Int64Array(toInt64s(core.UniqueInts(fp.CompletedCourseIDs))),
	)
	if err != nil {
		return trapForeignKeyErr(err, userID, formationID, "saving progress")
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM exam_attempts WHERE user_id = $1 AND formation_id = $2`, userID, formationID,
	); err != nil {
		return errors.Wrap(err, "clearing exam attempts")
	}
	for i, att := range fp.ExamAttempts {
		row := examAttemptRow{
			UserID:      userID,
			FormationID: formationID,
			PartID:      att.PartID,
			Position:    i,
			Attempts:    att.Attempts,
			LastScore:   null.IntFromPtr(att.LastScore),
			Passed:      att.Passed,
		}
		if att.PassedAt != nil {
			row.PassedAt = null.TimeFrom(att.PassedAt.UTC())
		}
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO exam_attempts (user_id, formation_id, part_id, position, attempts, last_score, passed, passed_at)
			VALUES (:user_id, :formation_id, :part_id, :position, :attempts, :last_score, :passed, :passed_at)`, row,
		); err != nil {
			return errors.Wrap(err, "saving exam attempt")
		}
	}
	return nil
}

// UpdateProgress locks the record row for the whole read-modify-write.
// Concurrent updates of the same (user, formation) run one after the other.
func (repo progressRepository) UpdateProgress(
	ctx context.Context,
	userID, formationID int,
	fn func(progress.FormationProgress) (progress.FormationProgress, error),
) (progress.FormationProgress, error) {
	var updated progress.FormationProgress
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		// the row must exist to be locked
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO formation_progress (user_id, formation_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, formationID,
		); err != nil {
			return trapForeignKeyErr(err, userID, formationID, "creating progress")
		}

		current, err := getFormationProgress(ctx, tx, userID, formationID, true)
		if err != nil {
			return err
		}
		if updated, err = fn(current); err != nil {
			return err
		}
		return putProgress(ctx, tx, userID, formationID, updated)
	})
	if err != nil {
		return progress.FormationProgress{}, err
	}
	updated.CompletedCourseIDs = core.UniqueInts(updated.CompletedCourseIDs)
	return updated, nil
}

func (repo progressRepository) DeleteProgress(ctx context.Context, userIDs ...int) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM formation_progress WHERE user_id = ANY($1)`, pq.Int64Array(toInt64s(userIDs)))
	return errors.Wrap(err, "deleting progress")
}

// trapForeignKeyErr maps a missing user or formation to a not found error.
func trapForeignKeyErr(err error, userID, formationID int, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqForeignKeyViolation {
		if pqErr.Constraint == "formation_progress_user_id_fkey" {
			return core.NewNotFoundError("user", userID)
		}
		return core.NewNotFoundError("formation", formationID)
	}
	return errors.Wrap(err, msg)
}
