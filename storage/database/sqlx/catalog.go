package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
)

type (
	formationRow struct {
		ID          int           `db:"id"`
		Title       string        `db:"title"`
		Description string        `db:"description"`
		ImageURL    null.String   `db:"image_url"`
		PartIDs     pq.Int64Array `db:"part_ids"`
	}

	partRow struct {
		ID        int           `db:"id"`
		Title     string        `db:"title"`
		CourseIDs pq.Int64Array `db:"course_ids"`
		ExamID    int           `db:"exam_id"`
	}

	courseRow struct {
		ID                 int          `db:"id"`
		Title              string       `db:"title"`
		Type               string       `db:"type"`
		Content            string       `db:"content"`
		QuickTestQuestions questionList `db:"quick_test_questions"`
	}

	examRow struct {
		ID           int          `db:"id"`
		Title        string       `db:"title"`
		PassingScore int          `db:"passing_score"`
		Questions    questionList `db:"questions"`
	}
)

func (r formationRow) formation() catalog.Formation {
	return catalog.Formation{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		ImageURL:    r.ImageURL.String,
		PartIDs:     toInts(r.PartIDs),
	}
}

func (r partRow) part() catalog.Part {
	return catalog.Part{ID: r.ID, Title: r.Title, CourseIDs: toInts(r.CourseIDs), ExamID: r.ExamID}
}

func (r courseRow) course() (catalog.Course, error) {
	content, err := catalog.NewContent(catalog.CourseType(r.Type), r.Content)
	if err != nil {
		return catalog.Course{}, errors.Wrapf(err, "course %d", r.ID)
	}
	return catalog.Course{
		ID:                 r.ID,
		Title:              r.Title,
		Content:            content,
		QuickTestQuestions: []catalog.Question(r.QuickTestQuestions),
	}, nil
}

func newCourseRow(c catalog.Course) courseRow {
	row := courseRow{ID: c.ID, Title: c.Title, Type: string(c.Type()), QuickTestQuestions: c.QuickTestQuestions}
	if c.Content != nil {
		row.Content = c.Content.Raw()
	}
	return row
}

func (r examRow) exam() catalog.Exam {
	return catalog.Exam{ID: r.ID, Title: r.Title, PassingScore: r.PassingScore, Questions: []catalog.Question(r.Questions)}
}

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo catalogRepository) GetFormation(ctx context.Context, id int) (catalog.Formation, error) {
	var row formationRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, title, description, image_url, part_ids FROM formations WHERE id = $1`, id)
	if err != nil {
		return catalog.Formation{}, trapNoRowsErr(err, core.NewNotFoundError("formation", id), "finding formation")
	}
	return row.formation(), nil
}

func (repo catalogRepository) QueryFormations(ctx context.Context) ([]catalog.Formation, error) {
	var rows []formationRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT id, title, description, image_url, part_ids FROM formations ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying formations")
	}
	formations := make([]catalog.Formation, 0, len(rows))
	for _, r := range rows {
		formations = append(formations, r.formation())
	}
	return formations, nil
}

func (repo catalogRepository) GetPart(ctx context.Context, id int) (catalog.Part, error) {
	var row partRow
	if err := repo.db.GetContext(ctx, &row, `SELECT id, title, course_ids, exam_id FROM parts WHERE id = $1`, id); err != nil {
		return catalog.Part{}, trapNoRowsErr(err, core.NewNotFoundError("part", id), "finding part")
	}
	return row.part(), nil
}

func (repo catalogRepository) GetCourse(ctx context.Context, id int) (catalog.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, title, type, content, quick_test_questions FROM courses WHERE id = $1`, id)
	if err != nil {
		return catalog.Course{}, trapNoRowsErr(err, core.NewNotFoundError("course", id), "finding course")
	}
	return row.course()
}

func (repo catalogRepository) GetExam(ctx context.Context, id int) (catalog.Exam, error) {
	var row examRow
	if err := repo.db.GetContext(ctx, &row, `SELECT id, title, passing_score, questions FROM exams WHERE id = $1`, id); err != nil {
		return catalog.Exam{}, trapNoRowsErr(err, core.NewNotFoundError("exam", id), "finding exam")
	}
	return row.exam(), nil
}

// insert runs a named INSERT ... RETURNING id. When the row carries an id, the table sequence is moved past it.
func insert(ctx context.Context, ext sqlx.ExtContext, table, query string, arg interface{}, id *int) error {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return errors.Wrapf(err, "binding %s insert", table)
	}
	explicit := *id > 0
	if err = sqlx.GetContext(ctx, ext, id, ext.Rebind(q), args...); err != nil {
		return errors.Wrapf(err, "inserting into %s", table)
	}
	if explicit {
		_, err = ext.ExecContext(ctx,
			`SELECT setval(pg_get_serial_sequence('`+table+`', 'id'), (SELECT MAX(id) FROM `+table+`))`)
		return errors.Wrapf(err, "moving %s sequence", table)
	}
	return nil
}

func (repo catalogRepository) CreateFormation(ctx context.Context, f catalog.Formation) (catalog.Formation, error) {
	row := formationRow{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		ImageURL:    null.NewString(f.ImageURL, f.ImageURL != ""),
		PartIDs:     toInt64s(f.PartIDs),
	}
	q := `INSERT INTO formations (title, description, image_url, part_ids)
		VALUES (:title, :description, :image_url, :part_ids) RETURNING id`
	if row.ID > 0 {
		q = `INSERT INTO formations (id, title, description, image_url, part_ids)
			VALUES (:id, :title, :description, :image_url, :part_ids) RETURNING id`
	}
	if err := insert(ctx, repo.db, "formations", q, row, &row.ID); err != nil {
		return catalog.Formation{}, err
	}
	return row.formation(), nil
}

func (repo catalogRepository) UpdateFormation(ctx context.Context, f catalog.Formation) (catalog.Formation, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE formations SET title = $2, description = $3, image_url = $4, part_ids = $5 WHERE id = $1`,
		f.ID, f.Title, f.Description, null.NewString(f.ImageURL, f.ImageURL != ""), pq.Int64Array(toInt64s(f.PartIDs)),
	)
	if err != nil {
		return catalog.Formation{}, errors.Wrap(err, "updating formation")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.Formation{}, core.NewNotFoundError("formation", f.ID)
	}
	return f, nil
}

// DeleteFormation removes the formation tree. Progress records go with the formation (ON DELETE CASCADE).
func (repo catalogRepository) DeleteFormation(ctx context.Context, id int) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var partIDs pq.Int64Array
		err := tx.GetContext(ctx, &partIDs, `DELETE FROM formations WHERE id = $1 RETURNING part_ids`, id)
		if err != nil {
			return trapNoRowsErr(err, core.NewNotFoundError("formation", id), "deleting formation")
		}
		return deleteParts(ctx, tx, partIDs)
	})
}

func deleteParts(ctx context.Context, tx *sqlx.Tx, ids pq.Int64Array) error {
	if len(ids) == 0 {
		return nil
	}
	var rows []partRow
	err := tx.SelectContext(ctx, &rows, `DELETE FROM parts WHERE id = ANY($1) RETURNING id, title, course_ids, exam_id`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting parts")
	}
	var courseIDs, examIDs []int64
	for _, r := range rows {
		courseIDs = append(courseIDs, r.CourseIDs...)
		examIDs = append(examIDs, int64(r.ExamID))
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM courses WHERE id = ANY($1)`, pq.Int64Array(courseIDs)); err != nil {
		return errors.Wrap(err, "deleting courses")
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM exams WHERE id = ANY($1)`, pq.Int64Array(examIDs)); err != nil {
		return errors.Wrap(err, "deleting exams")
	}
	return nil
}

func (repo catalogRepository) CreatePart(ctx context.Context, formationID int, p catalog.Part, e catalog.Exam) (catalog.Part, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var found bool
		if err := tx.GetContext(ctx, &found, `SELECT true FROM formations WHERE id = $1 FOR UPDATE`, formationID); err != nil {
			return trapNoRowsErr(err, core.NewNotFoundError("formation", formationID), "locking formation")
		}

		exam := examRow{ID: e.ID, Title: e.Title, PassingScore: e.PassingScore, Questions: e.Questions}
		q := `INSERT INTO exams (title, passing_score, questions) VALUES (:title, :passing_score, :questions) RETURNING id`
		if exam.ID > 0 {
			q = `INSERT INTO exams (id, title, passing_score, questions) VALUES (:id, :title, :passing_score, :questions) RETURNING id`
		}
		if err := insert(ctx, tx, "exams", q, exam, &exam.ID); err != nil {
			return err
		}

		row := partRow{ID: p.ID, Title: p.Title, CourseIDs: toInt64s(p.CourseIDs), ExamID: exam.ID}
		q = `INSERT INTO parts (title, course_ids, exam_id) VALUES (:title, :course_ids, :exam_id) RETURNING id`
		if row.ID > 0 {
			q = `INSERT INTO parts (id, title, course_ids, exam_id) VALUES (:id, :title, :course_ids, :exam_id) RETURNING id`
		}
		if err := insert(ctx, tx, "parts", q, row, &row.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE formations SET part_ids = array_append(part_ids, $2) WHERE id = $1`, formationID, row.ID,
		); err != nil {
			return errors.Wrap(err, "appending part to formation")
		}
		p = row.part()
		return nil
	})
	if err != nil {
		return catalog.Part{}, err
	}
	return p, nil
}

func (repo catalogRepository) UpdatePart(ctx context.Context, p catalog.Part) (catalog.Part, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE parts SET title = $2, course_ids = $3 WHERE id = $1`, p.ID, p.Title, pq.Int64Array(toInt64s(p.CourseIDs)))
	if err != nil {
		return catalog.Part{}, errors.Wrap(err, "updating part")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.Part{}, core.NewNotFoundError("part", p.ID)
	}
	return repo.GetPart(ctx, p.ID)
}

func (repo catalogRepository) DeletePart(ctx context.Context, id int) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var found bool
		if err := tx.GetContext(ctx, &found, `SELECT true FROM parts WHERE id = $1`, id); err != nil {
			return trapNoRowsErr(err, core.NewNotFoundError("part", id), "finding part")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE formations SET part_ids = array_remove(part_ids, $1) WHERE $1 = ANY(part_ids)`, id,
		); err != nil {
			return errors.Wrap(err, "detaching part")
		}
		return deleteParts(ctx, tx, pq.Int64Array{int64(id)})
	})
}

func (repo catalogRepository) CreateCourse(ctx context.Context, partID int, c catalog.Course) (catalog.Course, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var found bool
		if err := tx.GetContext(ctx, &found, `SELECT true FROM parts WHERE id = $1 FOR UPDATE`, partID); err != nil {
			return trapNoRowsErr(err, core.NewNotFoundError("part", partID), "locking part")
		}

		row := newCourseRow(c)
		q := `INSERT INTO courses (title, type, content, quick_test_questions)
			VALUES (:title, :type, :content, :quick_test_questions) RETURNING id`
		if row.ID > 0 {
			q = `INSERT INTO courses (id, title, type, content, quick_test_questions)
				VALUES (:id, :title, :type, :content, :quick_test_questions) RETURNING id`
		}
		if err := insert(ctx, tx, "courses", q, row, &row.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE parts SET course_ids = array_append(course_ids, $2) WHERE id = $1`, partID, row.ID,
		); err != nil {
			return errors.Wrap(err, "appending course to part")
		}
		c.ID = row.ID
		return nil
	})
	if err != nil {
		return catalog.Course{}, err
	}
	return c, nil
}

func (repo catalogRepository) UpdateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE courses SET title = :title, type = :type, content = :content, quick_test_questions = :quick_test_questions
		WHERE id = :id`, newCourseRow(c))
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.Course{}, core.NewNotFoundError("course", c.ID)
	}
	return c, nil
}

func (repo catalogRepository) DeleteCourse(ctx context.Context, id int) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
		if err != nil {
			return errors.Wrap(err, "deleting course")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return core.NewNotFoundError("course", id)
		}
		_, err = tx.ExecContext(ctx, `UPDATE parts SET course_ids = array_remove(course_ids, $1) WHERE $1 = ANY(course_ids)`, id)
		return errors.Wrap(err, "detaching course")
	})
}

func (repo catalogRepository) UpdateExam(ctx context.Context, e catalog.Exam) (catalog.Exam, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE exams SET title = $2, passing_score = $3, questions = $4 WHERE id = $1`,
		e.ID, e.Title, e.PassingScore, questionList(e.Questions),
	)
	if err != nil {
		return catalog.Exam{}, errors.Wrap(err, "updating exam")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.Exam{}, core.NewNotFoundError("exam", e.ID)
	}
	return e, nil
}
