package inmemdb

import (
	"context"
	"sort"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
)

type catalogRepository struct {
	db       *catalogTables
	progress *progressTable
}

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db.catalog, progress: db.progress}
}

func copyFormation(f catalog.Formation) catalog.Formation {
	f.PartIDs = copyInts(f.PartIDs)
	return f
}

func copyPart(p catalog.Part) catalog.Part {
	p.CourseIDs = copyInts(p.CourseIDs)
	return p
}

func copyQuestions(questions []catalog.Question) []catalog.Question {
	out := make([]catalog.Question, len(questions))
	for i, q := range questions {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}

func copyCourse(c catalog.Course) catalog.Course {
	c.QuickTestQuestions = copyQuestions(c.QuickTestQuestions)
	return c
}

func copyExam(e catalog.Exam) catalog.Exam {
	e.Questions = copyQuestions(e.Questions)
	return e
}

func (repo *catalogRepository) GetFormation(_ context.Context, id int) (catalog.Formation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	f, ok := repo.db.formations[id]
	if !ok {
		return catalog.Formation{}, core.NewNotFoundError("formation", id)
	}
	return copyFormation(f), nil
}

func (repo *catalogRepository) QueryFormations(_ context.Context) ([]catalog.Formation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	formations := make([]catalog.Formation, 0, len(repo.db.formations))
	for _, f := range repo.db.formations {
		formations = append(formations, copyFormation(f))
	}
	sort.Slice(formations, func(i, j int) bool { return formations[i].ID < formations[j].ID })
	return formations, nil
}

func (repo *catalogRepository) GetPart(_ context.Context, id int) (catalog.Part, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	p, ok := repo.db.parts[id]
	if !ok {
		return catalog.Part{}, core.NewNotFoundError("part", id)
	}
	return copyPart(p), nil
}

func (repo *catalogRepository) GetCourse(_ context.Context, id int) (catalog.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	c, ok := repo.db.courses[id]
	if !ok {
		return catalog.Course{}, core.NewNotFoundError("course", id)
	}
	return copyCourse(c), nil
}

func (repo *catalogRepository) GetExam(_ context.Context, id int) (catalog.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	e, ok := repo.db.exams[id]
	if !ok {
		return catalog.Exam{}, core.NewNotFoundError("exam", id)
	}
	return copyExam(e), nil
}

// CreateFormation keeps f.ID when set, which lets fixtures use well-known ids.
func (repo *catalogRepository) CreateFormation(_ context.Context, f catalog.Formation) (catalog.Formation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	f.ID = nextID(&repo.db.seq.formation, f.ID)
	if f.PartIDs == nil {
		f.PartIDs = []int{}
	}
	repo.db.formations[f.ID] = copyFormation(f)
	return copyFormation(f), nil
}

func (repo *catalogRepository) UpdateFormation(_ context.Context, f catalog.Formation) (catalog.Formation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.formations[f.ID]; !ok {
		return catalog.Formation{}, core.NewNotFoundError("formation", f.ID)
	}
	repo.db.formations[f.ID] = copyFormation(f)
	return copyFormation(f), nil
}

func (repo *catalogRepository) DeleteFormation(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	f, ok := repo.db.formations[id]
	if !ok {
		repo.db.mutex.Unlock()
		return core.NewNotFoundError("formation", id)
	}
	for _, partID := range f.PartIDs {
		repo.deletePart(partID)
	}
	delete(repo.db.formations, id)
	repo.db.mutex.Unlock()

	repo.progress.deleteWhere(func(k progressKey) bool { return k.formationID == id })
	return nil
}

func (repo *catalogRepository) CreatePart(_ context.Context, formationID int, p catalog.Part, e catalog.Exam) (catalog.Part, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	f, ok := repo.db.formations[formationID]
	if !ok {
		return catalog.Part{}, core.NewNotFoundError("formation", formationID)
	}

	e.ID = nextID(&repo.db.seq.exam, e.ID)
	repo.db.exams[e.ID] = copyExam(e)

	p.ID = nextID(&repo.db.seq.part, p.ID)
	p.ExamID = e.ID
	if p.CourseIDs == nil {
		p.CourseIDs = []int{}
	}
	repo.db.parts[p.ID] = copyPart(p)

	f.PartIDs = append(copyInts(f.PartIDs), p.ID)
	repo.db.formations[f.ID] = f
	return copyPart(p), nil
}

func (repo *catalogRepository) UpdatePart(_ context.Context, p catalog.Part) (catalog.Part, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.parts[p.ID]; !ok {
		return catalog.Part{}, core.NewNotFoundError("part", p.ID)
	}
	repo.db.parts[p.ID] = copyPart(p)
	return copyPart(p), nil
}

func (repo *catalogRepository) DeletePart(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.parts[id]; !ok {
		return core.NewNotFoundError("part", id)
	}
	for fid, f := range repo.db.formations {
		if core.ContainsInt(f.PartIDs, id) {
			f.PartIDs = core.RemoveInts(f.PartIDs, id)
			repo.db.formations[fid] = f
		}
	}
	repo.deletePart(id)
	return nil
}

// deletePart removes a part with its courses and exam. The caller holds the lock.
func (repo *catalogRepository) deletePart(id int) {
	p, ok := repo.db.parts[id]
	if !ok {
		return
	}
	for _, courseID := range p.CourseIDs {
		delete(repo.db.courses, courseID)
	}
	delete(repo.db.exams, p.ExamID)
	delete(repo.db.parts, id)
}

func (repo *catalogRepository) CreateCourse(_ context.Context, partID int, c catalog.Course) (catalog.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.parts[partID]
	if !ok {
		return catalog.Course{}, core.NewNotFoundError("part", partID)
	}
	c.ID = nextID(&repo.db.seq.course, c.ID)
	repo.db.courses[c.ID] = copyCourse(c)

	p.CourseIDs = append(copyInts(p.CourseIDs), c.ID)
	repo.db.parts[p.ID] = p
	return copyCourse(c), nil
}

func (repo *catalogRepository) UpdateCourse(_ context.Context, c catalog.Course) (catalog.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return catalog.Course{}, core.NewNotFoundError("course", c.ID)
	}
	repo.db.courses[c.ID] = copyCourse(c)
	return copyCourse(c), nil
}

func (repo *catalogRepository) DeleteCourse(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return core.NewNotFoundError("course", id)
	}
	for pid, p := range repo.db.parts {
		if core.ContainsInt(p.CourseIDs, id) {
			p.CourseIDs = core.RemoveInts(p.CourseIDs, id)
			repo.db.parts[pid] = p
		}
	}
	delete(repo.db.courses, id)
	return nil
}

func (repo *catalogRepository) UpdateExam(_ context.Context, e catalog.Exam) (catalog.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.exams[e.ID]; !ok {
		return catalog.Exam{}, core.NewNotFoundError("exam", e.ID)
	}
	repo.db.exams[e.ID] = copyExam(e)
	return copyExam(e), nil
}

// nextID returns id when set, bumping the sequence past it; the next sequence value otherwise.
func nextID(seq *int, id int) int {
	if id > 0 {
		if id > *seq {
			*seq = id
		}
		return id
	}
	*seq++
	return *seq
}
