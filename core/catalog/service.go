package catalog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/eligue/academy/core"
)

var (
	// errors
	ErrFormationNotFound = core.NewNotFoundError("formation", 0)
	ErrPartNotFound      = core.NewNotFoundError("part", 0)
	ErrCourseNotFound    = core.NewNotFoundError("course", 0)
	ErrExamNotFound      = core.NewNotFoundError("exam", 0)
)

type (
	// Reader is the read side of the catalog, used by the progression engine.
	Reader interface {
		GetFormation(ctx context.Context, id int) (Formation, error)
		QueryFormations(ctx context.Context) ([]Formation, error)
		GetPart(ctx context.Context, id int) (Part, error)
		GetCourse(ctx context.Context, id int) (Course, error)
		GetExam(ctx context.Context, id int) (Exam, error)
	}

	Repository interface {
		Reader

		CreateFormation(ctx context.Context, f Formation) (Formation, error)
		UpdateFormation(ctx context.Context, f Formation) (Formation, error)
		// DeleteFormation removes the formation along with its parts, courses & exams.
		DeleteFormation(ctx context.Context, id int) error
		// CreatePart saves the exam & the part, then appends the part to the formation.
		CreatePart(ctx context.Context, formationID int, p Part, e Exam) (Part, error)
		UpdatePart(ctx context.Context, p Part) (Part, error)
		// DeletePart removes the part, its courses & its exam, and detaches it from its formation.
		DeletePart(ctx context.Context, id int) error
		// CreateCourse saves the course and appends it to the part.
		CreateCourse(ctx context.Context, partID int, c Course) (Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		// DeleteCourse removes the course and detaches it from its part.
		DeleteCourse(ctx context.Context, id int) error
		UpdateExam(ctx context.Context, e Exam) (Exam, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) GetFormation(ctx context.Context, id int) (Formation, error) {
	return svc.repo.GetFormation(ctx, id)
}

func (svc *Service) QueryFormations(ctx context.Context) ([]Formation, error) {
	return svc.repo.QueryFormations(ctx)
}

func (svc *Service) GetPart(ctx context.Context, id int) (Part, error) {
	return svc.repo.GetPart(ctx, id)
}

func (svc *Service) GetCourse(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) GetExam(ctx context.Context, id int) (Exam, error) {
	return svc.repo.GetExam(ctx, id)
}

// CheckFormationsExist fails with a validation error on the first id that does not resolve to a formation.
func (svc *Service) CheckFormationsExist(ctx context.Context, ids ...int) error {
	for _, id := range ids {
		if _, err := svc.repo.GetFormation(ctx, id); err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(nil, core.FieldError{
					Field: "assigned_formation_ids",
					Error: "formation not found",
				})
			}
			return errors.Wrap(err, "getting formation")
		}
	}
	return nil
}

// Detail resolves the parts, courses and exams of a formation.
// A dangling reference is reported as a not found error.
func (svc *Service) Detail(ctx context.Context, formationID int) (FormationDetail, error) {
	return LoadDetail(ctx, svc.repo, formationID)
}

// LoadDetail resolves a formation tree from any catalog Reader.
func LoadDetail(ctx context.Context, r Reader, formationID int) (FormationDetail, error) {
	f, err := r.GetFormation(ctx, formationID)
	if err != nil {
		return FormationDetail{}, err
	}
	fd := FormationDetail{Formation: f, Parts: make([]PartDetail, 0, len(f.PartIDs))}
	for _, partID := range f.PartIDs {
		p, err := r.GetPart(ctx, partID)
		if err != nil {
			return FormationDetail{}, errors.Wrapf(err, "resolving part %d", partID)
		}
		pd := PartDetail{Part: p, Courses: make([]Course, 0, len(p.CourseIDs))}
		for _, courseID := range p.CourseIDs {
			c, err := r.GetCourse(ctx, courseID)
			if err != nil {
				return FormationDetail{}, errors.Wrapf(err, "resolving course %d", courseID)
			}
			pd.Courses = append(pd.Courses, c)
		}
		if pd.Exam, err = r.GetExam(ctx, p.ExamID); err != nil {
			return FormationDetail{}, errors.Wrapf(err, "resolving exam %d", p.ExamID)
		}
		fd.Parts = append(fd.Parts, pd)
	}
	return fd, nil
}

// Content management

func (svc *Service) CreateFormation(ctx context.Context, in FormationInput) (Formation, error) {
	return svc.repo.CreateFormation(ctx, Formation{
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		PartIDs:     []int{},
	})
}

func (svc *Service) UpdateFormation(ctx context.Context, id int, in FormationInput) (Formation, error) {
	f, err := svc.repo.GetFormation(ctx, id)
	if err != nil {
		return Formation{}, err
	}
	f.Title = in.Title
	f.Description = in.Description
	f.ImageURL = in.ImageURL
	return svc.repo.UpdateFormation(ctx, f)
}

func (svc *Service) DeleteFormation(ctx context.Context, id int) error {
	return svc.repo.DeleteFormation(ctx, id)
}

// CreatePart adds a part at the end of the formation, with an empty exam titled after it.
func (svc *Service) CreatePart(ctx context.Context, formationID int, in PartInput) (PartDetail, error) {
	if _, err := svc.repo.GetFormation(ctx, formationID); err != nil {
		return PartDetail{}, err
	}
	exam := Exam{
		Title:        examTitlePrefix + in.Title,
		Questions:    []Question{},
		PassingScore: DefaultPassingScore,
	}
	p, err := svc.repo.CreatePart(ctx, formationID, Part{Title: in.Title, CourseIDs: []int{}}, exam)
	if err != nil {
		return PartDetail{}, errors.Wrap(err, "creating part")
	}
	if exam, err = svc.repo.GetExam(ctx, p.ExamID); err != nil {
		return PartDetail{}, errors.Wrap(err, "getting part exam")
	}
	return PartDetail{Part: p, Courses: []Course{}, Exam: exam}, nil
}

func (svc *Service) UpdatePart(ctx context.Context, id int, in PartInput) (Part, error) {
	p, err := svc.repo.GetPart(ctx, id)
	if err != nil {
		return Part{}, err
	}
	p.Title = in.Title
	return svc.repo.UpdatePart(ctx, p)
}

func (svc *Service) DeletePart(ctx context.Context, id int) error {
	return svc.repo.DeletePart(ctx, id)
}

func (svc *Service) CreateCourse(ctx context.Context, partID int, in CourseInput) (Course, error) {
	if _, err := svc.repo.GetPart(ctx, partID); err != nil {
		return Course{}, err
	}
	c, err := in.Course(0)
	if err != nil {
		return Course{}, err
	}
	return svc.repo.CreateCourse(ctx, partID, c)
}

func (svc *Service) UpdateCourse(ctx context.Context, id int, in CourseInput) (Course, error) {
	if _, err := svc.repo.GetCourse(ctx, id); err != nil {
		return Course{}, err
	}
	c, err := in.Course(id)
	if err != nil {
		return Course{}, err
	}
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *Service) DeleteCourse(ctx context.Context, id int) error {
	return svc.repo.DeleteCourse(ctx, id)
}

func (svc *Service) UpdateExam(ctx context.Context, id int, in ExamInput) (Exam, error) {
	if _, err := svc.repo.GetExam(ctx, id); err != nil {
		return Exam{}, err
	}
	return svc.repo.UpdateExam(ctx, Exam{
		ID:           id,
		Title:        in.Title,
		Questions:    numberQuestions(in.Questions),
		PassingScore: in.PassingScore,
	})
}
