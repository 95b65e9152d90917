package progress

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/user"
)

var (
	nowFunc = time.Now // mockable

	// certificateNamespace seeds the name-based certificate serials.
	certificateNamespace = uuid.MustParse("6f1c0a52-3b8e-4c1d-9a57-2e4f8b7d9c10")
)

type (
	Repository interface {
		// GetProgress returns every formation progress of a user; empty when the user has none.
		GetProgress(ctx context.Context, userID int) (UserProgress, error)
		// GetFormationProgress returns an empty record when the user has no progress in the formation.
		GetFormationProgress(ctx context.Context, userID, formationID int) (FormationProgress, error)
		PutProgress(ctx context.Context, userID, formationID int, fp FormationProgress) error
		// UpdateProgress runs fn on the current record while holding an exclusive lock on
		// (userID, formationID), and saves what fn returns unless it fails.
		UpdateProgress(
			ctx context.Context,
			userID, formationID int,
			fn func(FormationProgress) (FormationProgress, error),
		) (FormationProgress, error)
		DeleteProgress(ctx context.Context, userIDs ...int) error
	}

	Service struct {
		repo    Repository
		catalog catalog.Reader
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, catalogReader catalog.Reader, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalogReader,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// Views

type (
	FormationSummary struct {
		Formation catalog.Formation `json:"formation"`
		Progress  int               `json:"progress"`
	}

	CourseView struct {
		ID     int                `json:"id"`
		Title  string             `json:"title"`
		Type   catalog.CourseType `json:"type"`
		Status CourseStatus       `json:"status"`
	}

	ExamView struct {
		ID                int        `json:"id"`
		Title             string     `json:"title"`
		PassingScore      int        `json:"passing_score"`
		QuestionCount     int        `json:"question_count"`
		Status            ExamStatus `json:"status"`
		Attempts          int        `json:"attempts"`
		RemainingAttempts int        `json:"remaining_attempts"`
		LastScore         *int       `json:"last_score"`
		Passed            bool       `json:"passed"`
	}

	PartView struct {
		ID      int          `json:"id"`
		Title   string       `json:"title"`
		Courses []CourseView `json:"courses"`
		Exam    ExamView     `json:"exam"`
	}

	FormationView struct {
		catalog.Formation
		Progress int        `json:"progress"`
		Parts    []PartView `json:"parts"`
	}

	CourseDetail struct {
		catalog.PublicCourse
		FormationID int          `json:"formation_id"`
		Status      CourseStatus `json:"status"`
	}

	Certificate struct {
		Serial         string     `json:"serial"`
		UserID         int        `json:"user_id"`
		UserName       string     `json:"user_name"`
		FormationID    int        `json:"formation_id"`
		FormationTitle string     `json:"formation_title"`
		PartID         int        `json:"part_id"`
		PartTitle      string     `json:"part_title"`
		Score          int        `json:"score"`
		IssuedAt       *time.Time `json:"issued_at,omitempty"`
	}

	Profile struct {
		User            user.User           `json:"user"`
		OverallProgress int                 `json:"overall_progress"`
		Formations      []catalog.Formation `json:"formations"`
		Certificates    []Certificate       `json:"certificates"`
	}

	FormationReport struct {
		Formation    catalog.Formation `json:"formation"`
		Progress     int               `json:"progress"`
		Completed    []int             `json:"completed_course_ids"`
		ExamAttempts []ExamAttempt     `json:"exam_attempts"`
	}
)

func (svc *Service) checkAccess(usr user.User, formationID int) error {
	if usr.IsPrivileged() || usr.IsAssignedTo(formationID) {
		return nil
	}
	return core.NewPolicyError("formation %d is not assigned to this user", formationID)
}

// visibleFormations lists every formation for privileged users, the assigned ones otherwise.
func (svc *Service) visibleFormations(ctx context.Context, usr user.User) ([]catalog.Formation, error) {
	if usr.IsPrivileged() {
		return svc.catalog.QueryFormations(ctx)
	}
	return svc.assignedFormations(ctx, usr)
}

// assignedFormations resolves the assigned formation ids, skipping the ones that were deleted.
func (svc *Service) assignedFormations(ctx context.Context, usr user.User) ([]catalog.Formation, error) {
	formations := make([]catalog.Formation, 0, len(usr.AssignedFormationIDs))
	for _, id := range usr.AssignedFormationIDs {
		f, err := svc.catalog.GetFormation(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, errors.Wrap(err, "getting formation")
		}
		formations = append(formations, f)
	}
	return formations, nil
}

// Dashboard lists the formations a user can see along with their progress percentage.
func (svc *Service) Dashboard(ctx context.Context, usr user.User) ([]FormationSummary, error) {
	formations, err := svc.visibleFormations(ctx, usr)
	if err != nil {
		return nil, err
	}
	summaries := make([]FormationSummary, 0, len(formations))
	if usr.IsPrivileged() {
		for _, f := range formations {
			summaries = append(summaries, FormationSummary{Formation: f})
		}
		return summaries, nil
	}

	up, err := svc.repo.GetProgress(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "getting progress")
	}
	for _, f := range formations {
		fd, err := catalog.LoadDetail(ctx, svc.catalog, f.ID)
		if err != nil {
			return nil, errors.Wrap(err, "loading formation")
		}
		summaries = append(summaries, FormationSummary{
			Formation: f,
			Progress:  FormationPercent(fd.PartList(), up[f.ID]),
		})
	}
	return summaries, nil
}

// Formation returns the gating view of a formation: every course & exam status.
func (svc *Service) Formation(ctx context.Context, usr user.User, formationID int) (FormationView, error) {
	if err := svc.checkAccess(usr, formationID); err != nil {
		return FormationView{}, err
	}
	fd, err := catalog.LoadDetail(ctx, svc.catalog, formationID)
	if err != nil {
		return FormationView{}, err
	}
	fp, err := svc.repo.GetFormationProgress(ctx, usr.ID, formationID)
	if err != nil {
		return FormationView{}, errors.Wrap(err, "getting formation progress")
	}

	parts := fd.PartList()
	view := FormationView{
		Formation: fd.Formation,
		Progress:  FormationPercent(parts, fp),
		Parts:     make([]PartView, 0, len(fd.Parts)),
	}
	if usr.IsPrivileged() {
		view.Progress = 0
	}
	for i, pd := range fd.Parts {
		pv := PartView{ID: pd.ID, Title: pd.Title, Courses: make([]CourseView, 0, len(pd.Courses))}
		for _, c := range pd.Courses {
			pv.Courses = append(pv.Courses, CourseView{
				ID:     c.ID,
				Title:  c.Title,
				Type:   c.Type(),
				Status: GetCourseStatus(c.ID, i, parts, fp),
			})
		}
		att, _ := fp.Attempt(pd.ID)
		pv.Exam = ExamView{
			ID:                pd.Exam.ID,
			Title:             pd.Exam.Title,
			PassingScore:      pd.Exam.PassingScore,
			QuestionCount:     len(pd.Exam.Questions),
			Status:            GetExamStatus(pd.Part, fp),
			Attempts:          att.Attempts,
			RemainingAttempts: RemainingAttempts(att),
			LastScore:         att.LastScore,
			Passed:            att.Passed,
		}
		view.Parts = append(view.Parts, pv)
	}
	return view, nil
}

// Course returns the content of an unlocked or completed course.
func (svc *Service) Course(ctx context.Context, usr user.User, formationID, courseID int) (CourseDetail, error) {
	if err := svc.checkAccess(usr, formationID); err != nil {
		return CourseDetail{}, err
	}
	fd, err := catalog.LoadDetail(ctx, svc.catalog, formationID)
	if err != nil {
		return CourseDetail{}, err
	}
	partIdx, course, ok := fd.FindCourse(courseID)
	if !ok {
		return CourseDetail{}, core.NewNotFoundError("course", courseID)
	}
	fp, err := svc.repo.GetFormationProgress(ctx, usr.ID, formationID)
	if err != nil {
		return CourseDetail{}, errors.Wrap(err, "getting formation progress")
	}
	status := GetCourseStatus(courseID, partIdx, fd.PartList(), fp)
	if status == CourseLocked {
		return CourseDetail{}, core.NewPolicyError("course %d is locked", courseID)
	}
	return CourseDetail{PublicCourse: course.Public(), FormationID: formationID, Status: status}, nil
}

// CompleteCourse marks a course as completed. Completing twice is a no-op.
// Locked courses are refused, and so are failed quick tests.
func (svc *Service) CompleteCourse(
	ctx context.Context,
	usr user.User,
	formationID, courseID int,
	quickTest catalog.Answers,
) (FormationProgress, error) {
	if err := svc.checkAccess(usr, formationID); err != nil {
		return FormationProgress{}, err
	}
	fd, err := catalog.LoadDetail(ctx, svc.catalog, formationID)
	if err != nil {
		return FormationProgress{}, err
	}
	partIdx, course, ok := fd.FindCourse(courseID)
	if !ok {
		return FormationProgress{}, core.NewNotFoundError("course", courseID)
	}
	parts := fd.PartList()

	return svc.repo.UpdateProgress(ctx, usr.ID, formationID, func(fp FormationProgress) (FormationProgress, error) {
		switch GetCourseStatus(courseID, partIdx, parts, fp) {
		case CourseCompleted:
			return fp, nil
		case CourseLocked:
			return fp, core.NewPolicyError("course %d is locked", courseID)
		}
		if !course.PassesQuickTest(quickTest) {
			return fp, core.NewPolicyError("every quick test answer must be correct to complete the course")
		}
		return fp.withCompleted(courseID), nil
	})
}

// Exam returns the questions of an exam the user can take, without the answers.
func (svc *Service) Exam(ctx context.Context, usr user.User, formationID, partID int) (catalog.PublicExam, error) {
	if err := svc.checkAccess(usr, formationID); err != nil {
		return catalog.PublicExam{}, err
	}
	fd, err := catalog.LoadDetail(ctx, svc.catalog, formationID)
	if err != nil {
		return catalog.PublicExam{}, err
	}
	_, pd, ok := fd.FindPart(partID)
	if !ok {
		return catalog.PublicExam{}, core.NewNotFoundError("part", partID)
	}
	fp, err := svc.repo.GetFormationProgress(ctx, usr.ID, formationID)
	if err != nil {
		return catalog.PublicExam{}, errors.Wrap(err, "getting formation progress")
	}
	if err = examPolicy(pd.Part, fp); err != nil {
		return catalog.PublicExam{}, err
	}
	return pd.Exam.Public(), nil
}

func examPolicy(part catalog.Part, fp FormationProgress) error {
	switch GetExamStatus(part, fp) {
	case ExamLocked:
		return core.NewPolicyError("every course of the part must be completed before taking its exam")
	case ExamExhausted:
		return core.NewPolicyError("no attempt left for this exam")
	case ExamPassed:
		return core.NewPolicyError("exam already passed")
	}
	return nil
}

// SubmitExam scores the answers and records the attempt.
// Nothing is recorded when the submission is rejected.
func (svc *Service) SubmitExam(
	ctx context.Context,
	usr user.User,
	formationID, partID int,
	answers catalog.Answers,
) (AttemptResult, error) {
	if err := svc.checkAccess(usr, formationID); err != nil {
		return AttemptResult{}, err
	}
	f, err := svc.catalog.GetFormation(ctx, formationID)
	if err != nil {
		return AttemptResult{}, err
	}
	if !core.ContainsInt(f.PartIDs, partID) {
		return AttemptResult{}, core.NewInvalidSubmissionError("part %d does not belong to formation %d", partID, formationID)
	}
	fd, err := catalog.LoadDetail(ctx, svc.catalog, formationID)
	if err != nil {
		if core.IsNotFound(err) {
			return AttemptResult{}, core.NewInvalidSubmissionError("part %d cannot be evaluated: %v", partID, err)
		}
		return AttemptResult{}, errors.Wrap(err, "loading formation")
	}
	_, pd, _ := fd.FindPart(partID)

	score, err := Score(pd.Exam, answers)
	if err != nil {
		return AttemptResult{}, err
	}

	var result AttemptResult
	_, err = svc.repo.UpdateProgress(ctx, usr.ID, formationID, func(fp FormationProgress) (FormationProgress, error) {
		if err := examPolicy(pd.Part, fp); err != nil {
			return fp, err
		}
		var out FormationProgress
		out, result = ApplyAttempt(fp, pd.Part, pd.Exam.PassingScore, score, nowFunc())
		return out, nil
	})
	if err != nil {
		return AttemptResult{}, err
	}

	if result.NewlyPassed {
		svc.sendAttestationMail(usr, f, pd.Part, result)
	}
	return result, nil
}

func certificateSerial(userID, partID int) string {
	return uuid.NewSHA1(certificateNamespace, []byte(fmt.Sprintf("%d:%d", userID, partID))).String()
}

func (svc *Service) sendAttestationMail(usr user.User, f catalog.Formation, part catalog.Part, result AttemptResult) {
	if svc.mailSvc == nil || usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Attestation: " + part.Title,
		TemplateName: "attestation",
		TemplateData: struct {
			Name, PartTitle, FormationTitle, Serial string
			Score                                   int
		}{
			Name:           usr.FullName(),
			PartTitle:      part.Title,
			FormationTitle: f.Title,
			Serial:         certificateSerial(usr.ID, part.ID),
			Score:          result.Score,
		},
	})
}

// CertifiedParts resolves the parts whose exam the user passed, in any formation.
func (svc *Service) CertifiedParts(ctx context.Context, userID int) ([]Certification, error) {
	up, err := svc.repo.GetProgress(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "getting progress")
	}

	var lookupErr error
	certs := CertifiedParts(up, func(partID int) (catalog.Part, bool) {
		p, err := svc.catalog.GetPart(ctx, partID)
		if err != nil {
			if !core.IsNotFound(err) && lookupErr == nil {
				lookupErr = err
			}
			return catalog.Part{}, false
		}
		return p, true
	})
	if lookupErr != nil {
		return nil, errors.Wrap(lookupErr, "getting part")
	}
	return certs, nil
}

// Certificates returns the attestations earned by the user.
func (svc *Service) Certificates(ctx context.Context, usr user.User) ([]Certificate, error) {
	certs, err := svc.CertifiedParts(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	titles := make(map[int]string)
	out := make([]Certificate, 0, len(certs))
	for _, c := range certs {
		title, ok := titles[c.FormationID]
		if !ok {
			if f, err := svc.catalog.GetFormation(ctx, c.FormationID); err == nil {
				title = f.Title
			} else if !core.IsNotFound(err) {
				return nil, errors.Wrap(err, "getting formation")
			}
			titles[c.FormationID] = title
		}
		out = append(out, Certificate{
			Serial:         certificateSerial(usr.ID, c.Part.ID),
			UserID:         usr.ID,
			UserName:       usr.FullName(),
			FormationID:    c.FormationID,
			FormationTitle: title,
			PartID:         c.Part.ID,
			PartTitle:      c.Part.Title,
			Score:          c.Score,
			IssuedAt:       c.PassedAt,
		})
	}
	return out, nil
}

// Certificate returns the attestation of one part, or a not found error when the part is not certified.
func (svc *Service) Certificate(ctx context.Context, usr user.User, partID int) (Certificate, error) {
	certs, err := svc.Certificates(ctx, usr)
	if err != nil {
		return Certificate{}, err
	}
	for _, c := range certs {
		if c.PartID == partID {
			return c, nil
		}
	}
	return Certificate{}, core.NewNotFoundError("certificate", partID)
}

// OverallProgress is the aggregated completion over the user's assigned formations.
func (svc *Service) OverallProgress(ctx context.Context, usr user.User) (int, error) {
	if usr.IsPrivileged() {
		return 0, nil
	}
	formations, err := svc.assignedFormations(ctx, usr)
	if err != nil {
		return 0, err
	}
	details := make([]catalog.FormationDetail, 0, len(formations))
	for _, f := range formations {
		fd, err := catalog.LoadDetail(ctx, svc.catalog, f.ID)
		if err != nil {
			return 0, errors.Wrap(err, "loading formation")
		}
		details = append(details, fd)
	}
	up, err := svc.repo.GetProgress(ctx, usr.ID)
	if err != nil {
		return 0, errors.Wrap(err, "getting progress")
	}
	return OverallProgress(usr, details, up), nil
}

// Profile gathers what the profile screen shows. Administrators list every formation.
func (svc *Service) Profile(ctx context.Context, usr user.User) (Profile, error) {
	var formations []catalog.Formation
	var err error
	if usr.IsAdmin() {
		formations, err = svc.catalog.QueryFormations(ctx)
	} else {
		formations, err = svc.assignedFormations(ctx, usr)
	}
	if err != nil {
		return Profile{}, errors.Wrap(err, "getting formations")
	}

	overall, err := svc.OverallProgress(ctx, usr)
	if err != nil {
		return Profile{}, err
	}
	certs, err := svc.Certificates(ctx, usr)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: usr, OverallProgress: overall, Formations: formations, Certificates: certs}, nil
}

// Report details the progress of a user in each assigned formation.
func (svc *Service) Report(ctx context.Context, usr user.User) ([]FormationReport, error) {
	formations, err := svc.assignedFormations(ctx, usr)
	if err != nil {
		return nil, err
	}
	up, err := svc.repo.GetProgress(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "getting progress")
	}
	reports := make([]FormationReport, 0, len(formations))
	for _, f := range formations {
		fd, err := catalog.LoadDetail(ctx, svc.catalog, f.ID)
		if err != nil {
			return nil, errors.Wrap(err, "loading formation")
		}
		fp := up[f.ID].Clone()
		reports = append(reports, FormationReport{
			Formation:    f,
			Progress:     FormationPercent(fd.PartList(), fp),
			Completed:    fp.CompletedCourseIDs,
			ExamAttempts: fp.ExamAttempts,
		})
	}
	return reports, nil
}

// Reset wipes every progress record of the users, certifications included.
func (svc *Service) Reset(ctx context.Context, userIDs ...int) error {
	return svc.repo.DeleteProgress(ctx, userIDs...)
}
