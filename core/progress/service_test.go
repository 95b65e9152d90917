package progress_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/progress"
	"github.com/eligue/academy/core/user"
	"github.com/eligue/academy/storage/database/fixtures"
	"github.com/eligue/academy/tests"
)

type env struct {
	testutil.Services
	fd      catalog.FormationDetail
	learner user.User
	admin   user.User
}

func setup(t *testing.T) env {
	svcs := testutil.NewServices(t)
	data, err := fixtures.Load(context.Background(), svcs.UserRepo, svcs.Catalog)
	require.NoError(t, err)
	return env{
		Services: svcs,
		fd:       data.Formation,
		learner:  data.Users["jdupont"],
		admin:    data.Users["pmartin"],
	}
}

func correctAnswers(questions []catalog.Question) catalog.Answers {
	answers := make(catalog.Answers, len(questions))
	for _, q := range questions {
		answers[q.ID] = q.CorrectAnswerIndex
	}
	return answers
}

func wrongAnswers(questions []catalog.Question) catalog.Answers {
	answers := make(catalog.Answers, len(questions))
	for _, q := range questions {
		answers[q.ID] = (q.CorrectAnswerIndex + 1) % len(q.Options)
	}
	return answers
}

func (e env) completePart(t *testing.T, usr user.User, idx int) {
	for _, c := range e.fd.Parts[idx].Courses {
		_, err := e.Progress.CompleteCourse(context.Background(), usr, e.fd.ID, c.ID, correctAnswers(c.QuickTestQuestions))
		require.NoError(t, err)
	}
}

func (e env) passPart(t *testing.T, usr user.User, idx int) {
	e.completePart(t, usr, idx)
	pd := e.fd.Parts[idx]
	res, err := e.Progress.SubmitExam(context.Background(), usr, e.fd.ID, pd.ID, correctAnswers(pd.Exam.Questions))
	require.NoError(t, err)
	require.True(t, res.NewlyPassed)
}

func TestService_Dashboard(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	outsider := testutil.CreateUser(t, e.UserRepo, "outsider", user.RoleClub, true)

	tests := []struct {
		name     string
		usr      user.User
		wantIDs  []int
		progress int
	}{
		{name: "learner", usr: e.learner, wantIDs: []int{e.fd.ID}},
		{name: "admin sees everything", usr: e.admin, wantIDs: []int{e.fd.ID}},
		{name: "unassigned learner", usr: outsider, wantIDs: []int{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			summaries, err := e.Progress.Dashboard(ctx, tc.usr)
			require.NoError(t, err)
			ids := make([]int, 0)
			for _, s := range summaries {
				ids = append(ids, s.Formation.ID)
				assert.Equal(t, tc.progress, s.Progress)
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}

	t.Run("progress is reported", func(t *testing.T) {
		e.completePart(t, e.learner, 0)
		summaries, err := e.Progress.Dashboard(ctx, e.learner)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, 60, summaries[0].Progress)
	})
}

func TestService_CompleteCourse(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	part1 := e.fd.Parts[0]
	first, second := part1.Courses[0], part1.Courses[1]
	outsider := testutil.CreateUser(t, e.UserRepo, "outsider", user.RoleArbitre, true)

	t.Run("locked course", func(t *testing.T) {
		_, err := e.Progress.CompleteCourse(ctx, e.learner, e.fd.ID, second.ID, correctAnswers(second.QuickTestQuestions))
		assert.True(t, core.IsPolicyViolation(err))
	})

	t.Run("failed quick test", func(t *testing.T) {
		_, err := e.Progress.CompleteCourse(ctx, e.learner, e.fd.ID, first.ID, wrongAnswers(first.QuickTestQuestions))
		assert.True(t, core.IsPolicyViolation(err))
		fp, err := e.Progress.Formation(ctx, e.learner, e.fd.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, fp.Progress)
	})

	t.Run("formation not assigned", func(t *testing.T) {
		_, err := e.Progress.CompleteCourse(ctx, outsider, e.fd.ID, first.ID, correctAnswers(first.QuickTestQuestions))
		assert.True(t, core.IsPolicyViolation(err))
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := e.Progress.CompleteCourse(ctx, e.learner, e.fd.ID, 999, nil)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("unknown formation", func(t *testing.T) {
		_, err := e.Progress.CompleteCourse(ctx, e.admin, 999, first.ID, nil)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("completion unlocks the next course", func(t *testing.T) {
		fp, err := e.Progress.CompleteCourse(ctx, e.learner, e.fd.ID, first.ID, correctAnswers(first.QuickTestQuestions))
		require.NoError(t, err)
		assert.Equal(t, []int{first.ID}, fp.CompletedCourseIDs)

		view, err := e.Progress.Formation(ctx, e.learner, e.fd.ID)
		require.NoError(t, err)
		assert.Equal(t, progress.CourseCompleted, view.Parts[0].Courses[0].Status)
		assert.Equal(t, progress.CourseUnlocked, view.Parts[0].Courses[1].Status)
		assert.Equal(t, progress.CourseLocked, view.Parts[0].Courses[2].Status)
		assert.Equal(t, progress.ExamLocked, view.Parts[0].Exam.Status)
		assert.Equal(t, 20, view.Progress)
	})

	t.Run("completing twice is a no-op", func(t *testing.T) {
		fp, err := e.Progress.CompleteCourse(ctx, e.learner, e.fd.ID, first.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, []int{first.ID}, fp.CompletedCourseIDs)
	})
}

func TestService_Course(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	first, second := e.fd.Parts[0].Courses[0], e.fd.Parts[0].Courses[1]

	cd, err := e.Progress.Course(ctx, e.learner, e.fd.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.CourseUnlocked, cd.Status)
	assert.Equal(t, "8ca4qNI4qYI", cd.YouTubeID)
	require.Len(t, cd.QuickTestQuestions, 1)

	_, err = e.Progress.Course(ctx, e.learner, e.fd.ID, second.ID)
	assert.True(t, core.IsPolicyViolation(err))
}

func TestService_Exam(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	part1 := e.fd.Parts[0]

	_, err := e.Progress.Exam(ctx, e.learner, e.fd.ID, part1.ID)
	assert.True(t, core.IsPolicyViolation(err), "locked")

	e.completePart(t, e.learner, 0)
	exam, err := e.Progress.Exam(ctx, e.learner, e.fd.ID, part1.ID)
	require.NoError(t, err)
	assert.Equal(t, part1.ExamID, exam.ID)
	assert.Len(t, exam.Questions, 3)
	assert.Equal(t, 80, exam.PassingScore)

	_, err = e.Progress.Exam(ctx, e.learner, e.fd.ID, 999)
	assert.True(t, core.IsNotFound(err))
}

func TestService_SubmitExam(t *testing.T) {
	ctx := context.Background()

	t.Run("part outside the formation", func(t *testing.T) {
		e := setup(t)
		_, err := e.Progress.SubmitExam(ctx, e.learner, e.fd.ID, 999, catalog.Answers{})
		assert.True(t, core.IsInvalidSubmission(err))
	})

	t.Run("exam without questions", func(t *testing.T) {
		e := setup(t)
		pd, err := e.Catalog.CreatePart(ctx, e.fd.ID, catalog.PartInput{Title: "Vide"})
		require.NoError(t, err)
		_, err = e.Progress.SubmitExam(ctx, e.admin, e.fd.ID, pd.ID, catalog.Answers{})
		assert.True(t, core.IsInvalidSubmission(err))
		view, err := e.Progress.Formation(ctx, e.admin, e.fd.ID)
		require.NoError(t, err)
		require.Len(t, view.Parts, 3)
		assert.Equal(t, 0, view.Parts[2].Exam.Attempts)
	})

	t.Run("courses not completed", func(t *testing.T) {
		e := setup(t)
		pd := e.fd.Parts[0]
		_, err := e.Progress.SubmitExam(ctx, e.learner, e.fd.ID, pd.ID, correctAnswers(pd.Exam.Questions))
		assert.True(t, core.IsPolicyViolation(err))
	})

	t.Run("three failures reset the part", func(t *testing.T) {
		e := setup(t)
		pd := e.fd.Parts[0]
		e.completePart(t, e.learner, 0)
		answers := catalog.Answers{pd.Exam.Questions[0].ID: pd.Exam.Questions[0].CorrectAnswerIndex} // 33

		for i := 1; i < progress.MaxExamAttempts; i++ {
			res, err := e.Progress.SubmitExam(ctx, e.learner, e.fd.ID, pd.ID, answers)
			require.NoError(t, err)
			assert.Equal(t, 33, res.Score)
			assert.False(t, res.Passed)
			assert.False(t, res.Reset)
			assert.Equal(t, progress.MaxExamAttempts-i, res.RemainingAttempts)
		}
		res, err := e.Progress.SubmitExam(ctx, e.learner, e.fd.ID, pd.ID, answers)
		require.NoError(t, err)
		assert.True(t, res.Reset)

		view, err := e.Progress.Formation(ctx, e.learner, e.fd.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, view.Progress)
		assert.Equal(t, progress.CourseUnlocked, view.Parts[0].Courses[0].Status)
		assert.Equal(t, progress.ExamLocked, view.Parts[0].Exam.Status)
		assert.Equal(t, 0, view.Parts[0].Exam.Attempts)
		require.NotNil(t, view.Parts[0].Exam.LastScore)
		assert.Equal(t, 33, *view.Parts[0].Exam.LastScore)

		_, err = e.Progress.SubmitExam(ctx, e.learner, e.fd.ID, pd.ID, answers)
		assert.True(t, core.IsPolicyViolation(err))
	})

	t.Run("pass certifies the part and unlocks the next one", func(t *testing.T) {
		e := setup(t)
		e.Mail.Reset()
		e.passPart(t, e.learner, 0)

		view, err := e.Progress.Formation(ctx, e.learner, e.fd.ID)
		require.NoError(t, err)
		assert.Equal(t, progress.ExamPassed, view.Parts[0].Exam.Status)
		assert.Equal(t, progress.CourseUnlocked, view.Parts[1].Courses[0].Status)

		certs, err := e.Progress.Certificates(ctx, e.learner)
		require.NoError(t, err)
		require.Len(t, certs, 1)
		assert.Equal(t, e.fd.Parts[0].ID, certs[0].PartID)
		assert.Equal(t, 100, certs[0].Score)
		assert.Equal(t, e.fd.Title, certs[0].FormationTitle)
		assert.NotEmpty(t, certs[0].Serial)

		sent := e.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, e.learner.Email, sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, certs[0].Serial)

		pd := e.fd.Parts[0]
		_, err = e.Progress.SubmitExam(ctx, e.learner, e.fd.ID, pd.ID, correctAnswers(pd.Exam.Questions))
		assert.True(t, core.IsPolicyViolation(err), "already passed")
	})
}

func TestService_SubmitExam_concurrent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	pd := e.fd.Parts[0]
	e.completePart(t, e.learner, 0)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Progress.SubmitExam(ctx, e.learner, e.fd.ID, pd.ID, catalog.Answers{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if core.IsPolicyViolation(err) {
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, progress.MaxExamAttempts, succeeded)
	assert.Equal(t, 10-progress.MaxExamAttempts, refused)
}

func TestService_Certificate(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.passPart(t, e.learner, 0)

	cert, err := e.Progress.Certificate(ctx, e.learner, e.fd.Parts[0].ID)
	require.NoError(t, err)
	again, err := e.Progress.Certificate(ctx, e.learner, e.fd.Parts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, cert.Serial, again.Serial)
	assert.Equal(t, e.learner.FullName(), cert.UserName)

	_, err = e.Progress.Certificate(ctx, e.learner, e.fd.Parts[1].ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_ProfileAndReport(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.passPart(t, e.learner, 0)
	e.completePart(t, e.learner, 1)

	profile, err := e.Progress.Profile(ctx, e.learner)
	require.NoError(t, err)
	assert.Equal(t, 100, profile.OverallProgress)
	assert.Len(t, profile.Formations, 1)
	assert.Len(t, profile.Certificates, 1)

	adminProfile, err := e.Progress.Profile(ctx, e.admin)
	require.NoError(t, err)
	assert.Equal(t, 0, adminProfile.OverallProgress)
	assert.Len(t, adminProfile.Formations, 1)

	reports, err := e.Progress.Report(ctx, e.learner)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 100, reports[0].Progress)
	assert.Len(t, reports[0].Completed, 5)
	require.Len(t, reports[0].ExamAttempts, 1)
	assert.True(t, reports[0].ExamAttempts[0].Passed)

	require.NoError(t, e.Progress.Reset(ctx, e.learner.ID))
	overall, err := e.Progress.OverallProgress(ctx, e.learner)
	require.NoError(t, err)
	assert.Equal(t, 0, overall)
}

func TestService_contentChanges(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.completePart(t, e.learner, 0)

	// a new course in a completed part locks its exam again
	_, err := e.Catalog.CreateCourse(ctx, e.fd.Parts[0].ID, catalog.CourseInput{
		Title:   "Nouveau cours",
		Type:    catalog.CourseArticle,
		Content: "Contenu",
	})
	require.NoError(t, err)

	view, err := e.Progress.Formation(ctx, e.learner, e.fd.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.CourseUnlocked, view.Parts[0].Courses[3].Status)
	assert.Equal(t, progress.ExamLocked, view.Parts[0].Exam.Status)
	assert.Equal(t, 50, view.Progress) // 3 of 6

	// deleted courses no longer count
	require.NoError(t, e.Catalog.DeleteCourse(ctx, e.fd.Parts[0].Courses[0].ID))
	view, err = e.Progress.Formation(ctx, e.learner, e.fd.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, view.Progress) // 2 of 5
}
