package echoapi

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/progress"
	"github.com/eligue/academy/core/user"
	"github.com/eligue/academy/tests"
)

// quickTestAnswers answers every quick test question of the course correctly.
func quickTestAnswers(c catalog.Course) AnswersRequest {
	answers := make(catalog.Answers, len(c.QuickTestQuestions))
	for _, q := range c.QuickTestQuestions {
		answers[q.ID] = q.CorrectAnswerIndex
	}
	return AnswersRequest{Answers: answers}
}

func examAnswers(e catalog.Exam, correct int) AnswersRequest {
	answers := make(catalog.Answers, len(e.Questions))
	for i, q := range e.Questions {
		if i < correct {
			answers[q.ID] = q.CorrectAnswerIndex
		} else {
			answers[q.ID] = q.CorrectAnswerIndex + 1
		}
	}
	return AnswersRequest{Answers: answers}
}

func Test_learningApi_walkthrough(t *testing.T) {
	env := newTestEnv(t)
	learner := testutil.CreateUser(t, env.UserRepo, "learner", user.RoleArbitre, true, env.fd.ID)
	token := env.token(t, learner)

	fid := env.fd.ID
	part1, part2 := env.fd.Parts[0], env.fd.Parts[1]
	coursePath := func(c catalog.Course) string { return fmt.Sprintf("/v1/formations/%d/courses/%d", fid, c.ID) }
	examPath := func(p catalog.PartDetail) string { return fmt.Sprintf("/v1/formations/%d/parts/%d/exam", fid, p.ID) }

	t.Run("dashboard", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/formations", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var summaries []progress.FormationSummary
		decode(t, rec, &summaries)
		require.Len(t, summaries, 1)
		assert.Equal(t, fid, summaries[0].Formation.ID)
		assert.Equal(t, 0, summaries[0].Progress)
	})

	t.Run("initial statuses", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/v1/formations/%d", fid), token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var view progress.FormationView
		decode(t, rec, &view)
		require.Len(t, view.Parts, 2)
		assert.Equal(t, progress.CourseUnlocked, view.Parts[0].Courses[0].Status)
		assert.Equal(t, progress.CourseLocked, view.Parts[0].Courses[1].Status)
		assert.Equal(t, progress.ExamLocked, view.Parts[0].Exam.Status)
		assert.Equal(t, progress.CourseLocked, view.Parts[1].Courses[0].Status)
	})

	t.Run("locked course", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, coursePath(part1.Courses[1]), token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = env.do(t, http.MethodPost, coursePath(part1.Courses[1])+"/complete", token, quickTestAnswers(part1.Courses[1]))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("failed quick test", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, coursePath(part1.Courses[0])+"/complete", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("course content hides answers", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, coursePath(part1.Courses[0]), token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "correct_answer_index")
	})

	t.Run("complete part 1", func(t *testing.T) {
		for _, c := range part1.Courses {
			rec := env.do(t, http.MethodPost, coursePath(c)+"/complete", token, quickTestAnswers(c))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}
		// again is a no-op
		rec := env.do(t, http.MethodPost, coursePath(part1.Courses[0])+"/complete", token, quickTestAnswers(part1.Courses[0]))
		require.Equal(t, http.StatusOK, rec.Code)
		var fp progress.FormationProgress
		decode(t, rec, &fp)
		assert.Len(t, fp.CompletedCourseIDs, len(part1.Courses))
	})

	t.Run("exam hides answers", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, examPath(part1), token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "correct_answer_index")
		var exam catalog.PublicExam
		decode(t, rec, &exam)
		assert.Len(t, exam.Questions, len(part1.Exam.Questions))
	})

	t.Run("part of another formation", func(t *testing.T) {
		path := fmt.Sprintf("/v1/formations/%d/parts/%d/exam", fid, 9999)
		rec := env.do(t, http.MethodPost, path, token, examAnswers(part1.Exam, 0))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("failed then passed", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, examPath(part1), token, examAnswers(part1.Exam, 1))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var result progress.AttemptResult
		decode(t, rec, &result)
		assert.False(t, result.Passed)
		assert.Equal(t, progress.MaxExamAttempts-1, result.RemainingAttempts)

		rec = env.do(t, http.MethodPost, examPath(part1), token, examAnswers(part1.Exam, len(part1.Exam.Questions)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &result)
		assert.True(t, result.Passed)
		assert.True(t, result.NewlyPassed)
		assert.Equal(t, 100, result.Score)

		rec = env.do(t, http.MethodPost, examPath(part1), token, examAnswers(part1.Exam, 0))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("part 2 unlocked", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, coursePath(part2.Courses[0]), token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("certificates", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/me/certificates", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var certs []progress.Certificate
		decode(t, rec, &certs)
		require.Len(t, certs, 1)
		assert.Equal(t, part1.ID, certs[0].PartID)
		assert.Equal(t, 100, certs[0].Score)

		rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/me/certificates/%d", part1.ID), token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/me/certificates/%d", part2.ID), token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("progress", func(t *testing.T) {
		total := len(part1.Courses) + len(part2.Courses)
		want := (len(part1.Courses)*100 + total/2) / total

		rec := env.do(t, http.MethodGet, "/v1/me/progress", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp OverallProgressResponse
		decode(t, rec, &resp)
		assert.Equal(t, want, resp.Progress)

		rec = env.do(t, http.MethodGet, "/v1/me/profile", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var profile progress.Profile
		decode(t, rec, &profile)
		assert.Equal(t, want, profile.OverallProgress)
		assert.Len(t, profile.Certificates, 1)
	})

	t.Run("attestation mail", func(t *testing.T) {
		var found bool
		for _, msg := range env.Mail.SentMessages() {
			if strings.Contains(msg.Subject, part1.Title) || strings.Contains(msg.TextContent, part1.Title) {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func Test_learningApi_access(t *testing.T) {
	env := newTestEnv(t)
	outsider := testutil.CreateUser(t, env.UserRepo, "outsider", user.RoleEmploye, true)
	trainer := testutil.CreateUser(t, env.UserRepo, "trainer", user.RoleFormateur, true)
	formation := fmt.Sprintf("/v1/formations/%d", env.fd.ID)

	tests := []struct {
		name     string
		usr      user.User
		path     string
		wantCode int
	}{
		{name: "not assigned", usr: outsider, path: formation, wantCode: http.StatusForbidden},
		{name: "privileged", usr: trainer, path: formation, wantCode: http.StatusOK},
		{name: "unknown formation", usr: trainer, path: "/v1/formations/9999", wantCode: http.StatusNotFound},
		{name: "bad id", usr: trainer, path: "/v1/formations/abc", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, env.token(t, tt.usr), nil)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	t.Run("empty dashboard", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/formations", env.token(t, outsider), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})
}
