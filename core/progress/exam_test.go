package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
)

var testExam = catalog.Exam{
	ID:           1,
	Title:        "Examen - Lois du jeu",
	PassingScore: 80,
	Questions: []catalog.Question{
		{ID: 1, Text: "Q1", Options: []string{"a", "b"}, CorrectAnswerIndex: 0},
		{ID: 2, Text: "Q2", Options: []string{"a", "b"}, CorrectAnswerIndex: 1},
		{ID: 3, Text: "Q3", Options: []string{"a", "b", "c"}, CorrectAnswerIndex: 2},
	},
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		answers catalog.Answers
		want    int
	}{
		{name: "all correct", answers: catalog.Answers{1: 0, 2: 1, 3: 2}, want: 100},
		{name: "two of three", answers: catalog.Answers{1: 0, 2: 1, 3: 0}, want: 67},
		{name: "one of three", answers: catalog.Answers{1: 0}, want: 33},
		{name: "nothing answered", want: 0},
		{name: "unknown questions ignored", answers: catalog.Answers{42: 0, 1: 1}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Score(testExam, tc.answers)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("no questions", func(t *testing.T) {
		_, err := Score(catalog.Exam{ID: 7, PassingScore: 80}, catalog.Answers{})
		assert.True(t, core.IsInvalidSubmission(err))
	})
}

func TestApplyAttempt(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	part := testParts[0]
	done := FormationProgress{CompletedCourseIDs: []int{101, 102, 103, 201}}

	t.Run("first pass", func(t *testing.T) {
		out, res := ApplyAttempt(done, part, 80, 100, now)
		assert.True(t, res.Passed)
		assert.True(t, res.NewlyPassed)
		assert.False(t, res.Reset)
		assert.Equal(t, 1, res.Attempt.Attempts)
		assert.Equal(t, 2, res.RemainingAttempts)
		assert.True(t, out.HasPassed(part.ID))
		att, ok := out.Attempt(part.ID)
		require.True(t, ok)
		require.NotNil(t, att.PassedAt)
		assert.Equal(t, now, *att.PassedAt)
		assert.Equal(t, 100, *att.LastScore)
		assert.Equal(t, done.CompletedCourseIDs, out.CompletedCourseIDs)
	})

	t.Run("exact passing score passes", func(t *testing.T) {
		_, res := ApplyAttempt(done, part, 67, 67, now)
		assert.True(t, res.Passed)
	})

	t.Run("failure keeps courses", func(t *testing.T) {
		out, res := ApplyAttempt(done, part, 80, 67, now)
		assert.False(t, res.Passed)
		assert.False(t, res.NewlyPassed)
		assert.False(t, res.Reset)
		assert.Equal(t, 2, res.RemainingAttempts)
		assert.Equal(t, done.CompletedCourseIDs, out.CompletedCourseIDs)
		att, _ := out.Attempt(part.ID)
		assert.Equal(t, 1, att.Attempts)
		assert.Nil(t, att.PassedAt)
	})

	t.Run("third failure resets the part", func(t *testing.T) {
		fp := done
		var res AttemptResult
		for i := 0; i < MaxExamAttempts; i++ {
			fp, res = ApplyAttempt(fp, part, 80, 33, now)
		}
		assert.True(t, res.Reset)
		assert.Equal(t, 0, res.Attempt.Attempts)
		assert.Equal(t, MaxExamAttempts, res.RemainingAttempts)
		assert.Equal(t, []int{201}, fp.CompletedCourseIDs)
		att, ok := fp.Attempt(part.ID)
		require.True(t, ok)
		assert.Equal(t, 0, att.Attempts)
		assert.Equal(t, 33, *att.LastScore)
		assert.False(t, att.Passed)
		assert.Equal(t, ExamLocked, GetExamStatus(part, fp))
	})

	t.Run("pass is sticky", func(t *testing.T) {
		fp, _ := ApplyAttempt(done, part, 80, 100, now)
		later := now.Add(time.Hour)
		out, res := ApplyAttempt(fp, part, 80, 0, later)
		assert.False(t, res.Passed)
		assert.False(t, res.NewlyPassed)
		assert.True(t, out.HasPassed(part.ID))
		att, _ := out.Attempt(part.ID)
		assert.Equal(t, now, *att.PassedAt)
	})

	t.Run("input is not mutated", func(t *testing.T) {
		fp := done.Clone()
		for i := 0; i < MaxExamAttempts; i++ {
			fp, _ = ApplyAttempt(fp, part, 80, 0, now)
		}
		assert.Equal(t, []int{101, 102, 103, 201}, done.CompletedCourseIDs)
		assert.Empty(t, done.ExamAttempts)
	})

	t.Run("other parts keep their position", func(t *testing.T) {
		fp := FormationProgress{
			CompletedCourseIDs: []int{101, 102, 103},
			ExamAttempts:       []ExamAttempt{{PartID: 1, Attempts: 1}, passed(2)},
		}
		out, _ := ApplyAttempt(fp, part, 80, 0, now)
		require.Len(t, out.ExamAttempts, 2)
		assert.Equal(t, 1, out.ExamAttempts[0].PartID)
		assert.Equal(t, 2, out.ExamAttempts[0].Attempts)
		assert.Equal(t, 2, out.ExamAttempts[1].PartID)
	})
}

// Full walk through a two part formation, the way a learner would go.
func TestScenario_fullFormation(t *testing.T) {
	now := time.Now()
	parts := testParts
	exam2 := catalog.Exam{
		ID:           2,
		PassingScore: 70,
		Questions: []catalog.Question{
			{ID: 1, Options: []string{"a", "b"}, CorrectAnswerIndex: 1},
			{ID: 2, Options: []string{"a", "b"}, CorrectAnswerIndex: 0},
		},
	}
	var fp FormationProgress

	for _, id := range parts[0].CourseIDs {
		require.Equal(t, CourseUnlocked, GetCourseStatus(id, 0, parts, fp))
		fp = fp.withCompleted(id)
	}
	assert.Equal(t, 60, FormationPercent(parts, fp))
	assert.Equal(t, CourseLocked, GetCourseStatus(201, 1, parts, fp))
	require.Equal(t, ExamAvailable, GetExamStatus(parts[0], fp))

	score, err := Score(testExam, catalog.Answers{1: 0, 2: 1, 3: 2})
	require.NoError(t, err)
	fp, _ = ApplyAttempt(fp, parts[0], testExam.PassingScore, score, now)
	assert.Equal(t, CourseUnlocked, GetCourseStatus(201, 1, parts, fp))

	for _, id := range parts[1].CourseIDs {
		fp = fp.withCompleted(id)
	}
	score, err = Score(exam2, catalog.Answers{1: 1})
	require.NoError(t, err)
	assert.Equal(t, 50, score)
	fp, res := ApplyAttempt(fp, parts[1], exam2.PassingScore, score, now)
	assert.False(t, res.Passed)

	score, _ = Score(exam2, catalog.Answers{1: 1, 2: 0})
	fp, res = ApplyAttempt(fp, parts[1], exam2.PassingScore, score, now)
	assert.True(t, res.NewlyPassed)
	assert.Equal(t, 100, FormationPercent(parts, fp))
	assert.Equal(t, ExamPassed, GetExamStatus(parts[1], fp))
}
