package progress

import (
	"time"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
)

// AttemptResult describes the outcome of one exam submission.
type AttemptResult struct {
	PartID            int         `json:"part_id"`
	Score             int         `json:"score"`
	PassingScore      int         `json:"passing_score"`
	Passed            bool        `json:"passed"`       // this submission reached the passing score
	NewlyPassed       bool        `json:"newly_passed"` // first pass of the part
	Reset             bool        `json:"reset"`        // the part's courses were un-completed
	RemainingAttempts int         `json:"remaining_attempts"`
	Attempt           ExamAttempt `json:"attempt"`
}

// Score is round(correct / total * 100), rounding halves up. Unanswered questions are wrong.
// An exam without questions cannot be scored.
func Score(exam catalog.Exam, answers catalog.Answers) (int, error) {
	total := len(exam.Questions)
	if total == 0 {
		return 0, core.NewInvalidSubmissionError("exam %d has no questions", exam.ID)
	}
	var correct int
	for _, q := range exam.Questions {
		if answers.IsCorrect(q) {
			correct++
		}
	}
	return core.Percent(correct, total), nil
}

// ApplyAttempt records a scored submission for part and returns the new progress.
// A pass is never revoked. After MaxExamAttempts failures the part's courses are
// removed from the completed set and the attempt counter goes back to zero.
func ApplyAttempt(fp FormationProgress, part catalog.Part, passingScore, score int, now time.Time) (FormationProgress, AttemptResult) {
	att, _ := fp.Attempt(part.ID)
	att = att.clone()
	wasPassed := att.Passed

	att.Attempts++
	att.LastScore = &score
	passedNow := score >= passingScore
	if passedNow && !att.Passed {
		at := now.UTC()
		att.Passed = true
		att.PassedAt = &at
	}

	var reset bool
	out := fp
	if !att.Passed && att.Attempts >= MaxExamAttempts {
		out = out.Clone()
		out.CompletedCourseIDs = core.RemoveInts(out.CompletedCourseIDs, part.CourseIDs...)
		att.Attempts = 0
		reset = true
	}
	out = out.withAttempt(att)

	return out, AttemptResult{
		PartID:            part.ID,
		Score:             score,
		PassingScore:      passingScore,
		Passed:            passedNow,
		NewlyPassed:       att.Passed && !wasPassed,
		Reset:             reset,
		RemainingAttempts: RemainingAttempts(att),
		Attempt:           att,
	}
}
