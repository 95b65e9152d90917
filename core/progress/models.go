package progress

import (
	"time"

	"github.com/eligue/academy/core"
)

// MaxExamAttempts is the number of failed attempts after which a part is reset.
const MaxExamAttempts = 3

// ExamAttempt is a learner's attempt record for the exam of one part.
type ExamAttempt struct {
	PartID    int        `json:"part_id"`
	Attempts  int        `json:"attempts"`
	LastScore *int       `json:"last_score"`
	Passed    bool       `json:"passed"` // sticky
	PassedAt  *time.Time `json:"passed_at,omitempty"`
}

// FormationProgress is a learner's progress in one formation.
type FormationProgress struct {
	CompletedCourseIDs []int         `json:"completed_course_ids"` // set
	ExamAttempts       []ExamAttempt `json:"exam_attempts"`        // at most one per part
}

// UserProgress maps formation IDs to the learner's progress in it.
type UserProgress map[int]FormationProgress

// Clone returns a deep copy, so callers never share slices with stored records.
func (fp FormationProgress) Clone() FormationProgress {
	out := FormationProgress{
		CompletedCourseIDs: make([]int, len(fp.CompletedCourseIDs)),
		ExamAttempts:       make([]ExamAttempt, len(fp.ExamAttempts)),
	}
	copy(out.CompletedCourseIDs, fp.CompletedCourseIDs)
	for i, att := range fp.ExamAttempts {
		out.ExamAttempts[i] = att.clone()
	}
	return out
}

func (att ExamAttempt) clone() ExamAttempt {
	if att.LastScore != nil {
		score := *att.LastScore
		att.LastScore = &score
	}
	if att.PassedAt != nil {
		at := *att.PassedAt
		att.PassedAt = &at
	}
	return att
}

func (fp FormationProgress) IsCompleted(courseID int) bool {
	return core.ContainsInt(fp.CompletedCourseIDs, courseID)
}

// Attempt returns the attempt record of a part, and false when the part was never attempted.
func (fp FormationProgress) Attempt(partID int) (ExamAttempt, bool) {
	for _, att := range fp.ExamAttempts {
		if att.PartID == partID {
			return att, true
		}
	}
	return ExamAttempt{PartID: partID}, false
}

// HasPassed tells whether the exam of a part was passed.
func (fp FormationProgress) HasPassed(partID int) bool {
	att, _ := fp.Attempt(partID)
	return att.Passed
}

// withCompleted adds courseID to the completed set.
func (fp FormationProgress) withCompleted(courseID int) FormationProgress {
	if fp.IsCompleted(courseID) {
		return fp
	}
	out := fp.Clone()
	out.CompletedCourseIDs = append(out.CompletedCourseIDs, courseID)
	return out
}

// withAttempt replaces the attempt of the same part, keeping the others in place, or appends it.
func (fp FormationProgress) withAttempt(att ExamAttempt) FormationProgress {
	out := fp.Clone()
	for i := range out.ExamAttempts {
		if out.ExamAttempts[i].PartID == att.PartID {
			out.ExamAttempts[i] = att
			return out
		}
	}
	out.ExamAttempts = append(out.ExamAttempts, att)
	return out
}
