package progress

import (
	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
)

type CourseStatus string

const (
	CourseCompleted CourseStatus = "completed"
	CourseLocked    CourseStatus = "locked"
	CourseUnlocked  CourseStatus = "unlocked"
)

type ExamStatus string

const (
	ExamLocked    ExamStatus = "locked"    // some courses of the part are not completed
	ExamAvailable ExamStatus = "available" // can be taken
	ExamExhausted ExamStatus = "exhausted" // no attempt left
	ExamPassed    ExamStatus = "passed"
)

// GetCourseStatus resolves the status of a course of parts[partIndex]:
//   1. completed if already completed;
//   2. locked while the exam of any earlier part is not passed;
//   3. locked while any earlier course of the same part is not completed;
//   4. unlocked otherwise.
// A course that does not belong to the part is locked.
func GetCourseStatus(courseID, partIndex int, parts []catalog.Part, fp FormationProgress) CourseStatus {
	if fp.IsCompleted(courseID) {
		return CourseCompleted
	}
	if partIndex < 0 || partIndex >= len(parts) {
		return CourseLocked
	}

	for _, earlier := range parts[:partIndex] {
		if !fp.HasPassed(earlier.ID) {
			return CourseLocked
		}
	}

	part := parts[partIndex]
	pos := -1
	for i, id := range part.CourseIDs {
		if id == courseID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return CourseLocked
	}
	for _, id := range part.CourseIDs[:pos] {
		if !fp.IsCompleted(id) {
			return CourseLocked
		}
	}
	return CourseUnlocked
}

// AllCoursesCompleted tells whether every course of the part is completed.
func AllCoursesCompleted(part catalog.Part, fp FormationProgress) bool {
	for _, id := range part.CourseIDs {
		if !fp.IsCompleted(id) {
			return false
		}
	}
	return true
}

// GetExamStatus resolves whether the exam of part can be taken.
func GetExamStatus(part catalog.Part, fp FormationProgress) ExamStatus {
	att, _ := fp.Attempt(part.ID)
	switch {
	case att.Passed:
		return ExamPassed
	case !AllCoursesCompleted(part, fp):
		return ExamLocked
	case att.Attempts >= MaxExamAttempts:
		return ExamExhausted
	}
	return ExamAvailable
}

// CanTakeExam is true when the exam is reachable: all courses done, not passed yet and attempts left.
func CanTakeExam(part catalog.Part, fp FormationProgress) bool {
	return GetExamStatus(part, fp) == ExamAvailable
}

// RemainingAttempts is the number of attempts left before the part is reset.
func RemainingAttempts(att ExamAttempt) int {
	if rem := MaxExamAttempts - att.Attempts; rem > 0 {
		return rem
	}
	return 0
}

// FormationPercent is round(completed / total * 100); a formation without courses is 100% done.
// Only completed courses still listed in the parts are counted.
func FormationPercent(parts []catalog.Part, fp FormationProgress) int {
	total, completed := countCourses(parts, fp)
	if total == 0 {
		return 100
	}
	return core.Percent(completed, total)
}

func countCourses(parts []catalog.Part, fp FormationProgress) (total, completed int) {
	for _, p := range parts {
		total += len(p.CourseIDs)
		for _, id := range p.CourseIDs {
			if fp.IsCompleted(id) {
				completed++
			}
		}
	}
	return total, completed
}
