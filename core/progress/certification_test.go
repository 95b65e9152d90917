package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/user"
)

func TestCertifiedParts(t *testing.T) {
	catalogParts := map[int]catalog.Part{1: testParts[0], 2: testParts[1]}
	lookup := func(id int) (catalog.Part, bool) {
		p, ok := catalogParts[id]
		return p, ok
	}

	up := UserProgress{
		5: {ExamAttempts: []ExamAttempt{passed(2)}},
		1: {ExamAttempts: []ExamAttempt{
			{PartID: 2, Attempts: 1, LastScore: intPtr(10)},
			passed(1),
			passed(99), // deleted part
		}},
		3: {ExamAttempts: []ExamAttempt{passed(1)}},
	}

	certs := CertifiedParts(up, lookup)
	require.Len(t, certs, 2)
	assert.Equal(t, 1, certs[0].FormationID)
	assert.Equal(t, 1, certs[0].Part.ID)
	assert.Equal(t, 100, certs[0].Score)
	assert.Equal(t, 5, certs[1].FormationID)
	assert.Equal(t, 2, certs[1].Part.ID)

	assert.Empty(t, CertifiedParts(UserProgress{}, lookup))
}

func TestOverallProgress(t *testing.T) {
	f1 := catalog.FormationDetail{
		Formation: catalog.Formation{ID: 1},
		Parts: []catalog.PartDetail{
			{Part: testParts[0]},
			{Part: testParts[1]},
		},
	}
	f2 := catalog.FormationDetail{
		Formation: catalog.Formation{ID: 2},
		Parts:     []catalog.PartDetail{{Part: catalog.Part{ID: 3, CourseIDs: []int{301, 302, 303}}}},
	}
	empty := catalog.FormationDetail{Formation: catalog.Formation{ID: 3}}

	up := UserProgress{
		1: {CompletedCourseIDs: []int{101, 102}},
		2: {CompletedCourseIDs: []int{301}},
	}
	learner := user.User{ID: 1, Role: user.RoleArbitre, AssignedFormationIDs: []int{1, 2}}

	tests := []struct {
		name       string
		usr        user.User
		formations []catalog.FormationDetail
		up         UserProgress
		want       int
	}{
		{name: "aggregated then rounded", usr: learner, formations: []catalog.FormationDetail{f1, f2}, up: up, want: 38},
		{name: "single formation", usr: learner, formations: []catalog.FormationDetail{f1}, up: up, want: 40},
		{name: "no progress", usr: learner, formations: []catalog.FormationDetail{f1, f2}, want: 0},
		{name: "no course", usr: learner, formations: []catalog.FormationDetail{empty}, up: up, want: 0},
		{name: "no formation", usr: learner, up: up, want: 0},
		{name: "admin", usr: user.User{Role: user.RoleAdministrateur}, formations: []catalog.FormationDetail{f1}, up: up, want: 0},
		{name: "formateur", usr: user.User{Role: user.RoleFormateur}, formations: []catalog.FormationDetail{f1}, up: up, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OverallProgress(tc.usr, tc.formations, tc.up))
		})
	}
}
