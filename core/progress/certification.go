package progress

import (
	"sort"
	"time"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/user"
)

// Certification is a part whose exam the learner passed.
type Certification struct {
	FormationID int          `json:"formation_id"`
	Part        catalog.Part `json:"part"`
	Score       int          `json:"score"`
	PassedAt    *time.Time   `json:"passed_at,omitempty"`
}

// CertifiedParts lists every part with a passed attempt, across all formations, each part once.
// Formations are walked by ascending ID and attempts in record order.
// Parts that no longer resolve through lookup are skipped.
func CertifiedParts(up UserProgress, lookup func(partID int) (catalog.Part, bool)) []Certification {
	formationIDs := make([]int, 0, len(up))
	for id := range up {
		formationIDs = append(formationIDs, id)
	}
	sort.Ints(formationIDs)

	seen := make(map[int]bool)
	certs := make([]Certification, 0)
	for _, fid := range formationIDs {
		for _, att := range up[fid].ExamAttempts {
			if !att.Passed || seen[att.PartID] {
				continue
			}
			part, ok := lookup(att.PartID)
			if !ok {
				continue
			}
			seen[att.PartID] = true
			cert := Certification{FormationID: fid, Part: part, PassedAt: att.PassedAt}
			if att.LastScore != nil {
				cert.Score = *att.LastScore
			}
			certs = append(certs, cert)
		}
	}
	return certs
}

// OverallProgress aggregates completed and total courses over the given formations and rounds once.
// Privileged users have no progress; no course at all also gives 0.
func OverallProgress(usr user.User, formations []catalog.FormationDetail, up UserProgress) int {
	if usr.IsPrivileged() {
		return 0
	}
	var total, completed int
	for _, fd := range formations {
		t, c := countCourses(fd.PartList(), up[fd.ID])
		total += t
		completed += c
	}
	if total == 0 {
		return 0
	}
	return core.Percent(completed, total)
}
