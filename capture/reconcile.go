package capture

import (
	"sort"

	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

// Mark is one student's proposed attendance status.
type Mark struct {
	StudentID uint   `json:"student_id"`
	USN       string `json:"usn"`
	FullName  string `json:"full_name"`
	Status    string `json:"status"`
}

// Reconcile marks every student of the roster present when their USN is
// in the recognized set, absent otherwise. The whole roster is covered,
// including students the recognizer never saw because they have no
// stored embedding. Output is ordered by USN, so the same inputs always
// produce the same proposal.
func Reconcile(roster []models.Student, recognized []string) []Mark {
	seen := make(map[string]struct{}, len(recognized))
	for _, usn := range recognized {
		seen[usn] = struct{}{}
	}

	marks := make([]Mark, 0, len(roster))
	for _, s := range roster {
		status := models.StatusAbsent
		if _, ok := seen[s.USN]; ok {
			status = models.StatusPresent
		}
		marks = append(marks, Mark{
			StudentID: s.ID,
			USN:       s.USN,
			FullName:  s.FullName,
			Status:    status,
		})
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].USN < marks[j].USN })
	return marks
}
