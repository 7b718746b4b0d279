// README: Priority scoring for the waiting-rider queue.
package priority

// EmergencyScore dominates every non-emergency score under realistic wait times.
const EmergencyScore = 9999

const (
	classYearWeight = 10
	waitWeight      = 0.5
)

// Score computes a rider's queue priority. Emergencies always receive the
// fixed sentinel. Same-chapter riders are ranked by seniority plus accrued
// wait; guests from other chapters are ranked by wait alone so a host
// chapter's own members are never outranked on seniority by a guest.
// Negative wait is accepted as given rather than rejected.
func Score(classYear int, waitMinutes float64, emergency, sameChapter bool) float64 {
	if emergency {
		return EmergencyScore
	}
	if sameChapter {
		return float64(classYear)*classYearWeight + waitMinutes*waitWeight
	}
	return waitMinutes * waitWeight
}
