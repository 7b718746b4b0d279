// README: Queue ranking of non-terminal rides by priority.
package priority

import (
	"sort"
	"time"

	"saferide/internal/types"
)

// QueueEntry is the slice of a ride the ranking needs.
type QueueEntry struct {
	RideID      types.ID
	Priority    float64
	RequestedAt time.Time
}

// Positions returns the 1-based rank of every entry, sorted by priority
// descending with ties broken first-come-first-served on RequestedAt.
func Positions(entries []QueueEntry) map[types.ID]int {
	sorted := make([]QueueEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].RequestedAt.Before(sorted[j].RequestedAt)
	})
	positions := make(map[types.ID]int, len(sorted))
	for i, e := range sorted {
		positions[e.RideID] = i + 1
	}
	return positions
}

// PositionOf returns the 1-based rank of one ride, or 0 when the ride is not
// in the queue (already assigned elsewhere or terminal).
func PositionOf(entries []QueueEntry, rideID types.ID) int {
	return Positions(entries)[rideID]
}
