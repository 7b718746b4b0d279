// README: Read-only rider/driver and event records consumed by dispatch.
package directory

import "saferide/internal/types"

type User struct {
	ID        types.ID
	Name      string
	Phone     string
	ChapterID types.ID
	ClassYear int // 1 (freshman) through 4 (senior)
	Role      string
}

type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
)

type Event struct {
	ID        types.ID
	ChapterID types.ID
	// OpenToAll means any chapter may request rides; otherwise only
	// AllowedChapterIDs (which always includes the host) may.
	OpenToAll         bool
	AllowedChapterIDs []types.ID
	Status            EventStatus
}

func (e *Event) Active() bool {
	return e.Status == EventActive
}

// AllowsChapter reports whether riders from the given chapter may request
// rides at this event.
func (e *Event) AllowsChapter(chapterID types.ID) bool {
	if e.OpenToAll || chapterID == e.ChapterID {
		return true
	}
	for _, id := range e.AllowedChapterIDs {
		if id == chapterID {
			return true
		}
	}
	return false
}
