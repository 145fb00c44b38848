package buddy

import (
	"fmt"
	"time"

	"github.com/mcdev12/focusnest/go/internal/models"
)

// SecondsRemaining projects the countdown from the shared start instant:
// max(0, floor((start + duration - serverNow) / 1s)). Both participants call
// it with the reconciled server clock, so neither runs its own timer.
func SecondsRemaining(serverNow, startTime time.Time, durationMinutes int) int {
	end := startTime.Add(time.Duration(durationMinutes) * time.Minute)
	left := end.Sub(serverNow)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// Remaining returns the seconds left on an active or complete session.
// ok is false while the session has no start instant.
func Remaining(s *models.Session, serverNow time.Time) (seconds int, ok bool) {
	if s == nil || s.StartTime == nil {
		return 0, false
	}
	if s.Status == models.SessionStatusComplete {
		return 0, true
	}
	return SecondsRemaining(serverNow, *s.StartTime, s.DurationMinutes), true
}

// FormatRemaining renders seconds as MM:SS.
func FormatRemaining(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
