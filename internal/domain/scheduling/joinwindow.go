package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ceilMinutes converts a duration to whole minutes, rounding up.
// Negative durations clamp to 0.
func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// evaluateJoinWindow applies the status, participant, and time gates
// for a join attempt. The doctor-exclusivity gate needs a store query
// and is layered on by the service; everything here is a pure
// computation over (appointment, user, now). Checks are ordered and
// the first failing one wins.
func evaluateJoinWindow(apt *Appointment, userID uuid.UUID, now time.Time) JoinDecision {
	if apt.Status != StatusConfirmed && apt.Status != StatusInProgress {
		return JoinDecision{
			CanJoin: false,
			Reason:  fmt.Sprintf("appointment is %s", apt.Status),
		}
	}

	if !apt.IsParticipant(userID) {
		return JoinDecision{CanJoin: false, Reason: "not a participant"}
	}

	windowStart := apt.WindowStart()
	windowEnd := apt.WindowEnd()

	if now.Before(windowStart) {
		wait := ceilMinutes(windowStart.Sub(now))
		return JoinDecision{
			CanJoin:        false,
			Reason:         fmt.Sprintf("appointment has not started; you can join in %d minute(s)", wait),
			TimeUntilStart: wait,
			TimeUntilEnd:   ceilMinutes(windowEnd.Sub(now)),
		}
	}
	if now.After(windowEnd) {
		return JoinDecision{CanJoin: false, Reason: "appointment has ended"}
	}

	return JoinDecision{
		CanJoin:        true,
		TimeUntilStart: ceilMinutes(apt.ScheduledAt.Sub(now)),
		TimeUntilEnd:   ceilMinutes(windowEnd.Sub(now)),
	}
}
