package scheduling

import (
	"fmt"
	"time"
)

// parseClock parses an "HH:MM" local clock time into minutes past
// midnight.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q: out of range", s)
	}
	return h*60 + m, nil
}

// formatClock renders minutes past midnight as "HH:MM".
func formatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// GenerateSlots produces the candidate slot start times for one
// availability window, stepping by slotMinutes from start up to but
// excluding end. Pure local clock-time arithmetic; no timezone logic.
func GenerateSlots(start, end string, slotMinutes int) ([]string, error) {
	if slotMinutes <= 0 {
		return nil, &ValidationError{Field: "slot_duration", Reason: "must be positive"}
	}
	from, err := parseClock(start)
	if err != nil {
		return nil, &ValidationError{Field: "start_time", Reason: err.Error()}
	}
	to, err := parseClock(end)
	if err != nil {
		return nil, &ValidationError{Field: "end_time", Reason: err.Error()}
	}
	if to <= from {
		return nil, &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}

	var slots []string
	for m := from; m < to; m += slotMinutes {
		slots = append(slots, formatClock(m))
	}
	return slots, nil
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. This single predicate covers a start
// falling inside the other span, an end falling inside it, and full
// containment in either direction.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// blocksAvailability lists the statuses that mark a slot unavailable
// in a listing. Broader than the booking-time conflict rule: the
// listing treats payment holds as busy so the UI never advertises a
// slot that may be claimed, while booking itself lets expired holds
// be overwritten.
func blocksAvailability(s Status) bool {
	switch s {
	case StatusPaymentPending, StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// blocksBooking lists the statuses that reject a new booking for the
// same doctor and overlapping time. PAYMENT_PENDING is a soft hold and
// does not block, so an abandoned payment cannot dead-lock a slot.
func blocksBooking(s Status) bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// slotAvailable reports whether a candidate slot [start, start+d) is
// bookable given the doctor's existing appointments for that day and
// the current instant. Slots whose start is at or before now are
// never bookable.
func slotAvailable(start time.Time, slotMinutes int, now time.Time, existing []*Appointment) bool {
	if !start.After(now) {
		return false
	}
	end := start.Add(time.Duration(slotMinutes) * time.Minute)
	for _, apt := range existing {
		if !blocksAvailability(apt.Status) {
			continue
		}
		if Overlaps(start, end, apt.ScheduledAt, apt.EndTime()) {
			return false
		}
	}
	return true
}
