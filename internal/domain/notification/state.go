// internal/domain/notification/state.go
package notification

import (
	"fmt"
	"time"

	"class_reminder_bot/internal/domain/schedule"
)

// State is the position of one (record, kind) pair in the delivery lifecycle.
type State string

const (
	StatePending   State = "PENDING"   // not sent, not due this poll
	StateDue       State = "DUE"       // dispatch must be attempted this poll
	StateExhausted State = "EXHAUSTED" // retry budget spent, terminal
	StateSent      State = "SENT"      // delivered, terminal
)

// Terminal reports whether no further dispatch can happen from this state.
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateSent
}

// Outcome is the result of a dispatch attempt.
type Outcome int

const (
	Failure Outcome = iota
	Success
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// Evaluate decides what a poll must do for one kind.
//
// The retry threshold is checked before anything else, so an exhausted kind is
// skipped even inside its window. A kind whose scheduled time already passed is
// still due once it has failed at least once (catch-up rule); a kind that was
// never attempted before its window closed stays pending.
func Evaluate(st schedule.KindState, scheduled time.Time, w schedule.Window, retryThreshold int) State {
	switch {
	case st.RetryCount >= retryThreshold:
		return StateExhausted
	case st.Sent:
		return StateSent
	case w.Contains(scheduled):
		return StateDue
	case w.Passed(scheduled) && st.RetryCount > 0:
		return StateDue
	default:
		return StatePending
	}
}

// Apply returns the state to persist after a dispatch attempt made at now.
func Apply(st schedule.KindState, outcome Outcome, now time.Time) schedule.KindState {
	if outcome == Success {
		st.Sent = true
		st.SentAt = FormatSentAt(now)
		return st
	}
	st.RetryCount++
	return st
}

// FormatSentAt renders the send time the way the schedule sheet stores it: "H:M", unpadded.
func FormatSentAt(now time.Time) string {
	return fmt.Sprintf("%d:%d", now.Hour(), now.Minute())
}
