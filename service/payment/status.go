package payment

// Status is the lifecycle state of one payment form submission.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusValidating Status = "validating"
	StatusSubmitting Status = "submitting"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusIdle:       {StatusValidating},
	StatusValidating: {StatusSubmitting, StatusIdle},
	StatusSubmitting: {StatusConfirmed, StatusFailed},
	StatusConfirmed:  {StatusIdle},
	StatusFailed:     {StatusIdle},
}

// CanTransition reports whether a submission may move from one status to
// another. A failed validation returns the form to idle; only a submission
// that reached the network can end as failed.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
