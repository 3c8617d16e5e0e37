package domain

import "fmt"

// Transition is the change of pass/fail state between consecutive results of
// the same (target, checked URL) pair.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionFailure
	TransitionRecovery
)

func (t Transition) String() string {
	switch t {
	case TransitionFailure:
		return "failure"
	case TransitionRecovery:
		return "recovery"
	default:
		return "none"
	}
}

// DetectTransition compares a new result with the one right before it.
// A first result only counts when it failed.
func DetectTransition(previous *CheckResult, current CheckResult) Transition {
	if previous == nil {
		if current.BaseCheck {
			return TransitionNone
		}
		return TransitionFailure
	}
	if previous.BaseCheck == current.BaseCheck {
		return TransitionNone
	}
	if current.BaseCheck {
		return TransitionRecovery
	}
	return TransitionFailure
}

// Alert is the payload handed to the dispatch service.
type Alert struct {
	Users []string `json:"users"`
	Msg   string   `json:"msg"`
}

// NewAlert builds the notification for a transition, nil for TransitionNone.
func NewAlert(t Transition, owner string, result CheckResult) *Alert {
	switch t {
	case TransitionFailure:
		return &Alert{
			Users: []string{owner},
			Msg:   fmt.Sprintf("%s\n%s", result.URL, result.FailureMessage),
		}
	case TransitionRecovery:
		return &Alert{
			Users: []string{owner},
			Msg:   fmt.Sprintf("%s recovered", result.URL),
		}
	default:
		return nil
	}
}
