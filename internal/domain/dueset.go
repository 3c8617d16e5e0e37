package domain

import (
	"sort"
	"time"
)

const (
	// DefaultBaseInterval is how old the latest result may get before a reachability check is owed.
	DefaultBaseInterval = 5 * time.Minute
	// DefaultExtendedWindow is how long an optional-check result suppresses re-running them.
	DefaultExtendedWindow = 5 * time.Hour
)

// DuePolicy decides which targets are owed a check.
type DuePolicy struct {
	BaseInterval   time.Duration
	ExtendedWindow time.Duration
}

// DueSet returns the targets that are due at now, each carrying the flags the
// dispatched task should use. Disabled targets are never due. A target without
// history is due with every configured flag. A target whose latest result is
// older than BaseInterval is due, reduced to the reachability check when an
// optional-check result exists inside ExtendedWindow.
func (p DuePolicy) DueSet(activity []TargetActivity, now time.Time) []Target {
	base := p.BaseInterval
	if base <= 0 {
		base = DefaultBaseInterval
	}
	extended := p.ExtendedWindow
	if extended <= 0 {
		extended = DefaultExtendedWindow
	}

	baseCutoff := now.Add(-base)
	extendedCutoff := now.Add(-extended)

	seen := make(map[string]bool, len(activity))
	due := make([]Target, 0, len(activity))

	for _, a := range activity {
		t := a.Target
		if t.Disabled || seen[t.ID] {
			continue
		}

		switch {
		case a.LastCheckedAt == nil:
			due = append(due, t)
		case a.LastCheckedAt.Before(baseCutoff):
			if a.LastExtendedAt != nil && a.LastExtendedAt.After(extendedCutoff) {
				t = t.ReachabilityOnly()
			}
			due = append(due, t)
		default:
			continue
		}
		seen[t.ID] = true
	}

	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ID < due[j].ID
	})

	return due
}
