package domain

import "time"

// Target is a website registered for monitoring, identified by owner + base URL.
//
// The core treats it as read-only input. Token authenticates result
// submissions and is never serialized to API clients.
type Target struct {
	ID      string `json:"uuid"`
	BaseURL string `json:"base_url"`
	Owner   string `json:"owner"`
	Group   string `json:"master_host"`

	CheckSpelling    bool `json:"check_spelling"`
	CheckPerformance bool `json:"check_lighthouse"`
	CheckLinks       bool `json:"check_links"`
	Recursive        bool `json:"recursive"`
	Disabled         bool `json:"disabled"`

	SpellingExtraWords  []string `json:"-"`
	SpellingIgnoreWords []string `json:"-"`

	Token string `json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// HasOptionalChecks reports whether any expensive check is configured.
func (t Target) HasOptionalChecks() bool {
	return t.CheckSpelling || t.CheckPerformance || t.CheckLinks || t.Recursive
}

// ReachabilityOnly returns a copy with every optional check switched off.
func (t Target) ReachabilityOnly() Target {
	t.CheckSpelling = false
	t.CheckPerformance = false
	t.CheckLinks = false
	t.Recursive = false
	return t
}

// TargetActivity is a target together with the timestamps the due-set policy
// needs. Nil means no such result exists.
type TargetActivity struct {
	Target         Target
	LastCheckedAt  *time.Time // latest result of any kind
	LastExtendedAt *time.Time // latest result carrying a spelling, performance or links payload
}
