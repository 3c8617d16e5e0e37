package domain

import (
	"testing"
	"time"
)

func ptr(t time.Time) *time.Time { return &t }

func TestDueSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := DuePolicy{BaseInterval: 5 * time.Minute, ExtendedWindow: 5 * time.Hour}

	full := Target{ID: "a", BaseURL: "https://a.example/", CheckSpelling: true, CheckPerformance: true, CheckLinks: true, CreatedAt: now.Add(-72 * time.Hour)}

	tests := []struct {
		name      string
		activity  TargetActivity
		wantDue   bool
		wantFlags bool // optional flags kept
	}{
		{
			name:      "no history is due with all flags",
			activity:  TargetActivity{Target: full},
			wantDue:   true,
			wantFlags: true,
		},
		{
			name:     "fresh result is not due",
			activity: TargetActivity{Target: full, LastCheckedAt: ptr(now.Add(-time.Minute))},
			wantDue:  false,
		},
		{
			name:      "outdated without extended result keeps flags",
			activity:  TargetActivity{Target: full, LastCheckedAt: ptr(now.Add(-10 * time.Minute))},
			wantDue:   true,
			wantFlags: true,
		},
		{
			name: "outdated with recent extended result is stripped",
			activity: TargetActivity{
				Target:         full,
				LastCheckedAt:  ptr(now.Add(-10 * time.Minute)),
				LastExtendedAt: ptr(now.Add(-2 * time.Hour)),
			},
			wantDue:   true,
			wantFlags: false,
		},
		{
			name: "outdated with old extended result keeps flags",
			activity: TargetActivity{
				Target:         full,
				LastCheckedAt:  ptr(now.Add(-10 * time.Minute)),
				LastExtendedAt: ptr(now.Add(-6 * time.Hour)),
			},
			wantDue:   true,
			wantFlags: true,
		},
		{
			name:     "disabled target is never due",
			activity: TargetActivity{Target: Target{ID: "d", Disabled: true}},
			wantDue:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due := policy.DueSet([]TargetActivity{tt.activity}, now)
			if !tt.wantDue {
				if len(due) != 0 {
					t.Fatalf("DueSet() = %v, want empty", due)
				}
				return
			}
			if len(due) != 1 {
				t.Fatalf("DueSet() returned %d targets, want 1", len(due))
			}
			got := due[0]
			if got.HasOptionalChecks() != tt.wantFlags {
				t.Errorf("optional flags kept = %v, want %v (%+v)", got.HasOptionalChecks(), tt.wantFlags, got)
			}
		})
	}
}

func TestDueSetMatchesByIdentity(t *testing.T) {
	now := time.Now()
	target := Target{ID: "same", CheckLinks: true}
	activity := []TargetActivity{
		{Target: target, LastCheckedAt: ptr(now.Add(-time.Hour)), LastExtendedAt: ptr(now.Add(-time.Hour))},
		{Target: target, LastCheckedAt: ptr(now.Add(-time.Hour))},
	}

	due := DuePolicy{}.DueSet(activity, now)
	if len(due) != 1 {
		t.Fatalf("DueSet() returned %d entries for one target, want 1", len(due))
	}
	if due[0].CheckLinks {
		t.Error("target with a recent extended result should be dispatched reachability-only")
	}
}

func TestDueSetOrdering(t *testing.T) {
	now := time.Now()
	activity := []TargetActivity{
		{Target: Target{ID: "b", CreatedAt: now.Add(-time.Hour)}},
		{Target: Target{ID: "a", CreatedAt: now.Add(-2 * time.Hour)}},
		{Target: Target{ID: "c", CreatedAt: now.Add(-time.Hour)}},
	}

	due := DuePolicy{}.DueSet(activity, now)
	want := []string{"a", "b", "c"}
	if len(due) != len(want) {
		t.Fatalf("DueSet() returned %d targets, want %d", len(due), len(want))
	}
	for i, id := range want {
		if due[i].ID != id {
			t.Errorf("due[%d] = %s, want %s", i, due[i].ID, id)
		}
	}
}
