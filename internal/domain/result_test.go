package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFailureMessage(t *testing.T) {
	const url = "https://a.example/"
	dead := &LinkSummary{Failed: 2, Results: []LinkResult{
		{URL: "https://a.example/ok", Reachable: true},
		{URL: "https://a.example/x", Reachable: false},
		{URL: "https://a.example/y", Reachable: false},
	}}

	tests := []struct {
		name   string
		report PageReport
		want   string
	}{
		{"passing", PageReport{BaseStatus: 200}, ""},
		{"redirect passes", PageReport{BaseStatus: 301}, ""},
		{"unreachable", PageReport{BaseStatus: 503}, "ERROR: URL unreachable:\n" + url + "\n"},
		{"tls error", PageReport{BaseStatus: StatusTLSError}, "ERROR: URL unreachable:\n" + url + "\n"},
		{"slow", PageReport{BaseStatus: 200, Performance: &PerformanceReport{Score: 0.5}}, "Warning: performance score degraded\n" + url + "\n"},
		{"fast enough", PageReport{BaseStatus: 200, Performance: &PerformanceReport{Score: 0.75}}, ""},
		{"dead links", PageReport{BaseStatus: 200, Links: dead}, "Warning: Dead Links on Website ->\nhttps://a.example/x\nhttps://a.example/y"},
		{
			"all in order",
			PageReport{BaseStatus: 500, Performance: &PerformanceReport{Score: 0.1}, Links: dead},
			"ERROR: URL unreachable:\n" + url + "\n" +
				"Warning: performance score degraded\n" + url + "\n" +
				"Warning: Dead Links on Website ->\nhttps://a.example/x\nhttps://a.example/y",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureMessage(url, tt.report, DefaultPerformanceThreshold); got != tt.want {
				t.Errorf("FailureMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewCheckResult(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	slow := NewCheckResult("r1", "a", "https://a.example/", PageReport{
		BaseStatus:  200,
		Performance: &PerformanceReport{Score: 0.2, Audits: json.RawMessage(`{}`)},
	}, at, DefaultPerformanceThreshold)
	if slow.BaseCheck || slow.FailureMessage == "" {
		t.Errorf("degraded performance must fail the check: %+v", slow)
	}
	if slow.PerformanceScore == nil || *slow.PerformanceScore != 0.2 || !slow.HasExtendedPayload() {
		t.Errorf("performance payload lost: %+v", slow)
	}

	ok := NewCheckResult("r2", "a", "https://a.example/", PageReport{BaseStatus: 200}, at, DefaultPerformanceThreshold)
	if !ok.BaseCheck || ok.FailureMessage != "" || ok.HasExtendedPayload() {
		t.Errorf("plain pass = %+v", ok)
	}

	spelled := NewCheckResult("r3", "a", "https://a.example/", PageReport{BaseStatus: 200, Spelling: map[string]string{}}, at, DefaultPerformanceThreshold)
	if !spelled.HasExtendedPayload() {
		t.Error("an empty spelling run still counts as an extended result")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		latest *CheckResult
		want   string
	}{
		{"no result", nil, "UNKNOWN"},
		{"ok", &CheckResult{BaseStatus: 200}, "OK"},
		{"warning", &CheckResult{BaseStatus: 200, FailureMessage: "Warning: performance score degraded\n"}, "WARNING"},
		{"error", &CheckResult{BaseStatus: -2, FailureMessage: "ERROR"}, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.latest); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubmissionWireFormat(t *testing.T) {
	sub := Submission{
		URL:   "https://a.example/",
		Token: "tok",
		Checks: []PageOutcome{{
			URL: "https://a.example/",
			Report: PageReport{
				BaseStatus: 200,
				Links:      &LinkSummary{Failed: 1, Results: []LinkResult{{URL: "https://a.example/x", Reachable: false}}},
			},
		}},
	}

	data, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `"check":[["https://a.example/",{"base_status":200,"spelling":null,"links":{"failed":1,"results":[{"https://a.example/x":false}]}}]]`
	if !strings.Contains(string(data), want) {
		t.Errorf("wire format = %s", data)
	}

	var back Submission
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back.Checks[0].Report.Links.FailedLinks()[0] != "https://a.example/x" {
		t.Errorf("decoded = %+v", back.Checks[0])
	}
}

func TestPageOutcomeRejectsBadShape(t *testing.T) {
	for _, raw := range []string{`["https://a.example/"]`, `{"url":"x"}`, `["x",{"base_status":"200"}]`} {
		var o PageOutcome
		if err := json.Unmarshal([]byte(raw), &o); err == nil {
			t.Errorf("Unmarshal(%s) accepted", raw)
		}
	}
	var l LinkResult
	if err := json.Unmarshal([]byte(`{"a":true,"b":false}`), &l); err == nil {
		t.Error("link result with two entries accepted")
	}
}
