package perf

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestScore(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"url":      r.URL.Query().Get("url"),
			"strategy": r.URL.Query().Get("strategy"),
			"category": r.URL.Query().Get("category"),
			"key":      r.URL.Query().Get("key"),
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"lighthouseResult":{"categories":{"performance":{"score":0.62}},"audits":{"speed-index":{"score":0.4}}}}`)
	}))
	defer srv.Close()

	p := NewPageSpeed(srv.URL, "secret", time.Second)
	report, err := p.Score(context.Background(), "https://a.example/")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if report.Score != 0.62 {
		t.Errorf("score = %v, want 0.62", report.Score)
	}
	if len(report.Audits) == 0 {
		t.Error("audits missing")
	}

	want := map[string]string{"url": "https://a.example/", "strategy": "desktop", "category": "performance", "key": "secret"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestScoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded"}}`},
		{"missing score", http.StatusOK, `{"lighthouseResult":{"categories":{}}}`},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			if _, err := NewPageSpeed(srv.URL, "", time.Second).Score(context.Background(), "https://a.example/"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
