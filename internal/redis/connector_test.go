package redis

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

func TestBackoff(t *testing.T) {
	step := 20 * time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 20 * time.Second},
		{1, 20 * time.Second},
		{2, 40 * time.Second},
		{5, 100 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempt, step); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestConnectValidatesOptions(t *testing.T) {
	log := logger.NewNop()
	base := ConnectOptions{Addr: "127.0.0.1:1", PingTimeout: time.Second, RetryStep: time.Second}

	tests := []struct {
		name   string
		mutate func(*ConnectOptions)
	}{
		{"missing addr", func(o *ConnectOptions) { o.Addr = "" }},
		{"zero ping timeout", func(o *ConnectOptions) { o.PingTimeout = 0 }},
		{"zero retry step", func(o *ConnectOptions) { o.RetryStep = 0 }},
		{"negative attempts", func(o *ConnectOptions) { o.MaxAttempts = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.mutate(&opts)
			if _, err := Connect(context.Background(), opts, log); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConnectGivesUpAfterMaxAttempts(t *testing.T) {
	opts := ConnectOptions{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		PingTimeout: 200 * time.Millisecond,
		RetryStep:   time.Millisecond,
		MaxAttempts: 2,
	}

	client, err := Connect(context.Background(), opts, logger.NewNop())
	if err == nil {
		t.Fatal("expected error connecting to a closed port")
	}
	if client != nil {
		t.Error("client should be nil on failure")
	}
}
