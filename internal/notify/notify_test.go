package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

func TestHTTPNotify(t *testing.T) {
	var got domain.Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bot" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/smart-send" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alert := domain.Alert{Users: []string{"alice"}, Msg: "https://a.example/ recovered"}

	n := NewHTTP(srv.URL+"/", "bot", "secret", time.Second)
	if err := n.Notify(context.Background(), alert); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(got.Users) != 1 || got.Users[0] != "alice" || got.Msg != alert.Msg {
		t.Errorf("dispatch received %+v", got)
	}

	bad := NewHTTP(srv.URL, "bot", "wrong", time.Second)
	if err := bad.Notify(context.Background(), alert); err == nil {
		t.Error("expected error on 401")
	}
}

func TestLogNotify(t *testing.T) {
	n := NewLog(logger.NewNop())
	if err := n.Notify(context.Background(), domain.Alert{Users: []string{"alice"}, Msg: "x"}); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
}
