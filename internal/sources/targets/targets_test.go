package targets

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write targets file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeFile(t, `
- url: https://a.example/
  owner: alice
  group: web
  checks: {spelling: true, performance: false, links: true, recursive: false}
  spelling: {extra_words: [sitecheck], ignore_words: [ACME]}
- url: ${SHOP_URL}
  owner: {{OWNER}}
  disabled: true
`)

	loader := NewLoader(path)
	loader.lookup = func(name string) (string, bool) {
		if name == "SHOP_URL" {
			return "https://shop.example/", true
		}
		return "", false
	}

	config, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(config) != 2 {
		t.Fatalf("entries = %d, want 2", len(config))
	}

	a := config[0]
	if a.Owner != "alice" || !a.Checks.Spelling || !a.Checks.Links || a.Checks.Performance {
		t.Errorf("entry 0 = %+v", a)
	}
	if len(a.Spelling.ExtraWords) != 1 || a.Spelling.IgnoreWords[0] != "ACME" {
		t.Errorf("spelling = %+v", a.Spelling)
	}
	if config[1].URL != "https://shop.example/" || config[1].Owner != "" || !config[1].Disabled {
		t.Errorf("entry 1 = %+v", config[1])
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	if _, err := NewLoader("/nonexistent/targets.yaml").Load(); err == nil {
		t.Error("Load() with a missing file should return an error")
	}
}

func TestExpandAndStrip(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "HOST" {
			return "a.example", true
		}
		return "", false
	}
	tests := []struct {
		name, input, want string
	}{
		{"braced env", "url: https://${HOST}/", "url: https://a.example/"},
		{"unset env", "url: ${MISSING}", "url: "},
		{"bare dollar kept", "url: https://a.example/$HOST", "url: https://a.example/$HOST"},
		{"template stripped", "owner: {{VAR_OWNER}}", `owner: ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(stripTemplateVariables(expandEnv([]byte(tt.input), lookup)))
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapTargets(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	m := &Mapper{
		now: func() time.Time { return now },
		token: func() (string, error) {
			n++
			return "tok", nil
		},
	}

	config := Config{
		{URL: "https://a.example/", Owner: "alice", Checks: Checks{Links: true}},
		{URL: "https://a.example/", Owner: "bob"},
		{URL: "https://a.example/", Owner: "alice"},
		{URL: "ftp://a.example/", Owner: "alice"},
		{URL: "https://b.example/"},
	}

	targets, skipped, err := m.MapTargets(config)
	if err != nil {
		t.Fatalf("MapTargets() error = %v", err)
	}
	if len(targets) != 2 || len(skipped) != 3 {
		t.Fatalf("targets = %d, skipped = %+v", len(targets), skipped)
	}
	if targets[0].ID == targets[1].ID {
		t.Error("different owners share an id")
	}
	if targets[0].ID != TargetID("alice", "https://a.example/") {
		t.Error("id is not deterministic")
	}
	if !targets[0].CheckLinks || targets[0].Token != "tok" || !targets[0].CreatedAt.Equal(now) {
		t.Errorf("target = %+v", targets[0])
	}
	if skipped[0].Index != 2 || skipped[0].Reason != "duplicate owner and url" {
		t.Errorf("skipped[0] = %+v", skipped[0])
	}
	if n != 2 {
		t.Errorf("tokens generated = %d, want 2", n)
	}
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	b, _ := NewToken()
	if a == b || len(a) != 22 {
		t.Errorf("tokens %q %q", a, b)
	}
}
