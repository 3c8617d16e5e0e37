package targets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
)

// targetNamespace scopes the deterministic target ids.
var targetNamespace = uuid.MustParse("6f1c1a52-3d5e-4f0e-9a51-5b2f8f0c7d21")

// Mapper converts file entries to domain targets.
type Mapper struct {
	now   func() time.Time
	token func() (string, error)
}

func NewMapper() *Mapper {
	return &Mapper{now: time.Now, token: NewToken}
}

// Skipped describes an entry the mapper could not use.
type Skipped struct {
	Index  int
	URL    string
	Reason string
}

// MapTargets converts the config. Invalid and duplicate entries are returned
// as skipped rather than failing the whole file. Every target carries a
// fresh token; the store keeps the existing one for known targets.
func (m *Mapper) MapTargets(config Config) ([]domain.Target, []Skipped, error) {
	now := m.now().UTC()
	seen := make(map[string]bool, len(config))
	targets := make([]domain.Target, 0, len(config))
	var skipped []Skipped

	for i, e := range config {
		baseURL := strings.TrimSpace(e.URL)
		owner := strings.TrimSpace(e.Owner)

		if reason := validate(baseURL, owner); reason != "" {
			skipped = append(skipped, Skipped{Index: i, URL: baseURL, Reason: reason})
			continue
		}

		id := TargetID(owner, baseURL)
		if seen[id] {
			skipped = append(skipped, Skipped{Index: i, URL: baseURL, Reason: "duplicate owner and url"})
			continue
		}
		seen[id] = true

		token, err := m.token()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate token: %w", err)
		}

		targets = append(targets, domain.Target{
			ID:                  id,
			BaseURL:             baseURL,
			Owner:               owner,
			Group:               strings.TrimSpace(e.Group),
			CheckSpelling:       e.Checks.Spelling,
			CheckPerformance:    e.Checks.Performance,
			CheckLinks:          e.Checks.Links,
			Recursive:           e.Checks.Recursive,
			Disabled:            e.Disabled,
			SpellingExtraWords:  e.Spelling.ExtraWords,
			SpellingIgnoreWords: e.Spelling.IgnoreWords,
			Token:               token,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}

	return targets, skipped, nil
}

func validate(baseURL, owner string) string {
	if baseURL == "" {
		return "missing url"
	}
	if owner == "" {
		return "missing owner"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "invalid url"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "url scheme must be http or https"
	}
	if u.Host == "" {
		return "url has no host"
	}
	return ""
}

// TargetID is stable for an owner and base URL across reloads.
func TargetID(owner, baseURL string) string {
	return uuid.NewSHA1(targetNamespace, []byte(owner+"\x00"+baseURL)).String()
}

// NewToken returns a random URL-safe submission token.
func NewToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
