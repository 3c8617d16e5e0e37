// Package dedup suppresses tasks that were already seen within a time window.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
)

// Deduplicator remembers fingerprints for a bounded window.
type Deduplicator interface {
	// Seen records fingerprint and reports whether it was already present.
	Seen(ctx context.Context, fingerprint string) (bool, error)
	// Forget drops fingerprint so the same task is processed on redelivery.
	Forget(ctx context.Context, fingerprint string) error
}

// Fingerprint identifies a task by its content. The force flag does not
// change what the task does, so it is left out.
func Fingerprint(task domain.CheckTask) (string, error) {
	task.ForceRun = false
	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to encode task for fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
