// Package sqlite persists monitored targets and their append-only check
// history.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeFormat is fixed width so that stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store is the coordinator's SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and migrates the schema.
func New(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// One writer at a time keeps transactions free of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS targets (
	id                TEXT PRIMARY KEY,
	base_url          TEXT NOT NULL,
	owner             TEXT NOT NULL,
	grp               TEXT NOT NULL DEFAULT '',
	check_spelling    INTEGER NOT NULL DEFAULT 0,
	check_performance INTEGER NOT NULL DEFAULT 0,
	check_links       INTEGER NOT NULL DEFAULT 0,
	recursive         INTEGER NOT NULL DEFAULT 0,
	disabled          INTEGER NOT NULL DEFAULT 0,
	extra_words       TEXT NOT NULL DEFAULT '[]',
	ignore_words      TEXT NOT NULL DEFAULT '[]',
	token             TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL,
	UNIQUE (owner, base_url)
);
CREATE INDEX IF NOT EXISTS idx_targets_base_url ON targets (base_url);
CREATE INDEX IF NOT EXISTS idx_targets_created_at_id ON targets (created_at, id);

CREATE TABLE IF NOT EXISTS check_results (
	seq                INTEGER PRIMARY KEY AUTOINCREMENT,
	id                 TEXT NOT NULL UNIQUE,
	target_id          TEXT NOT NULL,
	url                TEXT NOT NULL,
	checked_at         TEXT NOT NULL,
	base_status        INTEGER NOT NULL,
	base_check         INTEGER NOT NULL,
	failure_message    TEXT NOT NULL DEFAULT '',
	performance_score  REAL,
	performance_audits TEXT,
	links_failed       INTEGER,
	link_results       TEXT,
	spelling           TEXT,
	extended           INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (target_id) REFERENCES targets(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_results_target_url_time ON check_results (target_id, url, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_target_time ON check_results (target_id, checked_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const targetColumns = `id, base_url, owner, grp, check_spelling, check_performance, check_links,
	recursive, disabled, extra_words, ignore_words, token, created_at, updated_at`

// UpsertTarget inserts t or updates its configuration. The token and the
// creation time of an existing target are kept.
func (s *Store) UpsertTarget(ctx context.Context, t domain.Target) error {
	extra, err := json.Marshal(nonNil(t.SpellingExtraWords))
	if err != nil {
		return fmt.Errorf("failed to encode extra words: %w", err)
	}
	ignore, err := json.Marshal(nonNil(t.SpellingIgnoreWords))
	if err != nil {
		return fmt.Errorf("failed to encode ignore words: %w", err)
	}

	query := `
INSERT INTO targets (` + targetColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	base_url = excluded.base_url,
	owner = excluded.owner,
	grp = excluded.grp,
	check_spelling = excluded.check_spelling,
	check_performance = excluded.check_performance,
	check_links = excluded.check_links,
	recursive = excluded.recursive,
	disabled = excluded.disabled,
	extra_words = excluded.extra_words,
	ignore_words = excluded.ignore_words,
	updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		t.ID, t.BaseURL, t.Owner, t.Group,
		t.CheckSpelling, t.CheckPerformance, t.CheckLinks, t.Recursive, t.Disabled,
		string(extra), string(ignore), t.Token,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert target %s: %w", t.BaseURL, err)
	}
	return nil
}

// GetTarget returns the target with the given id.
func (s *Store) GetTarget(ctx context.Context, id string) (*domain.Target, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = ?`, id)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target %s: %w", id, err)
	}
	return t, nil
}

// TargetByOwnerURL returns the target registered by owner for baseURL.
func (s *Store) TargetByOwnerURL(ctx context.Context, owner, baseURL string) (*domain.Target, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE owner = ? AND base_url = ?`, owner, baseURL)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target %s of %s: %w", baseURL, owner, err)
	}
	return t, nil
}

// TargetsByURL returns every target registered for baseURL, whatever the owner.
func (s *Store) TargetsByURL(ctx context.Context, baseURL string) ([]domain.Target, error) {
	return s.queryTargets(ctx, `SELECT `+targetColumns+` FROM targets WHERE base_url = ? ORDER BY created_at, id`, baseURL)
}

// ListTargets returns all targets in creation order.
func (s *Store) ListTargets(ctx context.Context) ([]domain.Target, error) {
	return s.queryTargets(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY created_at, id`)
}

// DisabledBefore returns disabled targets last updated before cutoff.
func (s *Store) DisabledBefore(ctx context.Context, cutoff time.Time) ([]domain.Target, error) {
	return s.queryTargets(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE disabled = 1 AND updated_at < ? ORDER BY created_at, id`,
		formatTime(cutoff))
}

func (s *Store) queryTargets(ctx context.Context, query string, args ...interface{}) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target row: %w", err)
		}
		targets = append(targets, *t)
	}
	return targets, rows.Err()
}

// DisableMissing soft-disables every enabled target whose id is not in keep.
// It returns the ids that were disabled.
func (s *Store) DisableMissing(ctx context.Context, keep map[string]bool, at time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM targets WHERE disabled = 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled targets: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan target id: %w", err)
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list enabled targets: %w", err)
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx,
			`UPDATE targets SET disabled = 1, updated_at = ? WHERE id = ?`, formatTime(at), id); err != nil {
			return nil, fmt.Errorf("failed to disable target %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stale, nil
}

// DeleteTarget removes a target together with its history.
func (s *Store) DeleteTarget(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM check_results WHERE target_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete results of %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete target %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// ListTargetActivity returns every target with the time of its latest
// result and of its latest result carrying an optional-check payload.
func (s *Store) ListTargetActivity(ctx context.Context) ([]domain.TargetActivity, error) {
	query := `
SELECT t.id, t.base_url, t.owner, t.grp, t.check_spelling, t.check_performance, t.check_links,
	t.recursive, t.disabled, t.extra_words, t.ignore_words, t.token, t.created_at, t.updated_at,
	MAX(r.checked_at),
	MAX(CASE WHEN r.extended = 1 THEN r.checked_at END)
FROM targets t
LEFT JOIN check_results r ON r.target_id = t.id
GROUP BY t.id
ORDER BY t.created_at, t.id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query target activity: %w", err)
	}
	defer rows.Close()

	var out []domain.TargetActivity
	for rows.Next() {
		var (
			t                  domain.Target
			extra, ignore      string
			created, updated   string
			lastAny, lastExtra sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.BaseURL, &t.Owner, &t.Group,
			&t.CheckSpelling, &t.CheckPerformance, &t.CheckLinks, &t.Recursive, &t.Disabled,
			&extra, &ignore, &t.Token, &created, &updated, &lastAny, &lastExtra); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		if err := fillTarget(&t, extra, ignore, created, updated); err != nil {
			return nil, err
		}
		out = append(out, domain.TargetActivity{
			Target:         t,
			LastCheckedAt:  parseNullTime(lastAny),
			LastExtendedAt: parseNullTime(lastExtra),
		})
	}
	return out, rows.Err()
}

// Recorded pairs a newly stored result with the result that preceded it for
// the same target and URL.
type Recorded struct {
	Result   domain.CheckResult
	Previous *domain.CheckResult
}

// RecordResults appends results in one transaction. Each previous result is
// read before the new row is inserted, so it never is the new row itself.
func (s *Store) RecordResults(ctx context.Context, results []domain.CheckResult) ([]Recorded, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	recorded := make([]Recorded, 0, len(results))
	for _, r := range results {
		prev, err := latestResultTx(ctx, tx, r.TargetID, r.URL)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err := insertResultTx(ctx, tx, r); err != nil {
			return nil, err
		}
		recorded = append(recorded, Recorded{Result: r, Previous: prev})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return recorded, nil
}

const resultColumns = `id, target_id, url, checked_at, base_status, base_check, failure_message,
	performance_score, performance_audits, links_failed, link_results, spelling`

func latestResultTx(ctx context.Context, tx *sql.Tx, targetID, url string) (*domain.CheckResult, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM check_results
WHERE target_id = ? AND url = ?
ORDER BY checked_at DESC, seq DESC LIMIT 1`, targetID, url)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read previous result for %s: %w", url, err)
	}
	return r, nil
}

func insertResultTx(ctx context.Context, tx *sql.Tx, r domain.CheckResult) error {
	var (
		score   sql.NullFloat64
		audits  sql.NullString
		failed  sql.NullInt64
		links   sql.NullString
		spellng sql.NullString
	)
	if r.PerformanceScore != nil {
		score = sql.NullFloat64{Float64: *r.PerformanceScore, Valid: true}
		if len(r.PerformanceAudits) > 0 {
			audits = sql.NullString{String: string(r.PerformanceAudits), Valid: true}
		}
	}
	if r.LinksFailed != nil {
		failed = sql.NullInt64{Int64: int64(*r.LinksFailed), Valid: true}
		data, err := json.Marshal(r.LinkResults)
		if err != nil {
			return fmt.Errorf("failed to encode link results: %w", err)
		}
		links = sql.NullString{String: string(data), Valid: true}
	}
	if r.Spelling != nil {
		data, err := json.Marshal(r.Spelling)
		if err != nil {
			return fmt.Errorf("failed to encode spelling: %w", err)
		}
		spellng = sql.NullString{String: string(data), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO check_results (`+resultColumns+`, extended)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TargetID, r.URL, formatTime(r.CheckedAt), r.BaseStatus, r.BaseCheck, r.FailureMessage,
		score, audits, failed, links, spellng, r.HasExtendedPayload())
	if err != nil {
		return fmt.Errorf("failed to insert result for %s: %w", r.URL, err)
	}
	return nil
}

// LatestResults returns up to limit results of a target, newest first.
func (s *Store) LatestResults(ctx context.Context, targetID string, limit int) ([]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM check_results
WHERE target_id = ?
ORDER BY checked_at DESC, seq DESC LIMIT ?`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []domain.CheckResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row scanner) (*domain.Target, error) {
	var (
		t                domain.Target
		extra, ignore    string
		created, updated string
	)
	if err := row.Scan(&t.ID, &t.BaseURL, &t.Owner, &t.Group,
		&t.CheckSpelling, &t.CheckPerformance, &t.CheckLinks, &t.Recursive, &t.Disabled,
		&extra, &ignore, &t.Token, &created, &updated); err != nil {
		return nil, err
	}
	if err := fillTarget(&t, extra, ignore, created, updated); err != nil {
		return nil, err
	}
	return &t, nil
}

func fillTarget(t *domain.Target, extra, ignore, created, updated string) error {
	if err := json.Unmarshal([]byte(extra), &t.SpellingExtraWords); err != nil {
		return fmt.Errorf("failed to decode extra words of %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(ignore), &t.SpellingIgnoreWords); err != nil {
		return fmt.Errorf("failed to decode ignore words of %s: %w", t.ID, err)
	}
	t.CreatedAt, _ = time.Parse(timeFormat, created)
	t.UpdatedAt, _ = time.Parse(timeFormat, updated)
	return nil
}

func scanResult(row scanner) (*domain.CheckResult, error) {
	var (
		r       domain.CheckResult
		checked string
		score   sql.NullFloat64
		audits  sql.NullString
		failed  sql.NullInt64
		links   sql.NullString
		spellng sql.NullString
	)
	if err := row.Scan(&r.ID, &r.TargetID, &r.URL, &checked, &r.BaseStatus, &r.BaseCheck, &r.FailureMessage,
		&score, &audits, &failed, &links, &spellng); err != nil {
		return nil, err
	}
	r.CheckedAt, _ = time.Parse(timeFormat, checked)
	if score.Valid {
		v := score.Float64
		r.PerformanceScore = &v
	}
	if audits.Valid {
		r.PerformanceAudits = json.RawMessage(audits.String)
	}
	if failed.Valid {
		n := int(failed.Int64)
		r.LinksFailed = &n
	}
	if links.Valid {
		if err := json.Unmarshal([]byte(links.String), &r.LinkResults); err != nil {
			return nil, fmt.Errorf("failed to decode link results of %s: %w", r.ID, err)
		}
	}
	if spellng.Valid {
		if err := json.Unmarshal([]byte(spellng.String), &r.Spelling); err != nil {
			return nil, fmt.Errorf("failed to decode spelling of %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nonNil(words []string) []string {
	if words == nil {
		return []string{}
	}
	return words
}
