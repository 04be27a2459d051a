// Package sqlstore implements the run repository on database/sql for both
// SQL backends. Queries are written with ? placeholders and rebound for
// drivers that number their parameters.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sipeed/shimharness/pkg/scraper"
	"github.com/sipeed/shimharness/pkg/storage/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// dbExecutor is an interface that works with both *sql.DB and *sql.Tx
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// RunMigrations executes every embedded migration in file name order. Each
// statement is idempotent.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		for _, stmt := range strings.Split(string(content), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", name, err)
			}
		}
	}
	return nil
}

type runRepository struct {
	db      dbExecutor
	dialect Dialect
}

func NewRunRepository(db dbExecutor, dialect Dialect) repository.RunRepository {
	return &runRepository{db: db, dialect: dialect}
}

func (r *runRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *runRepository) Save(ctx context.Context, run *repository.Run) error {
	messages := run.Messages
	if messages == nil {
		messages = []scraper.Message{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	query := r.rebind(`INSERT INTO scenario_runs
		(id, suite_id, scenario, outcome, error, expected, observed, started_at, finished_at, messages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			suite_id = excluded.suite_id,
			scenario = excluded.scenario,
			outcome = excluded.outcome,
			error = excluded.error,
			expected = excluded.expected,
			observed = excluded.observed,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			messages = excluded.messages`)

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.SuiteID,
		run.Scenario,
		string(run.Outcome),
		run.Error,
		run.Expected,
		run.Observed,
		run.Started.UnixMilli(),
		run.Finished.UnixMilli(),
		string(messagesJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

func (r *runRepository) Get(ctx context.Context, id string) (*repository.Run, error) {
	query := r.rebind(`SELECT id, suite_id, scenario, outcome, error, expected, observed,
		started_at, finished_at, messages FROM scenario_runs WHERE id = ?`)

	var run repository.Run
	var outcome, messagesJSON string
	var started, finished int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.SuiteID,
		&run.Scenario,
		&outcome,
		&run.Error,
		&run.Expected,
		&run.Observed,
		&started,
		&finished,
		&messagesJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	run.Outcome = repository.Outcome(outcome)
	run.Started = time.UnixMilli(started).UTC()
	run.Finished = time.UnixMilli(finished).UTC()
	if err := json.Unmarshal([]byte(messagesJSON), &run.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return &run, nil
}

func (r *runRepository) List(ctx context.Context, suiteID string) ([]repository.RunInfo, error) {
	query := `SELECT id, suite_id, scenario, outcome, expected, observed, started_at, finished_at
		FROM scenario_runs`
	var args []interface{}
	if suiteID != "" {
		query += ` WHERE suite_id = ?`
		args = append(args, suiteID)
	}
	query += ` ORDER BY started_at, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var infos []repository.RunInfo
	for rows.Next() {
		var info repository.RunInfo
		var outcome string
		var started, finished int64
		if err := rows.Scan(&info.ID, &info.SuiteID, &info.Scenario, &outcome,
			&info.Expected, &info.Observed, &started, &finished); err != nil {
			return nil, err
		}
		info.Outcome = repository.Outcome(outcome)
		info.Started = time.UnixMilli(started).UTC()
		info.Duration = time.Duration(finished-started) * time.Millisecond
		infos = append(infos, info)
	}
	return infos, rows.Err()
}
