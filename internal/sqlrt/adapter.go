// Package sqlrt implements the §4.C SQL runtime adapter: a process-wide
// wrapper around a single embedded analytical SQL engine. The engine here is
// SQLite via mattn/go-sqlite3, chosen as the embedded, in-process, zero-server
// analytical store the teacher's connector layer expects; the macro library,
// secret scoping and sandboxed-rewrite behaviors are layered on top of it.
package sqlrt

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3_ankaflow" driver via init() in driver.go
	log "github.com/sirupsen/logrus"
)

// Adapter is the single, process-wide embedded SQL engine handle a pipeline
// run shares across every stage and every nested sub-pipeline.
type Adapter struct {
	db        *sql.DB
	sandboxed bool

	mu      sync.Mutex
	secrets map[string]ProviderSecret // scope (bucket URI) -> credential
}

// ProviderSecret is a named credential scoped to a bucket URI, per §4.C
// ("scope = bucket URI so that multiple buckets co-exist without precedence
// ambiguity").
type ProviderSecret struct {
	Provider string // "s3" | "gs"
	Config   map[string]string
}

// Options configures Connect.
type Options struct {
	// Sandboxed refuses delta_scan and the foreign-DB scan functions
	// (postgres_scan, mysql_scan, sqlite_scan). Local filesystem reads are
	// not restricted.
	Sandboxed bool
}

// Connect opens the engine and installs the macro namespace. It is safe to
// call once per Adapter; callers share the returned Adapter across the run.
func Connect(ctx context.Context, opts Options) (*Adapter, error) {
	db, err := sql.Open("sqlite3_ankaflow", "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("ankaflow: opening embedded SQL engine: %w", err)
	}
	db.SetMaxOpenConns(1) // a shared in-memory engine is not safe for concurrent writers
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ankaflow: connecting to embedded SQL engine: %w", err)
	}
	a := &Adapter{db: db, sandboxed: opts.Sandboxed, secrets: make(map[string]ProviderSecret)}
	if err := a.installMacros(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Sandboxed reports whether this adapter was opened with Options.Sandboxed.
func (a *Adapter) Sandboxed() bool { return a.sandboxed }

// Close releases the underlying engine handle.
func (a *Adapter) Close() error { return a.db.Close() }

// InjectSecrets upserts a named credential scoped to a bucket URI.
func (a *Adapter) InjectSecrets(scope string, secret ProviderSecret) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.secrets[scope] = secret
	log.WithField("scope", scope).Debug("ankaflow: injected connection secret")
}

// Secret returns the credential registered for scope, if any.
func (a *Adapter) Secret(scope string) (ProviderSecret, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.secrets[scope]
	return s, ok
}

// guardSandboxed rejects scan functions the sandboxed runtime disallows.
func (a *Adapter) guardSandboxed(query string) error {
	if !a.sandboxed {
		return nil
	}
	lowered := strings.ToLower(query)
	for _, forbidden := range []string{"delta_scan", "postgres_scan", "mysql_scan", "sqlite_scan"} {
		if strings.Contains(lowered, forbidden) {
			return fmt.Errorf("ankaflow: %s is not available in a sandboxed runtime", forbidden)
		}
	}
	return nil
}

// SQL executes a statement and returns a Relation over its result set. DDL
// and DML statements (CREATE, INSERT, COPY-equivalents) that produce no rows
// still succeed and return an empty Relation. query is translated through
// translateStatements first (dialect.go); any statement besides the last is
// run for its side effect, and the last is the one whose rows are returned.
func (a *Adapter) SQL(ctx context.Context, query string) (*Relation, error) {
	if err := a.guardSandboxed(query); err != nil {
		return nil, err
	}
	stmts := translateStatements(query)
	for _, stmt := range stmts[:len(stmts)-1] {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("ankaflow: executing statement: %w", err)
		}
	}
	final := stmts[len(stmts)-1]
	rows, err := a.db.QueryContext(ctx, final)
	if err != nil {
		if isNoRowsStatement(err) {
			if _, execErr := a.db.ExecContext(ctx, final); execErr != nil {
				return nil, fmt.Errorf("ankaflow: executing statement: %w", execErr)
			}
			return &Relation{}, nil
		}
		return nil, fmt.Errorf("ankaflow: executing statement: %w", err)
	}
	return newRelation(rows)
}

// Exec runs a statement that returns no rows (DDL/DML) directly. Parameterized
// calls (len(args) > 0) bypass dialect translation - the ingestion layer's
// INSERT ... VALUES (?, ...) statements are already SQLite-native and must
// not be rewritten.
func (a *Adapter) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := a.guardSandboxed(query); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		res, err := a.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("ankaflow: executing statement: %w", err)
		}
		return res, nil
	}
	var res sql.Result
	for _, stmt := range translateStatements(query) {
		r, err := a.db.ExecContext(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("ankaflow: executing statement: %w", err)
		}
		res = r
	}
	return res, nil
}

func isNoRowsStatement(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "not a query")
}

// Register publishes an in-memory view backed by rows: a temp table is
// created and populated, standing in for the teacher's "external data
// frame" registration.
func (a *Adapter) Register(ctx context.Context, viewName string, columns []string, rows [][]any) error {
	if len(columns) == 0 {
		return fmt.Errorf("ankaflow: register(%q): no columns given", viewName)
	}
	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = fmt.Sprintf("%q", c)
		placeholders[i] = "?"
	}
	ddl := fmt.Sprintf(`CREATE TEMP TABLE %q (%s)`, viewName, strings.Join(quotedCols, ", "))
	if _, err := a.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ankaflow: register(%q): %w", viewName, err)
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, viewName, strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ankaflow: register(%q): %w", viewName, err)
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, insertSQL, row...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ankaflow: register(%q): %w", viewName, err)
		}
	}
	return tx.Commit()
}

// Unregister retracts a previously registered view.
func (a *Adapter) Unregister(ctx context.Context, viewName string) error {
	_, err := a.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, viewName))
	if err != nil {
		return fmt.Errorf("ankaflow: unregister(%q): %w", viewName, err)
	}
	return nil
}

// ScratchPath returns a unique, uuid-based temp-file-like name with the
// given extension. The sandboxed rewriter (sandbox_rewrite.go) does not use
// it; it names its scratch files by path.Digest of the remote URL.
func ScratchPath(ext string) string {
	return fmt.Sprintf("ankaflow-scratch-%s%s", uuid.NewString(), ext)
}
