// Package connector defines the §4.E connector base contract shared by
// every provider (file/object, table-format, warehouse, row-DB, REST, LLM
// SQL generator): the Connector interface, a registry mapping connection
// kind to factory, and a Base embedding the common locator-resolution,
// ranking-hook and raw-SQL-rewriter behavior every concrete connector
// reuses.
package connector

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ankaflow/ankaflow/internal/errs"
	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/path"
	"github.com/ankaflow/ankaflow/internal/rank"
	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

// Connector is the operation set every connection kind exposes to the
// scheduler.
type Connector interface {
	// Tap loads data into the in-memory table named by Stage, optionally
	// constrained by query and limit (limit<=0 means unbounded).
	Tap(ctx context.Context, query string, limit int) error
	// Sink reads fromName's in-memory table and pushes it to the connector's
	// target.
	Sink(ctx context.Context, fromName string) error
	// SQL executes a connector-scoped command; some connectors only accept a
	// constrained sub-language.
	SQL(ctx context.Context, statement string) error
	// ShowSchema returns the stage's column list.
	ShowSchema(ctx context.Context) (model.Columns, error)
}

// Deps bundles the collaborators every connector factory needs, mirroring
// the scheduler's stage↔collaborator contract (§4.L).
type Deps struct {
	Stage     string
	Conn      *model.Connection
	Adapter   *sqlrt.Adapter
	Config    *model.ConnectionConfiguration
	Variables *model.Variables
	Context   model.FlowContext
}

// Factory builds a Connector for one connection kind.
type Factory func(d Deps) (Connector, error)

// registry maps a connection kind to its factory. Concrete connector
// packages register themselves from an init() func via Register.
var registry = map[model.ConnectionKind]Factory{}

// Register adds (or replaces) the factory for kind. Called from each
// connector subpackage's init().
func Register(kind model.ConnectionKind, factory Factory) {
	registry[kind] = factory
}

// New builds the Connector for d.Conn.Kind, failing if no factory is
// registered for that kind.
func New(d Deps) (Connector, error) {
	if d.Conn == nil {
		return nil, errs.New(errs.Configuration, "ankaflow: stage %q has no connection", d.Stage)
	}
	factory, ok := registry[d.Conn.Kind]
	if !ok {
		return nil, errs.New(errs.Configuration, "ankaflow: no connector registered for kind %q", d.Conn.Kind)
	}
	return factory(d)
}

// Base implements the behavior common to every connector: locator
// resolution, the ranking hook (short-circuiting to (query, "") for
// non-versioned connections), and the raw-SQL rewriter.
type Base struct {
	Stage   string
	Conn    *model.Connection
	Adapter *sqlrt.Adapter
}

// NewBase constructs a Base from Deps; concrete connectors embed it.
func NewBase(d Deps) Base {
	return Base{Stage: d.Stage, Conn: d.Conn, Adapter: d.Adapter}
}

// ResolveLocator resolves name against the connector's locator (used as the
// bucket root), per §4.A.
func (b Base) ResolveLocator(name string, rule *path.WildcardRule, useWildcard bool) (string, error) {
	loc := path.Locator{Bucket: b.Conn.Locator}
	return loc.Resolve(name, rule, useWildcard)
}

// Rank applies the versioned-read transform when the connection is
// versioned, otherwise returns (query, "") unchanged, per §4.D/§4.E.
func (b Base) Rank(query, selectable string) (string, string, error) {
	if !b.Conn.Versioned() {
		return query, "", nil
	}
	return rank.Rewrite(query, selectable, b.Conn.Version, b.Conn.Key)
}

// RewriteRawSQL runs the §4.A raw-SQL locator rewriter against statement,
// substituting the connection's resolved long locator for any matching
// short-locator argument.
func (b Base) RewriteRawSQL(statement, longLocator string) (string, error) {
	return path.RewriteRawSQL(statement, b.Conn.Locator, longLocator)
}

// ProbeSchema runs a minimal, row-limited SELECT against the in-memory
// stage table and converts the result into Columns. Connectors call this
// first from ShowSchema, falling back to a source-specific probe only when
// it fails (e.g. the stage table was never materialized).
func (b Base) ProbeSchema(ctx context.Context) (model.Columns, error) {
	rel, err := b.Adapter.SQL(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT 0`, b.Stage))
	if err != nil {
		return nil, err
	}
	cols := make(model.Columns, len(rel.Columns))
	for i, name := range rel.Columns {
		cols[i] = model.Column{Name: name, Type: "unknown"}
	}
	return cols, nil
}

// schemaProbeCache bounds the number of distinct source-probe results kept
// across a run: §4.E's "fall back to probing the source with a minimal
// fetch" path hits the provider again every time ShowSchema is called on a
// stage whose in-memory table isn't materialized yet, which repeated
// show_schema/preview calls against the same locator would otherwise repeat
// needlessly.
var schemaProbeCache, _ = lru.New[string, model.Columns](256)

// CachedProbe returns the cached Columns for key if present, otherwise
// calls probe, caches a successful result, and returns it. A failed probe
// is never cached.
func CachedProbe(key string, probe func() (model.Columns, error)) (model.Columns, error) {
	if cols, ok := schemaProbeCache.Get(key); ok {
		return cols, nil
	}
	cols, err := probe()
	if err != nil {
		return nil, err
	}
	schemaProbeCache.Add(key, cols)
	return cols, nil
}
