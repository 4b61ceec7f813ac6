// Package rowdb implements the §4.I streaming row-oriented database
// connector, modeled on ClickHouse via ClickHouse/clickhouse-go/v2.
package rowdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"

	"github.com/ankaflow/ankaflow/internal/connector"
	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

func init() {
	connector.Register(model.ConnRowDB, newConnector)
}

const defaultBlockSize = 100_000

type rowDBConnector struct {
	connector.Base
	cfg       *model.RowDBConfig
	blockSize int
}

func newConnector(d connector.Deps) (connector.Connector, error) {
	if d.Config == nil || d.Config.RowDB == nil {
		return nil, fmt.Errorf("ankaflow: rowdb connection requires rowdb configuration")
	}
	blockSize := defaultBlockSize
	if v, ok := d.Conn.Params["blocksize"].(float64); ok {
		blockSize = int(v)
	}
	return &rowDBConnector{Base: connector.NewBase(d), cfg: d.Config.RowDB, blockSize: blockSize}, nil
}

// resolveTarget validates and splits the locator per §4.I: a dotted locator
// is "database.table" and the configured database must be absent; an
// undotted locator requires a configured database.
func (c *rowDBConnector) resolveTarget() (database, table string, err error) {
	locator := c.Conn.Locator
	if strings.Contains(locator, ".") {
		if c.cfg.Database != "" {
			return "", "", fmt.Errorf("ankaflow: rowdb locator %q is dotted but a database is also configured", locator)
		}
		parts := strings.SplitN(locator, ".", 2)
		return parts[0], parts[1], nil
	}
	if c.cfg.Database == "" {
		return "", "", fmt.Errorf("ankaflow: rowdb locator %q has no database and none is configured", locator)
	}
	return c.cfg.Database, locator, nil
}

// withConn scopes a client connection to a single operation: opened,
// handed to fn, and always closed, per §4.I's per-operation lifecycle.
func (c *rowDBConnector) withConn(ctx context.Context, fn func(driver.Conn) error) error {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)},
		Auth: clickhouse.Auth{
			Database: c.cfg.Database,
			Username: c.cfg.Username,
			Password: c.cfg.Password,
		},
		TLS: tlsConfig(c.cfg.Secure),
	})
	if err != nil {
		return fmt.Errorf("ankaflow: opening rowdb connection: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

func (c *rowDBConnector) Tap(ctx context.Context, query string, limit int) error {
	database, table, err := c.resolveTarget()
	if err != nil {
		return err
	}
	qualified := fmt.Sprintf("%s.%s", database, table)
	selectList := "*"
	if strings.TrimSpace(query) != "" {
		selectList = query
	}
	base := fmt.Sprintf("SELECT %s FROM __SELECTABLE__", selectList)
	ranked, where, err := c.Rank(base, qualified)
	if err != nil {
		return err
	}
	if where != "" {
		ranked = fmt.Sprintf("SELECT * FROM (%s) __ranked__ WHERE %s", ranked, where)
	}
	if limit > 0 {
		ranked = fmt.Sprintf("SELECT * FROM (%s) __limited__ LIMIT %d", ranked, limit)
	}

	return c.withConn(ctx, func(conn driver.Conn) error {
		rows, err := conn.Query(ctx, ranked)
		if err != nil {
			return fmt.Errorf("ankaflow: unrecoverable rowdb tap: %w", err)
		}
		defer rows.Close()

		columns := rows.Columns()
		buffer := make([][]any, 0, c.blockSize)
		flushed := false
		count := 0
		start := time.Now()

		flush := func() error {
			if len(buffer) == 0 {
				return nil
			}
			const staging = "chdf_chunk"
			if err := c.Adapter.Register(ctx, staging, columns, buffer); err != nil {
				return err
			}
			defer c.Adapter.Unregister(ctx, staging)

			var execErr error
			if !flushed {
				_, execErr = c.Adapter.Exec(ctx, fmt.Sprintf(`CREATE TABLE %q AS FROM %q`, c.Stage, staging))
				flushed = true
			} else {
				_, execErr = c.Adapter.Exec(ctx, fmt.Sprintf(`INSERT INTO %q SELECT * FROM %q`, c.Stage, staging))
			}
			buffer = buffer[:0]
			return execErr
		}

		for rows.Next() {
			values := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("ankaflow: unrecoverable rowdb tap: %w", err)
			}
			buffer = append(buffer, values)
			count++
			if len(buffer) >= c.blockSize {
				if err := flush(); err != nil {
					return fmt.Errorf("ankaflow: unrecoverable rowdb tap: %w", err)
				}
				log.WithFields(log.Fields{
					"rows": count, "elapsed": time.Since(start),
				}).Debug("ankaflow: rowdb tap progress")
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("ankaflow: unrecoverable rowdb tap: %w", err)
		}
		return flush()
	})
}

func tlsConfig(secure bool) any {
	if !secure {
		return nil
	}
	return &struct{}{} // placeholder TLS config; real deployments pass *tls.Config
}

// Sink implements the two strategies of §4.I: direct (blocksize=0) selects
// the whole previous stage and issues one INSERT ... VALUES; streaming
// (blocksize>0) batches rows through successive columnar inserts.
func (c *rowDBConnector) Sink(ctx context.Context, fromName string) error {
	database, table, err := c.resolveTarget()
	if err != nil {
		return err
	}
	qualified := fmt.Sprintf("%s.%s", database, table)

	rel, err := c.Adapter.SQL(ctx, fmt.Sprintf(`SELECT * FROM %q`, fromName))
	if err != nil {
		return err
	}
	if len(rel.Rows) == 0 {
		log.Info("ankaflow: rowdb sink: no rows")
		return nil
	}

	return c.withConn(ctx, func(conn driver.Conn) error {
		if c.blockSize == 0 {
			return c.sinkDirect(ctx, conn, qualified, rel)
		}
		return c.sinkStreaming(ctx, conn, qualified, rel)
	})
}

func (c *rowDBConnector) sinkDirect(ctx context.Context, conn driver.Conn, qualified string, rel *sqlrt.Relation) error {
	batch, err := conn.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO %s`, qualified))
	if err != nil {
		return fmt.Errorf("ankaflow: rowdb sink: %w", err)
	}
	for _, row := range rel.Rows {
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("ankaflow: rowdb sink: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("ankaflow: rowdb sink: %w", err)
	}
	log.WithField("rows", len(rel.Rows)).Info("ankaflow: rowdb sink complete")
	return nil
}

func (c *rowDBConnector) sinkStreaming(ctx context.Context, conn driver.Conn, qualified string, rel *sqlrt.Relation) error {
	total := 0
	for start := 0; start < len(rel.Rows); start += c.blockSize {
		end := start + c.blockSize
		if end > len(rel.Rows) {
			end = len(rel.Rows)
		}
		batch, err := conn.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO %s`, qualified))
		if err != nil {
			return fmt.Errorf("ankaflow: rowdb sink: %w", err)
		}
		for _, row := range rel.Rows[start:end] {
			if err := batch.Append(row...); err != nil {
				return fmt.Errorf("ankaflow: rowdb sink: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("ankaflow: rowdb sink: %w", err)
		}
		total += end - start
	}
	log.WithField("rows", total).Info("ankaflow: rowdb sink complete")
	return nil
}

func (c *rowDBConnector) SQL(ctx context.Context, statement string) error {
	return c.withConn(ctx, func(conn driver.Conn) error {
		return conn.Exec(ctx, statement)
	})
}

func (c *rowDBConnector) ShowSchema(ctx context.Context) (model.Columns, error) {
	return c.ProbeSchema(ctx)
}
