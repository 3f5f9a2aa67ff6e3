// Copyright 2025 Redbridge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package redshift

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// DriverFactory is the constructor seam for the warehouse driver, so the
// core can run against fakes without a network dependency.
type DriverFactory func(url string) (*sql.DB, error)

// defaultDriverFactory opens the warehouse over the Postgres wire protocol.
func defaultDriverFactory(url string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("cannot parse warehouse connection url: %w", err)
	}
	return stdlib.OpenDB(*cfg), nil
}

// Gateway is the single place the other components execute warehouse
// statements through. Each logical operation owns exactly one physical
// connection, closed on every exit path.
type Gateway struct {
	db      *sql.DB
	conn    *sql.Conn
	timeout time.Duration
	closed  bool
}

// OpenGateway dials the warehouse and pins one connection for the operation.
// A non-zero timeout bounds every statement issued through the gateway.
func OpenGateway(ctx context.Context, url string, factory DriverFactory, timeout time.Duration) (*Gateway, error) {
	if factory == nil {
		factory = defaultDriverFactory
	}
	db, err := factory(url)
	if err != nil {
		return nil, fmt.Errorf("cannot open warehouse driver: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot acquire warehouse connection: %w", err)
	}
	return &Gateway{db: db, conn: conn, timeout: timeout}, nil
}

func (g *Gateway) stmtContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}
	return ctx, func() {}
}

// Exec runs one statement that returns no rows.
func (g *Gateway) Exec(ctx context.Context, query string, args ...any) error {
	stmtCtx, cancel := g.stmtContext(ctx)
	defer cancel()

	log.Debug().Str("sql", truncateSQL(query)).Msg("executing warehouse statement")
	if _, err := g.conn.ExecContext(stmtCtx, query, args...); err != nil {
		return &StatementError{SQL: query, Err: err}
	}
	return nil
}

// Query runs one statement returning a row cursor. The caller owns the rows.
func (g *Gateway) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	stmtCtx, cancel := g.stmtContext(ctx)
	defer cancel()

	log.Debug().Str("sql", truncateSQL(query)).Msg("executing warehouse query")
	rows, err := g.conn.QueryContext(stmtCtx, query, args...)
	if err != nil {
		return nil, &StatementError{SQL: query, Err: err}
	}
	return rows, nil
}

// ExecInTx runs the statements inside one explicit transaction with
// all-or-nothing semantics: any failure rolls the whole block back.
func (g *Gateway) ExecInTx(ctx context.Context, stmts []string) error {
	tx, err := g.conn.BeginTx(ctx, nil)
	if err != nil {
		return &StatementError{SQL: "BEGIN", Err: err}
	}
	for _, stmt := range stmts {
		stmtCtx, cancel := g.stmtContext(ctx)
		log.Debug().Str("sql", truncateSQL(stmt)).Msg("executing warehouse statement in transaction")
		_, err := tx.ExecContext(stmtCtx, stmt)
		cancel()
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Warn().Err(rbErr).Msg("transaction rollback failed")
			}
			return &StatementError{SQL: stmt, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StatementError{SQL: "COMMIT", Err: err}
	}
	return nil
}

// Close releases the pinned connection and the driver. Safe to call once
// per gateway; callers never manage connection lifetime directly.
func (g *Gateway) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	connErr := g.conn.Close()
	dbErr := g.db.Close()
	if connErr != nil {
		return fmt.Errorf("error closing warehouse connection: %w", connErr)
	}
	if dbErr != nil {
		return fmt.Errorf("error closing warehouse driver: %w", dbErr)
	}
	return nil
}
