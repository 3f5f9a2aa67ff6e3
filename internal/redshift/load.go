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
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/redbridgeio/redbridge/internal/storages"
	"github.com/redbridgeio/redbridge/pkg/rowio"
)

// RowBatch is the engine-side input of a write: rows matching an ordered
// schema.
type RowBatch struct {
	Schema rowio.Schema
	Rows   [][]any
}

// Loader orchestrates the multi-statement load: serialize the batch to a
// fresh staging path, bulk-load it into a staging table, verify the load,
// atomically swap or merge into the target, then clean up. Any statement
// failure aborts to cleanup and re-raises the original error.
type Loader struct {
	params *Parameters
	store  storages.Storager
	driver DriverFactory
}

func NewLoader(params *Parameters, store storages.Storager, driver DriverFactory) *Loader {
	return &Loader{params: params, store: store, driver: driver}
}

func (l *Loader) Load(ctx context.Context, batch *RowBatch, mode SaveMode) error {
	if l.params.Table == "" {
		return newConfigError("a write requires the %q option; query-backed relations are read-only", optTable)
	}

	// Everything that can fail without touching the warehouse fails here:
	// schema validation, override resolution and credential rendering.
	schema, err := applyMaxLengths(batch.Schema, l.params.MaxLengths)
	if err != nil {
		return err
	}
	if err := validateSchema(schema); err != nil {
		return err
	}
	credsClause, err := l.params.CredentialsClause()
	if err != nil {
		return err
	}

	gw, err := OpenGateway(ctx, l.params.URL, l.driver, l.params.QueryTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := gw.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing warehouse connection after load")
		}
	}()

	target := l.params.Table
	exists, err := l.tableExists(ctx, gw)
	if err != nil {
		return err
	}

	switch mode {
	case SaveModeErrorIfExists:
		if exists {
			return newConfigError("target table %s already exists and save mode is %q", target, mode)
		}
	case SaveModeIgnore:
		if exists {
			log.Info().Str("table", target).Msg("target table exists, ignoring write")
			return nil
		}
	}

	suffix := newStagingSuffix()
	destPath := stagingPath(suffix)
	stagedURI := joinURI(l.params.TempDir, destPath)

	if err := l.writeStagedFiles(ctx, schema, batch.Rows, destPath); err != nil {
		return err
	}

	useStagingOverwrite := mode == SaveModeOverwrite && l.params.UseStagingTable
	stagedAppend := mode == SaveModeAppend && l.params.UseStagingTableSet && l.params.UseStagingTable

	var loadErr error
	switch {
	case useStagingOverwrite || stagedAppend:
		staging := stagingTableName(target, suffix)
		loadErr = l.runStagedLoad(ctx, gw, schema, target, staging, suffix, stagedURI, credsClause, exists, mode)

		// Cleanup runs whether the load succeeded or aborted; it must not
		// mask the original error. The drop is idempotent, so it is safe
		// even when the staging table was renamed away or never created.
		cleanupCtx := context.WithoutCancel(ctx)
		if cleanupErr := gw.Exec(cleanupCtx, dropTableIfExists(staging)); cleanupErr != nil {
			log.Warn().Err(cleanupErr).Str("table", staging).Msg("error dropping staging table during cleanup")
		}
	case mode == SaveModeOverwrite:
		loadErr = l.runDestructiveOverwrite(ctx, gw, schema, target, stagedURI, credsClause)
	default:
		loadErr = l.runDirectLoad(ctx, gw, schema, target, stagedURI, credsClause)
	}

	if loadErr != nil {
		return loadErr
	}

	if err := l.runActions(ctx, gw, l.params.PostActions, target); err != nil {
		return err
	}

	log.Info().
		Str("table", target).
		Str("mode", string(mode)).
		Int("rows", len(batch.Rows)).
		Msg("load finished")
	return nil
}

// runStagedLoad loads into a staging table and atomically promotes it:
// replace mode swaps names inside one transaction, append mode merges with
// an INSERT ... SELECT inside one transaction.
func (l *Loader) runStagedLoad(
	ctx context.Context,
	gw *Gateway,
	schema rowio.Schema,
	target, staging, suffix, stagedURI, credsClause string,
	targetExists bool,
	mode SaveMode,
) error {
	if err := gw.Exec(ctx, dropTableIfExists(staging)); err != nil {
		return err
	}
	createSQL, err := createTableSQL(schema, staging, l.params.DistStyle, l.params.DistKey, l.params.SortKeySpec)
	if err != nil {
		return err
	}
	if err := gw.Exec(ctx, createSQL); err != nil {
		return err
	}
	if err := l.runActions(ctx, gw, l.params.PreActions, staging); err != nil {
		return err
	}
	if err := l.copyAndVerify(ctx, gw, staging, stagedURI, credsClause); err != nil {
		return err
	}

	if mode == SaveModeAppend {
		return gw.ExecInTx(ctx, []string{insertFromStaging(target, staging)})
	}
	if targetExists {
		return gw.ExecInTx(ctx, swapStatements(target, staging, suffix))
	}
	return gw.Exec(ctx, renameStagingToTarget(target, staging))
}

// runDirectLoad bulk-loads straight into the target table.
func (l *Loader) runDirectLoad(
	ctx context.Context, gw *Gateway, schema rowio.Schema, target, stagedURI, credsClause string,
) error {
	createSQL, err := createTableSQL(schema, target, l.params.DistStyle, l.params.DistKey, l.params.SortKeySpec)
	if err != nil {
		return err
	}
	if err := gw.Exec(ctx, createSQL); err != nil {
		return err
	}
	if err := l.runActions(ctx, gw, l.params.PreActions, target); err != nil {
		return err
	}
	return l.copyAndVerify(ctx, gw, target, stagedURI, credsClause)
}

// runDestructiveOverwrite replaces the target in place when the staging
// table is disabled. There is a window with no data; enabling the staging
// table avoids it.
func (l *Loader) runDestructiveOverwrite(
	ctx context.Context, gw *Gateway, schema rowio.Schema, target, stagedURI, credsClause string,
) error {
	if err := gw.Exec(ctx, dropTableIfExists(target)); err != nil {
		return err
	}
	return l.runDirectLoad(ctx, gw, schema, target, stagedURI, credsClause)
}

// copyAndVerify issues the bulk load and then checks the warehouse's
// load-error log. Rows there mean the load failed even when the COPY call
// itself reported success; this must be checked explicitly, never inferred.
func (l *Loader) copyAndVerify(ctx context.Context, gw *Gateway, table, stagedURI, credsClause string) error {
	copyErr := gw.Exec(ctx, copyQuery(table, stagedURI, credsClause, l.params.ExtraCopyOptions))
	verifyErr := l.verifyLoad(ctx, gw, stagedURI)
	if copyErr != nil {
		if verifyErr != nil {
			log.Warn().Err(verifyErr).Msg("load-error log details for the failed bulk load")
		}
		return copyErr
	}
	return verifyErr
}

func (l *Loader) verifyLoad(ctx context.Context, gw *Gateway, stagedURI string) error {
	query, args := loadErrorsQuery(stagedURI)
	rows, err := gw.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if rows.Next() {
		verr := &LoadVerificationError{}
		if err := rows.Scan(&verr.Filename, &verr.LineNumber, &verr.ColumnName, &verr.Reason); err != nil {
			return fmt.Errorf("error scanning load-error log row: %w", err)
		}
		return verr
	}
	return rows.Err()
}

func (l *Loader) tableExists(ctx context.Context, gw *Gateway) (bool, error) {
	query, args := tableExistsQuery(l.params.Table)
	rows, err := gw.Query(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	exists := rows.Next()
	return exists, rows.Err()
}

// writeStagedFiles serializes the batch to the staging path. It runs before
// any warehouse statement, so a failure here touches no warehouse state.
func (l *Loader) writeStagedFiles(ctx context.Context, schema rowio.Schema, rows [][]any, destPath string) error {
	subStore := l.store.SubStorage(destPath, true)
	writer := rowio.NewWriter(ctx, subStore, schema)
	for _, row := range rows {
		if err := writer.WriteRow(row); err != nil {
			writer.Abort()
			return &StagingIOError{Err: err}
		}
	}
	manifest, err := writer.Close()
	if err != nil {
		writer.Abort()
		return &StagingIOError{Err: err}
	}

	log.Debug().
		Int64("rows", manifest.Rows).
		Int("parts", len(manifest.Parts)).
		Str("path", destPath).
		Msg("row batch staged")
	return nil
}

// runActions executes configured pre/post action statements; %s expands to
// the table the action is scoped to.
func (l *Loader) runActions(ctx context.Context, gw *Gateway, actions []string, table string) error {
	for _, action := range actions {
		stmt := strings.ReplaceAll(action, "%s", table)
		if err := gw.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
