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
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/redbridgeio/redbridge/internal/storages"
	"github.com/redbridgeio/redbridge/pkg/rowio"
)

// Unloader translates a logical scan into a warehouse-native unload: it
// exports the projected, filtered source into a fresh staging sub-path and
// hands back the staged files as a lazy row source.
type Unloader struct {
	params *Parameters
	store  storages.Storager
	driver DriverFactory
}

func NewUnloader(params *Parameters, store storages.Storager, driver DriverFactory) *Unloader {
	return &Unloader{params: params, store: store, driver: driver}
}

// Unload executes the generated UNLOAD statement and returns the staged row
// source. Filters the generator cannot express are dropped from pushdown;
// the engine re-applies every filter after reading, so the result is only
// ever a superset.
func (u *Unloader) Unload(
	ctx context.Context, schema rowio.Schema, columns []string, filters []Filter,
) (*StagedRows, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	projected, err := schema.Project(columns)
	if err != nil {
		return nil, newConfigError("%v", err)
	}

	credsClause, err := u.params.CredentialsClause()
	if err != nil {
		return nil, err
	}

	whereClause, pushed := renderFilters(filters)
	if dropped := len(filters) - len(pushed); dropped > 0 {
		log.Info().Int("dropped", dropped).Msg("some filters were not pushed down to the warehouse")
	}

	suffix := newStagingSuffix()
	destPath := stagingPath(suffix)
	destURI := joinURI(u.params.TempDir, destPath)

	query := unloadQuery(u.params.SourceExpr(), columns, whereClause, credsClause, destURI)

	gw, err := OpenGateway(ctx, u.params.URL, u.driver, u.params.QueryTimeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := gw.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing warehouse connection after unload")
		}
	}()

	if err := gw.Exec(ctx, query); err != nil {
		return nil, err
	}

	subStore := u.store.SubStorage(destPath, true)
	files, _, err := subStore.ListDir(ctx)
	if err != nil {
		return nil, &StagingIOError{Err: fmt.Errorf("error listing staged files: %w", err)}
	}

	parts := make([]string, 0, len(files))
	for _, file := range files {
		// Skip warehouse-written manifests and other metadata objects.
		if strings.HasPrefix(file, "_") || strings.HasSuffix(file, "manifest") {
			continue
		}
		parts = append(parts, file)
	}

	log.Info().
		Str("destination", destURI).
		Int("parts", len(parts)).
		Msg("unload finished")

	return &StagedRows{schema: projected, store: subStore, parts: parts}, nil
}

// StagedRows is a lazy, partitionable row source backed by staged files.
// Each part decodes independently; row order across parts is not guaranteed.
type StagedRows struct {
	schema rowio.Schema
	store  storages.Storager
	parts  []string
}

func (r *StagedRows) Schema() rowio.Schema {
	return r.schema
}

// Partitions lists the staged part files; one reader per part may run in
// parallel.
func (r *StagedRows) Partitions() []string {
	return r.parts
}

// OpenPartition opens an independent decoder for one part.
func (r *StagedRows) OpenPartition(ctx context.Context, part string) (*rowio.Reader, error) {
	return rowio.OpenPart(ctx, r.store, r.schema, part)
}

// Collect decodes every partition with the requested parallelism and
// returns all rows. Row order follows partition completion, not source
// order.
func (r *StagedRows) Collect(ctx context.Context, parallelism int) ([][]any, error) {
	if parallelism < 1 {
		parallelism = 1
	}

	var mx sync.Mutex
	var rows [][]any

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)
	for _, part := range r.parts {
		part := part
		eg.Go(func() error {
			reader, err := r.OpenPartition(egCtx, part)
			if err != nil {
				return err
			}
			defer reader.Close()

			for {
				row, err := reader.Read()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return fmt.Errorf("error decoding part %q: %w", part, err)
				}
				mx.Lock()
				rows = append(rows, row)
				mx.Unlock()
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
