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

	"github.com/rs/zerolog/log"

	"github.com/redbridgeio/redbridge/internal/storages"
	"github.com/redbridgeio/redbridge/pkg/rowio"
)

// Capability is the static capability set a relation declares to the
// engine, instead of the engine probing dynamically.
type Capability uint8

const (
	CapPrunedFilteredScan Capability = 1 << iota
	CapInsert
)

func (c Capability) Has(cap Capability) bool {
	return c&cap != 0
}

// PrunedFilteredScanner is the scan capability: a column-pruning request
// plus a filter list in, a lazy row source out.
type PrunedFilteredScanner interface {
	BuildScan(ctx context.Context, columns []string, filters []Filter) (*StagedRows, error)
}

// Inserter is the write capability.
type Inserter interface {
	Insert(ctx context.Context, batch *RowBatch, overwrite bool) error
}

// Relation binds a warehouse table or query to the engine's scan/insert
// contract. The driver factory and storage are constructor-injected so the
// whole relation can run against fakes.
type Relation struct {
	params *Parameters
	store  storages.Storager
	driver DriverFactory
	schema rowio.Schema
}

// NewRelation builds a relation. schema may be nil; it is then resolved
// from the warehouse on first use.
func NewRelation(params *Parameters, store storages.Storager, driver DriverFactory, schema rowio.Schema) *Relation {
	return &Relation{
		params: params,
		store:  store,
		driver: driver,
		schema: schema,
	}
}

// Capabilities reports what this relation can do: every relation scans,
// only table-backed relations insert.
func (r *Relation) Capabilities() Capability {
	caps := CapPrunedFilteredScan
	if r.params.Table != "" {
		caps |= CapInsert
	}
	return caps
}

// Schema returns the relation's logical schema, resolving it from the
// warehouse with a zero-row probe when it was not provided up front.
func (r *Relation) Schema(ctx context.Context) (rowio.Schema, error) {
	if r.schema != nil {
		return r.schema, nil
	}

	gw, err := OpenGateway(ctx, r.params.URL, r.driver, r.params.QueryTimeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := gw.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing warehouse connection after schema resolution")
		}
	}()

	probe := fmt.Sprintf("SELECT * FROM %s LIMIT 0", r.params.SourceExpr())
	rows, err := gw.Query(ctx, probe)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("error reading column metadata: %w", err)
	}
	schema, err := schemaFromColumnTypes(columnTypes)
	if err != nil {
		return nil, err
	}
	r.schema = schema
	return schema, nil
}

// BuildScan implements PrunedFilteredScanner.
func (r *Relation) BuildScan(ctx context.Context, columns []string, filters []Filter) (*StagedRows, error) {
	schema, err := r.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return NewUnloader(r.params, r.store, r.driver).Unload(ctx, schema, columns, filters)
}

// Insert implements Inserter. overwrite selects replace semantics, otherwise
// the batch is appended.
func (r *Relation) Insert(ctx context.Context, batch *RowBatch, overwrite bool) error {
	if !r.Capabilities().Has(CapInsert) {
		return newConfigError("query-backed relations do not support inserts")
	}
	mode := SaveModeAppend
	if overwrite {
		mode = SaveModeOverwrite
	}
	return NewLoader(r.params, r.store, r.driver).Load(ctx, batch, mode)
}
