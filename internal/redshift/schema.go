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
	"database/sql"
	"strings"

	"github.com/redbridgeio/redbridge/pkg/rowio"
)

// validateSchema rejects schemas where two column names normalize to the
// same lowercase form. The warehouse folds unquoted identifiers to
// lowercase, so such schemas cannot be represented without silent collisions.
func validateSchema(schema rowio.Schema) error {
	seen := make(map[string]string, len(schema))
	for _, col := range schema {
		lower := strings.ToLower(col.Name)
		if prev, ok := seen[lower]; ok {
			return newConfigError(
				"ambiguous column names: %q and %q normalize to the same lowercase name", prev, col.Name,
			)
		}
		seen[lower] = col.Name
	}
	return nil
}

// applyMaxLengths overlays the per-column maxlength overrides onto the write
// schema. Every override must name a column of the schema.
func applyMaxLengths(schema rowio.Schema, overrides map[string]int) (rowio.Schema, error) {
	if len(overrides) == 0 {
		return schema, nil
	}
	out := make(rowio.Schema, len(schema))
	copy(out, schema)
	for name, length := range overrides {
		applied := false
		for idx := range out {
			if strings.EqualFold(out[idx].Name, name) {
				out[idx].MaxLength = length
				applied = true
				break
			}
		}
		if !applied {
			return nil, newConfigError("maxlength override references unknown column %q", name)
		}
	}
	return out, nil
}

// schemaFromColumnTypes reconstructs the logical schema from a row cursor's
// column metadata. Used to resolve the schema of query-backed relations.
func schemaFromColumnTypes(columnTypes []*sql.ColumnType) (rowio.Schema, error) {
	schema := make(rowio.Schema, 0, len(columnTypes))
	for _, ct := range columnTypes {
		logical, err := logicalTypeOf(ct.DatabaseTypeName())
		if err != nil {
			return nil, err
		}
		col := rowio.Column{
			Name: ct.Name(),
			Type: logical,
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		} else {
			col.Nullable = true
		}
		if length, ok := ct.Length(); ok && logical == rowio.TypeString {
			col.MaxLength = int(length)
		}
		if precision, scale, ok := ct.DecimalSize(); ok && logical == rowio.TypeDecimal {
			col.Precision = int(precision)
			col.Scale = int(scale)
		}
		schema = append(schema, col)
	}
	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	return schema, nil
}
