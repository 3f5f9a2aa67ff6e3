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
	"fmt"
	"strings"

	"github.com/redbridgeio/redbridge/pkg/rowio"
)

const (
	defaultDecimalPrecision = 18
	defaultDecimalScale     = 0
)

// physicalType maps a logical column to its warehouse column type. The
// warehouse has no single-byte integer, so int8 is widened to SMALLINT;
// bounded strings become VARCHAR(n), unbounded ones TEXT.
func physicalType(col rowio.Column) (string, error) {
	switch col.Type {
	case rowio.TypeBoolean:
		return "BOOLEAN", nil
	case rowio.TypeInt8, rowio.TypeInt16:
		return "SMALLINT", nil
	case rowio.TypeInt32:
		return "INTEGER", nil
	case rowio.TypeInt64:
		return "BIGINT", nil
	case rowio.TypeFloat32:
		return "REAL", nil
	case rowio.TypeFloat64:
		return "DOUBLE PRECISION", nil
	case rowio.TypeDecimal:
		precision, scale := col.Precision, col.Scale
		if precision == 0 {
			precision, scale = defaultDecimalPrecision, defaultDecimalScale
		}
		return fmt.Sprintf("DECIMAL(%d,%d)", precision, scale), nil
	case rowio.TypeDate:
		return "DATE", nil
	case rowio.TypeTimestamp:
		return "TIMESTAMP", nil
	case rowio.TypeString:
		if col.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.MaxLength), nil
		}
		return "TEXT", nil
	}
	return "", &SchemaMappingError{TypeName: col.Type.String()}
}

// logicalTypeOf is the reverse mapping, from the driver-reported database
// type name back to the logical type.
func logicalTypeOf(databaseTypeName string) (rowio.LogicalType, error) {
	switch strings.ToUpper(databaseTypeName) {
	case "BOOL", "BOOLEAN":
		return rowio.TypeBoolean, nil
	case "INT2", "SMALLINT":
		return rowio.TypeInt16, nil
	case "INT4", "INTEGER", "INT":
		return rowio.TypeInt32, nil
	case "INT8", "BIGINT":
		return rowio.TypeInt64, nil
	case "FLOAT4", "REAL":
		return rowio.TypeFloat32, nil
	case "FLOAT8", "DOUBLE PRECISION":
		return rowio.TypeFloat64, nil
	case "NUMERIC", "DECIMAL":
		return rowio.TypeDecimal, nil
	case "DATE":
		return rowio.TypeDate, nil
	case "TIMESTAMP", "TIMESTAMPTZ":
		return rowio.TypeTimestamp, nil
	case "VARCHAR", "TEXT", "BPCHAR", "CHAR", "NAME":
		return rowio.TypeString, nil
	}
	return rowio.TypeUnknown, &SchemaMappingError{TypeName: databaseTypeName}
}

// columnDefinitions renders the column list of a CREATE TABLE statement.
// The ambiguity check runs first so no DDL is generated for a schema that
// cannot round-trip through the warehouse.
func columnDefinitions(schema rowio.Schema) (string, error) {
	if err := validateSchema(schema); err != nil {
		return "", err
	}
	defs := make([]string, 0, len(schema))
	for _, col := range schema {
		physical, err := physicalType(col)
		if err != nil {
			return "", err
		}
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(col.Name), physical))
	}
	return strings.Join(defs, ", "), nil
}
