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

// Package rowio implements the schema-carrying, row-oriented file format used
// for data staged between the warehouse and the compute engine. A staged file
// set is a group of gzip-compressed CSV part files plus a JSON manifest that
// carries the schema, so every part can be decoded independently.
package rowio

import (
	"fmt"
	"strings"
)

// LogicalType is the engine-side column type. The warehouse-side physical
// type is derived from it by the type mapper.
type LogicalType int

const (
	TypeUnknown LogicalType = iota
	TypeBoolean
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeDecimal
	TypeDate
	TypeTimestamp
	TypeString
)

var logicalTypeNames = map[LogicalType]string{
	TypeBoolean:   "boolean",
	TypeInt8:      "int8",
	TypeInt16:     "int16",
	TypeInt32:     "int32",
	TypeInt64:     "int64",
	TypeFloat32:   "float32",
	TypeFloat64:   "float64",
	TypeDecimal:   "decimal",
	TypeDate:      "date",
	TypeTimestamp: "timestamp",
	TypeString:    "string",
}

func (t LogicalType) String() string {
	if name, ok := logicalTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

func (t LogicalType) MarshalText() ([]byte, error) {
	name, ok := logicalTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown logical type %d", int(t))
	}
	return []byte(name), nil
}

func (t *LogicalType) UnmarshalText(data []byte) error {
	name := string(data)
	for lt, n := range logicalTypeNames {
		if n == name {
			*t = lt
			return nil
		}
	}
	return fmt.Errorf("unknown logical type name %q", name)
}

// Column describes one field of a staged row. MaxLength bounds string
// columns (0 means unbounded), Precision and Scale apply to decimals only.
type Column struct {
	Name      string      `json:"name"`
	Type      LogicalType `json:"type"`
	Nullable  bool        `json:"nullable"`
	MaxLength int         `json:"max_length,omitempty"`
	Precision int         `json:"precision,omitempty"`
	Scale     int         `json:"scale,omitempty"`
}

// Schema is an ordered sequence of columns.
type Schema []Column

func (s Schema) ColumnNames() []string {
	names := make([]string, len(s))
	for idx, col := range s {
		names[idx] = col.Name
	}
	return names
}

// Lookup finds a column by name, case-insensitively.
func (s Schema) Lookup(name string) (Column, bool) {
	for _, col := range s {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return Column{}, false
}

// Project returns the sub-schema for the requested column names, preserving
// the requested order. An empty projection returns the schema unchanged.
func (s Schema) Project(names []string) (Schema, error) {
	if len(names) == 0 {
		return s, nil
	}
	projected := make(Schema, 0, len(names))
	for _, name := range names {
		col, ok := s.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("projected column %q is not part of the schema", name)
		}
		projected = append(projected, col)
	}
	return projected, nil
}
