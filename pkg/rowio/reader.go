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

package rowio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/klauspost/pgzip"
)

// Reader decodes one part file. Parts carry no ordering guarantees relative
// to each other, so independent readers may run concurrently.
type Reader struct {
	schema    Schema
	source    io.ReadCloser
	gzReader  *pgzip.Reader
	csvReader *csv.Reader
}

// OpenPart opens the named part file from the store.
func OpenPart(ctx context.Context, store ObjectStore, schema Schema, part string) (*Reader, error) {
	rc, err := store.GetObject(ctx, part)
	if err != nil {
		return nil, fmt.Errorf("error opening part %q: %w", part, err)
	}
	r, err := NewReader(schema, rc)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("error decoding part %q: %w", part, err)
	}
	return r, nil
}

func NewReader(schema Schema, source io.ReadCloser) (*Reader, error) {
	gz, err := pgzip.NewReader(source)
	if err != nil {
		return nil, fmt.Errorf("error opening gzip stream: %w", err)
	}
	cr := csv.NewReader(gz)
	cr.FieldsPerRecord = len(schema)
	return &Reader{
		schema:    schema,
		source:    source,
		gzReader:  gz,
		csvReader: cr,
	}, nil
}

// Read returns the next row or io.EOF once the part is exhausted.
func (r *Reader) Read() ([]any, error) {
	record, err := r.csvReader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("error reading csv record: %w", err)
	}

	row := make([]any, len(record))
	for idx, text := range record {
		if text == NullMarker {
			row[idx] = nil
			continue
		}
		v, err := ParseValue(r.schema[idx].Type, text)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", r.schema[idx].Name, err)
		}
		row[idx] = v
	}
	return row, nil
}

func (r *Reader) Close() error {
	gzErr := r.gzReader.Close()
	srcErr := r.source.Close()
	if gzErr != nil {
		return gzErr
	}
	return srcErr
}
