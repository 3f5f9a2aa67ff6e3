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
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/pgzip"
)

var errWriteAborted = errors.New("staged write aborted")

const defaultMaxRowsPerPart = 500_000

// Writer streams rows into gzip-compressed CSV part files under an object
// store prefix and records them in a manifest on Close. Parts are rotated
// every MaxRowsPerPart rows so downstream readers can decode in parallel.
type Writer struct {
	store  ObjectStore
	schema Schema

	MaxRowsPerPart int

	ctx       context.Context
	parts     []string
	totalRows int64
	partRows  int

	pipeWriter *io.PipeWriter
	gzWriter   *pgzip.Writer
	csvWriter  *csv.Writer
	uploadDone chan error
}

func NewWriter(ctx context.Context, store ObjectStore, schema Schema) *Writer {
	return &Writer{
		store:          store,
		schema:         schema,
		MaxRowsPerPart: defaultMaxRowsPerPart,
		ctx:            ctx,
	}
}

func (w *Writer) WriteRow(row []any) error {
	if len(row) != len(w.schema) {
		return fmt.Errorf("row has %d values, schema has %d columns", len(row), len(w.schema))
	}
	if w.csvWriter == nil {
		if err := w.openPart(); err != nil {
			return err
		}
	}

	record := make([]string, len(row))
	for idx, v := range row {
		if v == nil {
			record[idx] = NullMarker
			continue
		}
		text, err := FormatValue(w.schema[idx].Type, v)
		if err != nil {
			return fmt.Errorf("column %q: %w", w.schema[idx].Name, err)
		}
		record[idx] = text
	}
	if err := w.csvWriter.Write(record); err != nil {
		return fmt.Errorf("error writing csv record: %w", err)
	}

	w.partRows++
	w.totalRows++
	if w.partRows >= w.MaxRowsPerPart {
		return w.closePart()
	}
	return nil
}

// Close flushes the open part, uploads the manifest and returns it.
func (w *Writer) Close() (*Manifest, error) {
	if w.csvWriter != nil {
		if err := w.closePart(); err != nil {
			return nil, err
		}
	}
	manifest := &Manifest{
		Schema: w.schema,
		Parts:  w.parts,
		Rows:   w.totalRows,
	}
	if err := WriteManifest(w.ctx, w.store, manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Abort discards the open part and waits for its upload goroutine to
// return. Callers must invoke it when a WriteRow or Close fails mid-part;
// the upload otherwise blocks forever on the write end of the pipe. Safe
// to call when no part is open.
func (w *Writer) Abort() {
	if w.pipeWriter == nil {
		return
	}
	_ = w.pipeWriter.CloseWithError(errWriteAborted)
	// With the pipe closed the flush fails fast; this only stops the
	// compressor's worker goroutines.
	_ = w.gzWriter.Close()
	<-w.uploadDone

	w.csvWriter = nil
	w.gzWriter = nil
	w.pipeWriter = nil
}

func (w *Writer) openPart() error {
	name := fmt.Sprintf("part-%04d.csv.gz", len(w.parts))

	pr, pw := io.Pipe()
	w.uploadDone = make(chan error, 1)
	go func() {
		err := w.store.PutObject(w.ctx, name, pr)
		// Unblock the producer if the upload dies mid-part.
		_ = pr.CloseWithError(err)
		w.uploadDone <- err
	}()

	w.pipeWriter = pw
	w.gzWriter = pgzip.NewWriter(pw)
	w.csvWriter = csv.NewWriter(w.gzWriter)
	w.parts = append(w.parts, name)
	w.partRows = 0
	return nil
}

func (w *Writer) closePart() error {
	w.csvWriter.Flush()
	flushErr := w.csvWriter.Error()
	gzErr := w.gzWriter.Close()
	pipeErr := w.pipeWriter.Close()
	uploadErr := <-w.uploadDone

	w.csvWriter = nil
	w.gzWriter = nil
	w.pipeWriter = nil

	for _, err := range []error{flushErr, gzErr, pipeErr, uploadErr} {
		if err != nil {
			return fmt.Errorf("error finalizing part: %w", err)
		}
	}
	return nil
}
