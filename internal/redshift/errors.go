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
)

// ConfigError reports invalid or missing parameters. It is always raised
// before any warehouse or storage I/O happens and is never retried.
type ConfigError struct {
	msg string
}

func newConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.msg
}

// SchemaMappingError reports a logical type with no warehouse mapping. It is
// raised before any DDL is generated.
type SchemaMappingError struct {
	TypeName string
}

func (e *SchemaMappingError) Error() string {
	return fmt.Sprintf("no warehouse type mapping for logical type %q", e.TypeName)
}

// StatementError wraps a failed warehouse statement. It is propagated to the
// caller after cleanup runs.
type StatementError struct {
	SQL string
	Err error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("warehouse statement failed: %v (sql: %s)", e.Err, truncateSQL(e.SQL))
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// LoadVerificationError means the warehouse's load-error log contains rows
// for this load even though the bulk-load statement itself reported success.
// It is handled exactly like a statement failure.
type LoadVerificationError struct {
	Filename   string
	LineNumber int64
	ColumnName string
	Reason     string
}

func (e *LoadVerificationError) Error() string {
	return fmt.Sprintf(
		"bulk load reported success but the load-error log has entries: file=%s line=%d column=%s reason=%s",
		e.Filename, e.LineNumber, strings.TrimSpace(e.ColumnName), strings.TrimSpace(e.Reason),
	)
}

// StagingIOError reports a failure writing the row batch to the staging
// location. It always happens before any warehouse statement runs.
type StagingIOError struct {
	Err error
}

func (e *StagingIOError) Error() string {
	return fmt.Sprintf("error writing staged files: %v", e.Err)
}

func (e *StagingIOError) Unwrap() error {
	return e.Err
}

func truncateSQL(sql string) string {
	const limit = 256
	if len(sql) <= limit {
		return sql
	}
	return sql[:limit] + "..."
}
