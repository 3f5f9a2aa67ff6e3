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

	"github.com/huandu/go-sqlbuilder"

	"github.com/redbridgeio/redbridge/pkg/rowio"
)

// Pure SQL text builders. Table names come from configuration and may be
// schema-qualified, so they are rendered as-is; column identifiers are
// always double-quoted; string literals escape quotes by doubling them.

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// unloadQuery wraps a projected, filtered SELECT in an UNLOAD statement
// writing staged files to the destination URI. The inner query is itself a
// string literal, so its quotes are doubled once more when embedding.
func unloadQuery(sourceExpr string, columns []string, whereClause, credsClause, destURI string) string {
	colList := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for idx, col := range columns {
			quoted[idx] = quoteIdent(col)
		}
		colList = strings.Join(quoted, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s", colList, sourceExpr)
	if whereClause != "" {
		query += " WHERE " + whereClause
	}

	return fmt.Sprintf(
		"UNLOAD ('%s') TO '%s' WITH CREDENTIALS '%s' %s ALLOWOVERWRITE",
		escapeStringLiteral(query), fixS3URI(destURI), credsClause, formatOptions(),
	)
}

// createTableSQL renders the staging or target table DDL. VARCHAR widths
// come from the per-column max-length metadata; unbounded strings get TEXT.
func createTableSQL(schema rowio.Schema, table, distStyle, distKey, sortKeySpec string) (string, error) {
	defs, err := columnDefinitions(schema)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (%s)", table, defs)
	if distStyle != "" {
		fmt.Fprintf(&b, " DISTSTYLE %s", distStyle)
	}
	if distKey != "" {
		fmt.Fprintf(&b, " DISTKEY (%s)", quoteIdent(distKey))
	}
	if sortKeySpec != "" {
		fmt.Fprintf(&b, " %s", sortKeySpec)
	}
	return b.String(), nil
}

// copyQuery renders the bulk-load statement for a staged file set. The
// NULL-marker and format options mirror what the staged-file writer emits.
func copyQuery(table, sourceURI, credsClause, extraOptions string) string {
	q := fmt.Sprintf(
		"COPY %s FROM '%s' WITH CREDENTIALS '%s' %s DATEFORMAT 'auto' TIMEFORMAT 'auto'",
		table, fixS3URI(sourceURI), credsClause, formatOptions(),
	)
	if extraOptions != "" {
		q += " " + extraOptions
	}
	return q
}

func dropTableIfExists(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}

// swapStatements is the atomic replace: the target is renamed aside, the
// staging table takes its name and the backup is dropped. All three must
// commit or none.
func swapStatements(target, staging, backupSuffix string) []string {
	backupBase := fmt.Sprintf("%s_backup_%s", baseTableName(target), backupSuffix)
	return []string{
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", target, backupBase),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", staging, baseTableName(target)),
		fmt.Sprintf("DROP TABLE %s", qualifyLike(target, backupBase)),
	}
}

// transactionSQL renders the swap as one multi-statement block for drivers
// that can execute it in a single call.
func transactionSQL(target, staging, backupSuffix string) string {
	return "BEGIN; " + strings.Join(swapStatements(target, staging, backupSuffix), "; ") + "; END;"
}

func renameStagingToTarget(target, staging string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", staging, baseTableName(target))
}

func insertFromStaging(target, staging string) string {
	return fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", target, staging)
}

// tableExistsQuery probes the catalog for the target table. Unquoted
// identifiers fold to lowercase in the catalog; quoted ones are stored
// verbatim, so the quotes are stripped and the case kept.
func tableExistsQuery(table string) (string, []any) {
	schemaName, tableName := splitQualifiedName(table)
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("1").From("information_schema.tables")
	conds := []string{sb.Equal("table_name", catalogName(tableName))}
	if schemaName != "" {
		conds = append(conds, sb.Equal("table_schema", catalogName(schemaName)))
	}
	sb.Where(conds...).Limit(1)
	return sb.Build()
}

// catalogName maps an identifier as written in configuration to the form
// the catalog stores it in.
func catalogName(ident string) string {
	if len(ident) >= 2 && strings.HasPrefix(ident, `"`) && strings.HasSuffix(ident, `"`) {
		return strings.ReplaceAll(ident[1:len(ident)-1], `""`, `"`)
	}
	return strings.ToLower(ident)
}

// loadErrorsQuery scans the warehouse's load-error log for entries produced
// by this load, identified by its unique staged-path prefix.
func loadErrorsQuery(stagedURI string) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("filename", "line_number", "colname", "err_reason").
		From("stl_load_errors").
		Where(sb.Like("filename", fixS3URI(stagedURI)+"%")).
		OrderBy("starttime").Desc().
		Limit(1)
	return sb.Build()
}

func formatOptions() string {
	return fmt.Sprintf("FORMAT AS CSV NULL AS '%s' GZIP", rowio.NullMarker)
}

// fixS3URI rewrites the engine-side streaming scheme to the plain s3 scheme
// the warehouse expects inside UNLOAD/COPY statements.
func fixS3URI(uri string) string {
	for _, scheme := range []string{"s3a://", "s3n://"} {
		if strings.HasPrefix(uri, scheme) {
			return "s3://" + strings.TrimPrefix(uri, scheme)
		}
	}
	return uri
}

// baseTableName strips the schema qualifier; RENAME TO takes a bare name.
func baseTableName(table string) string {
	_, name := splitQualifiedName(table)
	return name
}

// qualifyLike places name in the same schema as the reference table.
func qualifyLike(reference, name string) string {
	schemaName, _ := splitQualifiedName(reference)
	if schemaName == "" {
		return name
	}
	return schemaName + "." + name
}

func splitQualifiedName(table string) (schemaName, tableName string) {
	if idx := strings.LastIndex(table, "."); idx >= 0 {
		return table[:idx], table[idx+1:]
	}
	return "", table
}
