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
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbridgeio/redbridge/pkg/rowio"
)

const (
	stagingTablePattern = `test_table_staging_[0-9a-f]+`
	stagedURIPattern    = `s3://staging-bucket/tmp/stage-[0-9a-f]+/`
)

var (
	tableExistsSQL = regexp.QuoteMeta(
		"SELECT 1 FROM information_schema.tables WHERE table_name = $1 LIMIT 1",
	)
	loadErrorsSQL = regexp.QuoteMeta(
		"SELECT filename, line_number, colname, err_reason FROM stl_load_errors " +
			"WHERE filename LIKE $1 ORDER BY starttime DESC LIMIT 1",
	)
)

func testBatch() *RowBatch {
	return &RowBatch{
		Schema: rowio.Schema{
			{Name: "id", Type: rowio.TypeInt32},
			{Name: "name", Type: rowio.TypeString},
		},
		Rows: [][]any{
			{int32(1), "alice"},
			{int32(2), nil},
		},
	}
}

func emptyLoadErrorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"filename", "line_number", "colname", "err_reason"})
}

func existsRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"?column?"}).AddRow(1)
}

func expectStagedCopy(mock sqlmock.Sqlmock, table string) {
	mock.ExpectExec(`COPY ` + table + ` FROM '` + stagedURIPattern + `'.+`).
		WillReturnResult(sqlmock.NewResult(0, 2))
}

func TestLoad_ReplaceWithStagingTable(t *testing.T) {
	factory, mock := newMockDriver(t)
	store := newMemStorage()
	params := testParams(t, nil)

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").WillReturnRows(existsRow())
	mock.ExpectExec(`DROP TABLE IF EXISTS ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + stagingTablePattern +
		` \("id" INTEGER, "name" TEXT\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectStagedCopy(mock, stagingTablePattern)
	mock.ExpectQuery(loadErrorsSQL).WillReturnRows(emptyLoadErrorRows())
	mock.ExpectBegin()
	mock.ExpectExec(`ALTER TABLE test_table RENAME TO test_table_backup_[0-9a-f]+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE ` + stagingTablePattern + ` RENAME TO test_table`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE test_table_backup_[0-9a-f]+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`DROP TABLE IF EXISTS ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	err := NewLoader(params, store, factory).Load(context.Background(), testBatch(), SaveModeOverwrite)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// The batch was serialized before any statement ran.
	assert.Contains(t, store.objects, "part-0000.csv.gz")
	assert.Contains(t, store.objects, "_manifest.json")
}

func TestLoad_ReplaceRenamesWhenTargetAbsent(t *testing.T) {
	factory, mock := newMockDriver(t)
	params := testParams(t, nil)

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectExec(`DROP TABLE IF EXISTS ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + stagingTablePattern + `.+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectStagedCopy(mock, stagingTablePattern)
	mock.ExpectQuery(loadErrorsSQL).WillReturnRows(emptyLoadErrorRows())
	// No swap transaction: the staging table just takes the target's name.
	mock.ExpectExec(`ALTER TABLE ` + stagingTablePattern + ` RENAME TO test_table`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	err := NewLoader(params, newMemStorage(), factory).
		Load(context.Background(), testBatch(), SaveModeOverwrite)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_CopyFailureAbortsBeforeSwap(t *testing.T) {
	factory, mock := newMockDriver(t)
	params := testParams(t, nil)
	cause := errors.New("S3ServiceException: access denied")

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").WillReturnRows(existsRow())
	mock.ExpectExec(`DROP TABLE IF EXISTS ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + stagingTablePattern + `.+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`COPY ` + stagingTablePattern + ` FROM .+`).WillReturnError(cause)
	// The load-error log is still consulted for diagnostics.
	mock.ExpectQuery(loadErrorsSQL).WillReturnRows(
		emptyLoadErrorRows().AddRow("s3://staging-bucket/tmp/stage-x/part-0000.csv.gz", 3, "id", "Invalid digit"),
	)
	mock.ExpectExec(`DROP TABLE IF EXISTS ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	err := NewLoader(params, newMemStorage(), factory).
		Load(context.Background(), testBatch(), SaveModeOverwrite)
	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.ErrorIs(t, err, cause)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_VerificationFailure(t *testing.T) {
	factory, mock := newMockDriver(t)
	params := testParams(t, nil)

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").WillReturnRows(existsRow())
	mock.ExpectExec(`DROP TABLE IF EXISTS ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + stagingTablePattern + `.+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectStagedCopy(mock, stagingTablePattern)
	// COPY reported success, but the load-error log disagrees.
	mock.ExpectQuery(loadErrorsSQL).WillReturnRows(
		emptyLoadErrorRows().AddRow("s3://staging-bucket/tmp/stage-x/part-0000.csv.gz", 7, "name", "String length exceeds DDL length"),
	)
	mock.ExpectExec(`DROP TABLE IF EXISTS ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	err := NewLoader(params, newMemStorage(), factory).
		Load(context.Background(), testBatch(), SaveModeOverwrite)
	var verr *LoadVerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, int64(7), verr.LineNumber)
	assert.Equal(t, "name", verr.ColumnName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_AppendLoadsDirectly(t *testing.T) {
	factory, mock := newMockDriver(t)
	params := testParams(t, nil)

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").WillReturnRows(existsRow())
	// Appends go straight into the target: no staging table, no swap.
	mock.ExpectExec(regexp.QuoteMeta(
		`CREATE TABLE IF NOT EXISTS test_table ("id" INTEGER, "name" TEXT)`,
	)).WillReturnResult(sqlmock.NewResult(0, 0))
	expectStagedCopy(mock, "test_table")
	mock.ExpectQuery(loadErrorsSQL).WillReturnRows(emptyLoadErrorRows())
	mock.ExpectClose()

	err := NewLoader(params, newMemStorage(), factory).
		Load(context.Background(), testBatch(), SaveModeAppend)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_AppendWithStagingTableMerges(t *testing.T) {
	factory, mock := newMockDriver(t)
	params := testParams(t, map[string]string{"usestagingtable": "true"})

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").WillReturnRows(existsRow())
	mock.ExpectExec(`DROP TABLE IF EXISTS ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + stagingTablePattern + `.+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectStagedCopy(mock, stagingTablePattern)
	mock.ExpectQuery(loadErrorsSQL).WillReturnRows(emptyLoadErrorRows())
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO test_table SELECT \* FROM ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	mock.ExpectExec(`DROP TABLE IF EXISTS ` + stagingTablePattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	err := NewLoader(params, newMemStorage(), factory).
		Load(context.Background(), testBatch(), SaveModeAppend)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_DestructiveOverwrite(t *testing.T) {
	factory, mock := newMockDriver(t)
	params := testParams(t, map[string]string{"usestagingtable": "false"})

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").WillReturnRows(existsRow())
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS test_table")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(
		`CREATE TABLE IF NOT EXISTS test_table ("id" INTEGER, "name" TEXT)`,
	)).WillReturnResult(sqlmock.NewResult(0, 0))
	expectStagedCopy(mock, "test_table")
	mock.ExpectQuery(loadErrorsSQL).WillReturnRows(emptyLoadErrorRows())
	mock.ExpectClose()

	err := NewLoader(params, newMemStorage(), factory).
		Load(context.Background(), testBatch(), SaveModeOverwrite)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_ErrorIfExists(t *testing.T) {
	factory, mock := newMockDriver(t)
	store := newMemStorage()
	params := testParams(t, nil)

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").WillReturnRows(existsRow())
	mock.ExpectClose()

	err := NewLoader(params, store, factory).
		Load(context.Background(), testBatch(), SaveModeErrorIfExists)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "already exists")
	// The batch was never staged.
	assert.Empty(t, store.objects)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_StagingWriteFailureSkipsWarehouse(t *testing.T) {
	factory, mock := newMockDriver(t)
	store := newMemStorage()
	params := testParams(t, nil)

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectClose()

	batch := &RowBatch{
		Schema: rowio.Schema{{Name: "amount", Type: rowio.TypeDecimal}},
		Rows:   [][]any{{"10.50"}, {"not-a-number"}},
	}
	err := NewLoader(params, store, factory).
		Load(context.Background(), batch, SaveModeAppend)
	var ioErr *StagingIOError
	require.ErrorAs(t, err, &ioErr)
	// No statement beyond the existence probe, and no manifest was written.
	assert.NotContains(t, store.objects, "_manifest.json")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_IgnoreExistingTable(t *testing.T) {
	factory, mock := newMockDriver(t)
	store := newMemStorage()
	params := testParams(t, nil)

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").WillReturnRows(existsRow())
	mock.ExpectClose()

	err := NewLoader(params, store, factory).
		Load(context.Background(), testBatch(), SaveModeIgnore)
	require.NoError(t, err)
	assert.Empty(t, store.objects)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_PrePostActions(t *testing.T) {
	factory, mock := newMockDriver(t)
	params := testParams(t, map[string]string{
		"preactions":  "GRANT SELECT ON %s TO analyst",
		"postactions": "VACUUM %s",
	})

	mock.ExpectQuery(tableExistsSQL).WithArgs("test_table").WillReturnRows(existsRow())
	mock.ExpectExec(regexp.QuoteMeta(
		`CREATE TABLE IF NOT EXISTS test_table ("id" INTEGER, "name" TEXT)`,
	)).WillReturnResult(sqlmock.NewResult(0, 0))
	// Pre-actions run against the table being loaded, before the bulk load.
	mock.ExpectExec(regexp.QuoteMeta("GRANT SELECT ON test_table TO analyst")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectStagedCopy(mock, "test_table")
	mock.ExpectQuery(loadErrorsSQL).WillReturnRows(emptyLoadErrorRows())
	mock.ExpectExec(regexp.QuoteMeta("VACUUM test_table")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	err := NewLoader(params, newMemStorage(), factory).
		Load(context.Background(), testBatch(), SaveModeAppend)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_QueryBackedRelationIsReadOnly(t *testing.T) {
	params := testParams(t, map[string]string{"dbtable": "", "query": "SELECT 1"})
	err := NewLoader(params, newMemStorage(), nil).
		Load(context.Background(), testBatch(), SaveModeAppend)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoad_RejectsAmbiguousSchema(t *testing.T) {
	params := testParams(t, nil)
	batch := &RowBatch{
		Schema: rowio.Schema{
			{Name: "a", Type: rowio.TypeInt32},
			{Name: "A", Type: rowio.TypeInt32},
		},
	}
	err := NewLoader(params, newMemStorage(), nil).
		Load(context.Background(), batch, SaveModeAppend)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "ambiguous")
}
