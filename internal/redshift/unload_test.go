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
	"sort"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbridgeio/redbridge/pkg/rowio"
)

func unloadTestSchema() rowio.Schema {
	return rowio.Schema{
		{Name: "id", Type: rowio.TypeInt32},
		{Name: "name", Type: rowio.TypeString, Nullable: true},
	}
}

// stageTestParts serializes rows into the store the way the warehouse would:
// gzip-compressed CSV parts plus metadata objects that scans must skip.
func stageTestParts(t *testing.T, store *memStorage, schema rowio.Schema, rows [][]any) {
	t.Helper()
	writer := rowio.NewWriter(context.Background(), store, schema)
	for _, row := range rows {
		require.NoError(t, writer.WriteRow(row))
	}
	_, err := writer.Close()
	require.NoError(t, err)
}

func TestUnload(t *testing.T) {
	factory, mock := newMockDriver(t)
	store := newMemStorage()
	params := testParams(t, nil)
	schema := unloadTestSchema()

	staged := [][]any{
		{int32(1), "alice"},
		{int32(2), nil},
		{int32(3), "bob"},
	}
	stageTestParts(t, store, schema, staged)

	mock.ExpectExec(
		`UNLOAD \('SELECT \* FROM test_table'\) ` +
			`TO 's3://staging-bucket/tmp/stage-[0-9a-f]+/' ` +
			`WITH CREDENTIALS 'aws_iam_role=arn:aws:iam::123:role/loader' ` +
			`FORMAT AS CSV NULL AS '@NULL@' GZIP ALLOWOVERWRITE`,
	).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	rows, err := NewUnloader(params, store, factory).
		Unload(context.Background(), schema, nil, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// The manifest is metadata, not a part.
	assert.Equal(t, []string{"part-0000.csv.gz"}, rows.Partitions())
	assert.Equal(t, schema, rows.Schema())

	collected, err := rows.Collect(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, collected, 3)
	sort.Slice(collected, func(i, j int) bool {
		return collected[i][0].(int32) < collected[j][0].(int32)
	})
	assert.Equal(t, staged, collected)
}

func TestUnload_ProjectionAndFilters(t *testing.T) {
	factory, mock := newMockDriver(t)
	store := newMemStorage()
	params := testParams(t, nil)
	schema := unloadTestSchema()

	stageTestParts(t, store, rowio.Schema{schema[1]}, [][]any{{"alice"}})

	// The unsupported filter is dropped from the generated statement; the
	// supported one is pushed down.
	mock.ExpectExec(
		`UNLOAD \('SELECT "name" FROM test_table WHERE "id" > 1'\) TO .+`,
	).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	filters := []Filter{
		GreaterThan{Column: "id", Value: 1},
		In{Column: "name"},
	}
	rows, err := NewUnloader(params, store, factory).
		Unload(context.Background(), schema, []string{"name"}, filters)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, rows.Schema(), 1)
	assert.Equal(t, "name", rows.Schema()[0].Name)
}

func TestUnload_UnknownProjectedColumn(t *testing.T) {
	params := testParams(t, nil)
	_, err := NewUnloader(params, newMemStorage(), nil).
		Unload(context.Background(), unloadTestSchema(), []string{"nope"}, nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestUnload_MissingCredentials(t *testing.T) {
	params := testParams(t, map[string]string{"aws_iam_role": ""})
	_, err := NewUnloader(params, newMemStorage(), nil).
		Unload(context.Background(), unloadTestSchema(), nil, nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestStagedRows_OpenPartition(t *testing.T) {
	store := newMemStorage()
	schema := unloadTestSchema()
	stageTestParts(t, store, schema, [][]any{{int32(1), "alice"}})

	rows := &StagedRows{schema: schema, store: store, parts: []string{"part-0000.csv.gz"}}
	reader, err := rows.OpenPartition(context.Background(), "part-0000.csv.gz")
	require.NoError(t, err)
	defer reader.Close()

	row, err := reader.Read()
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1), "alice"}, row)
}
