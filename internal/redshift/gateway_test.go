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
)

func TestGateway_Exec(t *testing.T) {
	factory, mock := newMockDriver(t)
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS test_table")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	gw, err := OpenGateway(context.Background(), "postgres://x", factory, 0)
	require.NoError(t, err)

	require.NoError(t, gw.Exec(context.Background(), "DROP TABLE IF EXISTS test_table"))
	require.NoError(t, gw.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_ExecWrapsFailures(t *testing.T) {
	factory, mock := newMockDriver(t)
	cause := errors.New("permission denied")
	mock.ExpectExec("COPY test_table FROM .+").WillReturnError(cause)
	mock.ExpectClose()

	gw, err := OpenGateway(context.Background(), "postgres://x", factory, 0)
	require.NoError(t, err)
	defer gw.Close()

	err = gw.Exec(context.Background(), "COPY test_table FROM 's3://bucket/x/'")
	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Contains(t, stmtErr.SQL, "COPY test_table")
	assert.ErrorIs(t, err, cause)
}

func TestGateway_ExecInTx(t *testing.T) {
	factory, mock := newMockDriver(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE a RENAME TO b")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE b")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectClose()

	gw, err := OpenGateway(context.Background(), "postgres://x", factory, 0)
	require.NoError(t, err)
	defer gw.Close()

	require.NoError(t, gw.ExecInTx(context.Background(), []string{
		"ALTER TABLE a RENAME TO b",
		"DROP TABLE b",
	}))
	require.NoError(t, gw.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_ExecInTxRollsBackOnFailure(t *testing.T) {
	factory, mock := newMockDriver(t)
	cause := errors.New("table does not exist")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE a RENAME TO b")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE b")).WillReturnError(cause)
	mock.ExpectRollback()
	mock.ExpectClose()

	gw, err := OpenGateway(context.Background(), "postgres://x", factory, 0)
	require.NoError(t, err)
	defer gw.Close()

	err = gw.ExecInTx(context.Background(), []string{
		"ALTER TABLE a RENAME TO b",
		"DROP TABLE b",
	})
	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Equal(t, "DROP TABLE b", stmtErr.SQL)
	require.NoError(t, gw.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_CloseIsIdempotent(t *testing.T) {
	factory, mock := newMockDriver(t)
	mock.ExpectClose()

	gw, err := OpenGateway(context.Background(), "postgres://x", factory, 0)
	require.NoError(t, err)

	require.NoError(t, gw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
