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

package directory

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/suite"
)

type storageSuite struct {
	suite.Suite
	tmpDir  string
	storage *Storage
}

func (s *storageSuite) SetupTest() {
	s.tmpDir = s.T().TempDir()
	st, err := NewStorage(&Config{Path: s.tmpDir})
	s.Require().NoError(err)
	s.storage = st
}

func (s *storageSuite) TestPutGetObject() {
	ctx := context.Background()
	err := s.storage.PutObject(ctx, "stage-abc/part-0000.csv.gz", bytes.NewReader([]byte("data")))
	s.Require().NoError(err)

	rc, err := s.storage.GetObject(ctx, "stage-abc/part-0000.csv.gz")
	s.Require().NoError(err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Equal([]byte("data"), data)
}

func (s *storageSuite) TestExists() {
	ctx := context.Background()
	exists, err := s.storage.Exists(ctx, "missing")
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(s.storage.PutObject(ctx, "present", bytes.NewReader([]byte("x"))))
	exists, err = s.storage.Exists(ctx, "present")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *storageSuite) TestListDir() {
	ctx := context.Background()
	s.Require().NoError(s.storage.PutObject(ctx, "a.txt", bytes.NewReader([]byte("a"))))
	s.Require().NoError(s.storage.PutObject(ctx, "sub/b.txt", bytes.NewReader([]byte("b"))))

	files, dirs, err := s.storage.ListDir(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"a.txt"}, files)
	s.Require().Len(dirs, 1)
	s.Equal("sub", dirs[0].Dirname())
}

func (s *storageSuite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.storage.PutObject(ctx, "victim", bytes.NewReader([]byte("x"))))
	s.Require().NoError(s.storage.Delete(ctx, "victim"))
	exists, err := s.storage.Exists(ctx, "victim")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *storageSuite) TestDeleteAll() {
	ctx := context.Background()
	s.Require().NoError(s.storage.PutObject(ctx, "stage-abc/a", bytes.NewReader([]byte("a"))))
	s.Require().NoError(s.storage.PutObject(ctx, "stage-abc/b", bytes.NewReader([]byte("b"))))
	s.Require().NoError(s.storage.DeleteAll(ctx, "stage-abc"))
	exists, err := s.storage.Exists(ctx, "stage-abc")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *storageSuite) TestSubStorage() {
	sub := s.storage.SubStorage("stage-abc", true)
	s.Equal(path.Join(s.tmpDir, "stage-abc"), sub.GetCwd())
	s.Equal("stage-abc", sub.Dirname())

	ctx := context.Background()
	s.Require().NoError(sub.PutObject(ctx, "part", bytes.NewReader([]byte("x"))))
	exists, err := s.storage.Exists(ctx, "stage-abc/part")
	s.Require().NoError(err)
	s.True(exists)
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(storageSuite))
}

func TestNewStorage_RejectsFilePath(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := path.Join(tmpDir, "plain")
	if err := os.WriteFile(filePath, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStorage(&Config{Path: filePath}); err == nil {
		t.Fatal("expected an error for a file path")
	}
}
