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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

const ManifestFileName = "_manifest.json"

// ObjectStore is the minimal object-storage capability the codec needs.
// It is satisfied by the storages.Storager implementations.
type ObjectStore interface {
	GetObject(ctx context.Context, filePath string) (io.ReadCloser, error)
	PutObject(ctx context.Context, filePath string, body io.Reader) error
}

// Manifest describes a complete staged file set.
type Manifest struct {
	Schema Schema   `json:"schema"`
	Parts  []string `json:"parts"`
	Rows   int64    `json:"rows"`
}

func WriteManifest(ctx context.Context, store ObjectStore, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling manifest: %w", err)
	}
	if err := store.PutObject(ctx, ManifestFileName, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("error uploading manifest: %w", err)
	}
	return nil
}

func ReadManifest(ctx context.Context, store ObjectStore) (*Manifest, error) {
	rc, err := store.GetObject(ctx, ManifestFileName)
	if err != nil {
		return nil, fmt.Errorf("error getting manifest: %w", err)
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("error decoding manifest: %w", err)
	}
	return &m, nil
}
