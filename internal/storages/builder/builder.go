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

package builder

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/redbridgeio/redbridge/internal/storages"
	"github.com/redbridgeio/redbridge/internal/storages/directory"
	"github.com/redbridgeio/redbridge/internal/storages/s3"
)

const (
	SchemeS3A  = "s3a"
	SchemeS3N  = "s3n"
	SchemeFile = "file"

	// The legacy block-oriented filesystem scheme. Bulk load and unload
	// statements stream whole objects, so it cannot be used for staging.
	schemeS3Block = "s3"
)

// CheckScheme validates the staging-root URI scheme. Only streaming-capable
// schemes are accepted; the block-oriented s3 scheme is rejected by name.
func CheckScheme(stagingRoot string) error {
	u, err := url.Parse(stagingRoot)
	if err != nil {
		return fmt.Errorf("cannot parse staging root uri %q: %w", stagingRoot, err)
	}
	switch strings.ToLower(u.Scheme) {
	case SchemeS3A, SchemeS3N, SchemeFile:
		return nil
	case schemeS3Block:
		return fmt.Errorf(
			"staging root uses the block-oriented %q scheme, which is not supported; use %q or %q",
			schemeS3Block, SchemeS3A, SchemeS3N,
		)
	default:
		return fmt.Errorf("staging root uses unsupported scheme %q", u.Scheme)
	}
}

// GetStorage builds the staging storage rooted at the staging-root URI.
// s3a:// and s3n:// map to the s3 backend (bucket from the URI host, prefix
// from its path), file:// maps to the local directory backend.
func GetStorage(ctx context.Context, stagingRoot string, s3Cfg *s3.Config, logLevel string) (storages.Storager, error) {
	if err := CheckScheme(stagingRoot); err != nil {
		return nil, err
	}
	u, err := url.Parse(stagingRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot parse staging root uri %q: %w", stagingRoot, err)
	}

	switch strings.ToLower(u.Scheme) {
	case SchemeFile:
		return directory.NewStorage(&directory.Config{Path: u.Path})
	default:
		if s3Cfg == nil {
			s3Cfg = s3.NewConfig()
		}
		cfg := *s3Cfg
		cfg.Bucket = u.Host
		cfg.Prefix = strings.TrimPrefix(u.Path, "/")
		return s3.New(ctx, &cfg, logLevel)
	}
}
