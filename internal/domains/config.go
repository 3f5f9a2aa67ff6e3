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

package domains

import (
	"sync"

	"github.com/redbridgeio/redbridge/internal/storages/s3"
)

var (
	Cfg  *Config
	once sync.Once
)

func NewConfig() *Config {
	once.Do(
		func() {
			Cfg = &Config{
				Storage: StorageConfig{
					S3: s3.NewConfig(),
				},
			}
		},
	)
	return Cfg
}

type Config struct {
	Log       LogConfig         `mapstructure:"log" yaml:"log" json:"log"`
	Storage   StorageConfig     `mapstructure:"storage" yaml:"storage" json:"storage"`
	Warehouse WarehouseConfig   `mapstructure:"warehouse" yaml:"warehouse" json:"warehouse"`
	Options   map[string]string `mapstructure:"options" yaml:"options" json:"options,omitempty"`
}

type LogConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format,omitempty"`
	Level  string `mapstructure:"level" yaml:"level" json:"level,omitempty"`
}

type StorageConfig struct {
	S3 *s3.Config `mapstructure:"s3" yaml:"s3" json:"s3,omitempty"`
}

type WarehouseConfig struct {
	// URL - warehouse connection string (postgres wire protocol)
	URL string `mapstructure:"url" yaml:"url" json:"url"`
	// TempDir - staging root URI (s3a://bucket/prefix or file:///path)
	TempDir string `mapstructure:"tempdir" yaml:"tempdir" json:"tempdir"`
	// QueryTimeoutSeconds - per-statement timeout, 0 means unbounded
	QueryTimeoutSeconds int `mapstructure:"query_timeout_seconds" yaml:"query_timeout_seconds" json:"query_timeout_seconds,omitempty"`
}
