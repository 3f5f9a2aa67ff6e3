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

package s3

import "os"

const (
	defaultMaxRetries  = 3
	defaultMaxPartSize = 50 * 1024 * 1024
)

type Config struct {
	Endpoint         string `mapstructure:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Bucket           string `mapstructure:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix           string `mapstructure:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region           string `mapstructure:"region,omitempty" yaml:"region,omitempty"`
	StorageClass     string `mapstructure:"storage_class,omitempty" yaml:"storage_class,omitempty"`
	AccessKeyId      string `mapstructure:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey  string `mapstructure:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
	SessionToken     string `mapstructure:"session_token,omitempty" yaml:"session_token,omitempty"`
	RoleArn          string `mapstructure:"role_arn,omitempty" yaml:"role_arn,omitempty"`
	SessionName      string `mapstructure:"session_name,omitempty" yaml:"session_name,omitempty"`
	MaxRetries       int    `mapstructure:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	CertFile         string `mapstructure:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	MaxPartSize      int64  `mapstructure:"max_part_size,omitempty" yaml:"max_part_size,omitempty"`
	Concurrency      int    `mapstructure:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	UseListObjectsV1 bool   `mapstructure:"use_list_objects_v1,omitempty" yaml:"use_list_objects_v1,omitempty"`
	ForcePathStyle   bool   `mapstructure:"force_path_style,omitempty" yaml:"force_path_style,omitempty"`
	UseAccelerate    bool   `mapstructure:"use_accelerate,omitempty" yaml:"use_accelerate,omitempty"`
	NoVerifySsl      bool   `mapstructure:"no_verify_ssl,omitempty" yaml:"no_verify_ssl,omitempty"`
}

func NewConfig() *Config {
	return &Config{
		StorageClass:    "STANDARD",
		ForcePathStyle:  true,
		MaxRetries:      defaultMaxRetries,
		MaxPartSize:     defaultMaxPartSize,
		AccessKeyId:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Region:          os.Getenv("AWS_REGION"),
	}
}
