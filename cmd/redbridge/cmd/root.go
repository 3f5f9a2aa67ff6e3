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

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redbridgeio/redbridge/internal/domains"
	"github.com/redbridgeio/redbridge/internal/utils/logger"
)

var (
	Version string

	RootCmd = &cobra.Command{
		Use:   "redbridge",
		Short: "Redbridge moves tabular data between a Redshift warehouse and a compute engine",
		Long: "Redbridge translates logical scans into warehouse-native UNLOAD statements and " +
			"logical writes into staged, atomically-committed bulk loads, using object storage " +
			"as the intermediate staging area.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.SetLogLevel(Config.Log.Level, Config.Log.Format)
		},
	}
	cfgFile string
	Config  = domains.NewConfig()
)

func Execute() error {
	return RootCmd.Execute()
}

func init() {
	if Version != "" {
		RootCmd.Version = Version
	}

	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	RootCmd.PersistentFlags().StringP("log-format", "", logger.LogFormatTextValue, "logging format [text|json]")
	RootCmd.PersistentFlags().StringP("log-level", "", zerolog.LevelInfoValue,
		fmt.Sprintf(
			"logging level %s|%s|%s",
			zerolog.LevelDebugValue,
			zerolog.LevelInfoValue,
			zerolog.LevelWarnValue,
		),
	)

	RootCmd.AddCommand(unloadCmd)
	RootCmd.AddCommand(loadCmd)
	RootCmd.AddCommand(lifecycleCmd)

	if err := viper.BindPFlag("log.format", RootCmd.PersistentFlags().Lookup("log-format")); err != nil {
		log.Fatal().Err(err).Msg("")
	}
	if err := viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal().Err(err).Msg("error reading from config file")
		}
	}

	viper.SetEnvPrefix("REDBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	decoderCfg := func(cfg *mapstructure.DecoderConfig) {
		cfg.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}

	if err := viper.Unmarshal(Config, decoderCfg); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

// buildOptions assembles the flat option map of the relation from the
// structured config plus command-specific entries.
func buildOptions(extra map[string]string) map[string]string {
	options := map[string]string{
		"url":     Config.Warehouse.URL,
		"tempdir": Config.Warehouse.TempDir,
	}
	if Config.Warehouse.QueryTimeoutSeconds > 0 {
		options["querytimeout"] = strconv.Itoa(Config.Warehouse.QueryTimeoutSeconds)
	}
	if s3Cfg := Config.Storage.S3; s3Cfg != nil {
		if s3Cfg.RoleArn != "" {
			options["aws_iam_role"] = s3Cfg.RoleArn
		} else if s3Cfg.AccessKeyId != "" {
			options["temporary_aws_access_key_id"] = s3Cfg.AccessKeyId
			options["temporary_aws_secret_access_key"] = s3Cfg.SecretAccessKey
			options["temporary_aws_session_token"] = s3Cfg.SessionToken
		}
	}
	for key, value := range Config.Options {
		options[key] = value
	}
	for key, value := range extra {
		if value != "" {
			options[key] = value
		}
	}
	return options
}
