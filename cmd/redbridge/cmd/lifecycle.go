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
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/redbridgeio/redbridge/internal/storages"
	"github.com/redbridgeio/redbridge/internal/storages/builder"
)

var (
	lifecycleExpireDays int

	lifecycleCmd = &cobra.Command{
		Use:   "lifecycle",
		Short: "Configure automatic expiry of staged files under the staging root",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			tempDir := Config.Warehouse.TempDir
			store, err := builder.GetStorage(ctx, tempDir, Config.Storage.S3, Config.Log.Level)
			if err != nil {
				log.Fatal().Err(err).Msg("cannot build staging storage")
			}

			lc, ok := store.(storages.LifecycleConfigurator)
			if !ok {
				log.Fatal().Str("tempdir", tempDir).
					Msg("the staging storage backend does not support lifecycle rules")
			}

			expireAfter := time.Duration(lifecycleExpireDays) * 24 * time.Hour
			if err := lc.ConfigureLifecycle(ctx, "", expireAfter); err != nil {
				log.Fatal().Err(err).Msg("cannot configure lifecycle rule")
			}
			log.Info().
				Str("tempdir", tempDir).
				Int("expire_days", lifecycleExpireDays).
				Msg("lifecycle rule configured")
		},
	}
)

func init() {
	lifecycleCmd.Flags().IntVar(&lifecycleExpireDays, "expire-days", 2, "days after which staged files expire")
}
