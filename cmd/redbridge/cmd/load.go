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
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/redbridgeio/redbridge/internal/redshift"
	"github.com/redbridgeio/redbridge/internal/storages/builder"
	"github.com/redbridgeio/redbridge/internal/storages/directory"
	"github.com/redbridgeio/redbridge/pkg/rowio"
)

var (
	loadTable string
	loadInput string
	loadMode  string

	loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Bulk-load a staged file set into a warehouse table",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			mode, err := redshift.ParseSaveMode(loadMode)
			if err != nil {
				log.Fatal().Err(err).Msg("invalid load configuration")
			}

			params, err := redshift.ParseParams(buildOptions(map[string]string{
				"dbtable": loadTable,
			}))
			if err != nil {
				log.Fatal().Err(err).Msg("invalid load configuration")
			}

			batch, err := readStagedBatch(ctx, loadInput)
			if err != nil {
				log.Fatal().Err(err).Str("input", loadInput).Msg("cannot read staged input")
			}

			store, err := builder.GetStorage(ctx, params.TempDir, Config.Storage.S3, Config.Log.Level)
			if err != nil {
				log.Fatal().Err(err).Msg("cannot build staging storage")
			}

			loader := redshift.NewLoader(params, store, nil)
			if err := loader.Load(ctx, batch, mode); err != nil {
				log.Fatal().Err(err).Msg("load failed")
			}
		},
	}
)

// readStagedBatch reads a locally staged file set (manifest plus parts)
// into memory.
func readStagedBatch(ctx context.Context, path string) (*redshift.RowBatch, error) {
	store, err := directory.NewStorage(&directory.Config{Path: path})
	if err != nil {
		return nil, err
	}
	manifest, err := rowio.ReadManifest(ctx, store)
	if err != nil {
		return nil, err
	}

	batch := &redshift.RowBatch{Schema: manifest.Schema}
	for _, part := range manifest.Parts {
		reader, err := rowio.OpenPart(ctx, store, manifest.Schema, part)
		if err != nil {
			return nil, err
		}
		for {
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = reader.Close()
				return nil, err
			}
			batch.Rows = append(batch.Rows, row)
		}
		if err := reader.Close(); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

func init() {
	loadCmd.Flags().StringVar(&loadTable, "table", "", "target table name")
	loadCmd.Flags().StringVar(&loadInput, "input", "", "local directory holding the staged file set")
	loadCmd.Flags().StringVar(&loadMode, "mode", string(redshift.SaveModeErrorIfExists),
		"save mode [error|append|overwrite|ignore]")
	if err := loadCmd.MarkFlagRequired("input"); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}
