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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/redbridgeio/redbridge/internal/storages/builder"
)

// SaveMode controls what a write does when the target table already exists.
type SaveMode string

const (
	SaveModeErrorIfExists SaveMode = "error"
	SaveModeAppend        SaveMode = "append"
	SaveModeOverwrite     SaveMode = "overwrite"
	SaveModeIgnore        SaveMode = "ignore"
)

func ParseSaveMode(s string) (SaveMode, error) {
	switch SaveMode(strings.ToLower(s)) {
	case SaveModeErrorIfExists, "errorifexists", "":
		return SaveModeErrorIfExists, nil
	case SaveModeAppend:
		return SaveModeAppend, nil
	case SaveModeOverwrite:
		return SaveModeOverwrite, nil
	case SaveModeIgnore:
		return SaveModeIgnore, nil
	}
	return "", newConfigError("unknown save mode %q", s)
}

// Option keys of the flat configuration surface. Unrecognized keys are
// ignored.
const (
	optURL              = "url"
	optTempDir          = "tempdir"
	optTable            = "dbtable"
	optQuery            = "query"
	optSaveMode         = "savemode"
	optUseStagingTable  = "usestagingtable"
	optDistStyle        = "diststyle"
	optDistKey          = "distkey"
	optSortKeySpec      = "sortkeyspec"
	optPreActions       = "preactions"
	optPostActions      = "postactions"
	optExtraCopyOptions = "extracopyoptions"
	optMaxLength        = "maxlength"
	optQueryTimeout     = "querytimeout"
	optIAMRole          = "aws_iam_role"
	optAccessKeyID      = "temporary_aws_access_key_id"
	optSecretAccessKey  = "temporary_aws_secret_access_key"
	optSessionToken     = "temporary_aws_session_token"
)

// Parameters is the validated, immutable configuration of one relation.
type Parameters struct {
	URL     string
	TempDir string
	Table   string
	Query   string

	SaveMode           SaveMode
	UseStagingTable    bool
	UseStagingTableSet bool

	DistStyle        string
	DistKey          string
	SortKeySpec      string
	PreActions       []string
	PostActions      []string
	ExtraCopyOptions string

	// Per-column VARCHAR length overrides, validated against the write
	// schema when the load runs.
	MaxLengths map[string]int

	QueryTimeout time.Duration

	IAMRole         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// ParseParams validates the flat option map. Every failure is a ConfigError
// raised before any connection is opened.
func ParseParams(options map[string]string) (*Parameters, error) {
	opts := make(map[string]string, len(options))
	for key, value := range options {
		opts[strings.ToLower(key)] = value
	}

	for _, required := range []string{optURL, optTempDir} {
		if opts[required] == "" {
			return nil, newConfigError("missing required option %q", required)
		}
	}

	table, query := opts[optTable], opts[optQuery]
	switch {
	case table == "" && query == "":
		return nil, newConfigError("exactly one of %q and %q must be set, got neither", optTable, optQuery)
	case table != "" && query != "":
		return nil, newConfigError("exactly one of %q and %q must be set, got both", optTable, optQuery)
	}

	if err := builder.CheckScheme(opts[optTempDir]); err != nil {
		return nil, newConfigError("%v", err)
	}

	mode, err := ParseSaveMode(opts[optSaveMode])
	if err != nil {
		return nil, err
	}

	p := &Parameters{
		URL:              opts[optURL],
		TempDir:          strings.TrimSuffix(opts[optTempDir], "/"),
		Table:            table,
		Query:            query,
		SaveMode:         mode,
		UseStagingTable:  true,
		DistStyle:        strings.ToUpper(opts[optDistStyle]),
		DistKey:          opts[optDistKey],
		SortKeySpec:      opts[optSortKeySpec],
		PreActions:       splitActions(opts[optPreActions]),
		PostActions:      splitActions(opts[optPostActions]),
		ExtraCopyOptions: opts[optExtraCopyOptions],
		IAMRole:          opts[optIAMRole],
		AccessKeyID:      opts[optAccessKeyID],
		SecretAccessKey:  opts[optSecretAccessKey],
		SessionToken:     opts[optSessionToken],
	}

	if raw, ok := opts[optUseStagingTable]; ok {
		useStaging, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, newConfigError("option %q must be a boolean, got %q", optUseStagingTable, raw)
		}
		p.UseStagingTable = useStaging
		p.UseStagingTableSet = true
	}

	if raw, ok := opts[optQueryTimeout]; ok {
		seconds, err := cast.ToIntE(raw)
		if err != nil || seconds < 0 {
			return nil, newConfigError("option %q must be a non-negative number of seconds, got %q", optQueryTimeout, raw)
		}
		p.QueryTimeout = time.Duration(seconds) * time.Second
	}

	if p.DistKey != "" && p.DistStyle != "" && p.DistStyle != "KEY" {
		return nil, newConfigError("option %q requires %q to be KEY, got %q", optDistKey, optDistStyle, p.DistStyle)
	}

	if raw, ok := opts[optMaxLength]; ok && raw != "" {
		p.MaxLengths, err = parseMaxLengths(raw)
		if err != nil {
			return nil, err
		}
	}

	if p.IAMRole != "" && p.AccessKeyID != "" {
		return nil, newConfigError("iam role and temporary key credentials are mutually exclusive")
	}
	for _, cred := range []string{p.IAMRole, p.AccessKeyID, p.SecretAccessKey, p.SessionToken} {
		if strings.ContainsAny(cred, "'") {
			return nil, newConfigError("credentials must not contain quote characters")
		}
	}

	return p, nil
}

// SourceExpr is the FROM operand of generated scans: a bare table identifier
// or the raw query wrapped in parentheses.
func (p *Parameters) SourceExpr() string {
	if p.Table != "" {
		return p.Table
	}
	return "(" + p.Query + ") source"
}

// CredentialsClause renders the credentials fragment embedded in UNLOAD and
// COPY statements.
func (p *Parameters) CredentialsClause() (string, error) {
	if p.IAMRole != "" {
		return "aws_iam_role=" + p.IAMRole, nil
	}
	if p.AccessKeyID != "" && p.SecretAccessKey != "" {
		clause := fmt.Sprintf("aws_access_key_id=%s;aws_secret_access_key=%s", p.AccessKeyID, p.SecretAccessKey)
		if p.SessionToken != "" {
			clause += ";token=" + p.SessionToken
		}
		return clause, nil
	}
	return "", newConfigError(
		"no warehouse-to-storage credentials configured: set %q or the temporary key options", optIAMRole,
	)
}

func splitActions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var actions []string
	for _, stmt := range strings.Split(raw, ";") {
		if trimmed := strings.TrimSpace(stmt); trimmed != "" {
			actions = append(actions, trimmed)
		}
	}
	return actions
}

// parseMaxLengths parses "col:len[,col:len...]" override syntax.
func parseMaxLengths(raw string) (map[string]int, error) {
	overrides := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		name, lengthStr, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found || name == "" {
			return nil, newConfigError("invalid %q entry %q, expected column:length", optMaxLength, pair)
		}
		length, err := strconv.Atoi(lengthStr)
		if err != nil || length <= 0 {
			return nil, newConfigError("invalid %q for column %q: length must be a positive integer", optMaxLength, name)
		}
		overrides[name] = length
	}
	return overrides, nil
}
