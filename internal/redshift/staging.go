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
	"strings"

	"github.com/google/uuid"
)

// newStagingSuffix returns a fresh suffix for staging artifacts. Staged
// paths and staging tables are owned by a single operation and never reused,
// so a random suffix is all the coordination needed.
func newStagingSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// stagingPath is the sub-path of one operation under the staging root.
func stagingPath(suffix string) string {
	return "stage-" + suffix
}

func stagingTableName(target, suffix string) string {
	return target + "_staging_" + suffix
}

// joinURI appends a sub-path to the staging root URI.
func joinURI(root, sub string) string {
	return strings.TrimSuffix(root, "/") + "/" + strings.Trim(sub, "/") + "/"
}
