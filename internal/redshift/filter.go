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

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Filter is the engine-side predicate pushed down into warehouse SQL.
// Predicates compose into a boolean tree; a tree the renderer cannot express
// is dropped from pushdown as a whole and re-applied by the engine after
// reading, so dropping is always correctness-preserving.
type Filter interface {
	filter()
}

type EqualTo struct {
	Column string
	Value  any
}

type NotEqual struct {
	Column string
	Value  any
}

type GreaterThan struct {
	Column string
	Value  any
}

type GreaterThanOrEqual struct {
	Column string
	Value  any
}

type LessThan struct {
	Column string
	Value  any
}

type LessThanOrEqual struct {
	Column string
	Value  any
}

type IsNull struct {
	Column string
}

type IsNotNull struct {
	Column string
}

type In struct {
	Column string
	Values []any
}

type And struct {
	Left  Filter
	Right Filter
}

type Or struct {
	Left  Filter
	Right Filter
}

type Not struct {
	Child Filter
}

type StringStartsWith struct {
	Column string
	Prefix string
}

type StringEndsWith struct {
	Column string
	Suffix string
}

type StringContains struct {
	Column   string
	Fragment string
}

func (EqualTo) filter()            {}
func (NotEqual) filter()           {}
func (GreaterThan) filter()        {}
func (GreaterThanOrEqual) filter() {}
func (LessThan) filter()           {}
func (LessThanOrEqual) filter()    {}
func (IsNull) filter()             {}
func (IsNotNull) filter()          {}
func (In) filter()                 {}
func (And) filter()                {}
func (Or) filter()                 {}
func (Not) filter()                {}
func (StringStartsWith) filter()   {}
func (StringEndsWith) filter()     {}
func (StringContains) filter()     {}

// renderFilters builds the WHERE clause for the pushdown-capable subset of
// filters and returns the filters that were actually pushed. Unsupported
// filters are dropped silently from pushdown.
func renderFilters(filters []Filter) (whereClause string, pushed []Filter) {
	var parts []string
	for _, f := range filters {
		rendered, ok := renderFilter(f)
		if !ok {
			log.Debug().
				Str("filter", fmt.Sprintf("%#v", f)).
				Msg("filter is not pushdown-capable, the engine will re-apply it after reading")
			continue
		}
		parts = append(parts, rendered)
		pushed = append(pushed, f)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, " AND "), pushed
}

func renderFilter(f Filter) (string, bool) {
	switch v := f.(type) {
	case EqualTo:
		return renderComparison(v.Column, "=", v.Value)
	case NotEqual:
		return renderComparison(v.Column, "!=", v.Value)
	case GreaterThan:
		return renderComparison(v.Column, ">", v.Value)
	case GreaterThanOrEqual:
		return renderComparison(v.Column, ">=", v.Value)
	case LessThan:
		return renderComparison(v.Column, "<", v.Value)
	case LessThanOrEqual:
		return renderComparison(v.Column, "<=", v.Value)
	case IsNull:
		return fmt.Sprintf("%s IS NULL", quoteIdent(v.Column)), true
	case IsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", quoteIdent(v.Column)), true
	case In:
		if len(v.Values) == 0 {
			return "", false
		}
		literals := make([]string, 0, len(v.Values))
		for _, value := range v.Values {
			lit, ok := renderLiteral(value)
			if !ok {
				return "", false
			}
			literals = append(literals, lit)
		}
		return fmt.Sprintf("%s IN (%s)", quoteIdent(v.Column), strings.Join(literals, ", ")), true
	case And:
		left, okLeft := renderFilter(v.Left)
		right, okRight := renderFilter(v.Right)
		if !okLeft || !okRight {
			return "", false
		}
		return fmt.Sprintf("(%s AND %s)", left, right), true
	case Or:
		left, okLeft := renderFilter(v.Left)
		right, okRight := renderFilter(v.Right)
		if !okLeft || !okRight {
			return "", false
		}
		return fmt.Sprintf("(%s OR %s)", left, right), true
	case Not:
		child, ok := renderFilter(v.Child)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("(NOT %s)", child), true
	case StringStartsWith:
		return fmt.Sprintf("%s LIKE '%s%%'", quoteIdent(v.Column), escapeStringLiteral(v.Prefix)), true
	case StringEndsWith:
		return fmt.Sprintf("%s LIKE '%%%s'", quoteIdent(v.Column), escapeStringLiteral(v.Suffix)), true
	case StringContains:
		return fmt.Sprintf("%s LIKE '%%%s%%'", quoteIdent(v.Column), escapeStringLiteral(v.Fragment)), true
	}
	return "", false
}

func renderComparison(column, op string, value any) (string, bool) {
	lit, ok := renderLiteral(value)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s %s %s", quoteIdent(column), op, lit), true
}

// renderLiteral renders a literal operand of a known logical type. String
// literals escape embedded quotes by doubling them, which is the warehouse's
// string-literal syntax and round-trips multi-byte text unchanged.
func renderLiteral(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return "'" + escapeStringLiteral(v) + "'", true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.FormatInt(int64(v), 10), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case decimal.Decimal:
		return v.String(), true
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05.999999") + "'", true
	}
	return "", false
}

func escapeStringLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
