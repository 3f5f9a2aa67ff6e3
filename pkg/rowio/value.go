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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Serialization conventions shared with the generated UNLOAD and COPY
// statements. The warehouse-side NULL AS / DATEFORMAT / TIMEFORMAT options
// must stay in sync with these.
const (
	NullMarker      = "@NULL@"
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05.999999"
)

// FormatValue renders a single value as staged-file text. Nil values are
// handled by the caller (the writer emits NullMarker).
func FormatValue(t LogicalType, v any) (string, error) {
	switch t {
	case TypeBoolean:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return "", fmt.Errorf("cannot encode %v as boolean: %w", v, err)
		}
		return strconv.FormatBool(b), nil
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		i, err := cast.ToInt64E(v)
		if err != nil {
			return "", fmt.Errorf("cannot encode %v as %s: %w", v, t, err)
		}
		return strconv.FormatInt(i, 10), nil
	case TypeFloat32:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return "", fmt.Errorf("cannot encode %v as float32: %w", v, err)
		}
		return strconv.FormatFloat(f, 'g', -1, 32), nil
	case TypeFloat64:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return "", fmt.Errorf("cannot encode %v as float64: %w", v, err)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case TypeDecimal:
		switch d := v.(type) {
		case decimal.Decimal:
			return d.String(), nil
		case string:
			if _, err := decimal.NewFromString(d); err != nil {
				return "", fmt.Errorf("cannot encode %q as decimal: %w", d, err)
			}
			return d, nil
		default:
			return "", fmt.Errorf("cannot encode %T as decimal", v)
		}
	case TypeDate:
		ts, err := cast.ToTimeE(v)
		if err != nil {
			return "", fmt.Errorf("cannot encode %v as date: %w", v, err)
		}
		return ts.Format(DateLayout), nil
	case TypeTimestamp:
		ts, err := cast.ToTimeE(v)
		if err != nil {
			return "", fmt.Errorf("cannot encode %v as timestamp: %w", v, err)
		}
		return ts.Format(TimestampLayout), nil
	case TypeString:
		return cast.ToStringE(v)
	}
	return "", fmt.Errorf("cannot encode value of logical type %s", t)
}

// ParseValue decodes staged-file text back to the logical value. It is the
// inverse of FormatValue for every value produced by the unload path.
func ParseValue(t LogicalType, s string) (any, error) {
	switch t {
	case TypeBoolean:
		return strconv.ParseBool(s)
	case TypeInt8:
		i, err := strconv.ParseInt(s, 10, 8)
		return int8(i), err
	case TypeInt16:
		i, err := strconv.ParseInt(s, 10, 16)
		return int16(i), err
	case TypeInt32:
		i, err := strconv.ParseInt(s, 10, 32)
		return int32(i), err
	case TypeInt64:
		return strconv.ParseInt(s, 10, 64)
	case TypeFloat32:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	case TypeFloat64:
		return strconv.ParseFloat(s, 64)
	case TypeDecimal:
		return decimal.NewFromString(s)
	case TypeDate:
		return time.Parse(DateLayout, s)
	case TypeTimestamp:
		// The warehouse may or may not emit a fractional part.
		if strings.Contains(s, ".") {
			return time.Parse(TimestampLayout, s)
		}
		return time.Parse("2006-01-02 15:04:05", s)
	case TypeString:
		return s, nil
	}
	return nil, fmt.Errorf("cannot decode value of logical type %s", t)
}
