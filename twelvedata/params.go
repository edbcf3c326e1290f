// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package twelvedata

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Params are the query parameters of an API call. Values are formatted with
// FormatValue when sent; nil and empty values are dropped by Endpoint.
type Params map[string]any

// Keys returns the parameter keys in sorted order.
func (p Params) Keys() []string {
	keys := maps.Keys(p)
	slices.Sort(keys)
	return keys
}

// Get the formatted value of the parameter, or "" if absent.
func (p Params) Get(key string) string {
	v, ok := p[key]
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// Copy creates a shallow copy of the parameters.
func (p Params) Copy() Params {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// Values converts the parameters to URL query values.
func (p Params) Values() url.Values {
	v := make(url.Values)
	for k, val := range p {
		v.Set(k, FormatValue(val))
	}
	return v
}

// Redacted returns a copy with the API key masked, for use in logs and error
// messages.
func (p Params) Redacted() Params {
	r := p.Copy()
	if _, ok := r[APIKeyParam]; ok {
		r[APIKeyParam] = "***"
	}
	return r
}

// String prints the parameters in sorted key order.
func (p Params) String() string {
	parts := []string{}
	for _, k := range p.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %s", k, p.Get(k)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FormatValue converts a parameter value to its query string representation.
// Slices of strings are joined with commas, as the API expects for
// multi-valued parameters such as "symbol=AAPL,IBM".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		return strings.Join(x, ",")
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// isEmptyValue is true for values that are dropped from the query.
func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

// difference returns the sorted elements of a not present in b.
func difference(a, b []string) []string {
	res := []string{}
	for _, x := range a {
		if !slices.Contains(b, x) {
			res = append(res, x)
		}
	}
	slices.Sort(res)
	return res
}
