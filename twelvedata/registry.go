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
	"net/http"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Parameter keys with special treatment.
const (
	APIKeyParam   = "apikey"
	FormatParam   = "format"
	FilenameParam = "filename"
	apiKeyAlias   = "api_key"
)

// Format is the value of the "format" query parameter.
type Format string

// Values of Format.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"

	DefaultFormat = FormatJSON
)

// ValidFormats lists the formats accepted by the API.
var ValidFormats = []Format{FormatJSON, FormatCSV}

// parseFormat returns the format the value represents, if it's valid.
func parseFormat(v any) (Format, bool) {
	f := Format(strings.ToLower(FormatValue(v)))
	return f, slices.Contains(ValidFormats, f)
}

// Definition is the schema of a single API endpoint. Definitions are shared
// and must not be modified.
type Definition struct {
	Name       string
	Parameters []string // allowed query parameter keys, sorted
	Required   []string // required query parameter keys, sorted
	HTTPVerb   string
	Response   []string // documented keys of the response object, if any
}

// Allows checks if the key is an allowed parameter.
func (d *Definition) Allows(key string) bool {
	return slices.Contains(d.Parameters, key)
}

// Requires checks if the key is a required parameter.
func (d *Definition) Requires(key string) bool {
	return slices.Contains(d.Required, key)
}

// source of a Definition, without the implied API key parameter.
type definitionSource struct {
	keys     []string
	required []string
	verb     string
	response []string
}

// definitionTable is the endpoint catalog of the upstream API.
var definitionTable = map[string]definitionSource{
	"api_usage": {keys: []string{"format"}},
	"stocks": {
		keys: []string{"symbol", "exchange", "country", "type", "format"},
	},
	"forex_pairs": {
		keys: []string{"symbol", "currency_base", "currency_quote", "format"},
	},
	"cryptocurrencies": {
		keys: []string{"symbol", "exchange", "currency_base", "currency_quote", "format"},
	},
	"etf":     {keys: []string{"symbol", "format"}},
	"indices": {keys: []string{"symbol", "country", "format"}},
	"exchanges": {
		keys: []string{"type", "name", "code", "country", "format"},
	},
	"cryptocurrency_exchanges": {keys: []string{"name", "format"}},
	"technical_indicators": {
		response: []string{"enable", "full_name", "description", "type", "overlay",
			"parameters", "output_values", "tinting"},
	},
	"symbol_search": {
		keys:     []string{"symbol", "outputsize"},
		required: []string{"symbol"},
	},
	"earliest_timestamp": {keys: []string{"symbol", "interval", "exchange"}},
	"time_series": {
		keys: []string{"symbol", "interval", "exchange", "country", "type",
			"outputsize", "format"},
		required: []string{"symbol", "interval"},
	},
	"quote": {
		keys: []string{"symbol", "interval", "exchange", "country",
			"volume_time_period", "type", "format"},
		required: []string{"symbol"},
	},
	"price": {
		keys:     []string{"symbol", "exchange", "country", "type", "format"},
		required: []string{"symbol"},
	},
	"eod": {
		keys:     []string{"symbol", "exchange", "country", "type"},
		required: []string{"symbol"},
	},
	"exchange_rate": {
		keys:     []string{"symbol", "format"},
		required: []string{"symbol"},
	},
	"currency_conversion": {
		keys:     []string{"symbol", "amount", "format"},
		required: []string{"symbol", "amount"},
	},
	"complex_data": {
		keys: []string{"symbols", "intervals", "start_date", "end_date", "dp",
			"order", "timezone", "methods", "name"},
		required: []string{"symbols", "intervals", "start_date", "end_date"},
		verb:     http.MethodPost,
	},
	"earnings": {
		keys: []string{"symbol", "exchange", "country", "type", "period",
			"outputsize", "format"},
		required: []string{"symbol"},
	},
	"earnings_calendar": {keys: []string{"format"}},
}

var (
	definitionsOnce sync.Once
	definitions     map[string]*Definition
	definitionNames []string
)

// newDefinition adds the API key to the allowed and required keys of the
// source. It panics if a required key is not allowed.
func newDefinition(name string, src definitionSource) *Definition {
	d := &Definition{
		Name:       name,
		Parameters: append(slices.Clone(src.keys), APIKeyParam),
		Required:   append(slices.Clone(src.required), APIKeyParam),
		HTTPVerb:   src.verb,
		Response:   slices.Clone(src.response),
	}
	if d.HTTPVerb == "" {
		d.HTTPVerb = http.MethodGet
	}
	slices.Sort(d.Parameters)
	slices.Sort(d.Required)
	for _, r := range d.Required {
		if !d.Allows(r) {
			panic("endpoint " + name + ": required parameter " + r + " is not allowed")
		}
	}
	return d
}

func loadDefinitions() {
	definitions = make(map[string]*Definition, len(definitionTable))
	for name, src := range definitionTable {
		definitions[name] = newDefinition(name, src)
	}
	definitionNames = maps.Keys(definitions)
	slices.Sort(definitionNames)
}

// Definitions returns the catalog of endpoint definitions keyed by endpoint
// name. The catalog is computed once; the returned map is a fresh copy, but the
// Definitions themselves are shared.
func Definitions() map[string]*Definition {
	definitionsOnce.Do(loadDefinitions)
	return maps.Clone(definitions)
}

// Names of all the endpoints, sorted.
func Names() []string {
	definitionsOnce.Do(loadDefinitions)
	return slices.Clone(definitionNames)
}

// normalizeName converts an endpoint name to its canonical token.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// LookupDefinition finds the definition of the endpoint, case-insensitively.
func LookupDefinition(name string) (*Definition, bool) {
	definitionsOnce.Do(loadDefinitions)
	d, ok := definitions[normalizeName(name)]
	return d, ok
}

// IsValidName checks if the name refers to a known endpoint, ignoring case.
func IsValidName(name string) bool {
	_, ok := LookupDefinition(name)
	return ok
}

// Validate checks if the call of the named endpoint with the given parameters
// would be valid. The parameters must include the API key.
func Validate(name string, params Params) bool {
	return NewEndpoint(name, params, "").Valid()
}
