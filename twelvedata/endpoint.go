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

// Endpoint is a single candidate API call: an endpoint name with its query
// parameters. Validity is computed lazily and recomputed after any change of
// the name or the parameters. Endpoint is not safe for concurrent use.
type Endpoint struct {
	name   string
	raw    Params // as supplied by the caller
	apiKey string // the default API key

	params Params          // effective parameters, lazily computed
	errors *EndpointErrors // lazily computed
}

// NewEndpoint creates an Endpoint for the named API endpoint. The apiKey is
// used unless params contains its own "apikey" (or "api_key").
func NewEndpoint(name string, params Params, apiKey string) *Endpoint {
	e := &Endpoint{apiKey: apiKey}
	e.SetName(name)
	e.SetQueryParams(params)
	return e
}

// invalidate drops the memoized values depending on the name and parameters.
func (e *Endpoint) invalidate() {
	e.params = nil
	e.errors = nil
}

// SetName sets the endpoint name, converting it to its lowercase canonical
// form, which is returned.
func (e *Endpoint) SetName(raw string) string {
	e.name = normalizeName(raw)
	e.invalidate()
	return e.name
}

// Name of the endpoint in canonical form.
func (e *Endpoint) Name() string {
	return e.name
}

// SetQueryParams replaces the query parameters and returns the effective
// parameters: caller values merged over the default API key, with nil and empty
// values dropped, and "format" coerced to DefaultFormat when it is absent or
// invalid and the endpoint accepts a format.
func (e *Endpoint) SetQueryParams(p Params) Params {
	e.raw = p.Copy()
	e.invalidate()
	return e.QueryParams()
}

// QueryParams returns a copy of the effective query parameters.
func (e *Endpoint) QueryParams() Params {
	if e.params == nil {
		e.params = e.computeParams()
	}
	return e.params.Copy()
}

func (e *Endpoint) computeParams() Params {
	p := Params{}
	if e.apiKey != "" {
		p[APIKeyParam] = e.apiKey
	}
	for k, v := range e.raw {
		if isEmptyValue(v) {
			continue
		}
		if k == apiKeyAlias {
			if !isEmptyValue(e.raw[APIKeyParam]) {
				continue
			}
			k = APIKeyParam
		}
		p[k] = v
	}
	if d := e.Definition(); d != nil && d.Allows(FormatParam) {
		f, ok := parseFormat(p[FormatParam])
		if !ok {
			f = DefaultFormat
		}
		p[FormatParam] = string(f)
	}
	return p
}

// Definition of the endpoint, or nil if the name is not valid.
func (e *Endpoint) Definition() *Definition {
	d, ok := LookupDefinition(e.name)
	if !ok {
		return nil
	}
	return d
}

// Format requested by the query parameters. It is empty when the endpoint does
// not accept a format.
func (e *Endpoint) Format() Format {
	f, ok := parseFormat(e.QueryParams()[FormatParam])
	if !ok {
		return ""
	}
	return f
}

// AllowedParameters are the parameter keys of the definition, plus "filename"
// for CSV requests. It is nil when the name is not valid.
func (e *Endpoint) AllowedParameters() []string {
	d := e.Definition()
	if d == nil {
		return nil
	}
	keys := append([]string{}, d.Parameters...)
	if e.Format() == FormatCSV && !d.Allows(FilenameParam) {
		keys = append(keys, FilenameParam)
	}
	return keys
}

// RequiredParameters of the definition. It is nil when the name is not valid.
func (e *Endpoint) RequiredParameters() []string {
	d := e.Definition()
	if d == nil {
		return nil
	}
	return append([]string{}, d.Required...)
}

// Errors returns the result of each validation check. Checking is done once
// per change of the name or parameters.
func (e *Endpoint) Errors() EndpointErrors {
	if e.errors == nil {
		errs := e.validate()
		e.errors = &errs
	}
	return *e.errors
}

// Valid is true when all the validation checks pass.
func (e *Endpoint) Valid() bool {
	return e.Errors().Empty()
}

// validate checks the name, and only for a known name, the required and the
// allowed parameter keys. The two parameter checks are independent.
func (e *Endpoint) validate() EndpointErrors {
	var errs EndpointErrors
	if e.Definition() == nil {
		errs.Name = &EndpointError{
			Kind:     EndpointInvalidName,
			Endpoint: e.name,
			Invalid:  []string{e.name},
		}
		return errs
	}
	keys := e.QueryParams().Keys()
	allowed := e.AllowedParameters()
	required := e.RequiredParameters()
	newErr := func(kind ErrorKind, invalid []string) *EndpointError {
		return &EndpointError{
			Kind:     kind,
			Endpoint: e.name,
			Invalid:  invalid,
			Allowed:  allowed,
			Required: required,
		}
	}
	if missing := difference(required, keys); len(missing) > 0 {
		errs.RequiredParameters = newErr(EndpointMissingRequiredParameters, missing)
	}
	if extra := difference(keys, allowed); len(extra) > 0 {
		errs.ParametersKeys = newErr(EndpointInvalidParameters, extra)
	}
	return errs
}
