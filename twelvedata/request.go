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
	"net/url"
	"strings"
)

// AcceptHeader lists the MIME types of all the valid formats.
const AcceptHeader = "application/json,text/csv"

// Request is the transport-ready projection of an Endpoint. All of its
// accessors are free of side effects. When the Endpoint is not valid, no
// request can be produced, and the accessors return zero values.
type Request struct {
	endpoint *Endpoint
}

// NewRequest creates a Request for the endpoint.
func NewRequest(e *Endpoint) *Request {
	return &Request{endpoint: e}
}

// Endpoint the request was built from.
func (r *Request) Endpoint() *Endpoint {
	return r.endpoint
}

// Valid checks if the request can be produced.
func (r *Request) Valid() bool {
	return r.endpoint != nil && r.endpoint.Valid()
}

// Build returns the HTTP verb, the URL relative to the API origin and the query
// values. The last value is false when the endpoint is not valid, and the other
// values are then empty.
func (r *Request) Build() (verb, relativeURL string, params url.Values, ok bool) {
	if !r.Valid() {
		return "", "", nil, false
	}
	return r.endpoint.Definition().HTTPVerb, r.endpoint.Name(),
		r.endpoint.QueryParams().Values(), true
}

// HTTPVerb of the request, or "" if unavailable.
func (r *Request) HTTPVerb() string {
	verb, _, _, _ := r.Build()
	return verb
}

// RelativeURL of the request, or "" if unavailable.
func (r *Request) RelativeURL() string {
	_, rel, _, _ := r.Build()
	return rel
}

// Params returns the query values of the request, or nil if unavailable.
func (r *Request) Params() url.Values {
	_, _, params, _ := r.Build()
	return params
}

// ToMap returns the request as a map with "http_verb", "relative_url" and
// "params" keys, or nil if unavailable.
func (r *Request) ToMap() map[string]any {
	verb, rel, params, ok := r.Build()
	if !ok {
		return nil
	}
	return map[string]any{
		"http_verb":    verb,
		"relative_url": rel,
		"params":       params,
	}
}

// URL is the full URL of the request under the base URL, without the query, or
// "" if unavailable.
func (r *Request) URL(base string) string {
	rel := r.RelativeURL()
	if rel == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + rel
}

// Header of the outgoing request.
func (r *Request) Header() map[string]string {
	return map[string]string{"Accept": AcceptHeader}
}

// Format requested by the caller, or "" if the endpoint has no format.
func (r *Request) Format() Format {
	if r.endpoint == nil {
		return ""
	}
	return r.endpoint.Format()
}

// Filename requested for a CSV attachment, if any.
func (r *Request) Filename() string {
	if r.endpoint == nil {
		return ""
	}
	return r.endpoint.QueryParams().Get(FilenameParam)
}
