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
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

// RawResponse is the result of executing a request by a Transport. The
// receiver of a RawResponse is responsible for closing its Body.
type RawResponse struct {
	Status int
	Header map[string]string // keys in lower case
	Body   io.ReadCloser
}

// Transport executes HTTP requests. An error means the transport failed
// before producing a status, e.g. DNS or connection failure; any HTTP status,
// including errors, is returned as a RawResponse.
type Transport interface {
	Execute(ctx context.Context, verb, uri string, header map[string]string,
		query url.Values) (*RawResponse, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, verb, uri string,
	header map[string]string, query url.Values) (*RawResponse, error)

var _ Transport = TransportFunc(nil)

// Execute implements Transport.
func (f TransportFunc) Execute(ctx context.Context, verb, uri string, header map[string]string, query url.Values) (*RawResponse, error) {
	return f(ctx, verb, uri, header, query)
}

// flattenHeader keeps the first value of each header, with lowercase keys.
func flattenHeader(h http.Header) map[string]string {
	res := make(map[string]string, len(h))
	for k, vals := range h {
		if len(vals) > 0 {
			res[strings.ToLower(k)] = vals[0]
		}
	}
	return res
}

// HTTPTransport is a Transport based on a standard http.Client.
type HTTPTransport struct {
	client *http.Client
}

var _ Transport = &HTTPTransport{}

// NewHTTPTransport creates a transport whose connections time out after
// connectTimeout. Zero means no timeout.
func NewHTTPTransport(connectTimeout time.Duration) *HTTPTransport {
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = dialer.DialContext
	return &HTTPTransport{client: &http.Client{Transport: tr}}
}

// NewHTTPTransportWithClient creates a transport using the given client.
func NewHTTPTransportWithClient(c *http.Client) *HTTPTransport {
	return &HTTPTransport{client: c}
}

// Execute implements Transport.
func (t *HTTPTransport) Execute(ctx context.Context, verb, uri string, header map[string]string, query url.Values) (*RawResponse, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Annotate(err, "invalid URL '%s'", uri)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, verb, u.String(), nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create %s request", verb)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	return &RawResponse{
		Status: resp.StatusCode,
		Header: flattenHeader(resp.Header),
		Body:   resp.Body,
	}, nil
}

// RetryTransport executes requests with Next and retries GET requests on
// transport failures and 5xx statuses using fetch.Retry. Like any Transport, it
// returns every HTTP status as a RawResponse; after the retries run out, that is
// the last 5xx response.
type RetryTransport struct {
	Next   Transport     // if nil, an HTTPTransport using Client
	Client *http.Client  // if nil, the client from fetch.UseClient, or the default
	Params *fetch.Params // retry policy; nil means fetch.NewParams()
}

var _ Transport = &RetryTransport{}

func (t *RetryTransport) next(ctx context.Context) Transport {
	if t.Next != nil {
		return t.Next
	}
	client := t.Client
	if client == nil {
		client = fetch.GetClient(ctx)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return NewHTTPTransportWithClient(client)
}

// Execute implements Transport.
func (t *RetryTransport) Execute(ctx context.Context, verb, uri string, header map[string]string, query url.Values) (*RawResponse, error) {
	next := t.next(ctx)
	if verb != http.MethodGet {
		return next.Execute(ctx, verb, uri, header, query)
	}
	params := t.Params
	if params == nil {
		params = fetch.NewParams()
	}
	var raw *RawResponse
	var lastErr error
	err := fetch.Retry(ctx, params, func(attempt int) error {
		if raw != nil {
			raw.Body.Close()
			raw = nil
		}
		r, err := next.Execute(ctx, verb, uri, header, query)
		if err != nil {
			lastErr = err
			logging.Debugf(ctx, "attempt %d of GET %s failed: %s", attempt+1, uri, err.Error())
			return fetch.NewRetriableError(err)
		}
		raw, lastErr = r, nil
		if r.Status >= 500 && r.Status <= 599 {
			logging.Debugf(ctx, "attempt %d of GET %s: HTTP %d", attempt+1, uri, r.Status)
			return fetch.NewRetriableError(errors.Reason("HTTP status %d", r.Status))
		}
		return nil
	})
	if raw != nil {
		return raw, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.Annotate(err, "failed to GET %s", uri)
}
