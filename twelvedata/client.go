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
	"os"
	"sync"
	"time"

	"github.com/stockparfait/logging"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL is the default API origin. It may be overwritten in tests before
// creating a new client.
var URL = "https://api.twelvedata.com"

// APIKeyEnvName is the environment variable holding the default API key.
const APIKeyEnvName = "TWELVEDATA_API_KEY"

// DefaultConnectTimeout in milliseconds.
const DefaultConnectTimeout = 120

// Config of a Client. Zero values select the defaults.
type Config struct {
	APIKey         string // default: $TWELVEDATA_API_KEY
	ConnectTimeout int    // in milliseconds; default: DefaultConnectTimeout
	BaseURL        string // default: URL
	BodyMaxSize    int64  // default: DefaultBodyMaxSize
	TempDir        string // for spooling large bodies; default: os.TempDir()
	Retry          bool   // retry GET requests on transient failures
}

// DefaultConfig returns the configuration with all the defaults filled in.
func DefaultConfig() *Config {
	return &Config{
		APIKey:         os.Getenv(APIKeyEnvName),
		ConnectTimeout: DefaultConnectTimeout,
		BaseURL:        URL,
		BodyMaxSize:    DefaultBodyMaxSize,
	}
}

// Client for the Twelve Data API. It is safe for concurrent use; its settings
// may be changed at any time, affecting only the calls started afterwards.
type Client struct {
	mu             sync.RWMutex
	apiKey         string
	connectTimeout int
	baseURL        string
	retry          bool
	transport      Transport // nil: create the default transport on demand
	customTrans    bool      // transport was set by the user
	resolver       Resolver
}

// NewClient creates a client. A nil config is the same as DefaultConfig().
func NewClient(cfg *Config) *Client {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	c := &Client{
		apiKey:         cfg.APIKey,
		connectTimeout: cfg.ConnectTimeout,
		baseURL:        cfg.BaseURL,
		retry:          cfg.Retry,
		resolver: Resolver{
			BodyMaxSize: cfg.BodyMaxSize,
			TempDir:     cfg.TempDir,
		},
	}
	if c.apiKey == "" {
		c.apiKey = def.APIKey
	}
	if c.connectTimeout <= 0 {
		c.connectTimeout = def.ConnectTimeout
	}
	if c.baseURL == "" {
		c.baseURL = def.BaseURL
	}
	return c
}

// UseClient injects the client into the context.
func UseClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, clientContextKey, c)
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// APIKey used by default in all the calls.
func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// SetAPIKey sets the default API key; "" restores the environment default.
func (c *Client) SetAPIKey(key string) {
	if key == "" {
		key = os.Getenv(APIKeyEnvName)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

// ConnectTimeout in milliseconds.
func (c *Client) ConnectTimeout() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectTimeout
}

// SetConnectTimeout in milliseconds; a non-positive value restores the
// default. The default transport is recreated to apply the new timeout.
func (c *Client) SetConnectTimeout(ms int) {
	if ms <= 0 {
		ms = DefaultConnectTimeout
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectTimeout = ms
	if !c.customTrans {
		c.transport = nil
	}
}

// BaseURL of the API.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetTransport replaces the transport; nil restores the default one.
func (c *Client) SetTransport(t Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = t
	c.customTrans = t != nil
}

// Transport used for the calls, creating the default one if necessary.
func (c *Client) Transport() Transport {
	c.mu.RLock()
	t := c.transport
	c.mu.RUnlock()
	if t != nil {
		return t
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		timeout := time.Duration(c.connectTimeout) * time.Millisecond
		ht := NewHTTPTransport(timeout)
		c.transport = ht
		if c.retry {
			c.transport = &RetryTransport{Next: ht}
		}
	}
	return c.transport
}

// Endpoint creates an Endpoint using the client's API key.
func (c *Client) Endpoint(name string, params Params) *Endpoint {
	return NewEndpoint(name, params, c.APIKey())
}

// Call the named endpoint with the parameters. An invalid call returns
// *EndpointErrors without performing any I/O. Otherwise, the request is
// executed and resolved by Resolver.Resolve.
func (c *Client) Call(ctx context.Context, name string, params Params) (*Response, error) {
	return c.Fetch(ctx, NewRequest(c.Endpoint(name, params)))
}

// Fetch executes the request.
func (c *Client) Fetch(ctx context.Context, req *Request) (*Response, error) {
	verb, _, query, ok := req.Build()
	if !ok {
		errs := req.Endpoint().Errors()
		logging.Warningf(ctx, "invalid call of /%s: %s", req.Endpoint().Name(), errs.Error())
		return nil, &errs
	}
	uri := req.URL(c.BaseURL())
	logging.Debugf(ctx, "%s %s %s", verb, uri, req.Endpoint().QueryParams().Redacted())

	raw, err := c.Transport().Execute(ctx, verb, uri, req.Header(), query)
	resp, err := c.resolver.Resolve(ctx, raw, err, req)
	if err != nil {
		logging.Warningf(ctx, "/%s failed: %s", req.Endpoint().Name(), err.Error())
		return nil, err
	}
	return resp, nil
}
