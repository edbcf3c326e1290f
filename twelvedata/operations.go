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
	"runtime"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
)

// Operation is an endpoint of the catalog bound to a client.
type Operation struct {
	Definition *Definition
	client     *Client
}

// Operation looks up the named endpoint. The second value is false when the
// name is not in the catalog.
func (c *Client) Operation(name string) (*Operation, bool) {
	d, ok := LookupDefinition(name)
	if !ok {
		return nil, false
	}
	return &Operation{Definition: d, client: c}, true
}

// Operations returns all the endpoints of the catalog bound to the client, in
// the order of their names.
func (c *Client) Operations() []*Operation {
	names := Names()
	ops := make([]*Operation, len(names))
	for i, n := range names {
		ops[i], _ = c.Operation(n)
	}
	return ops
}

// Name of the endpoint.
func (o *Operation) Name() string {
	return o.Definition.Name
}

// Call the endpoint with the parameters.
func (o *Operation) Call(ctx context.Context, params Params) (*Response, error) {
	return o.client.Call(ctx, o.Definition.Name, params)
}

// APIUsage calls /api_usage.
func (c *Client) APIUsage(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "api_usage", p)
}

// Stocks calls /stocks.
func (c *Client) Stocks(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "stocks", p)
}

// ForexPairs calls /forex_pairs.
func (c *Client) ForexPairs(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "forex_pairs", p)
}

// Cryptocurrencies calls /cryptocurrencies.
func (c *Client) Cryptocurrencies(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "cryptocurrencies", p)
}

// ETF calls /etf.
func (c *Client) ETF(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "etf", p)
}

// Indices calls /indices.
func (c *Client) Indices(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "indices", p)
}

// Exchanges calls /exchanges.
func (c *Client) Exchanges(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "exchanges", p)
}

// CryptocurrencyExchanges calls /cryptocurrency_exchanges.
func (c *Client) CryptocurrencyExchanges(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "cryptocurrency_exchanges", p)
}

// TechnicalIndicators calls /technical_indicators.
func (c *Client) TechnicalIndicators(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "technical_indicators", p)
}

// SymbolSearch calls /symbol_search.
func (c *Client) SymbolSearch(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "symbol_search", p)
}

// EarliestTimestamp calls /earliest_timestamp.
func (c *Client) EarliestTimestamp(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "earliest_timestamp", p)
}

// TimeSeries calls /time_series.
func (c *Client) TimeSeries(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "time_series", p)
}

// Quote calls /quote.
func (c *Client) Quote(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "quote", p)
}

// Price calls /price.
func (c *Client) Price(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "price", p)
}

// EOD calls /eod.
func (c *Client) EOD(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "eod", p)
}

// ExchangeRate calls /exchange_rate.
func (c *Client) ExchangeRate(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "exchange_rate", p)
}

// CurrencyConversion calls /currency_conversion.
func (c *Client) CurrencyConversion(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "currency_conversion", p)
}

// ComplexData calls /complex_data.
func (c *Client) ComplexData(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "complex_data", p)
}

// Earnings calls /earnings.
func (c *Client) Earnings(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "earnings", p)
}

// EarningsCalendar calls /earnings_calendar.
func (c *Client) EarningsCalendar(ctx context.Context, p Params) (*Response, error) {
	return c.Call(ctx, "earnings_calendar", p)
}

// CallSpec is a single call in a batch.
type CallSpec struct {
	Name   string
	Params Params
}

// Result of a single call in a batch. Exactly one of Response and Err is
// non-nil.
type Result struct {
	Call     CallSpec
	Response *Response
	Err      error
}

type indexedCall struct {
	index int
	call  CallSpec
}

type indexedResult struct {
	index  int
	result Result
}

// CallAll executes the calls concurrently, using up to workers goroutines
// (runtime.NumCPU() if workers <= 0). Results are in the order of calls.
func (c *Client) CallAll(ctx context.Context, calls []CallSpec, workers int) []Result {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	jobs := make([]indexedCall, len(calls))
	for i, call := range calls {
		jobs[i] = indexedCall{index: i, call: call}
	}
	f := func(j indexedCall) indexedResult {
		resp, err := c.Call(ctx, j.call.Name, j.call.Params)
		return indexedResult{
			index:  j.index,
			result: Result{Call: j.call, Response: resp, Err: err},
		}
	}
	pm := iterator.ParallelMap(ctx, workers, iterator.FromSlice(jobs), f)
	results := iterator.Reduce[indexedResult, []Result](pm, make([]Result, len(calls)),
		func(r indexedResult, res []Result) []Result {
			res[r.index] = r.result
			return res
		})
	// Calls not started before the context was canceled.
	for i := range results {
		if results[i].Response == nil && results[i].Err == nil {
			results[i] = Result{
				Call: calls[i],
				Err:  errors.Annotate(ctx.Err(), "call of /%s not started", calls[i].Name),
			}
		}
	}
	return results
}
