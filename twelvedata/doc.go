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

// Package twelvedata implements a client for the Twelve Data REST API.
//
// Official documentation is at https://twelvedata.com/docs .
//
// Every API call goes through the same pipeline. The endpoint name and its
// query parameters are first checked against a static catalog of endpoint
// definitions (see Definitions()). A valid Endpoint is turned into a Request,
// which is a transport-ready triple of HTTP verb, relative URL and query
// values. The Request is executed by a Transport, and the raw result is
// resolved into either a Response with a parsed body or a typed error.
//
// Schema errors are detected entirely on the client side and are returned as
// *EndpointErrors without performing any I/O. HTTP-level failures, transport
// failures and errors embedded by the API in an otherwise successful response
// are returned as *ResponseError, whose Kind identifies the status code. A body
// which cannot be decoded as its declared content type yields a *ParseError.
//
// A typical use:
//
//	c := twelvedata.NewClient(nil) // API key from TWELVEDATA_API_KEY
//	resp, err := c.Quote(ctx, twelvedata.Params{"symbol": "IBM"})
//	if err != nil {
//	  ...
//	}
//	body, err := resp.ParsedBody()
//	fmt.Println(body.Object()["close"])
package twelvedata
