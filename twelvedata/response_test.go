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
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	. "github.com/smartystreets/goconvey/convey"
)

// testBody records whether it was closed.
type testBody struct {
	io.Reader
	closed bool
}

func (b *testBody) Close() error {
	b.closed = true
	return nil
}

func testRaw(status int, contentType, body string) (*RawResponse, *testBody) {
	b := &testBody{Reader: strings.NewReader(body)}
	h := map[string]string{}
	if contentType != "" {
		h["Content-Type"] = contentType
	}
	return &RawResponse{Status: status, Header: h, Body: b}, b
}

type dnsError struct{}

func (dnsError) Error() string { return "no such host" }

func dirEntries(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return -1
	}
	return len(entries)
}

func TestResponse(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_twelvedata_response")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	ctx := context.Background()
	quote := func(p Params) *Request {
		return NewRequest(NewEndpoint("quote", p, "testkey"))
	}
	req := quote(Params{"symbol": "IBM"})

	Convey("Content type is the media subtype", t, func() {
		So(parseContentType("application/json; charset=utf-8"), ShouldEqual, ContentJSON)
		So(parseContentType("text/csv"), ShouldEqual, ContentCSV)
		So(parseContentType("text/plain"), ShouldEqual, ContentPlain)
		So(parseContentType("text/html"), ShouldEqual, ContentPlain)
		So(parseContentType(""), ShouldEqual, ContentPlain)
	})

	Convey("Successful JSON response", t, func() {
		var rs Resolver
		raw, body := testRaw(200, "application/json; charset=utf-8",
			`{"symbol":"IBM","name":"International Business Machines","close":"120.5","volume":3145}`)
		resp, err := rs.Resolve(ctx, raw, nil, req)
		So(err, ShouldBeNil)
		So(body.closed, ShouldBeTrue)
		So(resp.ContentType(), ShouldEqual, ContentJSON)
		So(resp.HTTPStatusCode(), ShouldEqual, 200)
		So(resp.StatusCode(), ShouldEqual, 200)
		So(resp.Request(), ShouldEqual, req)

		parsed, err := resp.ParsedBody()
		So(err, ShouldBeNil)
		So(parsed.Object()["symbol"], ShouldEqual, "IBM")
		So(parsed.Object()["volume"], ShouldEqual, 3145.0)

		Convey("dumped body round-trips", func() {
			dumped, err := resp.DumpedBody()
			So(err, ShouldBeNil)
			var reparsed any
			So(json.Unmarshal([]byte(dumped), &reparsed), ShouldBeNil)
			So(reparsed, ShouldResemble, parsed.JSON)
		})

		Convey("parsing is memoized", func() {
			again, err := resp.ParsedBody()
			So(err, ShouldBeNil)
			So(again, ShouldEqual, parsed)
		})

		Convey("default filename", func() {
			So(resp.AttachmentFilename(), ShouldEqual, "")
			So(resp.DefaultFilename(), ShouldEqual, "12data_quote.json")
		})

		Convey("writes to disk", func() {
			path := filepath.Join(tmpdir, "quote.json")
			written, err := resp.ToDiskFile(path)
			So(err, ShouldBeNil)
			So(written, ShouldEqual, path)
			data, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			dumped, _ := resp.DumpedBody()
			So(string(data), ShouldEqual, dumped)
		})
	})

	Convey("NewResponse parses lazily", t, func() {
		var rs Resolver
		raw, body := testRaw(200, "text/plain", "hello")
		resp := rs.NewResponse(raw, req)
		So(body.closed, ShouldBeFalse)
		parsed, err := resp.ParsedBody()
		So(err, ShouldBeNil)
		So(body.closed, ShouldBeTrue)
		So(parsed.Text, ShouldEqual, "hello")
		So(resp.BodySize(), ShouldEqual, 5)
	})

	Convey("CSV response", t, func() {
		var rs Resolver
		csvReq := quote(Params{"symbol": "IBM", "format": "csv"})
		csvText := "symbol;name;close\nIBM;International Business Machines;120.5\n"

		Convey("uses the CSV parser and default file name", func() {
			raw, _ := testRaw(200, "text/csv", csvText)
			resp, err := rs.Resolve(ctx, raw, nil, csvReq)
			So(err, ShouldBeNil)
			So(resp.ContentType(), ShouldEqual, ContentCSV)
			parsed, err := resp.ParsedBody()
			So(err, ShouldBeNil)
			So(parsed.CSV, ShouldResemble, &CSVTable{
				Header: []string{"symbol", "name", "close"},
				Rows:   [][]string{{"IBM", "International Business Machines", "120.5"}},
			})
			So(resp.DefaultFilename(), ShouldEqual, "12data_quote.csv")
			dumped, err := resp.DumpedBody()
			So(err, ShouldBeNil)
			So(dumped, ShouldEqual, csvText)
		})

		Convey("names the file by the content type", func() {
			raw, _ := testRaw(200, "text/csv", csvText)
			resp, err := rs.Resolve(ctx, raw, nil, req)
			So(err, ShouldBeNil)
			So(resp.Request().Format(), ShouldEqual, FormatJSON)
			So(resp.ContentType(), ShouldEqual, ContentCSV)
			So(resp.DefaultFilename(), ShouldEqual, "12data_quote.csv")
		})

		Convey("names plain text by the requested format", func() {
			raw, _ := testRaw(200, "text/plain", "IBM 120.5")
			resp, err := rs.Resolve(ctx, raw, nil, csvReq)
			So(err, ShouldBeNil)
			So(resp.DefaultFilename(), ShouldEqual, "12data_quote.csv")
		})

		Convey("takes the attachment file name", func() {
			raw, _ := testRaw(200, "text/csv", csvText)
			raw.Header["Content-Disposition"] = `attachment; filename="ibm_quote.csv"`
			resp, err := rs.Resolve(ctx, raw, nil, csvReq)
			So(err, ShouldBeNil)
			So(resp.AttachmentFilename(), ShouldEqual, "ibm_quote.csv")
			So(resp.DefaultFilename(), ShouldEqual, "ibm_quote.csv")
		})

		Convey("prefers the filename parameter", func() {
			raw, _ := testRaw(200, "text/csv", csvText)
			raw.Header["Content-Disposition"] = `attachment; filename="ibm_quote.csv"`
			r := quote(Params{"symbol": "IBM", "format": "csv", "filename": "mine.csv"})
			resp, err := rs.Resolve(ctx, raw, nil, r)
			So(err, ShouldBeNil)
			So(resp.DefaultFilename(), ShouldEqual, "mine.csv")
		})

		Convey("strips directories from the filename parameter", func() {
			raw, _ := testRaw(200, "text/csv", csvText)
			r := quote(Params{"symbol": "IBM", "format": "csv", "filename": "../../x.csv"})
			resp, err := rs.Resolve(ctx, raw, nil, r)
			So(err, ShouldBeNil)
			So(resp.DefaultFilename(), ShouldEqual, "x.csv")
		})

		Convey("strips directories from the attachment name", func() {
			raw, _ := testRaw(200, "text/csv", csvText)
			raw.Header["content-disposition"] = `attachment; filename="../../etc/x.csv"`
			resp, err := rs.Resolve(ctx, raw, nil, csvReq)
			So(err, ShouldBeNil)
			So(resp.AttachmentFilename(), ShouldEqual, "x.csv")
		})
	})

	Convey("Large bodies are spooled to a temporary file", t, func() {
		spool := filepath.Join(tmpdir, "spool")
		So(os.MkdirAll(spool, 0755), ShouldBeNil)
		rs := Resolver{BodyMaxSize: 64, TempDir: spool}
		values := make([]string, 50)
		for i := range values {
			values[i] = `{"close":"1.5"}`
		}
		large := `{"symbol":"IBM","values":[` + strings.Join(values, ",") + `]}`

		Convey("and removed after parsing", func() {
			raw, _ := testRaw(200, "application/json", large)
			resp, err := rs.Resolve(ctx, raw, nil, req)
			So(err, ShouldBeNil)
			So(resp.BodySize(), ShouldEqual, len(large))
			parsed, _ := resp.ParsedBody()
			So(parsed.Object()["symbol"], ShouldEqual, "IBM")
			So(len(parsed.Object()["values"].([]any)), ShouldEqual, 50)
			So(dirEntries(spool), ShouldEqual, 0)
		})

		Convey("and removed after a parse failure", func() {
			raw, _ := testRaw(200, "application/json", large[:len(large)-5])
			_, err := rs.Resolve(ctx, raw, nil, req)
			So(err, ShouldNotBeNil)
			So(KindOf(err), ShouldEqual, ParseFailure)
			So(dirEntries(spool), ShouldEqual, 0)
		})

		Convey("but not below the threshold", func() {
			raw, _ := testRaw(200, "text/plain", strings.Repeat("x", 63))
			resp, err := rs.Resolve(ctx, raw, nil, req)
			So(err, ShouldBeNil)
			parsed, _ := resp.ParsedBody()
			So(len(parsed.Text), ShouldEqual, 63)
		})
	})

	Convey("Malformed JSON is a parse error", t, func() {
		var rs Resolver
		raw, body := testRaw(200, "application/json", `{"symbol":`)
		resp, err := rs.Resolve(ctx, raw, nil, req)
		So(resp, ShouldBeNil)
		So(body.closed, ShouldBeTrue)
		pe, ok := err.(*ParseError)
		So(ok, ShouldBeTrue)
		So(pe.ContentType, ShouldEqual, ContentJSON)
		So(pe.Error(), ShouldStartWith, "/quote: failed to parse json body")
	})

	Convey("Trailing data after a JSON value is a parse error", t, func() {
		var rs Resolver
		raw, _ := testRaw(200, "application/json", `{"symbol":"IBM"} <html>oops`)
		resp, err := rs.Resolve(ctx, raw, nil, req)
		So(resp, ShouldBeNil)
		So(KindOf(err), ShouldEqual, ParseFailure)

		raw, _ = testRaw(200, "application/json", "{\"symbol\":\"IBM\"}\n  \n")
		resp, err = rs.Resolve(ctx, raw, nil, req)
		So(err, ShouldBeNil)
		So(resp.StatusCode(), ShouldEqual, 200)
	})

	Convey("HTTP errors", t, func() {
		var rs Resolver

		Convey("401 is Unauthorized", func() {
			raw, body := testRaw(401, "text/plain", "Invalid API key")
			resp, err := rs.Resolve(ctx, raw, nil, req)
			So(resp, ShouldBeNil)
			So(body.closed, ShouldBeTrue)
			re, ok := err.(*ResponseError)
			So(ok, ShouldBeTrue)
			So(re.Kind, ShouldEqual, ResponseUnauthorized)
			So(re.Code, ShouldEqual, 401)
			So(re.Body, ShouldEqual, "Invalid API key")
			So(re.Request, ShouldEqual, req)
			So(re.Error(), ShouldEqual, "/quote {apikey: ***, format: json, symbol: IBM}: "+
				"Unauthorized (code 401): Invalid API key")
		})

		Convey("status codes map to their kinds", func() {
			for code, kind := range map[int]ErrorKind{
				400: ResponseBadRequest,
				403: ResponseForbidden,
				404: ResponseNotFound,
				414: ResponseParameterTooLong,
				429: ResponseTooManyRequests,
				500: ResponseInternalServer,
				418: ResponseGeneric,
				302: ResponseGeneric,
			} {
				raw, _ := testRaw(code, "text/plain", "error")
				_, err := rs.Resolve(ctx, raw, nil, req)
				So(KindOf(err), ShouldEqual, kind)
				So(err.(*ResponseError).Code, ShouldEqual, code)
			}
		})

		Convey("JSON error body provides the message", func() {
			raw, _ := testRaw(404, "application/json",
				`{"code":404,"message":"not found","status":"error"}`)
			_, err := rs.Resolve(ctx, raw, nil, req)
			So(err.(*ResponseError).Message, ShouldEqual, "not found")
		})

		Convey("empty body", func() {
			raw, _ := testRaw(500, "", "")
			_, err := rs.Resolve(ctx, raw, nil, req)
			So(err.(*ResponseError).Message, ShouldEqual, "HTTP status 500")
		})
	})

	Convey("Transport failure is a generic error", t, func() {
		var rs Resolver
		_, err := rs.Resolve(ctx, nil, dnsError{}, req)
		re, ok := err.(*ResponseError)
		So(ok, ShouldBeTrue)
		So(re.Kind, ShouldEqual, ResponseGeneric)
		So(re.Code, ShouldEqual, 0)
		So(re.Class, ShouldEqual, "twelvedata.dnsError")
		So(re.Message, ShouldEqual, "no such host")
		So(re.Unwrap(), ShouldResemble, dnsError{})
		So(re.Error(), ShouldEndWith, "ResponseError (twelvedata.dnsError): no such host")
	})

	Convey("API errors embedded in a successful response", t, func() {
		var rs Resolver

		Convey("mapped code", func() {
			raw, _ := testRaw(200, "application/json",
				`{"code":429,"message":"You have run out of API credits","status":"error"}`)
			resp, err := rs.Resolve(ctx, raw, nil, req)
			So(resp, ShouldBeNil)
			re := err.(*ResponseError)
			So(re.Kind, ShouldEqual, ResponseTooManyRequests)
			So(re.Code, ShouldEqual, 429)
			So(re.Message, ShouldEqual, "You have run out of API credits")
			So(re.Body, ShouldContainSubstring, `"code":429`)
		})

		Convey("unmapped code with error status", func() {
			raw, _ := testRaw(200, "application/json", `{"code":499,"status":"error"}`)
			_, err := rs.Resolve(ctx, raw, nil, req)
			So(KindOf(err), ShouldEqual, ResponseGeneric)
			So(err.(*ResponseError).Code, ShouldEqual, 499)
		})

		Convey("unmapped code without error status is a success", func() {
			raw, _ := testRaw(200, "application/json", `{"code":200,"status":"ok"}`)
			resp, err := rs.Resolve(ctx, raw, nil, req)
			So(err, ShouldBeNil)
			So(resp.StatusCode(), ShouldEqual, 200)
		})
	})
}
