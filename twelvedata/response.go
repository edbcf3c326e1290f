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
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// DefaultBodyMaxSize is the body size in bytes at which the body is spooled to
// a temporary file before parsing.
const DefaultBodyMaxSize int64 = 16000

// CSVSeparator is the field separator of CSV responses.
const CSVSeparator = ';'

// ContentType is the media subtype of a response body.
type ContentType string

// Values of ContentType.
const (
	ContentJSON  ContentType = "json"
	ContentCSV   ContentType = "csv"
	ContentPlain ContentType = "plain"
)

// parseContentType extracts the content type from the Content-Type header.
// Anything not recognized as JSON or CSV is plain text.
func parseContentType(header string) ContentType {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ContentPlain
	}
	switch mediaType[strings.LastIndex(mediaType, "/")+1:] {
	case "json":
		return ContentJSON
	case "csv":
		return ContentCSV
	}
	return ContentPlain
}

// CSVTable is a parsed CSV body.
type CSVTable struct {
	Header []string
	Rows   [][]string
}

// Body is a parsed response body. Exactly one of JSON, CSV or Text is
// populated, according to ContentType.
type Body struct {
	ContentType ContentType
	JSON        any
	CSV         *CSVTable
	Text        string
}

// Object returns the JSON body as an object, or nil if it isn't one.
func (b *Body) Object() map[string]any {
	m, _ := b.JSON.(map[string]any)
	return m
}

// parseBody decodes the body according to its content type.
func parseBody(ct ContentType, r io.Reader) (*Body, error) {
	b := &Body{ContentType: ct}
	switch ct {
	case ContentJSON:
		dec := json.NewDecoder(r)
		if err := dec.Decode(&b.JSON); err != nil {
			return nil, errors.Annotate(err, "failed to decode JSON")
		}
		var extra any
		if err := dec.Decode(&extra); err != io.EOF {
			return nil, errors.Reason("unexpected data after the JSON value")
		}
	case ContentCSV:
		cr := csv.NewReader(r)
		cr.Comma = CSVSeparator
		records, err := cr.ReadAll()
		if err != nil {
			return nil, errors.Annotate(err, "failed to read CSV")
		}
		b.CSV = &CSVTable{}
		if len(records) > 0 {
			b.CSV.Header = records[0]
			b.CSV.Rows = records[1:]
		}
	default:
		text, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read text")
		}
		b.Text = string(text)
	}
	return b, nil
}

// dump serializes the body back to its wire format.
func (b *Body) dump() (string, error) {
	switch b.ContentType {
	case ContentJSON:
		data, err := json.Marshal(b.JSON)
		if err != nil {
			return "", errors.Annotate(err, "failed to encode JSON")
		}
		return string(data), nil
	case ContentCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		w.Comma = CSVSeparator
		if b.CSV != nil {
			if len(b.CSV.Header) > 0 {
				if err := w.Write(b.CSV.Header); err != nil {
					return "", errors.Annotate(err, "failed to write CSV header")
				}
			}
			if err := w.WriteAll(b.CSV.Rows); err != nil {
				return "", errors.Annotate(err, "failed to write CSV rows")
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", errors.Annotate(err, "failed to flush CSV")
		}
		return buf.String(), nil
	}
	return b.Text, nil
}

// Resolver turns raw transport results into Responses or errors.
type Resolver struct {
	BodyMaxSize int64  // spooling threshold; 0 means DefaultBodyMaxSize
	TempDir     string // directory for spool files; "" means os.TempDir()
}

// Response is a successful API response.
type Response struct {
	request *Request
	status  int
	header  map[string]string
	body    io.ReadCloser
	maxSize int64
	tempDir string

	contentType ContentType // lazily computed
	parsed      *Body       // lazily computed
	parseErr    error
	bodySize    int64
	dumped      *string
}

// NewResponse wraps the raw result without resolving it. The body is parsed on
// the first call to ParsedBody.
func (rs *Resolver) NewResponse(raw *RawResponse, req *Request) *Response {
	r := &Response{
		request: req,
		status:  raw.Status,
		header:  make(map[string]string, len(raw.Header)),
		body:    raw.Body,
		maxSize: rs.BodyMaxSize,
		tempDir: rs.TempDir,
	}
	if r.maxSize <= 0 {
		r.maxSize = DefaultBodyMaxSize
	}
	for k, v := range raw.Header {
		r.header[strings.ToLower(k)] = v
	}
	return r
}

// Resolve classifies the outcome of a transport call. It returns either a
// Response with an already parsed body, or exactly one of *ResponseError (for
// transport, HTTP and API errors) and *ParseError. The raw body is always
// closed.
func (rs *Resolver) Resolve(ctx context.Context, raw *RawResponse, transportErr error, req *Request) (*Response, error) {
	if transportErr != nil {
		if raw != nil && raw.Body != nil {
			raw.Body.Close()
		}
		return nil, &ResponseError{
			Kind:    ResponseGeneric,
			Class:   fmt.Sprintf("%T", transportErr),
			Message: transportErr.Error(),
			Request: req,
			Err:     transportErr,
		}
	}
	if raw == nil {
		return nil, &ResponseError{
			Kind:    ResponseGeneric,
			Message: "transport returned no response",
			Request: req,
		}
	}
	if raw.Status < 200 || raw.Status > 299 {
		return nil, httpError(raw, req)
	}
	r := rs.NewResponse(raw, req)
	if _, err := r.ParsedBody(); err != nil {
		return nil, err
	}
	if err := r.embeddedError(); err != nil {
		return nil, err
	}
	logging.Debugf(ctx, "resolved /%s: HTTP %d, %s body of %d bytes",
		req.Endpoint().Name(), r.status, r.ContentType(), r.bodySize)
	return r, nil
}

// httpError creates the error for a non-2xx status. The message is taken from
// a JSON body when it has one, otherwise it's the body text.
func httpError(raw *RawResponse, req *Request) *ResponseError {
	var text string
	if raw.Body != nil {
		data, err := io.ReadAll(raw.Body)
		raw.Body.Close()
		text = string(data)
		if err != nil && text == "" {
			text = err.Error()
		}
	}
	kind, _ := ResponseKindForCode(raw.Status)
	msg := strings.TrimSpace(text)
	var obj map[string]any
	if json.Unmarshal([]byte(text), &obj) == nil {
		if m, ok := obj["message"].(string); ok {
			msg = m
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP status %d", raw.Status)
	}
	return &ResponseError{
		Kind:    kind,
		Code:    raw.Status,
		Message: msg,
		Body:    text,
		Request: req,
	}
}

// embeddedCode returns the status code embedded in a JSON object body.
func embeddedCode(obj map[string]any) (int, bool) {
	if obj == nil {
		return 0, false
	}
	switch c := obj["code"].(type) {
	case float64:
		return int(c), true
	case int:
		return c, true
	}
	return 0, false
}

// embeddedError detects an error reported by the API in a 2xx response: a
// mapped "code", or an unmapped one with "status": "error".
func (r *Response) embeddedError() *ResponseError {
	if r.parsed == nil {
		return nil
	}
	obj := r.parsed.Object()
	code, hasCode := embeddedCode(obj)
	kind, mapped := ResponseKindForCode(code)
	status, _ := obj["status"].(string)
	if !(hasCode && mapped) && status != "error" {
		return nil
	}
	msg, _ := obj["message"].(string)
	if msg == "" {
		msg = "the API reported an error"
	}
	body, _ := r.DumpedBody()
	return &ResponseError{
		Kind:    kind,
		Code:    code,
		Message: msg,
		Body:    body,
		Request: r.request,
	}
}

// Request the response was obtained for.
func (r *Response) Request() *Request {
	return r.request
}

// Header returns the value of the response header, case-insensitively.
func (r *Response) Header(name string) string {
	return r.header[strings.ToLower(name)]
}

// HTTPStatusCode of the transport response.
func (r *Response) HTTPStatusCode() int {
	return r.status
}

// StatusCode is the code embedded in a JSON body, if any, and the HTTP status
// code otherwise.
func (r *Response) StatusCode() int {
	if r.parsed != nil {
		if c, ok := embeddedCode(r.parsed.Object()); ok {
			return c
		}
	}
	return r.status
}

// ContentType of the body.
func (r *Response) ContentType() ContentType {
	if r.contentType == "" {
		r.contentType = parseContentType(r.Header("Content-Type"))
	}
	return r.contentType
}

// BodySize is the number of bytes read from the body; it is known only after
// parsing.
func (r *Response) BodySize() int64 {
	return r.bodySize
}

// ParsedBody parses the body on the first call, and returns the same result
// afterwards. A decoding failure is returned as *ParseError.
func (r *Response) ParsedBody() (*Body, error) {
	if r.parsed == nil && r.parseErr == nil {
		r.parsed, r.parseErr = r.parse()
	}
	return r.parsed, r.parseErr
}

func (r *Response) parse() (*Body, error) {
	ct := r.ContentType()
	if r.body == nil {
		return parseBody(ct, strings.NewReader(""))
	}
	defer r.body.Close()

	src, cleanup, err := r.bodyReader()
	if err != nil {
		return nil, &ParseError{ContentType: ct, Request: r.request, Err: err}
	}
	defer cleanup()

	b, err := parseBody(ct, src)
	if err != nil {
		return nil, &ParseError{ContentType: ct, Request: r.request, Err: err}
	}
	return b, nil
}

// bodyReader returns a reader for the whole body. A body smaller than maxSize
// is kept in memory; a larger one is copied to a temporary file. The returned
// cleanup function closes and removes the file, and must always be called.
func (r *Response) bodyReader() (io.Reader, func(), error) {
	head, err := io.ReadAll(io.LimitReader(r.body, r.maxSize))
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to read body")
	}
	if int64(len(head)) < r.maxSize {
		r.bodySize = int64(len(head))
		return bytes.NewReader(head), func() {}, nil
	}
	f, err := os.CreateTemp(r.tempDir, "twelvedata-body-*")
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to create spool file")
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}
	n, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r.body))
	if err != nil {
		cleanup()
		return nil, nil, errors.Annotate(err, "failed to spool body to %s", f.Name())
	}
	r.bodySize = n
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, nil, errors.Annotate(err, "failed to rewind spool file")
	}
	return f, cleanup, nil
}

// DumpedBody serializes the parsed body back to its wire format: JSON, CSV
// text or plain text.
func (r *Response) DumpedBody() (string, error) {
	if r.dumped != nil {
		return *r.dumped, nil
	}
	b, err := r.ParsedBody()
	if err != nil {
		return "", err
	}
	s, err := b.dump()
	if err != nil {
		return "", errors.Annotate(err, "failed to dump %s body", b.ContentType)
	}
	r.dumped = &s
	return s, nil
}

// AttachmentFilename is the file name from the Content-Disposition header, if
// any. Directory components are stripped.
func (r *Response) AttachmentFilename() string {
	cd := r.Header("Content-Disposition")
	if cd == "" {
		return ""
	}
	name := ""
	if _, params, err := mime.ParseMediaType(cd); err == nil {
		name = params["filename"]
	} else if i := strings.LastIndex(cd, "filename="); i >= 0 {
		name = strings.Trim(cd[i+len("filename="):], "\" ")
	}
	if name == "" {
		return ""
	}
	return filepath.Base(name)
}

// DefaultFilename for saving the body: the "filename" query parameter, else the
// attachment file name, else "12data_{endpoint}.{ext}". The extension is the
// content type of a JSON or CSV body, and the requested format otherwise.
// Directory components of the names are stripped.
func (r *Response) DefaultFilename() string {
	if name := r.request.Filename(); name != "" {
		return filepath.Base(name)
	}
	if name := r.AttachmentFilename(); name != "" {
		return name
	}
	ext := string(r.ContentType())
	if r.ContentType() == ContentPlain {
		if f := r.request.Format(); f != "" {
			ext = string(f)
		}
	}
	return fmt.Sprintf("12data_%s.%s", r.request.Endpoint().Name(), ext)
}

// ToDiskFile writes the dumped body to the file at path, or to
// DefaultFilename() in the current directory when path is "". It returns the
// path of the written file.
func (r *Response) ToDiskFile(path string) (string, error) {
	if path == "" {
		path = r.DefaultFilename()
	}
	s, err := r.DumpedBody()
	if err != nil {
		return "", errors.Annotate(err, "failed to dump body for %s", path)
	}
	if err := os.WriteFile(path, []byte(s), 0644); err != nil {
		return "", errors.Annotate(err, "failed to write %s", path)
	}
	return path, nil
}
