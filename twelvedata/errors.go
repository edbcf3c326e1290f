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
	"strings"
)

// ErrorKind identifies an error in the closed set of errors reported by the
// client.
type ErrorKind int

// Values of ErrorKind.
const (
	KindNone ErrorKind = iota
	EndpointInvalidName
	EndpointMissingRequiredParameters
	EndpointInvalidParameters
	ResponseGeneric // unmapped status codes and transport failures
	ResponseBadRequest
	ResponseUnauthorized
	ResponseForbidden
	ResponseNotFound
	ResponseParameterTooLong
	ResponseTooManyRequests
	ResponseInternalServer
	ParseFailure
)

var kindNames = map[ErrorKind]string{
	KindNone:                          "None",
	EndpointInvalidName:               "EndpointInvalidName",
	EndpointMissingRequiredParameters: "EndpointMissingRequiredParameters",
	EndpointInvalidParameters:         "EndpointInvalidParameters",
	ResponseGeneric:                   "ResponseError",
	ResponseBadRequest:                "BadRequest",
	ResponseUnauthorized:              "Unauthorized",
	ResponseForbidden:                 "Forbidden",
	ResponseNotFound:                  "NotFound",
	ResponseParameterTooLong:          "ParameterTooLong",
	ResponseTooManyRequests:           "TooManyRequests",
	ResponseInternalServer:            "InternalServer",
	ParseFailure:                      "ParseFailure",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// responseKinds maps HTTP and API status codes to their error kinds. Codes not
// in this map resolve to ResponseGeneric.
var responseKinds = map[int]ErrorKind{
	400: ResponseBadRequest,
	401: ResponseUnauthorized,
	403: ResponseForbidden,
	404: ResponseNotFound,
	414: ResponseParameterTooLong,
	429: ResponseTooManyRequests,
	500: ResponseInternalServer,
}

// ResponseKindForCode returns the error kind for the status code. The second
// value is false when the code is not mapped, in which case the kind is
// ResponseGeneric.
func ResponseKindForCode(code int) (ErrorKind, bool) {
	k, ok := responseKinds[code]
	if !ok {
		return ResponseGeneric, false
	}
	return k, true
}

// Attrs are the named values interpolated into an error message.
type Attrs map[string]string

// interpolate replaces every "%{name}" in tmpl with the value of the attribute.
func (a Attrs) interpolate(tmpl string) string {
	pairs := make([]string, 0, 2*len(a))
	for k, v := range a {
		pairs = append(pairs, "%{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

var endpointMessages = map[ErrorKind]string{
	EndpointInvalidName: "`%{invalid}` is not a correct endpoint. " +
		"Valid values are: `%{valid_names}`",
	EndpointMissingRequiredParameters: "Missing values for required parameters: " +
		"`%{invalid}`. `%{name}` endpoint required parameters are: `%{required}`.",
	EndpointInvalidParameters: "Invalid parameters found: `%{invalid}`. " +
		"Valid parameters for `%{name}` endpoint are: `%{parameters}`.",
}

// EndpointError is a schema error detected before any request is sent.
type EndpointError struct {
	Kind     ErrorKind
	Endpoint string   // normalized endpoint name
	Invalid  []string // the offending name or parameter keys
	Allowed  []string // allowed parameter keys of the endpoint, if known
	Required []string // required parameter keys of the endpoint, if known
}

var _ error = &EndpointError{}

// Attrs returns the values interpolated into the error message.
func (e *EndpointError) Attrs() Attrs {
	return Attrs{
		"name":        e.Endpoint,
		"invalid":     strings.Join(e.Invalid, ", "),
		"valid_names": strings.Join(Names(), ", "),
		"parameters":  strings.Join(e.Allowed, ", "),
		"required":    strings.Join(e.Required, ", "),
	}
}

func (e *EndpointError) Error() string {
	tmpl, ok := endpointMessages[e.Kind]
	if !ok {
		tmpl = "Endpoint is not valid. %{invalid}"
	}
	return e.Attrs().interpolate(tmpl)
}

// EndpointErrors holds the result of each validation check of an Endpoint. A
// field is non-nil only when its check failed.
type EndpointErrors struct {
	Name               *EndpointError
	RequiredParameters *EndpointError
	ParametersKeys     *EndpointError
}

var _ error = &EndpointErrors{}

// Names of the validation checks, as used by EndpointErrors.Map.
const (
	CheckName               = "name"
	CheckRequiredParameters = "required_parameters"
	CheckParametersKeys     = "parameters_keys"
)

// Empty is true when no check failed.
func (e EndpointErrors) Empty() bool {
	return e.Name == nil && e.RequiredParameters == nil && e.ParametersKeys == nil
}

// Map returns one entry per check, including the checks that passed (with a
// nil value). The keys are CheckName ("name"), CheckRequiredParameters
// ("required_parameters" for the requiredParameters slot) and
// CheckParametersKeys ("parameters_keys" for the parametersKeys slot).
func (e EndpointErrors) Map() map[string]*EndpointError {
	return map[string]*EndpointError{
		CheckName:               e.Name,
		CheckRequiredParameters: e.RequiredParameters,
		CheckParametersKeys:     e.ParametersKeys,
	}
}

func (e *EndpointErrors) Error() string {
	msgs := []string{}
	for _, err := range []*EndpointError{e.Name, e.RequiredParameters, e.ParametersKeys} {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	if len(msgs) == 0 {
		return "endpoint is valid"
	}
	return strings.Join(msgs, "; ")
}

// ResponseError is any failure to obtain a successful response from the API:
// transport failures, non-2xx HTTP statuses and errors embedded in the
// response body.
type ResponseError struct {
	Kind    ErrorKind
	Code    int    // HTTP or API status code; 0 for transport failures
	Class   string // type of the transport error, for transport failures only
	Message string
	Body    string   // raw response body, when there was one
	Request *Request // the originating request
	Err     error    // the transport error, if any
}

var _ error = &ResponseError{}

// Attrs returns the diagnostic context of the error.
func (e *ResponseError) Attrs() Attrs {
	a := Attrs{
		"kind":    e.Kind.String(),
		"code":    fmt.Sprintf("%d", e.Code),
		"message": e.Message,
	}
	if e.Class != "" {
		a["class"] = e.Class
	}
	if e.Request != nil {
		a["name"] = e.Request.Endpoint().Name()
		a["params"] = e.Request.Endpoint().QueryParams().Redacted().String()
	}
	return a
}

func (e *ResponseError) Error() string {
	tmpl := "%{kind} (code %{code}): %{message}"
	if e.Class != "" {
		tmpl = "%{kind} (%{class}): %{message}"
	}
	if e.Request != nil {
		tmpl = "/%{name} %{params}: " + tmpl
	}
	return e.Attrs().interpolate(tmpl)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// ParseError is returned when a response body cannot be decoded as its
// declared content type.
type ParseError struct {
	ContentType ContentType
	Request     *Request
	Err         error
}

var _ error = &ParseError{}

func (e *ParseError) Error() string {
	name := ""
	if e.Request != nil {
		name = "/" + e.Request.Endpoint().Name() + ": "
	}
	return fmt.Sprintf("%sfailed to parse %s body: %s", name, e.ContentType, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an error returned by this package, looking
// through wrapped errors. It returns KindNone for nil and for foreign errors.
func KindOf(err error) ErrorKind {
	for err != nil {
		switch e := err.(type) {
		case *EndpointError:
			return e.Kind
		case *EndpointErrors:
			for _, ee := range []*EndpointError{e.Name, e.RequiredParameters, e.ParametersKeys} {
				if ee != nil {
					return ee.Kind
				}
			}
			return KindNone
		case *ResponseError:
			return e.Kind
		case *ParseError:
			return ParseFailure
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindNone
		}
		err = u.Unwrap()
	}
	return KindNone
}

