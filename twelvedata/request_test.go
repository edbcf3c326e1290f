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
	"net/url"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRequest(t *testing.T) {
	t.Parallel()

	Convey("Valid request", t, func() {
		r := NewRequest(NewEndpoint("quote", Params{"symbol": "IBM"}, "testkey"))
		So(r.Valid(), ShouldBeTrue)

		Convey("builds the transport triple", func() {
			verb, rel, params, ok := r.Build()
			So(ok, ShouldBeTrue)
			So(verb, ShouldEqual, http.MethodGet)
			So(rel, ShouldEqual, "quote")
			So(params, ShouldResemble, url.Values{
				"apikey": {"testkey"},
				"format": {"json"},
				"symbol": {"IBM"},
			})
		})

		Convey("projections agree with Build", func() {
			verb, rel, params, _ := r.Build()
			So(r.HTTPVerb(), ShouldEqual, verb)
			So(r.RelativeURL(), ShouldEqual, rel)
			So(r.Params(), ShouldResemble, params)
			So(r.ToMap(), ShouldResemble, map[string]any{
				"http_verb":    verb,
				"relative_url": rel,
				"params":       params,
			})
		})

		Convey("URL, header and format", func() {
			So(r.URL("https://api.test/"), ShouldEqual, "https://api.test/quote")
			So(r.Header(), ShouldResemble, map[string]string{"Accept": AcceptHeader})
			So(r.Format(), ShouldEqual, FormatJSON)
			So(r.Filename(), ShouldEqual, "")
		})

		Convey("complex_data is a POST", func() {
			r := NewRequest(NewEndpoint("complex_data", Params{
				"symbols":    []string{"AAPL", "IBM"},
				"intervals":  "1day",
				"start_date": "2021-01-01",
				"end_date":   "2021-02-01",
			}, "testkey"))
			So(r.HTTPVerb(), ShouldEqual, http.MethodPost)
			So(r.Params().Get("symbols"), ShouldEqual, "AAPL,IBM")
			So(r.Params(), ShouldNotContainKey, "format")
		})

		Convey("CSV filename", func() {
			r := NewRequest(NewEndpoint("quote", Params{
				"symbol": "IBM", "format": "csv", "filename": "ibm.csv"}, "testkey"))
			So(r.Format(), ShouldEqual, FormatCSV)
			So(r.Filename(), ShouldEqual, "ibm.csv")
		})
	})

	Convey("Invalid request is unavailable", t, func() {
		r := NewRequest(NewEndpoint("quote", nil, "testkey"))
		So(r.Valid(), ShouldBeFalse)
		verb, rel, params, ok := r.Build()
		So(ok, ShouldBeFalse)
		So(verb, ShouldEqual, "")
		So(rel, ShouldEqual, "")
		So(params, ShouldBeNil)
		So(r.HTTPVerb(), ShouldEqual, "")
		So(r.RelativeURL(), ShouldEqual, "")
		So(r.Params(), ShouldBeNil)
		So(r.ToMap(), ShouldBeNil)
		So(r.URL(URL), ShouldEqual, "")
	})

	Convey("Request without an endpoint is invalid", t, func() {
		r := NewRequest(nil)
		So(r.Valid(), ShouldBeFalse)
		So(r.Format(), ShouldEqual, Format(""))
		So(r.Filename(), ShouldEqual, "")
	})
}
