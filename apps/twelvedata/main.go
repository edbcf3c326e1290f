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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketdata/table"
	"github.com/stockparfait/marketdata/twelvedata"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Output formats of the -print flag.
const (
	printText = "text"
	printCSV  = "csv"
	printJSON = "json"
	printYAML = "yaml"
)

type Flags struct {
	ConfigDir string // default: ~/.twelvedata
	LogLevel  logging.Level
	APIKey    string // overrides the config file
	Timeout   int    // connect timeout in ms; overrides the config file
	Retry     bool   // retry GET requests; or-ed with the config file
	Print     string // text, csv, json or yaml
	Save      bool   // save the bodies to files instead of printing
	Dir       string // where to save the files
	File      string // file name for a single call; default: Response.DefaultFilename()
	List      bool   // print the endpoint catalog
	Batch     string // TOML file with the calls to execute
	Workers   int    // concurrent calls in a batch
	// A single call, from the positional arguments.
	Endpoint string
	Params   twelvedata.Params
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("twelvedata", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: twelvedata [flags] <endpoint> [key=value ...]\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&flags.ConfigDir, "config",
		filepath.Join(os.Getenv("HOME"), ".twelvedata"),
		"directory containing config.toml")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.APIKey, "apikey", "", "API key; default: from config or $"+
		twelvedata.APIKeyEnvName)
	fs.IntVar(&flags.Timeout, "timeout", 0, "connect timeout in milliseconds")
	fs.BoolVar(&flags.Retry, "retry", false, "retry GET requests on transient failures")
	fs.StringVar(&flags.Print, "print", printText, "output format: text, csv, json or yaml")
	fs.BoolVar(&flags.Save, "save", false, "save response bodies to files")
	fs.StringVar(&flags.Dir, "dir", ".", "directory for saved files")
	fs.StringVar(&flags.File, "file", "", "file name for the saved body")
	fs.BoolVar(&flags.List, "list", false, "list the endpoints and their parameters")
	fs.StringVar(&flags.Batch, "batch", "", "TOML file with a batch of calls")
	fs.IntVar(&flags.Workers, "workers", 0, "concurrent calls in a batch; default: #CPUs")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch flags.Print {
	case printText, printCSV, printJSON, printYAML:
	default:
		return nil, errors.Reason("unsupported -print format '%s'", flags.Print)
	}
	rest := fs.Args()
	if flags.List || flags.Batch != "" {
		if len(rest) > 0 {
			return nil, errors.Reason("unexpected arguments with -list or -batch: %s",
				strings.Join(rest, " "))
		}
		return &flags, nil
	}
	if len(rest) == 0 {
		return nil, errors.Reason("missing endpoint name")
	}
	flags.Endpoint = rest[0]
	params, err := parseParams(rest[1:])
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse parameters")
	}
	flags.Params = params
	return &flags, nil
}

// parseParams converts "key=value" arguments to query parameters. A value
// containing commas stays a single string, which is what the API expects for
// lists.
func parseParams(args []string) (twelvedata.Params, error) {
	params := twelvedata.Params{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, errors.Reason("argument '%s' is not of the form key=value", a)
		}
		params[k] = v
	}
	return params, nil
}

type Config struct {
	APIKey         string `toml:"apikey"`
	ConnectTimeout int    `toml:"connect_timeout"` // milliseconds
	BaseURL        string `toml:"base_url"`
	BodyMaxSize    int64  `toml:"body_max_size"` // bytes
	Retry          bool   `toml:"retry"`
}

// parseConfig reads config.toml from dir. A missing file is an empty config.
func parseConfig(dir string) (*Config, error) {
	filePath := filepath.Join(dir, "config.toml")
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	var c Config
	if err := toml.NewDecoder(f).Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	return &c, nil
}

// clientConfig merges the config file with the flags, flags taking precedence.
func (c *Config) clientConfig(flags *Flags) *twelvedata.Config {
	cfg := &twelvedata.Config{
		APIKey:         c.APIKey,
		ConnectTimeout: c.ConnectTimeout,
		BaseURL:        c.BaseURL,
		BodyMaxSize:    c.BodyMaxSize,
		Retry:          c.Retry || flags.Retry,
	}
	if flags.APIKey != "" {
		cfg.APIKey = flags.APIKey
	}
	if flags.Timeout > 0 {
		cfg.ConnectTimeout = flags.Timeout
	}
	return cfg
}

// BatchCall is a single call in a batch file:
//
//   [[call]]
//   endpoint = "time_series"
//   file = "ibm.csv"
//   [call.params]
//   symbol = "IBM"
//   interval = "1day"
//   format = "csv"
type BatchCall struct {
	Endpoint string         `toml:"endpoint"`
	Params   map[string]any `toml:"params"`
	File     string         `toml:"file"` // file name when saving
}

type Batch struct {
	Calls []BatchCall `toml:"call"`
}

func parseBatch(filePath string) (*Batch, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open batch file %s", filePath)
	}
	defer f.Close()

	var b Batch
	if err := toml.NewDecoder(f).Decode(&b); err != nil {
		return nil, errors.Annotate(err, "failed to read batch file %s", filePath)
	}
	for i, c := range b.Calls {
		if c.Endpoint == "" {
			return nil, errors.Reason("call %d in %s has no endpoint", i+1, filePath)
		}
	}
	return &b, nil
}

func newClient(flags *Flags) (*twelvedata.Client, error) {
	config, err := parseConfig(flags.ConfigDir)
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse config")
	}
	return twelvedata.NewClient(config.clientConfig(flags)), nil
}

// csvObjects converts CSV rows to objects keyed by the header.
func csvObjects(t *twelvedata.CSVTable) []map[string]any {
	res := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		obj := make(map[string]any, len(row))
		for j, cell := range row {
			if j < len(t.Header) {
				obj[t.Header[j]] = cell
			}
		}
		res[i] = obj
	}
	return res
}

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, v any, format string) error {
	if format == printYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Annotate(err, "failed to encode YAML")
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Annotate(err, "failed to encode JSON")
	}
	return nil
}

func printBody(w io.Writer, body *twelvedata.Body, format string) error {
	var tbl *table.Table
	switch body.ContentType {
	case twelvedata.ContentJSON:
		if format == printJSON || format == printYAML {
			return encode(w, body.JSON, format)
		}
		var err error
		if tbl, err = table.FromJSON(body.JSON); err != nil {
			return errors.Annotate(err, "failed to tabulate the response")
		}
	case twelvedata.ContentCSV:
		if format == printJSON || format == printYAML {
			return encode(w, csvObjects(body.CSV), format)
		}
		tbl = table.FromRecords(body.CSV.Header, body.CSV.Rows)
	default:
		_, err := io.WriteString(w, body.Text)
		return err
	}
	if format == printCSV {
		if err := tbl.WriteCSV(w, table.Params{}); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

// output saves or prints the response body.
func output(ctx context.Context, flags *Flags, resp *twelvedata.Response, fileName string, w io.Writer) error {
	if flags.Save {
		if fileName == "" {
			fileName = resp.DefaultFilename()
		}
		path, err := resp.ToDiskFile(filepath.Join(flags.Dir, fileName))
		if err != nil {
			return errors.Annotate(err, "failed to save the response")
		}
		logging.Infof(ctx, "saved /%s to %s", resp.Request().Endpoint().Name(), path)
		return nil
	}
	body, err := resp.ParsedBody()
	if err != nil {
		return errors.Annotate(err, "failed to parse the response")
	}
	return printBody(w, body, flags.Print)
}

func listEndpoints(w io.Writer, format string) error {
	names := twelvedata.Names()
	if format == printJSON || format == printYAML {
		objs := make([]map[string]any, len(names))
		for i, n := range names {
			d, _ := twelvedata.LookupDefinition(n)
			objs[i] = map[string]any{
				"name":       d.Name,
				"verb":       d.HTTPVerb,
				"parameters": d.Parameters,
				"required":   d.Required,
			}
		}
		return encode(w, objs, format)
	}
	tbl := table.New("Endpoint", "Verb", "Required", "Parameters")
	for _, n := range names {
		d, _ := twelvedata.LookupDefinition(n)
		tbl.AddRow(d.Name, d.HTTPVerb, strings.Join(d.Required, ","),
			strings.Join(d.Parameters, ","))
	}
	if format == printCSV {
		return tbl.WriteCSV(w, table.Params{})
	}
	return tbl.WriteText(w, table.Params{})
}

func runBatch(ctx context.Context, flags *Flags, client *twelvedata.Client, w io.Writer) error {
	batch, err := parseBatch(flags.Batch)
	if err != nil {
		return errors.Annotate(err, "failed to parse batch")
	}
	calls := make([]twelvedata.CallSpec, len(batch.Calls))
	for i, c := range batch.Calls {
		calls[i] = twelvedata.CallSpec{Name: c.Endpoint, Params: c.Params}
	}
	logging.Debugf(ctx, "executing %d calls from %s", len(calls), flags.Batch)
	failed := 0
	for i, r := range client.CallAll(ctx, calls, flags.Workers) {
		if r.Err != nil {
			logging.Errorf(ctx, "call %d (/%s) failed: %s", i+1, r.Call.Name, r.Err.Error())
			failed++
			continue
		}
		if !flags.Save {
			fmt.Fprintf(w, "# /%s %s\n", r.Response.Request().Endpoint().Name(),
				r.Response.Request().Endpoint().QueryParams().Redacted())
		}
		if err := output(ctx, flags, r.Response, batch.Calls[i].File, w); err != nil {
			logging.Errorf(ctx, "call %d (/%s): %s", i+1, r.Call.Name, err.Error())
			failed++
		}
	}
	if failed > 0 {
		return errors.Reason("%d of %d calls failed", failed, len(calls))
	}
	return nil
}

func run(ctx context.Context, flags *Flags, client *twelvedata.Client, w io.Writer) error {
	if flags.List {
		return listEndpoints(w, flags.Print)
	}
	if flags.Batch != "" {
		return runBatch(ctx, flags, client, w)
	}
	resp, err := client.Call(ctx, flags.Endpoint, flags.Params)
	if err != nil {
		return errors.Annotate(err, "failed to call /%s", flags.Endpoint)
	}
	return output(ctx, flags, resp, flags.File, w)
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	client, err := newClient(flags)
	if err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
	if err := run(ctx, flags, client, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
