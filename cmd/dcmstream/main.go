// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command dcmstream dumps, transcodes and measures DICOM Part-10 files without loading them
// into memory.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/c2h5oh/datasize"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radmedres/clmedview-sub000/channel"
	"github.com/radmedres/clmedview-sub000/internal/config"
)

var version = "dev"

// environment is the state shared by the commands, set up from flags and the configuration
// file before any command runs.
type environment struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	logLevel   string
	bufferSize byteSize
	deflate    bool

	cfg     config.Config
	logger  log.Logger
	reg     *prometheus.Registry
	metrics *channel.Metrics
}

// byteSize lets kingpin parse sizes such as "256KB".
type byteSize datasize.ByteSize

func (b *byteSize) Set(s string) error {
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return err
	}
	*b = byteSize(v)
	return nil
}

func (b *byteSize) String() string { return datasize.ByteSize(*b).String() }

func (env *environment) setup(*kingpin.ParseContext) error {
	cfg := config.Default()
	if env.configPath != "" {
		var err error
		if cfg, err = config.Load(env.configPath); err != nil {
			return err
		}
	}
	if env.logLevel != "" {
		cfg.LogLevel = env.logLevel
	}
	if env.bufferSize > 0 {
		cfg.Channel.BufferSize = datasize.ByteSize(env.bufferSize)
	}
	if env.deflate {
		cfg.Reader.Deflate = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	env.cfg = cfg
	env.logger = cfg.Logger(log.NewLogfmtLogger(log.NewSyncWriter(env.errOut)))
	env.reg = prometheus.NewRegistry()
	env.metrics = channel.NewMetrics(env.reg)
	return nil
}

func newApp(env *environment) *kingpin.Application {
	app := kingpin.New("dcmstream", "Streams DICOM Part-10 files element by element.")
	app.Version(version)
	app.HelpFlag.Short('h')
	app.Flag("config", "TOML configuration file.").Short('c').StringVar(&env.configPath)
	app.Flag("log.level", "Log level, overriding the configuration file.").
		EnumVar(&env.logLevel, "debug", "info", "warn", "error", "none")
	app.Flag("buffer-size", "Channel buffer size, e.g. 256KB.").SetValue(&env.bufferSize)
	app.Flag("deflate", "Read the deflated transfer syntax.").BoolVar(&env.deflate)
	app.PreAction(env.setup)

	dump := &dumpCommand{env: env}
	cmd := app.Command("dump", "Print every element with its nesting depth.").Action(dump.run)
	cmd.Flag("meta", "Include the file meta group.").BoolVar(&dump.meta)
	cmd.Flag("max-value", "Longest value printed.").Default("64").IntVar(&dump.maxValue)
	cmd.Arg("files", "Files to dump, - for standard input.").Required().StringsVar(&dump.files)

	transcode := &transcodeCommand{env: env}
	cmd = app.Command("transcode", "Copy a dataset into another transfer syntax.").Action(transcode.run)
	cmd.Flag("syntax", "Transfer syntax UID written, overriding the configuration file.").StringVar(&transcode.syntax)
	cmd.Flag("drop-private", "Leave out private elements.").BoolVar(&transcode.dropPrivate)
	cmd.Flag("exclude", "Tag to leave out, as gggg,eeee. Repeatable.").StringsVar(&transcode.exclude)
	cmd.Flag("new-uid", "Give the copy a new SOP instance UID.").BoolVar(&transcode.newUID)
	cmd.Flag("aet", "Source application entity title recorded in the meta group.").StringVar(&transcode.aet)
	cmd.Arg("input", "Input file, - for standard input.").Required().StringVar(&transcode.input)
	cmd.Arg("output", "Output file, - for standard output.").Required().StringVar(&transcode.output)

	uids := &uidCommand{env: env}
	cmd = app.Command("uid", "Generate UIDs under 2.25.").Action(uids.run)
	cmd.Flag("random", "Use random rather than time based UUIDs.").BoolVar(&uids.random)
	cmd.Flag("count", "Number of UIDs.").Short('n').Default("1").IntVar(&uids.count)

	stats := &statsCommand{env: env}
	cmd = app.Command("stats", "Read files completely and report element and channel counters.").Action(stats.run)
	cmd.Arg("files", "Files to read.").Required().StringsVar(&stats.files)

	return app
}

func main() {
	env := &environment{out: os.Stdout, errOut: os.Stderr}
	app := newApp(env)
	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dcmstream: %v\n", err)
		os.Exit(1)
	}
}

// indent returns the prefix for an element at depth.
func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
