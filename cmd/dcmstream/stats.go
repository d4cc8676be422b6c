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

package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	dto "github.com/prometheus/client_model/go"

	"github.com/radmedres/clmedview-sub000/dicom"
)

type statsCommand struct {
	env   *environment
	files []string
}

// fileStats counts what a full read of one file saw.
type fileStats struct {
	elements  int
	sequences int
	items     int
	fragments int
	private   int
	warnings  int
	maxDepth  int
	values    int64
}

func (cmd *statsCommand) run(*kingpin.ParseContext) error {
	for _, f := range cmd.files {
		st, err := cmd.read(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.env.out, "%s: %d elements, %d sequences, %d items, %d fragments, %d private, %d warnings, depth %d, %s of values\n",
			f, st.elements, st.sequences, st.items, st.fragments, st.private, st.warnings, st.maxDepth,
			humanize.IBytes(uint64(st.values)))
	}

	families, err := cmd.env.reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %v", err)
	}
	for _, mf := range families {
		printFamily(cmd.env.out, mf)
	}
	return nil
}

// read walks path to the end, pulling every value through the channel.
func (cmd *statsCommand) read(path string) (fileStats, error) {
	env := cmd.env
	var st fileStats
	s, err := dicom.Open(path, env.cfg.ReaderOptions(env.logger, env.metrics)...)
	if err != nil {
		return st, fmt.Errorf("opening %s: %v", path, err)
	}
	defer s.Close()

	for {
		e, err := s.NextElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return st, fmt.Errorf("reading %s: %v", path, err)
		}
		st.elements++
		st.maxDepth = max(st.maxDepth, e.Depth)
		if !e.Valid {
			st.warnings++
		}
		if e.Tag.IsPrivate() {
			st.private++
		}
		switch {
		case e.IsFragment():
			st.fragments++
		case e.Tag == dicom.ItemTag:
			st.items++
		case e.IsContainer():
			st.sequences++
		}
		if e.Fake || e.IsDelimiter() || e.IsContainer() || e.ValueLength == 0 {
			continue
		}
		n, err := s.CopyValueTo(io.Discard)
		if err != nil {
			return st, fmt.Errorf("reading %s: %v", path, err)
		}
		st.values += n
	}
	return st, s.Err()
}

func printFamily(w io.Writer, mf *dto.MetricFamily) {
	for _, m := range mf.GetMetric() {
		labels := make([]string, 0, len(m.GetLabel()))
		for _, l := range m.GetLabel() {
			labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
		}
		sort.Strings(labels)
		name := mf.GetName()
		if len(labels) > 0 {
			name += "{" + strings.Join(labels, ",") + "}"
		}
		var v float64
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			v = m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			v = m.GetGauge().GetValue()
		default:
			continue
		}
		fmt.Fprintf(w, "%s %s\n", name, strconv.FormatFloat(v, 'f', -1, 64))
	}
}
