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
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"

	"github.com/radmedres/clmedview-sub000/dicom"
)

// maxRepetitions bounds the binary values printed per element.
const maxRepetitions = 8

type dumpCommand struct {
	env      *environment
	files    []string
	meta     bool
	maxValue int
}

func (cmd *dumpCommand) run(*kingpin.ParseContext) error {
	for _, f := range cmd.files {
		if err := cmd.dump(f); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *dumpCommand) dump(path string) error {
	env := cmd.env
	s, err := dicom.Open(path, env.cfg.ReaderOptions(env.logger, env.metrics)...)
	if err != nil {
		return fmt.Errorf("opening %s: %v", path, err)
	}
	defer s.Close()

	fmt.Fprintf(env.out, "# %s: %s (%s)\n", path, s.Syntax(), s.TransferSyntaxUID())
	warnings := 0
	for {
		e, err := s.NextElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading %s: %v", path, err)
		}
		if e.Tag.IsMetadataElement() && !cmd.meta {
			continue
		}
		if !e.Valid {
			warnings++
		}
		fmt.Fprintln(env.out, cmd.line(s, e))
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("reading %s: %v", path, err)
	}
	level.Debug(env.logger).Log("msg", "dumped", "file", path, "warnings", warnings)
	if warnings > 0 {
		fmt.Fprintf(env.out, "# %d warnings\n", warnings)
	}
	return nil
}

// line formats one element: indentation by depth, tag, VR, length, then the private creator,
// a value preview and any warning.
func (cmd *dumpCommand) line(s *dicom.StreamContext, e *dicom.DataElement) string {
	var b strings.Builder
	b.WriteString(indent(e.Depth))
	fmt.Fprintf(&b, "%v %v ", e.Tag, e.VR)
	switch {
	case e.Fake:
		b.WriteString("(implied)")
	case e.ValueLength == dicom.UndefinedLength:
		b.WriteString("undefined")
	default:
		b.WriteString(humanize.IBytes(uint64(e.ValueLength)))
	}
	if e.Tag == dicom.ItemTag && e.ItemIndex >= 0 {
		fmt.Fprintf(&b, " #%d", e.ItemIndex)
	}
	if e.Creator != "" {
		fmt.Fprintf(&b, " [%s]", e.Creator)
	}
	if v := cmd.preview(s, e); v != "" {
		fmt.Fprintf(&b, " %s", v)
	}
	if !e.Valid {
		fmt.Fprintf(&b, " ! %s", e.Warning)
	}
	return b.String()
}

func (cmd *dumpCommand) preview(s *dicom.StreamContext, e *dicom.DataElement) string {
	if e.Fake || e.IsDelimiter() || e.IsContainer() || e.IsFragment() ||
		e.ValueLength == 0 || e.ValueLength == dicom.UndefinedLength {
		return ""
	}
	if e.VR.IsText() {
		v, err := s.DecodedString()
		if err != nil {
			v = s.String(cmd.maxValue)
		}
		if r := []rune(v); cmd.maxValue > 0 && len(r) > cmd.maxValue {
			v = string(r[:cmd.maxValue]) + "..."
		}
		return strconv.Quote(v)
	}

	size := e.VR.ValueSize()
	if size == 0 {
		return ""
	}
	n := int(e.ValueLength) / size
	values := make([]string, 0, min(n, maxRepetitions))
	for i := 0; i < n && i < maxRepetitions; i++ {
		switch e.VR {
		case dicom.USVR:
			values = append(values, strconv.FormatUint(uint64(s.Uint16(i)), 10))
		case dicom.SSVR:
			values = append(values, strconv.FormatInt(int64(s.Int16(i)), 10))
		case dicom.ULVR:
			values = append(values, strconv.FormatUint(uint64(s.Uint32(i)), 10))
		case dicom.SLVR:
			values = append(values, strconv.FormatInt(int64(s.Int32(i)), 10))
		case dicom.FLVR:
			values = append(values, strconv.FormatFloat(float64(s.Float32(i)), 'g', -1, 32))
		case dicom.FDVR:
			values = append(values, strconv.FormatFloat(s.Float64(i), 'g', -1, 64))
		case dicom.ATVR:
			values = append(values, s.AttributeTag(i).String())
		default:
			return ""
		}
	}
	if n > maxRepetitions {
		values = append(values, fmt.Sprintf("... %d more", n-maxRepetitions))
	}
	return strings.Join(values, `\`)
}
