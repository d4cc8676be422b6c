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
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"

	"github.com/radmedres/clmedview-sub000/dicom"
	"github.com/radmedres/clmedview-sub000/uid"
)

type transcodeCommand struct {
	env         *environment
	input       string
	output      string
	syntax      string
	dropPrivate bool
	exclude     []string
	newUID      bool
	aet         string
}

func (cmd *transcodeCommand) run(*kingpin.ParseContext) error {
	env := cmd.env
	syntax := env.cfg.WriterSyntax()
	syntaxUID := env.cfg.Writer.TransferSyntax
	if cmd.syntax != "" {
		syntax, syntaxUID = dicom.LookupTransferSyntax(cmd.syntax), cmd.syntax
	}
	opts := env.cfg.CopyOptions()
	if cmd.dropPrivate {
		opts = append(opts, dicom.DropPrivateElements)
	}
	if len(cmd.exclude) > 0 {
		tags := make([]dicom.DataElementTag, len(cmd.exclude))
		for i, s := range cmd.exclude {
			t, err := parseTag(s)
			if err != nil {
				return err
			}
			tags[i] = t
		}
		opts = append(opts, dicom.ExcludeTags(tags...))
	}

	src, err := dicom.Open(cmd.input, env.cfg.ReaderOptions(env.logger, env.metrics)...)
	if err != nil {
		return fmt.Errorf("opening %s: %v", cmd.input, err)
	}
	defer src.Close()

	meta := dicom.MetaInfo{
		MediaStorageSOPClassUID:      src.SOPClassUID(),
		MediaStorageSOPInstanceUID:   src.SOPInstanceUID(),
		TransferSyntaxUID:            syntaxUID,
		SourceApplicationEntityTitle: cmd.aet,
	}
	if cmd.newUID || meta.MediaStorageSOPInstanceUID == "" {
		if meta.MediaStorageSOPInstanceUID, err = uid.New(); err != nil {
			return err
		}
	}
	dst, err := dicom.Create(cmd.output, syntax, meta,
		dicom.WithLogger(env.logger),
		dicom.WithChannelOptions(env.cfg.ChannelOptions(env.logger, env.metrics)...))
	if err != nil {
		return fmt.Errorf("creating %s: %v", cmd.output, err)
	}
	if err := dicom.CopyDataset(dst, src, opts...); err != nil {
		dst.Close()
		return err
	}
	written := dst.Channel().BytesWritten()
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing %s: %v", cmd.output, err)
	}
	level.Info(env.logger).Log("msg", "transcoded", "from", src.Syntax(), "to", syntax,
		"read", humanize.IBytes(uint64(src.Channel().BytesRead())), "written", humanize.IBytes(uint64(written)))
	return nil
}

// parseTag accepts gggg,eeee with or without parentheses, or eight hex digits.
func parseTag(s string) (dicom.DataElementTag, error) {
	t := strings.Trim(strings.TrimSpace(s), "()")
	t = strings.ReplaceAll(t, ",", "")
	if len(t) != 8 {
		return 0, fmt.Errorf("tag %q is not gggg,eeee", s)
	}
	v, err := strconv.ParseUint(t, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("tag %q is not gggg,eeee: %v", s, err)
	}
	return dicom.DataElementTag(v), nil
}
