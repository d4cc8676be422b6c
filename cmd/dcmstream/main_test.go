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
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/radmedres/clmedview-sub000/dicom"
)

// run parses args like main does and returns what the command printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	env := &environment{out: &out, errOut: io.Discard}
	_, err := newApp(env).Parse(append([]string{"--log.level=none"}, args...))
	return out.String(), err
}

func sampleFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.dcm")
	w, err := dicom.Create(path, dicom.ExplicitVRLittleEndian, dicom.MetaInfo{
		MediaStorageSOPClassUID:    "1.2.840.10008.5.1.4.1.1.4",
		MediaStorageSOPInstanceUID: "1.2.3.4",
	})
	require.NoError(t, err)
	require.NoError(t, w.WriteString(dicom.NewTag(0x0019, 0x0010), dicom.LOVR, "ACME"))
	require.NoError(t, w.WriteUint16(dicom.NewTag(0x0019, 0x1001), 7))
	seq, err := w.OpenSequence(dicom.ReferencedImageSequenceTag)
	require.NoError(t, err)
	item, err := w.OpenItem()
	require.NoError(t, err)
	require.NoError(t, w.WriteString(dicom.PatientIDTag, dicom.LOVR, "ID01"))
	require.NoError(t, w.CloseItem(item))
	require.NoError(t, w.CloseSequence(seq))
	require.NoError(t, w.WriteString(dicom.PatientNameTag, dicom.PNVR, "DOE^JO"))
	require.NoError(t, w.WriteUint16(dicom.RowsTag, 512))
	require.NoError(t, w.Close())
	return path
}

func TestDump(t *testing.T) {
	path := sampleFile(t)
	out, err := run(t, "dump", path)
	require.NoError(t, err)

	want := []string{
		"(0019,0010) LO 4 B \"ACME\"",
		"(0019,1001) US 2 B [ACME] 7",
		"(0008,1140) SQ 20 B",
		"  (FFFE,E000) -- 12 B #0",
		"    (0010,0020) LO 4 B \"ID01\"",
		"  (FFFE,E00D) -- (implied)",
		"(FFFE,E0DD) -- (implied)",
		"(0010,0010) PN 6 B \"DOE^JO\"",
		"(0028,0010) US 2 B 512",
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.True(t, strings.HasPrefix(lines[0], "# "+path), lines[0])
	require.Equal(t, want, lines[1:])
}

func TestDump_meta(t *testing.T) {
	out, err := run(t, "dump", "--meta", sampleFile(t))
	require.NoError(t, err)
	require.Contains(t, out, "(0002,0010) UI")
	require.Contains(t, out, `"1.2.840.10008.1.2.1"`)
}

func TestTranscode(t *testing.T) {
	src := sampleFile(t)
	dst := filepath.Join(t.TempDir(), "out.dcm")
	_, err := run(t, "transcode", "--syntax", dicom.ImplicitVRLittleEndianUID, "--drop-private", "--exclude", "0028,0010", src, dst)
	require.NoError(t, err)

	s, err := dicom.Open(dst)
	require.NoError(t, err)
	defer s.Close()
	var tags []dicom.DataElementTag
	for {
		e, err := s.NextElement()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if !e.Tag.IsMetadataElement() {
			tags = append(tags, e.Tag)
		}
	}
	require.Equal(t, dicom.ImplicitVRLittleEndian, s.Syntax())
	require.Equal(t, "1.2.3.4", s.SOPInstanceUID())
	require.Equal(t, []dicom.DataElementTag{
		dicom.ReferencedImageSequenceTag,
		dicom.ItemTag,
		dicom.PatientIDTag,
		dicom.ItemDelimitationItemTag,
		dicom.SequenceDelimitationItemTag,
		dicom.PatientNameTag,
	}, tags)
}

func TestTranscode_rejects(t *testing.T) {
	src := sampleFile(t)
	dst := filepath.Join(t.TempDir(), "out.dcm")
	_, err := run(t, "transcode", "--syntax", dicom.ExplicitVRBigEndianUID, src, dst)
	require.Error(t, err)
	_, err = run(t, "transcode", "--exclude", "00xx,0010", src, dst)
	require.Error(t, err)
	_, err = os.Stat(dst)
	require.True(t, os.IsNotExist(err), "output created for a rejected transcode")
}

func TestUID(t *testing.T) {
	out, err := run(t, "uid", "-n", "3", "--random")
	require.NoError(t, err)
	lines := strings.Fields(out)
	require.Len(t, lines, 3)
	for _, l := range lines {
		require.True(t, strings.HasPrefix(l, "2.25."), l)
	}
}

func TestStats(t *testing.T) {
	path := sampleFile(t)
	out, err := run(t, "stats", path)
	require.NoError(t, err)
	require.Contains(t, out, path+": 16 elements, 1 sequences, 1 items, 0 fragments, 2 private, 0 warnings, depth 2")
	require.Contains(t, out, "dcmstream_channel_read_bytes_total ")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcmstream.toml")
	require.NoError(t, os.WriteFile(path, []byte("[reader]\nladder_capacity = 1\n"), 0o644))
	_, err := run(t, "--config", path, "uid")
	require.Error(t, err)
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		in      string
		want    dicom.DataElementTag
		wantErr bool
	}{
		{"0010,0020", dicom.PatientIDTag, false},
		{"(7FE0,0010)", dicom.PixelDataTag, false},
		{"00100010", dicom.PatientNameTag, false},
		{"0010", 0, true},
		{"zzzz,0010", 0, true},
	}
	for _, tc := range tests {
		got, err := parseTag(tc.in)
		if tc.wantErr {
			require.Error(t, err, "parseTag(%q)", tc.in)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}
