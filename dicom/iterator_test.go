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

package dicom

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/require"

	"github.com/radmedres/clmedview-sub000/channel"
)

var (
	// a sequence with one item, both with explicit lengths and no delimiters
	explicitLengthSequence = join(
		explicitHeader(ReferencedImageSequenceTag, SQVR, 20),
		implicitHeader(ItemTag, 12),
		explicitElement(PatientIDTag, LOVR, "ID01"),
		explicitElement(PatientNameTag, PNVR, "DOE^JO"),
	)
	implicitLengthSequence = join(
		implicitHeader(ReferencedImageSequenceTag, 20),
		implicitHeader(ItemTag, 12),
		implicitElement(PatientIDTag, "ID01"),
		implicitElement(PatientNameTag, "DOE^JO"),
	)
	delimitedSequence = join(
		explicitHeader(ReferencedImageSequenceTag, SQVR, UndefinedLength),
		implicitHeader(ItemTag, UndefinedLength),
		explicitElement(PatientIDTag, LOVR, "ID01"),
		implicitHeader(ItemDelimitationItemTag, 0),
		implicitHeader(SequenceDelimitationItemTag, 0),
		explicitElement(PatientNameTag, PNVR, "DOE^JO"),
	)
	sequenceTuples = func(seqLength, itemLength uint32, delimited bool) []tuple {
		itemDelim, seqDelim := fake(ItemDelimitationItemTag, 1), fake(SequenceDelimitationItemTag, 0)
		if delimited {
			itemDelim.Fake, seqDelim.Fake = false, false
		}
		return []tuple{
			valid(ReferencedImageSequenceTag, SQVR, seqLength, 0),
			valid(ItemTag, VRNone, itemLength, 1),
			valid(PatientIDTag, LOVR, 4, 2),
			itemDelim,
			seqDelim,
			valid(PatientNameTag, PNVR, 6, 0),
		}
	}
)

func TestNextElement(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		syntax TransferSyntax
		want   []tuple
	}{
		{
			"explicit lengths, explicit VR little endian",
			part10(ExplicitVRLittleEndianUID, explicitLengthSequence),
			ExplicitVRLittleEndian,
			sequenceTuples(20, 12, false),
		},
		{
			"explicit lengths, implicit VR little endian",
			part10(ImplicitVRLittleEndianUID, implicitLengthSequence),
			ImplicitVRLittleEndian,
			sequenceTuples(20, 12, false),
		},
		{
			"undefined lengths, explicit VR little endian",
			part10(ExplicitVRLittleEndianUID, delimitedSequence),
			ExplicitVRLittleEndian,
			sequenceTuples(UndefinedLength, UndefinedLength, true),
		},
		{
			"no preamble, implicit VR detected",
			join(implicitElement(ModalityTag, "MR"), implicitElement(PatientNameTag, "DOE^JO")),
			ImplicitVRLittleEndian,
			[]tuple{valid(ModalityTag, CSVR, 2, 0), valid(PatientNameTag, PNVR, 6, 0)},
		},
		{
			"no preamble, explicit VR detected",
			join(explicitElement(ModalityTag, CSVR, "MR"), explicitElement(PatientNameTag, PNVR, "DOE^JO")),
			ExplicitVRLittleEndian,
			[]tuple{valid(ModalityTag, CSVR, 2, 0), valid(PatientNameTag, PNVR, 6, 0)},
		},
		{
			"encapsulated syntaxes read as explicit",
			part10(JPEGLosslessUID, explicitElement(ModalityTag, CSVR, "MR")),
			EncapsulatedVRLittleEndian,
			[]tuple{valid(ModalityTag, CSVR, 2, 0)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := openBytes(t, tc.data)
			require.Equal(t, tc.syntax, s.Syntax())
			if diff := cmp.Diff(tc.want, walk(t, s)); diff != "" {
				t.Fatalf("NextElement() mismatch (-want +got):\n%s", diff)
			}
			if _, err := s.NextElement(); err != io.EOF {
				t.Fatalf("NextElement() after the end => %v, want %v", err, io.EOF)
			}
		})
	}
}

func TestNextElement_fakeSequenceDelimiter(t *testing.T) {
	s := openBytes(t, part10(ExplicitVRLittleEndianUID, explicitLengthSequence))
	var delims []*DataElement
	for {
		e, err := s.NextElement()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if e.Tag == SequenceDelimitationItemTag {
			c := *e
			delims = append(delims, &c)
		}
	}
	require.Len(t, delims, 1)
	require.True(t, delims[0].Fake)
	require.True(t, delims[0].IsDelimiter())
	require.Zero(t, delims[0].ValueLength)
}

func TestNextElement_stream(t *testing.T) {
	data := part10(ExplicitVRLittleEndianUID, delimitedSequence)
	ch, err := channel.New("pipe", bytes.NewReader(data), nil, nil, channel.WithBufferSize(512))
	require.NoError(t, err)
	s, err := OpenChannel(ch)
	require.NoError(t, err)
	defer s.Close()

	if diff := cmp.Diff(sequenceTuples(UndefinedLength, UndefinedLength, true), walk(t, s)); diff != "" {
		t.Fatalf("NextElement() mismatch (-want +got):\n%s", diff)
	}
}

func TestNextElement_fillerChunks(t *testing.T) {
	src := bytes.NewReader(part10(ExplicitVRLittleEndianUID, delimitedSequence))
	fill := func([]byte) ([]byte, int, error) {
		chunk := make([]byte, 3)
		n, err := src.Read(chunk)
		return chunk, n, err
	}
	ch, err := channel.New("socket", bytes.NewReader(nil), nil, nil, channel.WithFiller(fill), channel.WithBufferSize(512))
	require.NoError(t, err)
	s, err := OpenChannel(ch)
	require.NoError(t, err)
	defer s.Close()

	if diff := cmp.Diff(sequenceTuples(UndefinedLength, UndefinedLength, true), walk(t, s)); diff != "" {
		t.Fatalf("NextElement() mismatch (-want +got):\n%s", diff)
	}
}

func TestNextElement_streamValueRereadAfterWindow(t *testing.T) {
	value := bytes.Repeat([]byte{1, 2, 3, 4}, 500)
	padding := NewTag(0xFFFC, 0xFFFC)
	data := part10(ExplicitVRLittleEndianUID,
		explicitHeader(PixelDataTag, OBVR, uint32(len(value))), value,
		explicitElement(padding, OBVR, "\x00\x00"),
	)
	ch, err := channel.New("pipe", bytes.NewReader(data), nil, nil, channel.WithBufferSize(512))
	require.NoError(t, err)
	s, err := OpenChannel(ch)
	require.NoError(t, err)
	defer s.Close()

	for {
		e, err := s.NextElement()
		require.NoError(t, err)
		if e.Tag == PixelDataTag {
			break
		}
	}
	got, err := s.Bytes()
	require.NoError(t, err)
	require.Equal(t, value, got)

	_, err = s.Bytes()
	require.ErrorIs(t, err, ErrValueGone)
	require.Zero(t, s.Uint16(0))
	require.NoError(t, ch.Err())

	e, err := s.NextElement()
	require.NoError(t, err)
	require.Equal(t, padding, e.Tag)
	require.NoError(t, s.Err())
}

func TestNextElement_streamAccessors(t *testing.T) {
	data := join(explicitElement(ModalityTag, CSVR, "MR"), explicitElement(PatientNameTag, PNVR, "DOE^JO"))
	ch, err := channel.New("pipe", bytes.NewReader(data), nil, nil, channel.WithBufferSize(256))
	require.NoError(t, err)
	s, err := OpenChannel(ch)
	require.NoError(t, err)

	var got []string
	for {
		_, err := s.NextElement()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, s.String(64))
	}
	require.NoError(t, s.Err())
	require.Equal(t, []string{"MR", "DOE^JO"}, got)
}

func TestOpen_rejects(t *testing.T) {
	var deflated bytes.Buffer
	deflated.Write(part10(DeflatedExplicitVRLittleEndianUID))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{
			"big endian transfer syntax",
			part10(ExplicitVRBigEndianUID, explicitElement(ModalityTag, CSVR, "MR")),
			ErrBigEndian,
		},
		{
			"big endian without preamble",
			[]byte{0x00, 0x08, 0x00, 0x60, 'C', 'S', 0x00, 0x02, 'M', 'R'},
			ErrBigEndian,
		},
		{
			"deflated without the option",
			deflated.Bytes(),
			ErrDeflateUnsupported,
		},
		{
			"too small",
			[]byte{0x08, 0x00, 0x60},
			ErrTooSmall,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Open(writeTemp(t, tc.data))
			require.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("not a regular file", func(t *testing.T) {
		_, err := Open(t.TempDir())
		require.ErrorIs(t, err, ErrNotRegular)
	})
}

func TestNextElement_deflate(t *testing.T) {
	body := join(explicitElement(ModalityTag, CSVR, "MR"), delimitedSequence)
	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.BestCompression)
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	s := openBytes(t, part10(DeflatedExplicitVRLittleEndianUID, compressed.Bytes()), WithDeflate(true))
	require.Equal(t, DeflatedExplicitVRLittleEndian, s.Syntax())

	want := append([]tuple{valid(ModalityTag, CSVR, 2, 0)}, sequenceTuples(UndefinedLength, UndefinedLength, true)...)
	if diff := cmp.Diff(want, walk(t, s)); diff != "" {
		t.Fatalf("NextElement() mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, DeflatedExplicitVRLittleEndianUID, s.TransferSyntaxUID())
}

func TestNextElement_privateCreators(t *testing.T) {
	odd := uint16(0x0009)
	data := part10(ExplicitVRLittleEndianUID,
		explicitElement(NewTag(odd, 0x0010), LOVR, "ACME"),
		explicitElement(NewTag(odd, 0x1005), LOVR, "VALUE1"),
		explicitElement(NewTag(odd, 0x1105), LOVR, "VALUE2"),
		explicitHeader(ReferencedImageSequenceTag, SQVR, UndefinedLength),
		implicitHeader(ItemTag, UndefinedLength),
		explicitElement(NewTag(odd, 0x1005), LOVR, "VALUE3"),
		explicitElement(NewTag(odd, 0x0010), LOVR, "INNER "),
		explicitElement(NewTag(odd, 0x1005), LOVR, "VALUE4"),
		implicitHeader(ItemDelimitationItemTag, 0),
		implicitHeader(SequenceDelimitationItemTag, 0),
		explicitElement(NewTag(odd, 0x1005), LOVR, "VALUE5"),
	)
	s := openBytes(t, data)

	got := map[string]string{}
	for {
		e, err := s.NextElement()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if e.Tag.GroupNumber() == odd && e.Tag.ElementNumber() >= 0x1000 {
			got[s.String(64)] = e.Creator
		}
	}
	require.NoError(t, s.Err())
	want := map[string]string{
		"VALUE1": "ACME",
		"VALUE2": "",
		"VALUE3": "",
		"VALUE4": "INNER",
		"VALUE5": "ACME",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("creators mismatch (-want +got):\n%s", diff)
	}
}

func TestNextElement_groupLength(t *testing.T) {
	tests := []struct {
		name   string
		length uint32
		want   []tuple
	}{
		{
			"matching",
			10,
			[]tuple{
				valid(NewTag(0x0008, 0x0000), ULVR, 4, 0),
				valid(ModalityTag, CSVR, 2, 1),
				valid(PatientNameTag, PNVR, 6, 0),
			},
		},
		{
			"overstated",
			12,
			[]tuple{
				valid(NewTag(0x0008, 0x0000), ULVR, 4, 0),
				valid(ModalityTag, CSVR, 2, 1),
				{PatientNameTag, PNVR, 6, 0, false, false},
			},
		},
		{
			"understated",
			0,
			[]tuple{
				valid(NewTag(0x0008, 0x0000), ULVR, 4, 0),
				{ModalityTag, CSVR, 2, 0, false, false},
				valid(PatientNameTag, PNVR, 6, 0),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := openBytes(t, part10(ExplicitVRLittleEndianUID,
				join(explicitHeader(NewTag(0x0008, 0x0000), ULVR, 4), le32(tc.length)),
				explicitElement(ModalityTag, CSVR, "MR"),
				explicitElement(PatientNameTag, PNVR, "DOE^JO"),
			))
			if diff := cmp.Diff(tc.want, walk(t, s)); diff != "" {
				t.Fatalf("NextElement() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNextElement_groupContinuesPastLength(t *testing.T) {
	date := explicitElement(StudyDateTag, DAVR, "20240101")
	s := openBytes(t, part10(ExplicitVRLittleEndianUID,
		explicitHeader(NewTag(0x0008, 0x0000), ULVR, 4), le32(uint32(len(date))),
		date,
		explicitElement(ModalityTag, CSVR, "MR"),
		explicitElement(NewTag(0x0008, 0x0070), LOVR, "ACME"),
		explicitElement(PatientNameTag, PNVR, "DOE^JO"),
	))

	var got []string
	for {
		e, err := s.NextElement()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if e.Tag.IsMetadataElement() {
			continue
		}
		got = append(got, fmt.Sprintf("%v %d %v %s", e.Tag, e.Depth, e.Valid, e.Warning))
	}
	require.NoError(t, s.Err())
	require.Equal(t, []string{
		"(0008,0000) 0 true ",
		"(0008,0020) 1 true ",
		"(0008,0060) 0 false group 0008 continues past its declared length",
		"(0008,0070) 0 false group 0008 continues past its declared length",
		"(0010,0010) 0 true ",
	}, got)
}

func TestNextElement_unknownVRContentIsImplicit(t *testing.T) {
	vendor := NewTag(0x0009, 0x1001)
	s := openBytes(t, part10(ExplicitVRLittleEndianUID,
		explicitHeader(vendor, UNVR, UndefinedLength),
		implicitHeader(ItemTag, UndefinedLength),
		implicitElement(PatientIDTag, "ID01"),
		implicitHeader(ItemDelimitationItemTag, 0),
		implicitHeader(SequenceDelimitationItemTag, 0),
		explicitElement(PatientNameTag, PNVR, "DOE^JO"),
	))
	want := []tuple{
		valid(vendor, UNVR, UndefinedLength, 0),
		valid(ItemTag, VRNone, UndefinedLength, 1),
		valid(PatientIDTag, LOVR, 4, 2),
		valid(ItemDelimitationItemTag, VRNone, 0, 1),
		valid(SequenceDelimitationItemTag, VRNone, 0, 0),
		valid(PatientNameTag, PNVR, 6, 0),
	}
	if diff := cmp.Diff(want, walk(t, s)); diff != "" {
		t.Fatalf("NextElement() mismatch (-want +got):\n%s", diff)
	}
}

func TestNextElement_endOfStreamClosesLevels(t *testing.T) {
	s := openBytes(t, part10(ExplicitVRLittleEndianUID,
		explicitHeader(ReferencedImageSequenceTag, SQVR, UndefinedLength),
		implicitHeader(ItemTag, UndefinedLength),
		explicitElement(PatientIDTag, LOVR, "ID01"),
	))
	got := walk(t, s)
	require.Len(t, got, 5)
	require.Equal(t, ItemDelimitationItemTag, got[3].Tag)
	require.True(t, got[3].Fake)
	require.False(t, got[3].Valid)
	require.Equal(t, SequenceDelimitationItemTag, got[4].Tag)
	require.True(t, got[4].Fake)
}

func TestNextElement_fatal(t *testing.T) {
	nested := join(
		explicitHeader(ReferencedImageSequenceTag, SQVR, UndefinedLength),
		implicitHeader(ItemTag, UndefinedLength),
		explicitHeader(ReferencedSeriesSequenceTag, SQVR, UndefinedLength),
		implicitHeader(ItemTag, UndefinedLength),
		explicitElement(PatientIDTag, LOVR, "ID01"),
	)
	tests := []struct {
		name string
		data []byte
		opts []Option
		want error
	}{
		{
			"ladder overflow",
			part10(ExplicitVRLittleEndianUID, nested),
			[]Option{WithLadderCapacity(4)},
			ErrLadderOverflow,
		},
		{
			"short header",
			part10(ExplicitVRLittleEndianUID, explicitElement(ModalityTag, CSVR, "MR"), []byte{0x10, 0x00, 0x10}),
			nil,
			ErrShortHeader,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := openBytes(t, tc.data, tc.opts...)
			for {
				_, err := s.NextElement()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
			}
			require.ErrorIs(t, s.Err(), tc.want)
		})
	}
}

func TestNextElement_unrecognizedVR(t *testing.T) {
	s := openBytes(t, part10(ExplicitVRLittleEndianUID,
		explicitElement(ModalityTag, CSVR, "MR"),
		join(tagBytes(PatientNameTag), []byte("zz"), le16(6), []byte("DOE^JO")),
	))
	_, err := s.NextElement() // group length
	require.NoError(t, err)
	_, err = s.NextElement() // transfer syntax
	require.NoError(t, err)
	_, err = s.NextElement()
	require.NoError(t, err)

	e, err := s.NextElement()
	require.NoError(t, err)
	require.Equal(t, VRHack, e.VR)
	require.False(t, e.Valid)
	require.NotEmpty(t, e.Warning)

	_, err = s.NextElement()
	require.Equal(t, io.EOF, err)
	require.NoError(t, s.Err())
}

func TestNextElement_streamState(t *testing.T) {
	path := createFile(t, ExplicitVRLittleEndian, func(w *Writer) {
		w.WriteString(SpecificCharacterSetTag, CSVR, "ISO_IR 192")
		w.WriteString(RecognitionCodeTag, SHVR, "ACR-NEMA 2.0")
		w.WriteIntegers(NumberOfFramesTag, 3)
		pos, _ := w.OpenSequence(PerFrameFunctionalGroupsSequenceTag)
		for i := 0; i < 3; i++ {
			item, _ := w.OpenItem()
			w.WriteIntegers(InstanceNumberTag, int64(i))
			w.CloseItem(item)
		}
		w.CloseSequence(pos)
	})
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, "1.2.840.10008.5.1.4.1.1.4", s.SOPClassUID())
	require.Equal(t, "1.2.3.4.5", s.SOPInstanceUID())

	frames := map[int64]int{}
	for {
		e, err := s.NextElement()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if e.Tag == InstanceNumberTag {
			frames[s.Integers()[0]] = s.CurrentFrame()
		}
	}
	require.NoError(t, s.Err())
	require.True(t, s.UTF8())
	require.True(t, s.ACRNEMA())
	require.Equal(t, "ISO_IR 192", s.CharacterSet())
	require.Equal(t, 3, s.NumberOfFrames())
	require.Equal(t, map[int64]int{0: 0, 1: 1, 2: 2}, frames)
}
