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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// readable reports whether e has a value the accessors can read.
func readable(e *DataElement) bool {
	return !e.Fake && e.ValueLength != UndefinedLength && !e.IsDelimiter() && !e.IsContainer()
}

// valueAt reads n bytes of e's value starting at byte off. The read cursor is restored on
// seekable channels; streams are repositioned by NextElement anyway.
func (s *StreamContext) valueAt(e *DataElement, off, n int) ([]byte, error) {
	if !s.ch.CanRewind(e.Offset + int64(off)) {
		return nil, errors.Wrapf(ErrValueGone, "reading value of %v at %d", e.Tag, e.Offset)
	}
	saved := s.ch.ReadPos()
	b, err := s.dr.BytesAt(e.Offset+int64(off), n)
	if s.ch.Seekable() {
		s.ch.SetReadPos(saved)
	}
	if err != nil {
		return nil, fmt.Errorf("reading value of %v: %v", e.Tag, err)
	}
	return b, nil
}

// valueUint32 reads the first 4 bytes of e.
func (s *StreamContext) valueUint32(e *DataElement) (uint32, error) {
	b, err := s.valueAt(e, 0, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// valueString returns up to max bytes of e's value, untrimmed, or "" when it cannot be read.
func (s *StreamContext) valueString(e *DataElement, max int) string {
	if !readable(e) {
		return ""
	}
	n := int(min(int64(e.ValueLength), int64(max)))
	b, err := s.valueAt(e, 0, n)
	if err != nil {
		level.Debug(s.logger).Log("msg", "unreadable value", "tag", e.Tag, "err", err)
		return ""
	}
	return string(b)
}

// repetition returns the i-th value of width size, or nil when i is out of range.
func (s *StreamContext) repetition(i, size int) []byte {
	e := &s.cur
	if i < 0 || !readable(e) || int64(i+1)*int64(size) > int64(e.ValueLength) {
		return nil
	}
	b, err := s.valueAt(e, i*size, size)
	if err != nil {
		level.Debug(s.logger).Log("msg", "unreadable value", "tag", e.Tag, "err", err)
		return nil
	}
	return b
}

// Uint16 returns the i-th US value of the current element, or 0 when there is none.
func (s *StreamContext) Uint16(i int) uint16 {
	if b := s.repetition(i, 2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// Int16 returns the i-th SS value of the current element, or 0.
func (s *StreamContext) Int16(i int) int16 { return int16(s.Uint16(i)) }

// Uint32 returns the i-th UL value of the current element, or 0.
func (s *StreamContext) Uint32(i int) uint32 {
	if b := s.repetition(i, 4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

// Int32 returns the i-th SL value of the current element, or 0.
func (s *StreamContext) Int32(i int) int32 { return int32(s.Uint32(i)) }

// Float32 returns the i-th FL value of the current element, or 0.
func (s *StreamContext) Float32(i int) float32 {
	return math.Float32frombits(s.Uint32(i))
}

// Float64 returns the i-th FD value of the current element, or 0.
func (s *StreamContext) Float64(i int) float64 {
	if b := s.repetition(i, 8); b != nil {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// AttributeTag returns the i-th AT value of the current element, or 0. Each value is a
// group number followed by an element number.
func (s *StreamContext) AttributeTag(i int) DataElementTag {
	if b := s.repetition(i, 4); b != nil {
		return NewTag(binary.LittleEndian.Uint16(b), binary.LittleEndian.Uint16(b[2:]))
	}
	return 0
}

// String returns up to max bytes of the current value with the trailing padding removed.
func (s *StreamContext) String(max int) string {
	return strings.TrimRight(s.valueString(&s.cur, max), " \x00")
}

// Strings splits the current text value on backslashes. Leading and trailing spaces are
// trimmed from each value, except for the VRs whose leading spaces are significant.
func (s *StreamContext) Strings() []string {
	e := &s.cur
	if !readable(e) || e.ValueLength == 0 {
		return nil
	}
	raw := s.valueString(e, int(e.ValueLength))
	isPadding := func(r rune) bool { return r == 0x00 || unicode.IsSpace(r) }
	if e.VR == UTVR || e.VR == STVR || e.VR == LTVR || e.VR == URVR {
		// no value multiplicity
		return []string{strings.TrimRightFunc(raw, isPadding)}
	}
	strs := strings.Split(raw, `\`)
	for i, v := range strs {
		strs[i] = strings.TrimFunc(v, isPadding)
	}
	return strs
}

// Bytes returns a copy of the whole current value.
func (s *StreamContext) Bytes() ([]byte, error) {
	e := &s.cur
	if !readable(e) {
		return nil, fmt.Errorf("%v has no readable value", e.Tag)
	}
	return s.valueAt(e, 0, int(e.ValueLength))
}

// CopyValueTo streams the current value to w without holding it in memory.
func (s *StreamContext) CopyValueTo(w io.Writer) (int64, error) {
	e := &s.cur
	if !readable(e) {
		return 0, fmt.Errorf("%v has no readable value", e.Tag)
	}
	if !s.ch.CanRewind(e.Offset) {
		return 0, errors.Wrapf(ErrValueGone, "copying value of %v at %d", e.Tag, e.Offset)
	}
	s.ch.SetReadPos(e.Offset)
	n, err := io.CopyN(w, s.ch, int64(e.ValueLength))
	if err != nil {
		return n, fmt.Errorf("copying value of %v: %v", e.Tag, err)
	}
	return n, nil
}

// DecodedString returns the current text value decoded from the specific character set in
// force, with the trailing padding removed.
func (s *StreamContext) DecodedString() (string, error) {
	e := &s.cur
	if !readable(e) {
		return "", nil
	}
	raw, err := s.valueAt(e, 0, int(e.ValueLength))
	if err != nil {
		return "", err
	}
	if s.utf8 {
		return strings.TrimRight(string(raw), " \x00"), nil
	}
	coding, err := encodingFor(s.charset)
	if err != nil {
		return "", err
	}
	decoded, err := coding.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding %v as %q: %v", e.Tag, s.charset, err)
	}
	return strings.TrimRight(string(decoded), " \x00"), nil
}

// Decimals parses the current DS value.
func (s *StreamContext) Decimals() []float64 {
	e := &s.cur
	if !readable(e) {
		return nil
	}
	return parseDecimals(s.valueString(e, int(e.ValueLength)))
}

// Integers parses the current IS value.
func (s *StreamContext) Integers() []int64 {
	e := &s.cur
	if !readable(e) {
		return nil
	}
	return parseIntegers(s.valueString(e, int(e.ValueLength)))
}

// splitValues tokenizes a multi-valued string. A trailing backslash is tolerated.
func splitValues(v string) []string {
	v = strings.TrimRight(v, " \x00")
	if v == "" {
		return nil
	}
	tokens := strings.Split(v, `\`)
	if len(tokens) > 1 && strings.TrimSpace(tokens[len(tokens)-1]) == "" {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// parseDecimals parses each DS token on its own. Tokens that do not parse become 0.
func parseDecimals(v string) []float64 {
	tokens := splitValues(v)
	if len(tokens) == 0 {
		return nil
	}
	out := make([]float64, len(tokens))
	for i, t := range tokens {
		f, err := strconv.ParseFloat(strings.Trim(t, " \x00"), 64)
		if err == nil {
			out[i] = f
		}
	}
	return out
}

// parseIntegers parses each IS token on its own. Tokens that do not parse become 0.
func parseIntegers(v string) []int64 {
	tokens := splitValues(v)
	if len(tokens) == 0 {
		return nil
	}
	out := make([]int64, len(tokens))
	for i, t := range tokens {
		n, err := strconv.ParseInt(strings.Trim(t, " \x00"), 10, 64)
		if err == nil {
			out[i] = n
		}
	}
	return out
}
