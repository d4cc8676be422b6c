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
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	maxDecimalString = 16
	maxIntegerString = 12
)

// writeValue writes a complete element. Odd length values get vr's pad byte.
func (w *Writer) writeValue(tag DataElementTag, vr VR, value []byte) error {
	if w.pixel != nil {
		return fmt.Errorf("writing %v inside pixel data", tag)
	}
	padded := int64(len(value))
	if padded%2 != 0 {
		padded++
	}
	if padded >= UndefinedLength {
		return fmt.Errorf("value of %v too long: %d bytes", tag, len(value))
	}
	if err := w.WriteHeader(tag, vr, uint32(padded)); err != nil {
		return err
	}
	if err := w.dw.Bytes(value); err != nil {
		return fmt.Errorf("writing value of %v: %v", tag, err)
	}
	if int64(len(value)) != padded {
		if err := w.dw.Bytes([]byte{vr.padByte()}); err != nil {
			return fmt.Errorf("padding value of %v: %v", tag, err)
		}
	}
	return nil
}

// WriteString writes a text element. Values are joined with backslashes; odd lengths are
// padded with a space, or a NUL for UI.
func (w *Writer) WriteString(tag DataElementTag, vr VR, values ...string) error {
	return w.writeValue(tag, vr, []byte(strings.Join(values, `\`)))
}

// WriteBytes writes an OB, OW, UN or other binary element as is, padded with a NUL.
func (w *Writer) WriteBytes(tag DataElementTag, vr VR, value []byte) error {
	return w.writeValue(tag, vr, value)
}

// WriteUint16 writes a US element.
func (w *Writer) WriteUint16(tag DataElementTag, values ...uint16) error {
	b := make([]byte, 0, 2*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return w.writeValue(tag, USVR, b)
}

// WriteInt16 writes an SS element.
func (w *Writer) WriteInt16(tag DataElementTag, values ...int16) error {
	b := make([]byte, 0, 2*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint16(b, uint16(v))
	}
	return w.writeValue(tag, SSVR, b)
}

// WriteUint32 writes a UL element.
func (w *Writer) WriteUint32(tag DataElementTag, values ...uint32) error {
	b := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return w.writeValue(tag, ULVR, b)
}

// WriteInt32 writes an SL element.
func (w *Writer) WriteInt32(tag DataElementTag, values ...int32) error {
	b := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	return w.writeValue(tag, SLVR, b)
}

// WriteFloat32 writes an FL element.
func (w *Writer) WriteFloat32(tag DataElementTag, values ...float32) error {
	b := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return w.writeValue(tag, FLVR, b)
}

// WriteFloat64 writes an FD element.
func (w *Writer) WriteFloat64(tag DataElementTag, values ...float64) error {
	b := make([]byte, 0, 8*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	return w.writeValue(tag, FDVR, b)
}

// WriteAttributeTag writes an AT element.
func (w *Writer) WriteAttributeTag(tag DataElementTag, values ...DataElementTag) error {
	b := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint16(b, v.GroupNumber())
		b = binary.LittleEndian.AppendUint16(b, v.ElementNumber())
	}
	return w.writeValue(tag, ATVR, b)
}

// WriteDecimals writes a DS element, each value in at most 16 characters.
func (w *Writer) WriteDecimals(tag DataElementTag, values ...float64) error {
	strs := make([]string, len(values))
	for i, v := range values {
		s, err := formatDecimal(v)
		if err != nil {
			return fmt.Errorf("formatting %v: %v", tag, err)
		}
		strs[i] = s
	}
	return w.WriteString(tag, DSVR, strs...)
}

// formatDecimal returns the shortest representation of v, losing precision until it fits
// a DS value.
func formatDecimal(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%v has no decimal string", v)
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	for prec := 15; len(s) > maxDecimalString && prec > 0; prec-- {
		s = strconv.FormatFloat(v, 'g', prec, 64)
	}
	return s, nil
}

// WriteIntegers writes an IS element.
func (w *Writer) WriteIntegers(tag DataElementTag, values ...int64) error {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strconv.FormatInt(v, 10)
		if len(strs[i]) > maxIntegerString {
			return fmt.Errorf("%d does not fit an integer string", v)
		}
	}
	return w.WriteString(tag, ISVR, strs...)
}

// WriteDate writes a DA element in the YYYYMMDD form.
func (w *Writer) WriteDate(tag DataElementTag, t time.Time) error {
	return w.WriteString(tag, DAVR, t.Format("20060102"))
}

// WriteTime writes a TM element with microseconds.
func (w *Writer) WriteTime(tag DataElementTag, t time.Time) error {
	return w.WriteString(tag, TMVR, t.Format("150405.000000"))
}

// WriteDateTime writes a DT element with microseconds and the UTC offset.
func (w *Writer) WriteDateTime(tag DataElementTag, t time.Time) error {
	return w.WriteString(tag, DTVR, t.Format("20060102150405.000000-0700"))
}
