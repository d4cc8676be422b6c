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

	"github.com/radmedres/clmedview-sub000/channel"
)

// dcmReader is a wrapper around a channel, providing convenience methods for
// parsing tags, numbers, strings. Everything it decodes is little endian.
type dcmReader struct {
	ch      *channel.Channel
	scratch [8]byte
}

func (dr *dcmReader) Tag() (DataElementTag, error) {
	group, err := dr.UInt16()
	if err != nil {
		return 0, err
	}
	element, err := dr.UInt16()
	if err != nil {
		return 0, err
	}

	return NewTag(group, element), nil
}

// Bytes returns a byte array of size n from the input stream
func (dr *dcmReader) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	gotN, err := io.ReadFull(dr.ch, b)
	if err != nil {
		return b[:gotN], err
	}
	return b, nil
}

// String returns a string of length n from the input stream
func (dr *dcmReader) String(n int) (string, error) {
	b, err := dr.Bytes(n)
	return string(b), err
}

// UInt32 returns a uint32 from the input stream
func (dr *dcmReader) UInt32() (uint32, error) {
	if _, err := io.ReadFull(dr.ch, dr.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(dr.scratch[:4]), nil
}

// UInt16 returns a uint16 from the input stream
func (dr *dcmReader) UInt16() (uint16, error) {
	if _, err := io.ReadFull(dr.ch, dr.scratch[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(dr.scratch[:2]), nil
}

// BytesAt reads n bytes at pos. The read position is left after them.
func (dr *dcmReader) BytesAt(pos int64, n int) ([]byte, error) {
	dr.ch.SetReadPos(pos)
	if err := dr.ch.Err(); err != nil {
		return nil, err
	}
	return dr.Bytes(n)
}

// Peek returns the n bytes at pos without moving the read position.
func (dr *dcmReader) Peek(pos int64, n int) ([]byte, error) {
	saved := dr.ch.ReadPos()
	b, err := dr.BytesAt(pos, n)
	dr.ch.SetReadPos(saved)
	if err == nil {
		err = dr.ch.Err()
	}
	if err != nil {
		return b, fmt.Errorf("peeking %d bytes at %d: %v", n, pos, err)
	}
	return b, nil
}
