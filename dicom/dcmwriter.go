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

	"github.com/pkg/errors"

	"github.com/radmedres/clmedview-sub000/channel"
)

// dcmWriter writes little endian primitives to a channel. Failures stick to the channel, so
// callers can check once after a run of writes.
type dcmWriter struct {
	ch      *channel.Channel
	scratch [8]byte
}

func (dw *dcmWriter) Tag(tag DataElementTag) error {
	if err := dw.UInt16(tag.GroupNumber()); err != nil {
		return err
	}
	return dw.UInt16(tag.ElementNumber())
}

func (dw *dcmWriter) Delimiter(tag DataElementTag) error {
	if err := dw.Tag(tag); err != nil {
		return fmt.Errorf("writing delimiter tag: %v", err)
	}
	if err := dw.UInt32(0); err != nil {
		return fmt.Errorf("writing item length of delimiter: %v", err)
	}
	return nil
}

func (dw *dcmWriter) UInt16(v uint16) error {
	binary.LittleEndian.PutUint16(dw.scratch[:2], v)
	return dw.Bytes(dw.scratch[:2])
}

func (dw *dcmWriter) UInt32(v uint32) error {
	binary.LittleEndian.PutUint32(dw.scratch[:4], v)
	return dw.Bytes(dw.scratch[:4])
}

func (dw *dcmWriter) UInt64(v uint64) error {
	binary.LittleEndian.PutUint64(dw.scratch[:8], v)
	return dw.Bytes(dw.scratch[:8])
}

func (dw *dcmWriter) String(s string) error {
	_, err := dw.ch.Write([]byte(s))
	return err
}

func (dw *dcmWriter) Bytes(b []byte) error {
	_, err := dw.ch.Write(b)
	return err
}

// Zeros writes n NUL bytes.
func (dw *dcmWriter) Zeros(n int) error {
	var zero [64]byte
	for n > 0 {
		k := min(n, len(zero))
		if err := dw.Bytes(zero[:k]); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

// PatchUInt32 overwrites the 4 bytes at pos and returns to the current write position.
// Bytes that already left the buffer of a non-seekable channel are reported with
// ErrUnbackpatchable, leaving the channel usable.
func (dw *dcmWriter) PatchUInt32(pos int64, v uint32) error {
	if !dw.ch.CanBackpatch(pos) {
		return errors.Wrapf(ErrUnbackpatchable, "backpatching length at %d", pos)
	}
	end := dw.ch.WritePos()
	dw.ch.SetWritePos(pos)
	dw.UInt32(v)
	dw.ch.SetWritePos(end)
	if err := dw.ch.Err(); err != nil {
		return fmt.Errorf("backpatching length at %d: %v", pos, err)
	}
	return nil
}
