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
	"fmt"

	"github.com/go-kit/log/level"
)

// pixelState tracks pixel data written frame by frame.
type pixelState struct {
	encapsulated bool
	frames       int
	next         int

	// encapsulated: position of the first basic offset table entry (-1 when the table is
	// left empty) and of the first fragment item, which offsets are relative to
	tablePos      int64
	firstFragment int64

	// native: size of every frame, -1 until the first one fixes it
	frameSize int
	vr        VR
}

// pixelVR is OB for encapsulated or byte sized samples, OW otherwise.
func pixelVR(encapsulated bool, bitsAllocated int) VR {
	if encapsulated || bitsAllocated <= 8 {
		return OBVR
	}
	return OWVR
}

// OpenPixelData starts (7FE0,0010) for frames frames. In an encapsulated syntax the value is
// a sequence of fragments led by a basic offset table with one entry per frame; the entries
// are filled in by WriteFrame when the channel can seek, and the table is left empty when it
// cannot. Native pixel data is one ordinary element whose header goes out with the first
// frame, sized for frames frames of that length, so nothing is backpatched.
func (w *Writer) OpenPixelData(frames, bitsAllocated int) error {
	if w.pixel != nil {
		return fmt.Errorf("pixel data already open")
	}
	if frames < 1 {
		return fmt.Errorf("pixel data with %d frames", frames)
	}
	ps := &pixelState{
		encapsulated: w.syntax.Encapsulated(),
		frames:       frames,
		tablePos:     -1,
		frameSize:    -1,
		vr:           pixelVR(w.syntax.Encapsulated(), bitsAllocated),
	}

	if !ps.encapsulated {
		if err := w.endGroupBefore(PixelDataTag); err != nil {
			return err
		}
		w.pixel = ps
		return nil
	}

	if err := w.WriteHeader(PixelDataTag, ps.vr, UndefinedLength); err != nil {
		return err
	}
	table := 0
	if w.ch.Seekable() {
		table = 4 * frames
	} else {
		level.Debug(w.logger).Log("msg", "leaving basic offset table empty on a stream", "frames", frames)
	}
	if err := w.WriteHeader(ItemTag, VRNone, uint32(table)); err != nil {
		return fmt.Errorf("writing basic offset table: %v", err)
	}
	if table > 0 {
		ps.tablePos = w.ch.WritePos()
		if err := w.dw.Zeros(table); err != nil {
			return fmt.Errorf("writing basic offset table: %v", err)
		}
	}
	ps.firstFragment = w.ch.WritePos()
	w.pixel = ps
	return nil
}

// WriteFrame appends one frame. Encapsulated frames become one fragment each, padded to an
// even length.
func (w *Writer) WriteFrame(data []byte) error {
	ps := w.pixel
	if ps == nil {
		return fmt.Errorf("writing a frame without open pixel data")
	}
	if ps.next >= ps.frames {
		return fmt.Errorf("frame %d of %d", ps.next+1, ps.frames)
	}
	if !ps.encapsulated {
		if ps.frameSize < 0 {
			if err := w.writeNativeHeader(ps, len(data)); err != nil {
				return err
			}
		} else if len(data) != ps.frameSize {
			return fmt.Errorf("frame %d has %d bytes, earlier frames %d", ps.next, len(data), ps.frameSize)
		}
		if err := w.dw.Bytes(data); err != nil {
			return fmt.Errorf("writing frame %d: %v", ps.next, err)
		}
		ps.next++
		return nil
	}

	if ps.tablePos >= 0 {
		offset := w.ch.WritePos() - ps.firstFragment
		if err := w.dw.PatchUInt32(ps.tablePos+4*int64(ps.next), uint32(offset)); err != nil {
			return fmt.Errorf("recording offset of frame %d: %v", ps.next, err)
		}
	}
	if err := w.writeFragment(data); err != nil {
		return fmt.Errorf("writing frame %d: %v", ps.next, err)
	}
	ps.next++
	return nil
}

// writeNativeHeader writes the pixel data header for frames of frameSize bytes.
func (w *Writer) writeNativeHeader(ps *pixelState, frameSize int) error {
	total := int64(ps.frames) * int64(frameSize)
	total += total % 2
	if total >= UndefinedLength {
		return fmt.Errorf("pixel data too long: %d bytes", total)
	}
	ps.frameSize = frameSize
	return w.WriteHeader(PixelDataTag, ps.vr, uint32(total))
}

func (w *Writer) writeFragment(data []byte) error {
	length := len(data) + len(data)%2
	if err := w.WriteHeader(ItemTag, VRNone, uint32(length)); err != nil {
		return err
	}
	if err := w.dw.Bytes(data); err != nil {
		return err
	}
	if length != len(data) {
		return w.dw.Bytes([]byte{0})
	}
	return nil
}

// ClosePixelData ends the pixel data. Frames that were announced but never written are
// reported in the log; native pixel data gets zeros in their place, since its length was
// written up front.
func (w *Writer) ClosePixelData() error {
	ps := w.pixel
	if ps == nil {
		return fmt.Errorf("closing pixel data that is not open")
	}
	w.pixel = nil
	if ps.next < ps.frames {
		level.Warn(w.logger).Log("msg", "pixel data closed early", "frames", ps.frames, "written", ps.next)
	}
	if ps.encapsulated {
		return w.dw.Delimiter(SequenceDelimitationItemTag)
	}

	if ps.frameSize < 0 {
		return w.writeNativeHeader(ps, 0)
	}
	if err := w.dw.Zeros((ps.frames - ps.next) * ps.frameSize); err != nil {
		return err
	}
	if int64(ps.frames)*int64(ps.frameSize)%2 != 0 {
		return w.dw.Bytes([]byte{0})
	}
	return nil
}

// WritePixelData writes a single frame of pixel data in one call.
func (w *Writer) WritePixelData(bitsAllocated int, data []byte) error {
	if w.syntax.Encapsulated() {
		if err := w.OpenPixelData(1, bitsAllocated); err != nil {
			return err
		}
		if err := w.WriteFrame(data); err != nil {
			return err
		}
		return w.ClosePixelData()
	}
	return w.WriteBytes(PixelDataTag, pixelVR(false, bitsAllocated), data)
}
