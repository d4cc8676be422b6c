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
	"io"

	"github.com/go-kit/log/level"

	"github.com/radmedres/clmedview-sub000/channel"
)

// CopyElement re-emits the element src is positioned on in dst's encoding. Containers are
// opened with an undefined length. When src reaches their end, a container that had a length
// in src gets its new length backpatched if dst can seek; otherwise a delimiter is written.
// Group lengths are recomputed by dst when it can seek and omitted otherwise, since a group
// may outgrow the write buffer. Values move through channel.BulkCopy.
func CopyElement(dst *Writer, src *StreamContext) error {
	e := src.Element()
	if e == nil {
		return fmt.Errorf("copying before the first element")
	}

	var err error
	switch e.role {
	case roleGroupLength:
		if !dst.ch.Seekable() {
			level.Debug(dst.logger).Log("msg", "omitting group length on a stream", "tag", e.Tag)
			return nil
		}
		return dst.WriteGroupLength(e.Tag.GroupNumber())
	case roleSequence:
		if e.VR == UNVR {
			_, err = dst.OpenUnknown(e.Tag)
		} else {
			_, err = dst.OpenSequence(e.Tag)
		}
		dst.keepLength(e)
		return err
	case roleItem:
		_, err = dst.OpenItem()
		dst.keepLength(e)
		return err
	case roleEncapsulated:
		return dst.openEncapsulated(e.Tag)
	case roleItemDelimiter:
		return dst.closeDelimited(itemLevel, e)
	case roleSequenceDelimiter:
		return dst.closeDelimited(sequenceLevel, e)
	case roleFragment:
		if err := dst.WriteHeader(ItemTag, VRNone, e.ValueLength); err != nil {
			return err
		}
		return copyValue(dst, src, e)
	}

	if err := dst.WriteHeader(e.Tag, e.VR, e.ValueLength); err != nil {
		return err
	}
	return copyValue(dst, src, e)
}

func copyValue(dst *Writer, src *StreamContext, e *DataElement) error {
	if e.ValueLength == 0 {
		return nil
	}
	src.ch.SetReadPos(e.Offset)
	n, err := channel.BulkCopy(dst.ch, src.ch, int64(e.ValueLength))
	if err != nil {
		return fmt.Errorf("copying value of %v: %d of %d bytes: %v", e.Tag, n, e.ValueLength, err)
	}
	return nil
}

// openEncapsulated starts encapsulated pixel data whose fragments are copied one by one.
func (w *Writer) openEncapsulated(tag DataElementTag) error {
	if !w.syntax.Encapsulated() {
		return fmt.Errorf("encapsulated %v cannot be written in %v", tag, w.syntax)
	}
	_, err := w.open(tag, OBVR, writerLevel{kind: sequenceLevel, syntax: w.syntaxFor(tag), encapsulated: true})
	return err
}

// keepLength marks the container just opened for e to be backpatched rather than delimited,
// when e had a length and the channel can seek back to it.
func (w *Writer) keepLength(e *DataElement) {
	if n := len(w.levels); n > 0 && e.ValueLength != UndefinedLength && w.ch.Seekable() {
		w.levels[n-1].keepLength = true
	}
}

// closeDelimited ends the container matching a delimiter read from a stream. Stray
// delimiters, which closed nothing on the reading side, are dropped.
func (w *Writer) closeDelimited(kind levelKind, e *DataElement) error {
	n := len(w.levels)
	if n == 0 || w.levels[n-1].kind != kind {
		level.Debug(w.logger).Log("msg", "dropping stray delimiter", "tag", e.Tag, "offset", e.Offset)
		return nil
	}
	if top := w.levels[n-1]; top.keepLength && e.Fake {
		return w.close(kind, top.lengthPos)
	}
	return w.close(kind, NoBackpatch)
}

// CopyDataset copies everything after the meta group from src to dst, which has its own
// meta group already. Elements a CopyOption filters out are skipped along with their
// content.
func CopyDataset(dst *Writer, src *StreamContext, opts ...CopyOption) error {
	skipping := -1
	for {
		e, err := src.NextElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if skipping >= 0 {
			// the skipped container ends with the delimiter at its own depth
			if e.Depth == skipping && e.role == roleSequenceDelimiter {
				skipping = -1
			}
			continue
		}
		if e.Tag.IsMetadataElement() || !keep(e, opts) {
			if e.IsContainer() {
				skipping = e.Depth
			}
			continue
		}
		if err := CopyElement(dst, src); err != nil {
			return fmt.Errorf("copying %v at %d: %v", e.Tag, e.Offset, err)
		}
	}
	if err := src.Err(); err != nil {
		return fmt.Errorf("reading %s: %v", src.ch.Name(), err)
	}
	return dst.ch.Err()
}

func keep(e *DataElement, opts []CopyOption) bool {
	if e.IsDelimiter() || e.role == roleItem || e.role == roleFragment {
		return true
	}
	for _, o := range opts {
		if o.filter != nil && !o.filter(e) {
			return false
		}
	}
	return true
}
