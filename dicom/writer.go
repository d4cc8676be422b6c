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

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/radmedres/clmedview-sub000/channel"
)

// NoBackpatch passed to CloseSequence, CloseItem or CloseUnknown leaves the undefined length
// in place and writes a delimiter instead.
const NoBackpatch int64 = -1

// writerLevel is an open sequence, item or unknown VR element.
type writerLevel struct {
	kind      levelKind
	tag       DataElementTag
	syntax    TransferSyntax
	lengthPos int64

	encapsulated bool
	// keepLength backpatches the length when a copied container ends on a fake delimiter.
	keepLength bool
}

// pendingGroup is a group length element waiting for the end of its group.
type pendingGroup struct {
	group     uint16
	depth     int
	lengthPos int64
}

// Writer emits a DICOM stream element by element. Containers are opened with an undefined
// length whose field offset is returned to the caller; closing them either backpatches the
// real length or writes a delimiter.
type Writer struct {
	ch     *channel.Channel
	dw     dcmWriter
	syntax TransferSyntax
	logger log.Logger
	owned  bool

	levels []writerLevel
	groups []pendingGroup
	pixel  *pixelState
}

// NewWriter writes a dataset in syntax to ch, starting at its write position. Nothing is
// written before the first element; use Create for a Part-10 file.
func NewWriter(ch *channel.Channel, syntax TransferSyntax, opts ...Option) (*Writer, error) {
	if err := writable(syntax); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &Writer{
		ch:     ch,
		dw:     dcmWriter{ch: ch},
		syntax: syntax,
		logger: o.logger,
	}, nil
}

// Create creates a Part-10 file at path, "-" meaning standard output, and writes the
// preamble, the signature and the meta group. The dataset follows in syntax.
func Create(path string, syntax TransferSyntax, meta MetaInfo, opts ...Option) (*Writer, error) {
	if err := writable(syntax); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	var (
		ch  *channel.Channel
		err error
	)
	if path == "-" {
		ch, err = channel.OpenStdout(o.channelOptions...)
	} else {
		ch, err = channel.OpenFile(path, channel.ModeWrite, o.channelOptions...)
	}
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(ch, syntax, opts...)
	if err != nil {
		ch.Close()
		return nil, err
	}
	w.owned = true
	if err := w.writeDicomSignature(); err != nil {
		ch.Close()
		return nil, errors.Wrapf(err, "creating %s", path)
	}
	if err := w.writeMeta(meta.withDefaults(syntax)); err != nil {
		ch.Close()
		return nil, errors.Wrapf(err, "creating %s", path)
	}
	return w, nil
}

func writable(syntax TransferSyntax) error {
	switch syntax {
	case DeflatedExplicitVRLittleEndian:
		return ErrDeflateUnsupported
	case ExplicitVRBigEndian:
		return ErrBigEndian
	}
	return nil
}

func (w *Writer) writeDicomSignature() error {
	if err := w.dw.Zeros(preambleSize); err != nil {
		return fmt.Errorf("writing DICOM preamble: %v", err)
	}

	if err := w.dw.String(magic); err != nil {
		return fmt.Errorf("writing DICOM signature: %v", err)
	}

	return nil
}

// Channel returns the channel the writer writes to.
func (w *Writer) Channel() *channel.Channel { return w.ch }

// Syntax returns the transfer syntax of the dataset.
func (w *Writer) Syntax() TransferSyntax { return w.syntax }

// Depth returns the number of open containers.
func (w *Writer) Depth() int { return len(w.levels) }

// syntaxFor returns the encoding a header for tag is written in.
func (w *Writer) syntaxFor(tag DataElementTag) TransferSyntax {
	if tag.IsMetadataElement() {
		return ExplicitVRLittleEndian
	}
	if n := len(w.levels); n > 0 {
		return w.levels[n-1].syntax
	}
	return w.syntax
}

// wireVR returns the VR written for vr and length: sentinels and short VRs whose value does
// not fit a 16 bit length go out as UN.
func wireVR(vr VR, length uint32) VR {
	if vr.IsSentinel() || vr >= numVRs {
		return UNVR
	}
	if !has32BitLength(vr) && length > 0xFFFF {
		return UNVR
	}
	return vr
}

// WriteHeader writes the header of an element whose value follows. Items and delimiters
// always take the compact implicit shape.
func (w *Writer) WriteHeader(tag DataElementTag, vr VR, length uint32) error {
	if w.pixel == nil {
		if err := w.endGroupBefore(tag); err != nil {
			return err
		}
	}
	if err := w.dw.Tag(tag); err != nil {
		return fmt.Errorf("writing tag %v: %v", tag, err)
	}
	syntax := w.syntaxFor(tag)
	if !syntax.Explicit() || tag.GroupNumber() == delimiterGroup {
		if err := w.dw.UInt32(length); err != nil {
			return fmt.Errorf("writing length of %v: %v", tag, err)
		}
		return nil
	}

	vr = wireVR(vr, length)
	if err := w.dw.String(vr.String()); err != nil {
		return fmt.Errorf("writing VR of %v: %v", tag, err)
	}
	if has32BitLength(vr) {
		if err := w.dw.UInt16(0); err != nil {
			return fmt.Errorf("writing reserved field of %v: %v", tag, err)
		}
		if err := w.dw.UInt32(length); err != nil {
			return fmt.Errorf("writing 32 bit length of %v: %v", tag, err)
		}
		return nil
	}
	if err := w.dw.UInt16(uint16(length)); err != nil {
		return fmt.Errorf("writing 16 bit length of %v: %v", tag, err)
	}
	return nil
}

// WriteGroupLength writes (gggg,0000) for group with a placeholder value. The value is filled
// in when the group ends: at the next element of another group at the same nesting depth, or
// when the enclosing container or the writer is closed.
func (w *Writer) WriteGroupLength(group uint16) error {
	if w.pixel != nil {
		return fmt.Errorf("writing group length inside pixel data")
	}
	if w.pendingGroup() != nil {
		if err := w.endGroup(); err != nil {
			return err
		}
	}
	if err := w.WriteHeader(NewTag(group, 0x0000), ULVR, 4); err != nil {
		return err
	}
	pos := w.ch.WritePos()
	if err := w.dw.UInt32(0); err != nil {
		return fmt.Errorf("writing length of group %04X: %v", group, err)
	}
	w.groups = append(w.groups, pendingGroup{group: group, depth: len(w.levels), lengthPos: pos})
	return nil
}

// pendingGroup returns the group whose length is still open at the current depth, if any.
func (w *Writer) pendingGroup() *pendingGroup {
	if n := len(w.groups); n > 0 && w.groups[n-1].depth == len(w.levels) {
		return &w.groups[n-1]
	}
	return nil
}

// endGroupBefore ends the group pending at the current depth unless tag belongs to it.
func (w *Writer) endGroupBefore(tag DataElementTag) error {
	if g := w.pendingGroup(); g != nil && tag.GroupNumber() != g.group {
		return w.endGroup()
	}
	return nil
}

// endGroup backpatches the innermost pending group length.
func (w *Writer) endGroup() error {
	g := w.groups[len(w.groups)-1]
	w.groups = w.groups[:len(w.groups)-1]
	length := w.ch.WritePos() - (g.lengthPos + 4)
	if length >= UndefinedLength {
		return fmt.Errorf("group %04X too long: %d bytes", g.group, length)
	}
	return w.dw.PatchUInt32(g.lengthPos, uint32(length))
}

// open writes a container header with an undefined length and returns the offset of its
// length field.
func (w *Writer) open(tag DataElementTag, vr VR, lv writerLevel) (int64, error) {
	if w.pixel != nil {
		return 0, fmt.Errorf("opening %v inside pixel data", tag)
	}
	start := w.ch.WritePos()
	_, lengthAt := headerSize(w.syntaxFor(tag), tag, vr)
	if err := w.WriteHeader(tag, vr, UndefinedLength); err != nil {
		return 0, err
	}
	lv.tag = tag
	lv.lengthPos = start + lengthAt
	w.levels = append(w.levels, lv)
	return lv.lengthPos, nil
}

// OpenSequence starts a sequence and returns the offset of its length field.
func (w *Writer) OpenSequence(tag DataElementTag) (int64, error) {
	return w.open(tag, SQVR, writerLevel{kind: sequenceLevel, syntax: w.syntaxFor(tag)})
}

// OpenUnknown starts an unknown VR element of undefined length. Its content is written in
// implicit VR little endian.
func (w *Writer) OpenUnknown(tag DataElementTag) (int64, error) {
	return w.open(tag, UNVR, writerLevel{kind: sequenceLevel, syntax: ImplicitVRLittleEndian})
}

// OpenItem starts an item of the innermost sequence and returns the offset of its length
// field.
func (w *Writer) OpenItem() (int64, error) {
	if n := len(w.levels); n == 0 || w.levels[n-1].kind != sequenceLevel {
		level.Warn(w.logger).Log("msg", "item written outside a sequence")
	}
	return w.open(ItemTag, VRNone, writerLevel{kind: itemLevel, syntax: w.syntaxFor(ItemTag)})
}

// CloseSequence ends the innermost sequence. pos is the value OpenSequence returned, or
// NoBackpatch.
func (w *Writer) CloseSequence(pos int64) error {
	return w.close(sequenceLevel, pos)
}

// CloseUnknown ends the innermost unknown VR element opened by OpenUnknown.
func (w *Writer) CloseUnknown(pos int64) error {
	return w.close(sequenceLevel, pos)
}

// CloseItem ends the innermost item.
func (w *Writer) CloseItem(pos int64) error {
	return w.close(itemLevel, pos)
}

func (w *Writer) close(kind levelKind, pos int64) error {
	n := len(w.levels)
	if n == 0 {
		return fmt.Errorf("closing %v with nothing open", kind)
	}
	top := w.levels[n-1]
	if top.kind != kind {
		return fmt.Errorf("closing %v while %v %v is open", kind, top.kind, top.tag)
	}
	if pos != NoBackpatch && pos != top.lengthPos {
		return fmt.Errorf("closing %v %v with length field %d, opened at %d", kind, top.tag, pos, top.lengthPos)
	}
	var groupErr error
	if w.pendingGroup() != nil {
		groupErr = w.endGroup()
	}
	w.levels = w.levels[:n-1]

	var err error
	if pos == NoBackpatch {
		delim := SequenceDelimitationItemTag
		if kind == itemLevel {
			delim = ItemDelimitationItemTag
		}
		err = w.dw.Delimiter(delim)
	} else if length := w.ch.WritePos() - (pos + 4); length >= UndefinedLength {
		err = fmt.Errorf("%v %v too long for a 32 bit length", kind, top.tag)
	} else {
		err = w.dw.PatchUInt32(pos, uint32(length))
	}
	if groupErr != nil {
		return groupErr
	}
	return err
}

// Close ends whatever is still open with delimiters and flushes. The channel is closed when
// the writer created it. The first error met on the way is returned.
func (w *Writer) Close() error {
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	if w.pixel != nil {
		level.Warn(w.logger).Log("msg", "pixel data left open")
		keep(w.ClosePixelData())
	}
	for len(w.levels) > 0 {
		top := w.levels[len(w.levels)-1]
		level.Warn(w.logger).Log("msg", "closing open container", "kind", top.kind, "tag", top.tag)
		keep(w.close(top.kind, NoBackpatch))
	}
	for len(w.groups) > 0 {
		keep(w.endGroup())
	}
	if w.owned {
		keep(w.ch.Close())
	} else {
		keep(w.ch.Flush())
	}
	return first
}
