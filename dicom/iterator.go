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
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"

	"github.com/radmedres/clmedview-sub000/channel"
)

const (
	preambleSize = 128
	magic        = "DICM"

	// utf8Term is the specific character set defined term for UTF-8.
	utf8Term = "ISO_IR 192"
)

// StreamContext iterates over the data elements of a DICOM stream without building a tree.
//
// Each call to NextElement decodes one header and leaves the value in the stream, where the
// accessors (Uint16, String, Decimals, ...) read it on demand. Nesting is tracked on a
// fixed-capacity ladder of open groups, sequences and items; when a level with a declared
// length runs out without a delimiter, a fake delimiter is returned so callers always see
// well formed nesting.
type StreamContext struct {
	ch     *channel.Channel
	dr     dcmReader
	opts   options
	logger log.Logger
	owned  bool

	size    int64
	start   int64
	metaEnd int64

	syntaxUID      string
	deflatePending bool

	sopClassUID    string
	sopInstanceUID string
	charset        string
	utf8           bool
	acrNema        bool
	frames         int
	currentFrame   int

	ladder   ladder
	creators creatorTable

	// group whose declared length ran out at endedDepth, -1 when none
	endedGroup int
	endedDepth int

	cur  DataElement
	next int64
	done bool
	err  error
}

// Open opens a DICOM file for iteration. The path "-" reads standard input; anything else
// must be a regular file.
func Open(path string, opts ...Option) (*StreamContext, error) {
	o := newOptions(opts)
	var (
		ch  *channel.Channel
		err error
	)
	if path == "-" {
		ch, err = channel.OpenStdin(o.channelOptions...)
	} else {
		fi, statErr := os.Stat(path)
		if statErr != nil {
			return nil, errors.Wrapf(statErr, "opening %s", path)
		}
		if !fi.Mode().IsRegular() {
			return nil, errors.Wrap(ErrNotRegular, path)
		}
		ch, err = channel.OpenFile(path, channel.ModeRead, o.channelOptions...)
	}
	if err != nil {
		return nil, err
	}
	s, err := newStreamContext(ch, o)
	if err != nil {
		ch.Close()
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	s.owned = true
	return s, nil
}

// OpenChannel starts iterating over ch, which must be positioned at the start of the
// stream. On failure the channel is left to the caller.
func OpenChannel(ch *channel.Channel, opts ...Option) (*StreamContext, error) {
	return newStreamContext(ch, newOptions(opts))
}

func newStreamContext(ch *channel.Channel, o options) (*StreamContext, error) {
	s := &StreamContext{
		ch:       ch,
		dr:       dcmReader{ch: ch},
		opts:     o,
		logger:   o.logger,
		size:     ch.Size(),
		creators: newCreatorTable(creatorCapacity),

		endedGroup: -1,
	}
	start, err := s.readDicomSignature()
	if err != nil {
		return nil, err
	}
	s.start = start
	syntax, err := s.detectSyntax()
	if err != nil {
		return nil, err
	}

	root := rung{start: start, size: unbounded, syntax: syntax, kind: rootLevel}
	if s.size != channel.Unbounded {
		root.size = s.size - start
	}
	s.ladder = newLadder(o.ladderCapacity, root)
	s.next = start
	ch.SetReadPos(start)
	if err := ch.Err(); err != nil {
		return nil, err
	}
	level.Debug(s.logger).Log("msg", "opened stream", "syntax", syntax, "start", start, "meta_end", s.metaEnd)
	return s, nil
}

// readDicomSignature skips the preamble and checks the magic. Streams without them are
// rewound and read as legacy (ACR-NEMA style) streams.
func (s *StreamContext) readDicomSignature() (int64, error) {
	head := make([]byte, preambleSize+len(magic))
	n, err := io.ReadFull(s.ch, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("reading preamble: %v", err)
	}
	if n == len(head) && string(head[preambleSize:]) == magic {
		return int64(n), nil
	}
	if n < tagSize+4 {
		return 0, ErrTooSmall
	}
	s.ch.SetReadPos(0)
	if err := s.ch.Err(); err != nil {
		return 0, fmt.Errorf("rewinding stream without preamble: %v", err)
	}
	level.Debug(s.logger).Log("msg", "no DICM signature, reading legacy stream")
	return 0, nil
}

// detectSyntax decides the encoding of the dataset: from the transfer syntax of the meta
// group when there is one, from the shape of the first header otherwise.
func (s *StreamContext) detectSyntax() (TransferSyntax, error) {
	head, err := s.dr.Peek(s.start, tagSize+4)
	if err != nil {
		return 0, errors.Wrap(ErrTooSmall, err.Error())
	}
	switch binary.LittleEndian.Uint16(head) {
	case 0x0002:
	case 0x0200, 0x0800:
		// (0002,xxxx) or (0008,xxxx) read with the wrong byte order
		return 0, ErrBigEndian
	default:
		return guessSyntax(head), nil
	}

	uid, metaEnd, err := s.findSyntax()
	if err != nil {
		return 0, fmt.Errorf("reading meta group: %v", err)
	}
	s.metaEnd = metaEnd
	if uid == "" {
		level.Warn(s.logger).Log("msg", "meta group without transfer syntax, probing dataset", "offset", metaEnd)
		head, err := s.dr.Peek(metaEnd, tagSize+4)
		if err != nil {
			return ExplicitVRLittleEndian, nil
		}
		return guessSyntax(head), nil
	}
	syntax := LookupTransferSyntax(uid)
	if err := s.acceptSyntax(syntax); err != nil {
		return 0, err
	}
	s.syntaxUID = uid
	return syntax, nil
}

func guessSyntax(head []byte) TransferSyntax {
	if looksLikeVR(head[tagSize:]) {
		return ExplicitVRLittleEndian
	}
	return ImplicitVRLittleEndian
}

func (s *StreamContext) acceptSyntax(syntax TransferSyntax) error {
	switch syntax {
	case ExplicitVRBigEndian:
		return ErrBigEndian
	case DeflatedExplicitVRLittleEndian:
		if !s.opts.deflate {
			return ErrDeflateUnsupported
		}
		s.deflatePending = true
	}
	return nil
}

// findSyntax walks the explicit little endian meta group and returns the transfer syntax UID
// and the offset of the first byte after the group. The SOP class and instance UIDs are
// picked up on the way. The read position is restored.
func (s *StreamContext) findSyntax() (string, int64, error) {
	var uid string
	pos := s.start
	defer s.ch.SetReadPos(s.start)
	s.ch.SetReadPos(pos)
	for {
		tag, err := s.dr.Tag()
		if err != nil || tag.GroupNumber() != 0x0002 {
			break
		}
		code, err := s.dr.Bytes(vrSize)
		if err != nil {
			break
		}
		vr, ok := lookupVRByCode([2]byte{code[0], code[1]})
		if !ok {
			return "", 0, fmt.Errorf("unrecognized VR %q in %v", code, tag)
		}
		var length uint32
		if has32BitLength(vr) {
			if _, err := s.dr.UInt16(); err != nil {
				break
			}
			length, err = s.dr.UInt32()
		} else {
			var l16 uint16
			l16, err = s.dr.UInt16()
			length = uint32(l16)
		}
		if err != nil {
			break
		}
		if length == UndefinedLength {
			return "", 0, fmt.Errorf("undefined length in meta element %v", tag)
		}
		valueAt := s.ch.ReadPos()
		var dst *string
		switch tag {
		case TransferSyntaxUIDTag:
			dst = &uid
		case MediaStorageSOPClassUIDTag:
			dst = &s.sopClassUID
		case MediaStorageSOPInstanceUIDTag:
			dst = &s.sopInstanceUID
		}
		if dst != nil {
			v, err := s.dr.String(int(min(length, 128)))
			if err != nil {
				break
			}
			*dst = strings.TrimRight(v, " \x00")
		}
		pos = valueAt + int64(length)
		s.ch.SetReadPos(pos)
	}
	return uid, pos, s.ch.Err()
}

// NextElement returns the next DataElement in the stream. If there is no next DataElement,
// the error io.EOF is returned; this also happens when a fatal condition (a short header or
// nesting beyond the ladder capacity) stops iteration, which Err then reports.
//
// The returned element is reused by the next call.
func (s *StreamContext) NextElement() (*DataElement, error) {
	if s.done {
		return nil, io.EOF
	}
	pos := s.next

	// levels that ran out of bytes close first
	for s.ladder.depth() > 0 && s.ladder.expired(pos) {
		if e := s.closeExpired(pos); e != nil {
			return e, nil
		}
	}
	if s.size != channel.Unbounded && pos >= s.size {
		return s.endOfStream(pos)
	}

	if s.deflatePending && pos >= s.metaEnd {
		if err := s.startDeflate(pos); err != nil {
			return s.fail(err)
		}
	}

	s.ch.SetReadPos(pos)
	if err := s.ch.Err(); err != nil {
		return s.fail(err)
	}
	e := &s.cur
	*e = DataElement{Offset: pos, Valid: true, ItemIndex: -1}
	if eof, err := s.readHeader(e); eof {
		return s.endOfStream(pos)
	} else if err != nil {
		return s.fail(err)
	}
	group, element := e.Tag.GroupNumber(), e.Tag.ElementNumber()

	s.contract(e, pos)

	// private creators
	depth := s.ladder.depth()
	s.checkEndedGroup(e, depth)
	s.creators.unwind(depth)
	if e.Tag.IsPrivate() && element >= 0x1000 {
		if name, ok := s.creators.resolve(group, element, depth); ok {
			e.Creator = name
		}
	}
	e.Depth = depth
	if seq := s.ladder.nearest(sequenceLevel); seq != nil && s.ladder.top().kind == itemLevel {
		e.ItemIndex = s.ladder.top().items
	}

	s.next = e.Offset + int64(e.ValueLength)
	switch {
	case e.Tag == ItemDelimitationItemTag:
		e.role = roleItemDelimiter
		s.closeDelimited(e, itemLevel)
	case e.Tag == SequenceDelimitationItemTag:
		e.role = roleSequenceDelimiter
		s.closeDelimited(e, sequenceLevel)
	case e.Tag == ItemTag:
		if err := s.openItem(e); err != nil {
			return s.fail(err)
		}
	default:
		if err := s.interpret(e); err != nil {
			return s.fail(err)
		}
	}
	return e, nil
}

// readHeader decodes the header at the read position into e. eof is set when the stream
// ends cleanly before the header.
func (s *StreamContext) readHeader(e *DataElement) (eof bool, err error) {
	var head [8]byte
	n, err := io.ReadFull(s.ch, head[:])
	if n == 0 && err == io.EOF {
		return true, nil
	}
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return false, errors.Wrapf(ErrShortHeader, "%d of 8 bytes at %d", n, e.Offset)
		}
		return false, err
	}
	e.Tag = NewTag(binary.LittleEndian.Uint16(head[0:]), binary.LittleEndian.Uint16(head[2:]))

	syntax := s.ladder.top().syntax
	if e.Tag.IsMetadataElement() {
		syntax = ExplicitVRLittleEndian
	}
	switch {
	case e.Tag.GroupNumber() == delimiterGroup:
		e.VR = VRNone
		e.ValueLength = binary.LittleEndian.Uint32(head[4:])
	case !syntax.Explicit():
		e.VR = e.Tag.DictionaryVR()
		e.ValueLength = binary.LittleEndian.Uint32(head[4:])
	default:
		vr, ok := lookupVRByCode([2]byte{head[4], head[5]})
		switch {
		case !ok:
			e.VR = VRHack
			e.ValueLength = binary.LittleEndian.Uint32(head[4:])
			s.warn(e, fmt.Sprintf("unrecognized VR code %q, reading implicit length", head[4:6]))
		case has32BitLength(vr):
			e.VR = vr
			l, err := s.dr.UInt32()
			if err != nil {
				return false, errors.Wrapf(ErrShortHeader, "32 bit length of %v at %d", e.Tag, e.Offset)
			}
			e.ValueLength = l
		default:
			e.VR = vr
			e.ValueLength = uint32(binary.LittleEndian.Uint16(head[6:]))
		}
	}
	e.Offset = s.ch.ReadPos()
	return false, nil
}

// contract closes the levels the element just read shows to be over.
func (s *StreamContext) contract(e *DataElement, headerAt int64) {
	group := e.Tag.GroupNumber()
	for s.ladder.depth() > 0 {
		top := s.ladder.top()
		switch top.kind {
		case groupLevel:
			if group == top.tag.GroupNumber() && group != delimiterGroup {
				return
			}
			if top.bounded() && headerAt != top.end() {
				s.warn(e, fmt.Sprintf("group %04X ended at %d, declared end %d", top.tag.GroupNumber(), headerAt, top.end()))
			}
			s.ladder.pop()
		case itemLevel:
			switch {
			case e.Tag == SequenceDelimitationItemTag:
				s.warn(e, fmt.Sprintf("item %d closed by sequence delimiter", top.items))
			case e.Tag == ItemTag && !top.encapsulated:
				s.warn(e, fmt.Sprintf("item %d closed by next item", top.items))
			default:
				return
			}
			s.ladder.pop()
		case sequenceLevel:
			if group == delimiterGroup {
				return
			}
			s.warn(e, fmt.Sprintf("%v inside sequence %v without an item", e.Tag, top.tag))
			s.ladder.pop()
		default:
			return
		}
	}
}

// closeExpired pops the innermost level because pos reached the end of it or of one of its
// ancestors. Items and sequences get a fake delimiter.
func (s *StreamContext) closeExpired(pos int64) *DataElement {
	top := s.ladder.top()
	var warning string
	switch {
	case !top.bounded():
		warning = fmt.Sprintf("%v level %v closed by an enclosing length", top.kind, top.tag)
	case pos > top.end():
		warning = fmt.Sprintf("%v level %v overran its length by %d bytes", top.kind, top.tag, pos-top.end())
	}
	switch top.kind {
	case itemLevel:
		return s.fakeDelimiter(ItemDelimitationItemTag, pos, warning)
	case sequenceLevel:
		return s.fakeDelimiter(SequenceDelimitationItemTag, pos, warning)
	}
	if warning != "" {
		level.Warn(s.logger).Log("msg", warning, "offset", pos)
	}
	if top.kind == groupLevel {
		s.endedGroup, s.endedDepth = int(top.tag.GroupNumber()), s.ladder.depth()-1
	}
	s.ladder.pop()
	return nil
}

// checkEndedGroup flags elements that still belong to a group whose declared length ran out.
func (s *StreamContext) checkEndedGroup(e *DataElement, depth int) {
	if s.endedGroup < 0 || depth > s.endedDepth {
		return
	}
	group := e.Tag.GroupNumber()
	if depth == s.endedDepth && int(group) == s.endedGroup && group != delimiterGroup {
		s.warn(e, fmt.Sprintf("group %04X continues past its declared length", group))
		return
	}
	s.endedGroup = -1
}

func (s *StreamContext) fakeDelimiter(tag DataElementTag, pos int64, warning string) *DataElement {
	s.ladder.pop()
	depth := s.ladder.depth()
	s.creators.unwind(depth)
	e := &s.cur
	*e = DataElement{
		Tag:       tag,
		VR:        VRNone,
		Offset:    pos,
		Fake:      true,
		Valid:     true,
		Depth:     depth,
		ItemIndex: -1,
		role:      roleItemDelimiter,
	}
	if tag == SequenceDelimitationItemTag {
		e.role = roleSequenceDelimiter
	}
	if top := s.ladder.top(); top.kind == itemLevel {
		e.ItemIndex = top.items
	}
	if warning != "" {
		s.warn(e, warning)
	}
	s.next = pos
	return e
}

// endOfStream closes whatever is still open with fake delimiters, then reports io.EOF.
func (s *StreamContext) endOfStream(pos int64) (*DataElement, error) {
	for s.ladder.depth() > 0 {
		top := s.ladder.top()
		warning := fmt.Sprintf("stream ended inside %v level %v", top.kind, top.tag)
		switch top.kind {
		case itemLevel:
			return s.fakeDelimiter(ItemDelimitationItemTag, pos, warning), nil
		case sequenceLevel:
			return s.fakeDelimiter(SequenceDelimitationItemTag, pos, warning), nil
		}
		s.ladder.pop()
	}
	s.done = true
	return nil, io.EOF
}

func (s *StreamContext) closeDelimited(e *DataElement, kind levelKind) {
	if e.ValueLength != 0 {
		s.warn(e, fmt.Sprintf("delimiter with length %d", e.ValueLength))
		e.ValueLength = 0
		s.next = e.Offset
	}
	top := s.ladder.top()
	if top.kind != kind {
		s.warn(e, fmt.Sprintf("stray %v delimiter", kind))
		return
	}
	s.ladder.pop()
	if top.encapsulated {
		level.Debug(s.logger).Log("msg", "end of encapsulated pixel data", "fragments", top.items)
	}
	e.Depth = s.ladder.depth()
	e.ItemIndex = -1
	if t := s.ladder.top(); t.kind == itemLevel {
		e.ItemIndex = t.items
	}
	s.creators.unwind(e.Depth)
}

func (s *StreamContext) openItem(e *DataElement) error {
	top := s.ladder.top()
	if top.encapsulated {
		e.role = roleFragment
		e.ItemIndex = top.items
		// item 0 is the basic offset table, one fragment per frame after it
		if top.items > 0 {
			s.currentFrame = top.items - 1
		}
		top.items++
		if e.ValueLength == UndefinedLength {
			s.warn(e, "fragment with undefined length")
			e.ValueLength = 0
			s.next = e.Offset
		}
		return nil
	}
	e.role = roleItem
	index := 0
	if top.kind == sequenceLevel {
		index = top.items
		top.items++
		if top.tag == PerFrameFunctionalGroupsSequenceTag {
			s.currentFrame = index
		}
	} else {
		s.warn(e, fmt.Sprintf("item outside a sequence, inside %v level", top.kind))
	}
	e.ItemIndex = index
	return s.push(e, rung{
		start:  e.Offset,
		size:   lengthOrUnbounded(e.ValueLength),
		syntax: top.syntax,
		tag:    e.Tag,
		kind:   itemLevel,
		items:  index,
		vendor: top.vendor,
	})
}

// interpret handles everything that is not an item or a delimiter: undefined lengths, the
// elements the reader takes state from, new levels and private creators.
func (s *StreamContext) interpret(e *DataElement) error {
	top := s.ladder.top()
	group, element := e.Tag.GroupNumber(), e.Tag.ElementNumber()

	if e.ValueLength == UndefinedLength {
		switch {
		case e.Tag == PixelDataTag:
			e.role = roleEncapsulated
		case e.VR == SQVR || e.VR == UNVR:
		case e.VR == VRNone || e.VR == VRHack || e.VR == VRUnknown:
			e.VR = SQVR
		default:
			s.warn(e, fmt.Sprintf("undefined length on %v element, reading as sequence", e.VR))
		}
		if e.role != roleEncapsulated {
			e.role = roleSequence
		}
	} else if e.VR == SQVR {
		e.role = roleSequence
	}

	if err := s.sideEffects(e); err != nil {
		return err
	}

	switch e.role {
	case roleEncapsulated:
		s.currentFrame = 0
		return s.push(e, rung{
			start:        e.Offset,
			size:         unbounded,
			syntax:       top.syntax,
			tag:          e.Tag,
			kind:         sequenceLevel,
			encapsulated: true,
			vendor:       top.vendor,
		})
	case roleSequence:
		lv := rung{
			start:  e.Offset,
			size:   lengthOrUnbounded(e.ValueLength),
			syntax: top.syntax,
			tag:    e.Tag,
			kind:   sequenceLevel,
			vendor: top.vendor,
		}
		if e.VR == UNVR {
			lv.syntax = ImplicitVRLittleEndian
			lv.vendor = lv.vendor || e.Tag.IsPrivate()
		}
		return s.push(e, lv)
	}

	if element == 0 && e.ValueLength == 4 && s.ladder.top().kind != groupLevel {
		e.role = roleGroupLength
		length, err := s.valueUint32(e)
		if err != nil {
			return err
		}
		return s.push(e, rung{
			start:  e.Offset + 4,
			size:   int64(length),
			syntax: top.syntax,
			tag:    e.Tag,
			kind:   groupLevel,
			vendor: top.vendor,
		})
	}

	if e.Tag.IsPrivateCreator() && !top.vendor {
		switch e.VR {
		case LOVR, VRNone, VRHack, VRUnknown:
			name := strings.TrimRight(s.valueString(e, 64), " \x00")
			if !s.creators.register(group, element, name, s.ladder.depth()) {
				s.warn(e, fmt.Sprintf("private creator table full, %q ignored", name))
			}
		}
	}
	return nil
}

// sideEffects captures the stream state carried by specific elements.
func (s *StreamContext) sideEffects(e *DataElement) error {
	switch e.Tag {
	case SpecificCharacterSetTag:
		s.charset = strings.TrimRight(s.valueString(e, 256), " \x00")
		s.utf8 = false
		for _, term := range strings.Split(s.charset, `\`) {
			if strings.TrimSpace(term) == utf8Term {
				s.utf8 = true
			}
		}
	case NumberOfFramesTag:
		if v := parseIntegers(s.valueString(e, 64)); len(v) > 0 {
			s.frames = int(v[0])
		}
	case MediaStorageSOPClassUIDTag:
		s.sopClassUID = strings.TrimRight(s.valueString(e, 128), " \x00")
	case MediaStorageSOPInstanceUIDTag:
		s.sopInstanceUID = strings.TrimRight(s.valueString(e, 128), " \x00")
	case TransferSyntaxUIDTag:
		uid := strings.TrimRight(s.valueString(e, 128), " \x00")
		syntax := LookupTransferSyntax(uid)
		if err := s.acceptSyntax(syntax); err != nil {
			return err
		}
		root := s.ladder.root()
		if root.syntax != syntax {
			level.Debug(s.logger).Log("msg", "switching transfer syntax", "from", root.syntax, "to", syntax)
		}
		root.syntax = syntax
		s.syntaxUID = uid
	case RecognitionCodeTag:
		s.acrNema = true
		level.Debug(s.logger).Log("msg", "ACR-NEMA recognition code", "value", strings.TrimSpace(s.valueString(e, 64)))
	}
	return nil
}

func (s *StreamContext) push(e *DataElement, lv rung) error {
	clamped, err := s.ladder.push(lv)
	if err != nil {
		return errors.Wrapf(err, "opening %v at %d", e.Tag, e.Offset)
	}
	if clamped {
		s.warn(e, fmt.Sprintf("%v length %d exceeds the enclosing level", e.Tag, e.ValueLength))
	}
	if lv.kind != groupLevel {
		s.next = e.Offset
	}
	return nil
}

func (s *StreamContext) startDeflate(pos int64) error {
	s.ch.SetReadPos(pos)
	err := s.ch.Transform(func(r io.Reader) (io.Reader, error) {
		return flate.NewReader(r), nil
	})
	if err != nil {
		return fmt.Errorf("starting deflate at %d: %v", pos, err)
	}
	s.deflatePending = false
	s.size = channel.Unbounded
	s.ladder.root().size = unbounded
	level.Debug(s.logger).Log("msg", "inflating dataset", "offset", pos)
	return nil
}

func (s *StreamContext) warn(e *DataElement, warning string) {
	e.Valid = false
	if e.Warning == "" {
		e.Warning = warning
	} else {
		e.Warning += "; " + warning
	}
	level.Warn(s.logger).Log("msg", warning, "tag", e.Tag, "offset", e.Offset)
}

func (s *StreamContext) fail(err error) (*DataElement, error) {
	s.err = err
	s.done = true
	level.Error(s.logger).Log("msg", "stopping iteration", "err", err)
	return nil, io.EOF
}

func lengthOrUnbounded(length uint32) int64 {
	if length == UndefinedLength {
		return unbounded
	}
	return int64(length)
}

// Err returns the condition that stopped iteration early, or the channel's error.
func (s *StreamContext) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.ch.Err()
}

// Close releases the stream. Channels passed to OpenChannel stay open.
func (s *StreamContext) Close() error {
	s.done = true
	if s.owned {
		return s.ch.Close()
	}
	return nil
}

// Channel returns the underlying channel.
func (s *StreamContext) Channel() *channel.Channel { return s.ch }

// Element returns the element the stream is positioned on, or nil before the first call to
// NextElement.
func (s *StreamContext) Element() *DataElement {
	if s.cur.Tag == 0 && !s.cur.Fake && s.cur.Offset == 0 {
		return nil
	}
	return &s.cur
}

// Syntax returns the transfer syntax of the dataset.
func (s *StreamContext) Syntax() TransferSyntax { return s.ladder.root().syntax }

// TransferSyntaxUID returns the transfer syntax UID read from the meta group.
func (s *StreamContext) TransferSyntaxUID() string { return s.syntaxUID }

// SOPClassUID returns the media storage SOP class UID read from the meta group.
func (s *StreamContext) SOPClassUID() string { return s.sopClassUID }

// SOPInstanceUID returns the media storage SOP instance UID read from the meta group.
func (s *StreamContext) SOPInstanceUID() string { return s.sopInstanceUID }

// CharacterSet returns the specific character set seen so far.
func (s *StreamContext) CharacterSet() string { return s.charset }

// UTF8 reports whether the specific character set designates UTF-8.
func (s *StreamContext) UTF8() bool { return s.utf8 }

// ACRNEMA reports whether a recognition code marked the stream as ACR-NEMA.
func (s *StreamContext) ACRNEMA() bool { return s.acrNema }

// NumberOfFrames returns the frame count read from the dataset.
func (s *StreamContext) NumberOfFrames() int { return s.frames }

// CurrentFrame returns the index of the frame being read, from encapsulated fragments or
// the per-frame functional groups.
func (s *StreamContext) CurrentFrame() int { return s.currentFrame }

// Depth returns the number of open levels above the root.
func (s *StreamContext) Depth() int { return s.ladder.depth() }
