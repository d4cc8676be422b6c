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

package channel

import (
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Mode selects the directions a Channel supports.
type Mode int

const (
	// ModeRead opens the channel for reading.
	ModeRead Mode = 1 << iota
	// ModeWrite opens the channel for writing.
	ModeWrite
	// ModeReadWrite opens the channel for both directions. Splitters and fillers are not
	// allowed in this mode.
	ModeReadWrite = ModeRead | ModeWrite
)

// Direction selects which traffic a tee mirrors.
type Direction int

const (
	TeeReads Direction = 1 << iota
	TeeWrites
	TeeBoth = TeeReads | TeeWrites
)

// DefaultBufferSize is the size of each of the read and write buffers.
const DefaultBufferSize = 64 * 1024

// Unbounded is the size reported by channels whose length is not known.
const Unbounded int64 = -1

// Splitter produces the header written in front of a flushed packet of pending bytes.
type Splitter func(pending int) []byte

// Filler refills the read buffer. buf is the free part of the buffer; the filler stores up to
// len(buf) bytes in it, or returns a buffer of its own holding the data, together with the
// number of valid bytes. Returning io.EOF marks the end of the stream; any other error is
// permanent.
type Filler func(buf []byte) ([]byte, int, error)

var (
	// ErrDirectional is returned when a splitter or filler is used on a read-write channel.
	ErrDirectional = errors.New("splitter and filler require a directional channel")
	// ErrIllegalSeek is recorded when a non-seekable channel is asked to move backward past
	// its buffer.
	ErrIllegalSeek = errors.New("illegal seek on non-seekable channel")
	// ErrClosed is recorded by operations on a closed channel.
	ErrClosed = errors.New("channel closed")

	errNotReadable = errors.New("channel not opened for reading")
	errNotWritable = errors.New("channel not opened for writing")
)

// Channel is a buffered byte stream over a file, pipe, socket or generic reader/writer with
// independent read and write cursors.
//
// Errors are sticky: the first failure is recorded and reported by Err, and every later
// operation degrades to a no-op, so a long run of writes only needs one check at the end.
type Channel struct {
	name string
	mode Mode

	file   *os.File
	r      io.Reader
	w      io.Writer
	closer io.Closer

	seekable bool
	size     int64

	rbuf   []byte
	rstart int64
	rlen   int
	rpos   int64

	wbuf   []byte
	wstart int64
	wlen   int
	wpos   int64

	bytesRead    int64
	bytesWritten int64

	err    error
	eof    bool
	closed bool

	bufferSize int
	splitter   Splitter
	filler     Filler
	readTee    *Channel
	writeTee   *Channel

	logger  log.Logger
	metrics *Metrics
}

// Option configures a Channel.
type Option func(*Channel)

// WithBufferSize sets the size of the read and write buffers.
func WithBufferSize(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithSplitter installs a splitter for outgoing packets.
func WithSplitter(s Splitter) Option {
	return func(c *Channel) { c.splitter = s }
}

// WithFiller installs a filler for incoming packets.
func WithFiller(f Filler) Option {
	return func(c *Channel) { c.filler = f }
}

// WithLogger sets the logger used for failures and fallbacks.
func WithLogger(l log.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics makes the channel report into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

func newChannel(name string, mode Mode, opts []Option) (*Channel, error) {
	c := &Channel{
		name:       name,
		mode:       mode,
		size:       Unbounded,
		bufferSize: DefaultBufferSize,
		logger:     log.NewNopLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	if mode&ModeReadWrite == 0 {
		return nil, errors.Errorf("invalid channel mode %d", mode)
	}
	if mode == ModeReadWrite && (c.splitter != nil || c.filler != nil) {
		return nil, ErrDirectional
	}
	if mode&ModeRead != 0 {
		c.rbuf = make([]byte, c.bufferSize)
	}
	if mode&ModeWrite != 0 {
		c.wbuf = make([]byte, c.bufferSize)
	}
	return c, nil
}

// New wraps a generic reader and/or writer in a non-seekable Channel. Either side may be
// nil, and the mode follows from which ones are given. A non-nil closer is closed by Close.
func New(name string, r io.Reader, w io.Writer, closer io.Closer, opts ...Option) (*Channel, error) {
	var mode Mode
	if r != nil {
		mode |= ModeRead
	}
	if w != nil {
		mode |= ModeWrite
	}
	c, err := newChannel(name, mode, opts)
	if err != nil {
		return nil, err
	}
	c.r, c.w, c.closer = r, w, closer
	return c, nil
}

// Name returns the path or description the channel was opened with.
func (c *Channel) Name() string { return c.name }

// Err returns the permanent error, if any.
func (c *Channel) Err() error { return c.err }

// Seekable reports whether the channel can reposition freely.
func (c *Channel) Seekable() bool { return c.seekable }

// BytesRead returns the number of bytes delivered by reads.
func (c *Channel) BytesRead() int64 { return c.bytesRead }

// BytesWritten returns the number of bytes accepted by writes.
func (c *Channel) BytesWritten() int64 { return c.bytesWritten }

// Size returns the size of the underlying file including buffered writes, or Unbounded.
func (c *Channel) Size() int64 {
	if !c.seekable {
		return Unbounded
	}
	if end := c.wstart + int64(c.wlen); c.wlen > 0 && end > c.size {
		return end
	}
	return c.size
}

// SetEOF marks the end of the stream. Fillers that learn about the end out of band call it.
func (c *Channel) SetEOF() { c.eof = true }

// EOF reports whether the read cursor has reached the end of the stream.
func (c *Channel) EOF() bool {
	if c.seekable {
		return c.rpos >= c.Size()
	}
	return c.eof && c.rpos >= c.rstart+int64(c.rlen)
}

func (c *Channel) fail(err error) {
	if c.err != nil {
		return
	}
	c.err = err
	c.metrics.failed()
	level.Error(c.logger).Log("msg", "channel failed", "channel", c.name, "err", err)
}

// SetFiller installs or replaces the filler. The channel becomes non-seekable from the
// current read position on.
func (c *Channel) SetFiller(f Filler) error {
	if c.mode == ModeReadWrite {
		return ErrDirectional
	}
	if c.mode&ModeRead == 0 {
		return errNotReadable
	}
	c.filler = f
	if f != nil {
		c.seekable = false
		c.rstart, c.rlen, c.eof = c.rpos, 0, false
	}
	return nil
}

// SetSplitter installs or replaces the splitter. Pending writes are flushed first.
func (c *Channel) SetSplitter(s Splitter) error {
	if c.mode == ModeReadWrite {
		return ErrDirectional
	}
	if c.mode&ModeWrite == 0 {
		return errNotWritable
	}
	c.flush()
	c.splitter = s
	if s != nil {
		c.seekable = false
		c.wstart = c.wpos
	}
	return nil
}

// Tee mirrors the selected traffic onto target. A nil target removes the tee.
func (c *Channel) Tee(target *Channel, dir Direction) {
	if dir&TeeReads != 0 {
		c.readTee = target
	}
	if dir&TeeWrites != 0 {
		c.writeTee = target
	}
}

// ReadPos returns the logical read position.
func (c *Channel) ReadPos() int64 { return c.rpos }

// SetReadPos moves the read cursor. Moving a non-seekable channel forward discards the
// skipped bytes on the next read; moving it back is only legal within the buffered window,
// which holds at least half a buffer of the most recently received bytes.
func (c *Channel) SetReadPos(pos int64) {
	if c.err != nil {
		return
	}
	if pos < 0 {
		c.fail(errors.Errorf("negative read position %d", pos))
		return
	}
	if !c.seekable && pos < c.rstart {
		c.fail(errors.Wrapf(ErrIllegalSeek, "read position %d before %d", pos, c.rstart))
		return
	}
	c.rpos = pos
}

// CanRewind reports whether the read cursor can be moved back to pos without failing.
func (c *Channel) CanRewind(pos int64) bool {
	return c.seekable || pos >= c.rstart
}

// CanBackpatch reports whether bytes at pos can still be overwritten: always on seekable
// channels, within the write buffer otherwise.
func (c *Channel) CanBackpatch(pos int64) bool {
	return c.seekable || (pos >= c.wstart && pos <= c.wstart+int64(c.wlen))
}

// WritePos returns the logical write position.
func (c *Channel) WritePos() int64 { return c.wpos }

// SetWritePos moves the write cursor. Non-seekable channels may only move within the
// bytes still held in the write buffer, which is how lengths get backpatched on pipes.
func (c *Channel) SetWritePos(pos int64) {
	if c.err != nil {
		return
	}
	if pos < 0 {
		c.fail(errors.Errorf("negative write position %d", pos))
		return
	}
	inBuffer := pos >= c.wstart && pos <= c.wstart+int64(c.wlen)
	if !c.seekable {
		if !inBuffer {
			c.fail(errors.Wrapf(ErrIllegalSeek, "write position %d outside [%d, %d]", pos, c.wstart, c.wstart+int64(c.wlen)))
			return
		}
	} else if !inBuffer && c.wlen > 0 {
		c.flush()
	}
	c.wpos = pos
}

// Read fills p completely unless the stream ends or fails first, looping over partial
// reads and filler calls.
func (c *Channel) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.closed {
		return 0, ErrClosed
	}
	if c.mode&ModeRead == 0 {
		c.fail(errNotReadable)
		return 0, c.err
	}
	if c.wlen > 0 && c.seekable {
		c.flushOverlapping(c.rpos, int64(len(p)))
		if c.err != nil {
			return 0, c.err
		}
	}
	n := 0
	for n < len(p) {
		if c.rlen > 0 && c.rpos >= c.rstart && c.rpos < c.rstart+int64(c.rlen) {
			off := int(c.rpos - c.rstart)
			m := copy(p[n:], c.rbuf[off:c.rlen])
			n += m
			c.rpos += int64(m)
			continue
		}
		if c.seekable && len(p)-n >= len(c.rbuf) {
			m, ok := c.readDirect(p[n:])
			n += m
			if !ok {
				break
			}
			continue
		}
		if !c.fill() {
			break
		}
	}
	c.delivered(p[:n])
	if n < len(p) {
		if c.err != nil {
			return n, c.err
		}
		return n, io.EOF
	}
	return n, nil
}

func (c *Channel) delivered(p []byte) {
	if len(p) == 0 {
		return
	}
	c.bytesRead += int64(len(p))
	c.metrics.read(len(p))
	if c.readTee != nil {
		c.readTee.Write(p)
	}
}

// readDirect bypasses the buffer for large reads from seekable files.
func (c *Channel) readDirect(p []byte) (int, bool) {
	c.flushOverlapping(c.rpos, int64(len(p)))
	if c.err != nil {
		return 0, false
	}
	m, err := c.file.ReadAt(p, c.rpos)
	c.rpos += int64(m)
	if err != nil {
		if err != io.EOF {
			c.fail(errors.Wrap(err, "read"))
		}
		return m, false
	}
	return m, true
}

// fill loads the buffer so that it covers the read position, or reports that nothing more
// can be read.
func (c *Channel) fill() bool {
	if c.err != nil {
		return false
	}
	if c.seekable {
		c.flushOverlapping(c.rpos, int64(len(c.rbuf)))
		if c.err != nil {
			return false
		}
		n, err := c.file.ReadAt(c.rbuf, c.rpos)
		c.rstart, c.rlen = c.rpos, n
		if err != nil && err != io.EOF {
			c.fail(errors.Wrap(err, "read"))
			return false
		}
		return n > 0
	}
	if c.rpos < c.rstart {
		c.fail(errors.Wrapf(ErrIllegalSeek, "read position %d before %d", c.rpos, c.rstart))
		return false
	}
	if c.eof {
		return false
	}
	// a full buffer keeps its newer half so recent bytes stay available for short rewinds
	if c.rlen == len(c.rbuf) {
		keep := len(c.rbuf) / 2
		copy(c.rbuf, c.rbuf[c.rlen-keep:c.rlen])
		c.rstart += int64(c.rlen - keep)
		c.rlen = keep
	}
	tail := c.rbuf[c.rlen:]
	var (
		n   int
		err error
	)
	if c.filler != nil {
		var buf []byte
		buf, n, err = c.filler(tail)
		if n > 0 && &buf[0] != &tail[0] {
			// the filler returned a buffer of its own
			if n > len(tail) {
				c.rbuf = append(c.rbuf[:c.rlen], buf[:n]...)
			} else {
				copy(tail, buf[:n])
			}
		}
	} else {
		n, err = c.r.Read(tail)
	}
	c.rlen += n
	switch {
	case err == io.EOF:
		c.eof = true
	case err != nil:
		c.fail(errors.Wrap(err, "fill"))
		return false
	}
	return n > 0 || !c.eof
}

// flushOverlapping commits pending writes that cover part of [pos, pos+n).
func (c *Channel) flushOverlapping(pos, n int64) {
	if c.wlen > 0 && c.wstart < pos+n && pos < c.wstart+int64(c.wlen) {
		c.flush()
	}
}

// invalidate drops the read buffer if it overlaps [start, end).
func (c *Channel) invalidate(start, end int64) {
	if c.rlen > 0 && c.seekable && start < c.rstart+int64(c.rlen) && c.rstart < end {
		c.rlen = 0
	}
}

// Write buffers p, flushing whenever the buffer fills.
func (c *Channel) Write(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		free := c.reserve()
		if free == nil {
			break
		}
		m := copy(free, p[n:])
		c.advance(m)
		n += m
	}
	if n > 0 {
		c.accepted(p[:n])
	}
	if n < len(p) {
		return n, c.err
	}
	return n, nil
}

// reserve returns the free part of the write buffer at the write position, flushing or
// repositioning the buffer as needed. It returns nil once the channel has failed.
func (c *Channel) reserve() []byte {
	if c.err != nil {
		return nil
	}
	if c.closed {
		c.fail(ErrClosed)
		return nil
	}
	if c.mode&ModeWrite == 0 {
		c.fail(errNotWritable)
		return nil
	}
	if c.wlen == 0 {
		c.wstart = c.wpos
	}
	off := c.wpos - c.wstart
	if off < 0 || off > int64(c.wlen) {
		if !c.seekable {
			c.fail(errors.Wrapf(ErrIllegalSeek, "write position %d outside buffer", c.wpos))
			return nil
		}
		if !c.flush() {
			return nil
		}
		c.wstart, off = c.wpos, 0
	}
	if int(off) == len(c.wbuf) {
		if !c.flush() {
			return nil
		}
		c.wstart, off = c.wpos, 0
	}
	return c.wbuf[off:]
}

// advance records m bytes stored at the start of the slice returned by reserve.
func (c *Channel) advance(m int) {
	off := int(c.wpos - c.wstart)
	c.wpos += int64(m)
	if off+m > c.wlen {
		c.wlen = off + m
	}
}

func (c *Channel) accepted(p []byte) {
	c.bytesWritten += int64(len(p))
	c.metrics.wrote(len(p))
	if c.writeTee != nil {
		c.writeTee.Write(p)
	}
}

// Flush writes the buffered bytes, preceded by the splitter header if one is installed.
func (c *Channel) Flush() error {
	c.flush()
	return c.err
}

func (c *Channel) flush() bool {
	if c.err != nil {
		return false
	}
	if c.wlen == 0 {
		return true
	}
	data := c.wbuf[:c.wlen]
	var err error
	if c.seekable {
		_, err = c.file.WriteAt(data, c.wstart)
	} else {
		if c.splitter != nil {
			if hdr := c.splitter(len(data)); len(hdr) > 0 {
				_, err = c.w.Write(hdr)
			}
		}
		if err == nil {
			_, err = c.w.Write(data)
		}
	}
	if err != nil {
		c.fail(errors.Wrap(err, "flush"))
		return false
	}
	end := c.wstart + int64(c.wlen)
	c.invalidate(c.wstart, end)
	if c.seekable && end > c.size {
		c.size = end
	}
	c.wstart, c.wlen = end, 0
	return true
}

// Commit flushes and forces the data to durable storage.
func (c *Channel) Commit() error {
	if !c.flush() {
		return c.err
	}
	if c.file != nil && c.seekable {
		if err := c.file.Sync(); err != nil {
			c.fail(errors.Wrap(err, "sync"))
		}
	}
	return c.err
}

// Close flushes pending writes and releases the descriptor and buffers. Standard streams
// are not closed.
func (c *Channel) Close() error {
	if c.closed {
		return c.err
	}
	if c.mode&ModeWrite != 0 {
		c.flush()
	}
	c.closed = true
	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			c.fail(errors.Wrap(err, "close"))
		}
	}
	c.rbuf, c.wbuf = nil, nil
	c.rlen, c.wlen = 0, 0
	return c.err
}
