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
	"bytes"
	"io"
	"math"
)

// FillFrom returns a Filler that reads from r.
func FillFrom(r io.Reader) Filler {
	return func(buf []byte) ([]byte, int, error) {
		n, err := r.Read(buf)
		if n > 0 && err == io.EOF {
			// report the data now, the end on the next call
			err = nil
		}
		return buf, n, err
	}
}

// fillerReader adapts a Filler back into an io.Reader.
type fillerReader struct {
	fill Filler
	buf  []byte
	data []byte
	err  error
}

func (f *fillerReader) Read(p []byte) (int, error) {
	for len(f.data) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		var n int
		f.buf, n, f.err = f.fill(f.buf)
		f.data = f.buf[:n]
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

// Transform re-sources the input from the read position on through wrap, typically a
// decompressor. Read positions after the call count decoded bytes and the channel is no
// longer seekable.
func (c *Channel) Transform(wrap func(io.Reader) (io.Reader, error)) error {
	if c.err != nil {
		return c.err
	}
	if c.mode == ModeReadWrite {
		return ErrDirectional
	}
	if c.mode&ModeRead == 0 {
		return errNotReadable
	}
	var raw io.Reader
	if c.seekable {
		raw = io.NewSectionReader(c.file, c.rpos, math.MaxInt64-c.rpos)
	} else {
		for c.rpos > c.rstart+int64(c.rlen) && c.fill() {
		}
		if c.err != nil {
			return c.err
		}
		var pending []byte
		if off := c.rpos - c.rstart; off >= 0 && off < int64(c.rlen) {
			pending = append(pending, c.rbuf[off:c.rlen]...)
		}
		var rest io.Reader = c.r
		if c.filler != nil {
			rest = &fillerReader{fill: c.filler, buf: make([]byte, len(c.rbuf))}
		}
		if c.eof {
			rest = bytes.NewReader(nil)
		}
		raw = io.MultiReader(bytes.NewReader(pending), rest)
	}
	dec, err := wrap(raw)
	if err != nil {
		c.fail(err)
		return err
	}
	c.filler = FillFrom(dec)
	c.seekable = false
	c.size = Unbounded
	c.rbuf = make([]byte, c.bufferSize)
	c.rstart, c.rlen, c.eof = c.rpos, 0, false
	return nil
}
