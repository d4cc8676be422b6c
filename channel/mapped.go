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

	"github.com/edsrzf/mmap-go"
	"github.com/go-kit/log/level"
)

// Mapping is a read-only view of size bytes returned by ReadMapped. Data must not be used
// after Release.
type Mapping struct {
	Data []byte
	mm   mmap.MMap
}

// Mapped reports whether the view is backed by a memory mapping rather than a copy.
func (m *Mapping) Mapped() bool { return m.mm != nil }

// Release unmaps the view.
func (m *Mapping) Release() error {
	m.Data = nil
	if m.mm == nil {
		return nil
	}
	err := m.mm.Unmap()
	m.mm = nil
	return err
}

// ReadMapped returns the next size bytes and advances the read position. Seekable files are
// memory mapped; everything else gets an allocated copy. A short stream returns the bytes
// that were available together with io.ErrUnexpectedEOF.
func (c *Channel) ReadMapped(size int) (*Mapping, error) {
	if c.err != nil {
		return nil, c.err
	}
	if size <= 0 {
		return &Mapping{Data: []byte{}}, nil
	}
	if c.seekable && c.mode&ModeRead != 0 && c.rpos+int64(size) <= c.Size() {
		c.flushOverlapping(c.rpos, int64(size))
		if c.err != nil {
			return nil, c.err
		}
		page := int64(os.Getpagesize())
		base := c.rpos &^ (page - 1)
		delta := int(c.rpos - base)
		mm, err := mmap.MapRegion(c.file, delta+size, mmap.RDONLY, 0, base)
		if err == nil {
			m := &Mapping{Data: mm[delta : delta+size], mm: mm}
			c.rpos += int64(size)
			c.delivered(m.Data)
			c.metrics.mapping("mmap")
			return m, nil
		}
		level.Debug(c.logger).Log("msg", "mmap failed, copying", "channel", c.name, "err", err)
	}
	buf := make([]byte, size)
	n, err := c.Read(buf)
	c.metrics.mapping("copy")
	if n < size {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return &Mapping{Data: buf[:n]}, err
	}
	return &Mapping{Data: buf}, nil
}
