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

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// ZeroCopyThreshold is the smallest transfer BulkCopy hands to the kernel.
const ZeroCopyThreshold = 256 * 1024

var errZeroCopyUnavailable = errors.New("zero-copy transfer unavailable")

// BulkCopy moves n bytes from src's read position to dst's write position. Large transfers
// between descriptor-backed channels bypass user space where the platform allows it; the
// result, including what tee targets observe, is the same on every path.
func BulkCopy(dst, src *Channel, n int64) (int64, error) {
	if err := src.Err(); err != nil {
		return 0, err
	}
	if err := dst.Err(); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, nil
	}
	var copied int64

	// whatever src already buffered goes through user space regardless
	if b := src.buffered(); b > 0 && n >= ZeroCopyThreshold {
		k, err := copyBuffered(dst, src, min(b, n))
		copied += k
		if err != nil {
			return copied, err
		}
	}
	if n-copied >= ZeroCopyThreshold && zeroCopyEligible(dst, src) {
		k, err := spliceCopy(dst, src, n-copied)
		copied += k
		switch {
		case err == nil:
			dst.metrics.bulk("splice", k)
			if copied < n {
				return copied, io.ErrUnexpectedEOF
			}
			return copied, nil
		case errors.Is(err, errZeroCopyUnavailable):
			level.Debug(dst.logger).Log("msg", "zero-copy unavailable, copying", "src", src.name, "dst", dst.name)
		default:
			dst.fail(errors.Wrap(err, "bulk copy"))
			return copied, dst.err
		}
	}
	k, err := copyBuffered(dst, src, n-copied)
	dst.metrics.bulk("buffered", k)
	return copied + k, err
}

// buffered returns the number of bytes src holds past its read position.
func (c *Channel) buffered() int64 {
	if c.rlen == 0 || c.rpos < c.rstart {
		return 0
	}
	if b := c.rstart + int64(c.rlen) - c.rpos; b > 0 {
		return b
	}
	return 0
}

// copyBuffered reads from src straight into dst's write buffer.
func copyBuffered(dst, src *Channel, n int64) (int64, error) {
	var copied int64
	for copied < n {
		free := dst.reserve()
		if free == nil {
			return copied, dst.err
		}
		if rest := n - copied; int64(len(free)) > rest {
			free = free[:rest]
		}
		k, err := src.Read(free)
		if k > 0 {
			dst.advance(k)
			dst.accepted(free[:k])
			copied += int64(k)
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return copied, err
		}
	}
	return copied, nil
}

func zeroCopyEligible(dst, src *Channel) bool {
	if src.file == nil || dst.file == nil || src.filler != nil || dst.splitter != nil {
		return false
	}
	if src.mode&ModeRead == 0 || dst.mode&ModeWrite == 0 || src.closed || dst.closed {
		return false
	}
	// a pending forward skip on a stream has not been consumed from the descriptor yet
	if !src.seekable && src.rpos != src.rstart+int64(src.rlen) {
		return false
	}
	for _, t := range []*Channel{src.readTee, dst.writeTee} {
		if t != nil && (t.file == nil || t.splitter != nil || t.err != nil) {
			return false
		}
	}
	return true
}

// mirrors lists the tee targets that must see bytes moved from src to dst.
func mirrors(dst, src *Channel) []*Channel {
	var out []*Channel
	if src.readTee != nil {
		out = append(out, src.readTee)
	}
	if dst.writeTee != nil {
		out = append(out, dst.writeTee)
	}
	return out
}

// splicedIn and splicedOut update the bookkeeping after n bytes moved through the kernel.
func (c *Channel) splicedIn(n int64) {
	c.rpos += n
	c.bytesRead += n
	c.metrics.read(int(n))
	if !c.seekable {
		c.rstart, c.rlen = c.rpos, 0
	}
}

func (c *Channel) splicedOut(n int64) {
	start := c.wpos
	c.wpos += n
	c.wstart = c.wpos
	c.bytesWritten += n
	c.metrics.wrote(int(n))
	if c.seekable {
		c.invalidate(start, c.wpos)
		if c.wpos > c.size {
			c.size = c.wpos
		}
	}
}
