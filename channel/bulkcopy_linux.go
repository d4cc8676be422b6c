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

//go:build linux

package channel

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const spliceChunk = 1 << 16

type pipe struct{ r, w int }

func newPipe() (pipe, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		return pipe{}, err
	}
	return pipe{r: p[0], w: p[1]}, nil
}

func (p pipe) close() {
	unix.Close(p.r)
	unix.Close(p.w)
}

// spliceCopy moves n bytes from src to dst through a pipe with splice(2). Tee targets get
// their copy with tee(2) before the pipe is drained into dst, so every mirror sees the
// chunks in the same order as dst. It returns fewer than n bytes without an error when src
// ends early.
func spliceCopy(dst, src *Channel, n int64) (int64, error) {
	targets := mirrors(dst, src)
	src.flushOverlapping(src.rpos, n)
	if !dst.flush() {
		return 0, dst.err
	}
	for _, t := range targets {
		if !t.flush() {
			return 0, t.err
		}
	}

	through, err := newPipe()
	if err != nil {
		return 0, errZeroCopyUnavailable
	}
	defer through.close()
	var side pipe
	if len(targets) > 0 {
		if side, err = newPipe(); err != nil {
			return 0, errZeroCopyUnavailable
		}
		defer side.close()
	}

	srcFd := int(src.file.Fd())
	var copied int64
	for copied < n {
		var inOff *int64
		if src.seekable {
			off := src.rpos
			inOff = &off
		}
		k, err := unix.Splice(srcFd, inOff, through.w, nil, int(min(n-copied, spliceChunk)), unix.SPLICE_F_MOVE|unix.SPLICE_F_MORE)
		if err != nil {
			if copied == 0 && (err == unix.EINVAL || err == unix.ENOSYS) {
				return 0, errZeroCopyUnavailable
			}
			return copied, fmt.Errorf("splice from %s: %v", src.name, err)
		}
		if k == 0 {
			src.eof = true
			break
		}
		for _, t := range targets {
			dup, err := unix.Tee(through.r, side.w, int(k), 0)
			if err != nil {
				return copied, fmt.Errorf("tee into %s: %v", t.name, err)
			}
			if dup != k {
				return copied, fmt.Errorf("tee into %s: duplicated %d of %d bytes", t.name, dup, k)
			}
			if err := drain(side.r, t, k); err != nil {
				return copied, err
			}
		}
		if err := drain(through.r, dst, k); err != nil {
			return copied, err
		}
		src.splicedIn(k)
		copied += k
	}
	return copied, nil
}

// drain moves exactly n bytes from the pipe into c at its write position.
func drain(pr int, c *Channel, n int64) error {
	fd := int(c.file.Fd())
	for n > 0 {
		var outOff *int64
		if c.seekable {
			off := c.wpos
			outOff = &off
		}
		k, err := unix.Splice(pr, nil, fd, outOff, int(n), unix.SPLICE_F_MOVE|unix.SPLICE_F_MORE)
		if err != nil {
			return fmt.Errorf("splice into %s: %v", c.name, err)
		}
		if k == 0 {
			return fmt.Errorf("splice into %s: no progress", c.name)
		}
		c.splicedOut(k)
		n -= k
	}
	return nil
}
