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
	"net"
	"os"

	"github.com/pkg/errors"
)

// OpenFile opens path in the given mode. Write mode truncates; read-write mode creates the
// file if needed and keeps its content. Regular files without a splitter or filler are
// seekable.
func OpenFile(path string, mode Mode, opts ...Option) (*Channel, error) {
	flag := os.O_RDONLY
	switch mode {
	case ModeWrite:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case ModeReadWrite:
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	c, err := fromFile(path, f, mode, true, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

// OpenConn wraps a connected socket. Sockets are never seekable.
func OpenConn(conn net.Conn, mode Mode, opts ...Option) (*Channel, error) {
	c, err := newChannel(conn.RemoteAddr().String(), mode, opts)
	if err != nil {
		return nil, err
	}
	c.r, c.w, c.closer = conn, conn, conn
	return c, nil
}

// OpenStdin wraps standard input. Close leaves the descriptor open.
func OpenStdin(opts ...Option) (*Channel, error) {
	return fromFile("stdin", os.Stdin, ModeRead, false, opts)
}

// OpenStdout wraps standard output. Close flushes but leaves the descriptor open.
func OpenStdout(opts ...Option) (*Channel, error) {
	return fromFile("stdout", os.Stdout, ModeWrite, false, opts)
}

func fromFile(name string, f *os.File, mode Mode, owned bool, opts []Option) (*Channel, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", name)
	}
	c, err := newChannel(name, mode, opts)
	if err != nil {
		return nil, err
	}
	c.file, c.r, c.w = f, f, f
	if owned {
		c.closer = f
	}
	if fi.Mode().IsRegular() && c.filler == nil && c.splitter == nil {
		c.seekable = true
		c.size = fi.Size()
	}
	return c, nil
}
