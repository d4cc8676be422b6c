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
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFillerAssemblesShortChunks(t *testing.T) {
	client, server := net.Pipe()
	want := pattern(100)
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Write(want)
		server.Close()
	}()

	calls := 0
	fill := func(buf []byte) ([]byte, int, error) {
		calls++
		n, err := client.Read(buf[:min(3, len(buf))])
		return buf, n, err
	}
	ch, err := OpenConn(client, ModeRead, WithFiller(fill))
	require.NoError(t, err)

	got := make([]byte, 100)
	n, err := ch.Read(got)
	require.NoError(t, err)
	require.Equal(t, 100, n)
	require.Equal(t, want, got)
	require.GreaterOrEqual(t, calls, 34)
	require.EqualValues(t, 100, ch.BytesRead())
	require.NoError(t, ch.Close())
	<-done
}

func TestFillerWithOwnBuffer(t *testing.T) {
	data := pattern(200)
	src := bytes.NewReader(data)
	fill := func(buf []byte) ([]byte, int, error) {
		own := make([]byte, 3)
		n, err := src.Read(own)
		return own, n, err
	}
	ch, err := New("filled", bytes.NewReader(nil), nil, nil, WithFiller(fill), WithBufferSize(64))
	require.NoError(t, err)

	got := make([]byte, 140)
	_, err = ch.Read(got)
	require.NoError(t, err)
	require.Equal(t, data[:140], got)

	require.True(t, ch.CanRewind(132))
	require.False(t, ch.CanRewind(0))
	ch.SetReadPos(132)
	got = make([]byte, 8)
	_, err = ch.Read(got)
	require.NoError(t, err)
	require.Equal(t, data[132:140], got)
	require.NoError(t, ch.Err())
}

func TestSplitterFramesPackets(t *testing.T) {
	var out bytes.Buffer
	split := func(pending int) []byte { return []byte{byte(pending >> 8), byte(pending)} }
	ch, err := New("frames", nil, &out, nil, WithSplitter(split), WithBufferSize(8))
	require.NoError(t, err)

	_, err = ch.Write([]byte("0123456789abcdefghij"))
	require.NoError(t, err)
	require.NoError(t, ch.Close())

	want := "\x00\x0801234567\x00\x0889abcdef\x00\x04ghij"
	require.Equal(t, want, out.String())
}

func TestReadWriteRejectsSplitterAndFiller(t *testing.T) {
	dir := t.TempDir()
	split := func(int) []byte { return nil }
	fill := func(buf []byte) ([]byte, int, error) { return buf, 0, io.EOF }

	_, err := OpenFile(filepath.Join(dir, "a"), ModeReadWrite, WithSplitter(split))
	require.ErrorIs(t, err, ErrDirectional)
	_, err = OpenFile(filepath.Join(dir, "b"), ModeReadWrite, WithFiller(fill))
	require.ErrorIs(t, err, ErrDirectional)

	ch, err := OpenFile(filepath.Join(dir, "c"), ModeReadWrite)
	require.NoError(t, err)
	defer ch.Close()
	require.ErrorIs(t, ch.SetFiller(fill), ErrDirectional)
	require.ErrorIs(t, ch.SetSplitter(split), ErrDirectional)
}

func TestIndependentCursors(t *testing.T) {
	ch, err := OpenFile(filepath.Join(t.TempDir(), "rw"), ModeReadWrite)
	require.NoError(t, err)
	defer ch.Close()

	_, err = ch.Write([]byte("hello world"))
	require.NoError(t, err)
	ch.SetReadPos(0)
	buf := make([]byte, 5)
	_, err = io.ReadFull(ch, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
	require.EqualValues(t, 5, ch.ReadPos())
	require.EqualValues(t, 11, ch.WritePos())

	// overwrite bytes the read buffer already holds
	ch.SetWritePos(0)
	_, err = ch.Write([]byte("HELLO"))
	require.NoError(t, err)
	ch.SetReadPos(0)
	_, err = io.ReadFull(ch, buf)
	require.NoError(t, err)
	require.Equal(t, "HELLO", string(buf))
	require.EqualValues(t, 11, ch.Size())
	require.NoError(t, ch.Err())
}

func TestBackpatchSeekableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	ch, err := OpenFile(path, ModeWrite, WithBufferSize(16))
	require.NoError(t, err)

	ch.Write([]byte{0, 0, 0, 0})
	ch.Write(bytes.Repeat([]byte{'x'}, 40))
	end := ch.WritePos()
	ch.SetWritePos(0)
	ch.Write([]byte{40, 0, 0, 0})
	ch.SetWritePos(end)
	ch.Write([]byte("END!"))
	require.NoError(t, ch.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	want := append([]byte{40, 0, 0, 0}, bytes.Repeat([]byte{'x'}, 40)...)
	want = append(want, "END!"...)
	require.Equal(t, want, got)
}

func TestBackpatchStream(t *testing.T) {
	var out bytes.Buffer
	ch, err := New("pipe", nil, &out, nil)
	require.NoError(t, err)

	ch.Write([]byte{0xff, 0xff, 0xff, 0xff})
	ch.Write([]byte("abcd"))
	ch.SetWritePos(0)
	ch.Write([]byte{4, 0, 0, 0})
	ch.SetWritePos(8)
	require.NoError(t, ch.Flush())
	require.Equal(t, "\x04\x00\x00\x00abcd", out.String())

	// flushed bytes are gone
	ch.SetWritePos(0)
	require.ErrorIs(t, ch.Err(), ErrIllegalSeek)
	_, err = ch.Write([]byte("z"))
	require.Error(t, err)
	require.Equal(t, 8, out.Len())
}

func TestStreamSeeking(t *testing.T) {
	data := pattern(64)
	ch, err := New("pipe", bytes.NewReader(data), nil, nil, WithBufferSize(8))
	require.NoError(t, err)
	require.False(t, ch.Seekable())
	require.Equal(t, Unbounded, ch.Size())

	buf := make([]byte, 10)
	_, err = ch.Read(buf)
	require.NoError(t, err)

	one := make([]byte, 1)
	ch.SetReadPos(9)
	_, err = ch.Read(one)
	require.NoError(t, err)
	require.Equal(t, data[9], one[0])

	ch.SetReadPos(30)
	_, err = ch.Read(one)
	require.NoError(t, err)
	require.Equal(t, data[30], one[0])

	ch.SetReadPos(2)
	require.ErrorIs(t, ch.Err(), ErrIllegalSeek)
	n, err := ch.Read(one)
	require.Zero(t, n)
	require.Error(t, err)
}

func TestReadToEnd(t *testing.T) {
	tests := []struct {
		name string
		open func(t *testing.T, data []byte) *Channel
	}{
		{
			name: "file",
			open: func(t *testing.T, data []byte) *Channel {
				ch, err := OpenFile(writeTemp(t, "in", data), ModeRead, WithBufferSize(16))
				require.NoError(t, err)
				return ch
			},
		},
		{
			name: "stream",
			open: func(t *testing.T, data []byte) *Channel {
				ch, err := New("in", bytes.NewReader(data), nil, nil, WithBufferSize(16))
				require.NoError(t, err)
				return ch
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := pattern(50)
			ch := tc.open(t, data)
			defer ch.Close()

			require.False(t, ch.EOF())
			buf := make([]byte, 100)
			n, err := ch.Read(buf)
			require.Equal(t, io.EOF, err)
			require.Equal(t, 50, n)
			require.Equal(t, data, buf[:n])
			require.True(t, ch.EOF())
			require.NoError(t, ch.Err())
		})
	}
}

func TestLargeReadBypassesBuffer(t *testing.T) {
	data := pattern(1000)
	ch, err := OpenFile(writeTemp(t, "in", data), ModeRead, WithBufferSize(32))
	require.NoError(t, err)
	defer ch.Close()

	head := make([]byte, 10)
	_, err = io.ReadFull(ch, head)
	require.NoError(t, err)
	rest := make([]byte, 990)
	_, err = io.ReadFull(ch, rest)
	require.NoError(t, err)
	require.Equal(t, data[10:], rest)
}

func TestReadMapped(t *testing.T) {
	page := os.Getpagesize()
	data := pattern(3*page + 123)
	ch, err := OpenFile(writeTemp(t, "in", data), ModeRead)
	require.NoError(t, err)
	defer ch.Close()

	ch.SetReadPos(int64(page + 7))
	m, err := ch.ReadMapped(1000)
	require.NoError(t, err)
	require.True(t, m.Mapped())
	require.Equal(t, data[page+7:page+1007], m.Data)
	require.EqualValues(t, page+1007, ch.ReadPos())
	require.NoError(t, m.Release())
	require.Nil(t, m.Data)

	// past the end falls back to a short copy
	ch.SetReadPos(int64(len(data) - 10))
	m, err = ch.ReadMapped(20)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.False(t, m.Mapped())
	require.Equal(t, data[len(data)-10:], m.Data)
}

func TestReadMappedStream(t *testing.T) {
	data := pattern(40)
	ch, err := New("pipe", bytes.NewReader(data), nil, nil, WithBufferSize(8))
	require.NoError(t, err)

	m, err := ch.ReadMapped(25)
	require.NoError(t, err)
	require.False(t, m.Mapped())
	require.Equal(t, data[:25], m.Data)
	require.NoError(t, m.Release())
}

func TestTransform(t *testing.T) {
	payload := bytes.Repeat([]byte("dicom stream "), 4000)
	var comp bytes.Buffer
	fw, err := flate.NewWriter(&comp, flate.BestSpeed)
	require.NoError(t, err)
	fw.Write(payload)
	require.NoError(t, fw.Close())
	raw := append([]byte("HEAD"), comp.Bytes()...)

	tests := []struct {
		name string
		open func(t *testing.T) *Channel
	}{
		{
			name: "file",
			open: func(t *testing.T) *Channel {
				ch, err := OpenFile(writeTemp(t, "z", raw), ModeRead)
				require.NoError(t, err)
				return ch
			},
		},
		{
			name: "stream",
			open: func(t *testing.T) *Channel {
				ch, err := New("z", bytes.NewReader(raw), nil, nil, WithBufferSize(16))
				require.NoError(t, err)
				return ch
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ch := tc.open(t)
			defer ch.Close()

			head := make([]byte, 4)
			_, err := io.ReadFull(ch, head)
			require.NoError(t, err)
			require.Equal(t, "HEAD", string(head))

			require.NoError(t, ch.Transform(func(r io.Reader) (io.Reader, error) {
				return flate.NewReader(r), nil
			}))
			require.False(t, ch.Seekable())
			got, err := io.ReadAll(ch)
			require.NoError(t, err)
			require.Equal(t, payload, got)
			require.EqualValues(t, 4+len(payload), ch.ReadPos())
			require.True(t, ch.EOF())
		})
	}
}

func TestTeeMirrorsReadsAndWrites(t *testing.T) {
	var mirror, out bytes.Buffer
	tee, err := New("mirror", nil, &mirror, nil)
	require.NoError(t, err)

	src, err := New("src", bytes.NewReader([]byte("abcdef")), nil, nil)
	require.NoError(t, err)
	src.Tee(tee, TeeReads)
	dst, err := New("dst", nil, &out, nil)
	require.NoError(t, err)
	dst.Tee(tee, TeeWrites)

	buf := make([]byte, 3)
	io.ReadFull(src, buf)
	dst.Write([]byte("XY"))
	io.ReadFull(src, buf)

	require.NoError(t, dst.Close())
	require.NoError(t, tee.Close())
	require.Equal(t, "abcXYdef", mirror.String())
	require.Equal(t, "XY", out.String())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	var out bytes.Buffer
	ch, err := New("m", bytes.NewReader(pattern(7)), &out, nil, WithMetrics(m))
	require.NoError(t, err)

	ch.Write(make([]byte, 10))
	io.ReadAll(ch)
	require.NoError(t, ch.Flush())
	ch.SetWritePos(100)
	require.ErrorIs(t, ch.Close(), ErrIllegalSeek)

	require.Equal(t, 10.0, testutil.ToFloat64(m.bytesWritten))
	require.Equal(t, 7.0, testutil.ToFloat64(m.bytesRead))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures))
}
