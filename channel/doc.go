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

/*
Package channel provides a buffered byte stream over files, pipes and sockets.

A Channel keeps separate read and write buffers and cursors, so a read-write file can be
parsed at one offset while output is appended or backpatched at another. Regular files are
accessed with pread/pwrite and seek freely. Pipes, sockets and channels with a Splitter or
Filler installed are streams: they only move forward, except inside the bytes still buffered.

Reading a stream packet by packet:

	ch, err := channel.OpenConn(conn, channel.ModeRead, channel.WithFiller(readPacket))
	if err != nil {
		return err
	}
	defer ch.Close()
	hdr := make([]byte, 132)
	if _, err := io.ReadFull(ch, hdr); err != nil {
		return err
	}

Large values can be pulled with ReadMapped, which memory maps seekable files, or moved between
channels with BulkCopy, which uses splice(2) on Linux when both sides are descriptors.
*/
package channel
