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

import "github.com/pkg/errors"

var (
	// ErrBigEndian is returned for explicit VR big endian streams.
	ErrBigEndian = errors.New("explicit VR big endian is not supported")
	// ErrDeflateUnsupported is returned for deflated streams unless WithDeflate is set, and
	// always by the writer.
	ErrDeflateUnsupported = errors.New("deflated transfer syntax is not supported")
	// ErrTooSmall is returned for streams that cannot hold a single element.
	ErrTooSmall = errors.New("stream too small to be DICOM")
	// ErrNotRegular is returned when Open is given something other than a regular file.
	ErrNotRegular = errors.New("not a regular file")
	// ErrLadderOverflow stops iteration when nesting exceeds the ladder capacity.
	ErrLadderOverflow = errors.New("nesting exceeds ladder capacity")
	// ErrValueGone is returned by accessors asked for a value a non-seekable stream has
	// already moved past.
	ErrValueGone = errors.New("value is no longer buffered")
	// ErrUnbackpatchable is returned when a length can no longer be backpatched because the
	// bytes have left the write buffer of a non-seekable channel.
	ErrUnbackpatchable = errors.New("length can no longer be backpatched")
	// ErrShortHeader stops iteration when the stream ends inside an element header.
	ErrShortHeader = errors.New("short data element header")
)
