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

// Package dicom reads and writes the DICOM Part-10 data element stream without building a
// tree of the dataset. The StreamContext returns Data Elements one at a time, leaving each
// value in the stream until an accessor such as Uint16, String or Decimals asks for it.
// Nesting is reported through Depth and through delimiters: sequences and items with a
// declared length get a fake delimiter when their bytes run out, so a consumer sees the same
// shape whichever way the stream was encoded.
//
// The Writer produces the same structure. Sequences and items are opened with an undefined
// length and closed either by backpatching the real length or by writing a delimiter, the
// only option on streams that cannot seek back far enough. CopyElement and CopyDataset join
// the two, re-encoding a stream into another transfer syntax while moving values with
// channel.BulkCopy.
//
// Explicit VR big endian is rejected. The deflated transfer syntax is read when WithDeflate is
// given and never written.
package dicom
