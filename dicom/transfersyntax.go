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

import "strings"

// list of transfer syntaxes obtained from
// http://dicom.nema.org/medical/dicom/current/output/html/part06.html#chapter_A
const (
	// ImplicitVRLittleEndianUID is the Implicit VR Little Endian UID
	ImplicitVRLittleEndianUID = "1.2.840.10008.1.2"
	// ExplicitVRLittleEndianUID is the Explicit VR Little Endian UID
	ExplicitVRLittleEndianUID = "1.2.840.10008.1.2.1"
	// ExplicitVRBigEndianUID is the Explicit VR Big Endian UID
	ExplicitVRBigEndianUID = "1.2.840.10008.1.2.2"
	// DeflatedExplicitVRLittleEndianUID is the Deflated Explicit VR Little Endian UID
	DeflatedExplicitVRLittleEndianUID = "1.2.840.10008.1.2.1.99"
	// JPEGBaselineUID is the JPEG Baseline (Process 1) transfer syntax UID
	JPEGBaselineUID = "1.2.840.10008.1.2.4.50"
	// JPEGLosslessUID is the JPEG Lossless, Non-Hierarchical, First-Order Prediction UID
	JPEGLosslessUID = "1.2.840.10008.1.2.4.70"
	// RLELosslessUID is the RLE Lossless UID
	RLELosslessUID = "1.2.840.10008.1.2.5"

	encapsulatedPrefix = "1.2.840.10008.1.2.4."
)

// TransferSyntax is the encoding in force for a stream or a region of it.
type TransferSyntax int

const (
	ImplicitVRLittleEndian TransferSyntax = iota
	ExplicitVRLittleEndian
	DeflatedExplicitVRLittleEndian
	// EncapsulatedVRLittleEndian covers the compressed pixel data syntaxes (JPEG, JPEG-LS,
	// JPEG 2000, RLE). Everything but the pixel data is explicit VR little endian.
	EncapsulatedVRLittleEndian
	ExplicitVRBigEndian
)

// LookupTransferSyntax maps a transfer syntax UID, as read from the stream, to its encoding.
func LookupTransferSyntax(uid string) TransferSyntax {
	uid = strings.TrimRight(uid, " \x00")
	switch uid {
	case ImplicitVRLittleEndianUID:
		return ImplicitVRLittleEndian
	case ExplicitVRLittleEndianUID:
		return ExplicitVRLittleEndian
	case ExplicitVRBigEndianUID:
		return ExplicitVRBigEndian
	case DeflatedExplicitVRLittleEndianUID:
		return DeflatedExplicitVRLittleEndian
	case RLELosslessUID:
		return EncapsulatedVRLittleEndian
	}
	if strings.HasPrefix(uid, encapsulatedPrefix) {
		return EncapsulatedVRLittleEndian
	}

	// any other syntax should be explicit VR little endian according to PS3.5 A.4
	// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4
	return ExplicitVRLittleEndian
}

// Explicit reports whether headers carry a VR code.
func (ts TransferSyntax) Explicit() bool {
	return ts != ImplicitVRLittleEndian
}

// Encapsulated reports whether pixel data is written as fragments.
func (ts TransferSyntax) Encapsulated() bool {
	return ts == EncapsulatedVRLittleEndian
}

// UID returns the canonical UID of the syntax. Encapsulated streams report JPEG Lossless.
func (ts TransferSyntax) UID() string {
	switch ts {
	case ImplicitVRLittleEndian:
		return ImplicitVRLittleEndianUID
	case DeflatedExplicitVRLittleEndian:
		return DeflatedExplicitVRLittleEndianUID
	case EncapsulatedVRLittleEndian:
		return JPEGLosslessUID
	case ExplicitVRBigEndian:
		return ExplicitVRBigEndianUID
	}
	return ExplicitVRLittleEndianUID
}

func (ts TransferSyntax) String() string {
	switch ts {
	case ImplicitVRLittleEndian:
		return "implicit VR little endian"
	case ExplicitVRLittleEndian:
		return "explicit VR little endian"
	case DeflatedExplicitVRLittleEndian:
		return "deflated explicit VR little endian"
	case EncapsulatedVRLittleEndian:
		return "encapsulated explicit VR little endian"
	case ExplicitVRBigEndian:
		return "explicit VR big endian"
	}
	return "unknown transfer syntax"
}

const (
	vrSize  = 2
	tagSize = 4
)

// has32BitLength reports whether an explicit header for vr uses the reserved field and a 32
// bit length. The 2 cases are defined at the link:
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.2
func has32BitLength(vr VR) bool {
	switch vr {
	case OBVR, ODVR, OFVR, OLVR, OWVR, SQVR, UCVR, URVR, UTVR, UNVR:
		return true
	default:
		return false
	}
}

// headerSize returns the size of the header written for tag and vr, and the offset of its
// length field.
func headerSize(ts TransferSyntax, tag DataElementTag, vr VR) (size, lengthAt int64) {
	if !ts.Explicit() || tag.GroupNumber() == delimiterGroup {
		return tagSize + 4, tagSize
	}
	if has32BitLength(vr) {
		return tagSize + vrSize + 2 /*reserved*/ + 4, tagSize + vrSize + 2
	}
	return tagSize + vrSize + 2, tagSize + vrSize
}
