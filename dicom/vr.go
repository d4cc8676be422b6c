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

// vrType is to group common encodings together
type vrType int

const (
	// textVR is for value fields that will be interpreted as simple text with space padding
	textVR vrType = iota

	// numberBinaryVR is for value fields that are parsed as binary numbers
	numberBinaryVR

	// bulkDataVR groups sequences of binary numbers
	bulkDataVR

	// uniqueIdentifierVR is for VR: UI. It has null padding
	uniqueIdentifierVR

	// sequenceVR is for VR: SQ
	sequenceVR

	// tagVR is for tags. Distinct from numberBinaryVR due to little endian byte ordering
	tagVR

	// sentinelVR is for the codes that never come from a well formed stream
	sentinelVR
)

// UndefinedLength as specified
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.1
const UndefinedLength = 0xffffffff

// VR models the DICOM Value representations (VR)
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
//
// The two letter code is only used on the wire; see String.
type VR uint8

// VR list obtained from
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
const (
	// VRUnknown is the zero VR, for elements whose representation is ambiguous.
	VRUnknown VR = iota
	// VRNone is reported for implicit streams when the dictionary has no entry for a tag.
	VRNone
	// VRHack is reported when an explicit stream carries an unrecognized VR code. The length
	// of such an element is read in the implicit 32-bit form.
	VRHack

	AEVR
	ASVR
	ATVR
	CSVR
	DAVR
	DSVR
	DTVR
	FLVR
	FDVR
	ISVR
	LOVR
	LTVR
	OBVR
	ODVR
	OFVR
	OLVR
	OWVR
	PNVR
	SHVR
	SLVR
	SQVR
	SSVR
	STVR
	TMVR
	UCVR
	UIVR
	ULVR
	UNVR
	URVR
	USVR
	UTVR

	numVRs
)

var vrInfo = [numVRs]struct {
	code string
	kind vrType
	size int // width of one binary value, 0 for variable
}{
	VRUnknown: {"??", sentinelVR, 0},
	VRNone:    {"--", sentinelVR, 0},
	VRHack:    {"!!", sentinelVR, 0},

	// textual VRs
	AEVR: {"AE", textVR, 0},
	ASVR: {"AS", textVR, 0},
	CSVR: {"CS", textVR, 0},
	DAVR: {"DA", textVR, 0},
	DSVR: {"DS", textVR, 0},
	DTVR: {"DT", textVR, 0},
	ISVR: {"IS", textVR, 0},
	LOVR: {"LO", textVR, 0},
	LTVR: {"LT", textVR, 0},
	PNVR: {"PN", textVR, 0},
	SHVR: {"SH", textVR, 0},
	STVR: {"ST", textVR, 0},
	TMVR: {"TM", textVR, 0},
	UCVR: {"UC", textVR, 0},
	URVR: {"UR", textVR, 0},
	UTVR: {"UT", textVR, 0},

	// binary numbers
	FLVR: {"FL", numberBinaryVR, 4},
	FDVR: {"FD", numberBinaryVR, 8},
	SLVR: {"SL", numberBinaryVR, 4},
	SSVR: {"SS", numberBinaryVR, 2},
	ULVR: {"UL", numberBinaryVR, 4},
	USVR: {"US", numberBinaryVR, 2},

	// large binary sequences
	OBVR: {"OB", bulkDataVR, 1},
	ODVR: {"OD", bulkDataVR, 8},
	OFVR: {"OF", bulkDataVR, 4},
	OLVR: {"OL", bulkDataVR, 4},
	OWVR: {"OW", bulkDataVR, 2},
	UNVR: {"UN", bulkDataVR, 1},

	ATVR: {"AT", tagVR, 4},
	UIVR: {"UI", uniqueIdentifierVR, 0},
	SQVR: {"SQ", sequenceVR, 0},
}

// String returns the two letter code of the VR.
func (vr VR) String() string {
	if vr >= numVRs {
		return vrInfo[VRUnknown].code
	}
	return vrInfo[vr].code
}

func (vr VR) kind() vrType {
	if vr >= numVRs {
		return sentinelVR
	}
	return vrInfo[vr].kind
}

// ValueSize returns the byte width of a single binary value, or 0 for variable width VRs.
func (vr VR) ValueSize() int {
	if vr >= numVRs {
		return 0
	}
	return vrInfo[vr].size
}

// IsSentinel is true for VRUnknown, VRNone and VRHack.
func (vr VR) IsSentinel() bool {
	return vr.kind() == sentinelVR
}

// IsText reports whether values of vr are character strings, UI included.
func (vr VR) IsText() bool {
	k := vr.kind()
	return k == textVR || k == uniqueIdentifierVR
}

// padByte is the byte that brings an odd length value to an even length.
func (vr VR) padByte() byte {
	if vr.kind() == textVR {
		return ' '
	}
	return 0
}

// lookupVRByCode maps a two letter wire code to a VR. Sentinel codes are not accepted.
func lookupVRByCode(code [2]byte) (VR, bool) {
	for vr := AEVR; vr < numVRs; vr++ {
		c := vrInfo[vr].code
		if c[0] == code[0] && c[1] == code[1] {
			return vr, true
		}
	}
	return VRUnknown, false
}

// LookupVR returns the VR for a two letter code.
func LookupVR(code string) (VR, bool) {
	if len(code) != 2 {
		return VRUnknown, false
	}
	return lookupVRByCode([2]byte{code[0], code[1]})
}

// looksLikeVR tells implicit from explicit VR: two upper case letters where an explicit stream
// carries its VR code.
func looksLikeVR(b []byte) bool {
	return len(b) >= 2 && b[0] >= 'A' && b[0] <= 'Z' && b[1] >= 'A' && b[1] <= 'Z'
}
