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

import "fmt"

// DataElementTag is a unique identifier for a Data Element composed of an unordered pair
// of numbers called the group number and the element number as specified in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10.
//
// The least significant 16 bits is the element number. The most significant 16 bits is the group
// number.
type DataElementTag uint32

// NewTag builds a tag from its group and element numbers.
func NewTag(group, element uint16) DataElementTag {
	return DataElementTag(uint32(group)<<16 | uint32(element))
}

// GroupNumber returns the group number component of the DataElementTag
func (t DataElementTag) GroupNumber() uint16 {
	return uint16(t >> 16)
}

// ElementNumber returns the element number component of the DataElementTag
func (t DataElementTag) ElementNumber() uint16 {
	return uint16(t & 0xFFFF)
}

// IsMetadataElement is true if and only if the Data Element is a meta data element
func (t DataElementTag) IsMetadataElement() bool {
	return t.GroupNumber() == uint16(0x0002)
}

// IsPrivate is true for tags in odd groups.
func (t DataElementTag) IsPrivate() bool {
	return t.GroupNumber()&1 == 1
}

// IsGroupLength is true for the (gggg,0000) group length elements.
func (t DataElementTag) IsGroupLength() bool {
	return t.ElementNumber() == 0 && t.GroupNumber() != delimiterGroup
}

// IsPrivateCreator is true for the elements of a private group that reserve a block.
func (t DataElementTag) IsPrivateCreator() bool {
	e := t.ElementNumber()
	return t.IsPrivate() && e >= 0x0010 && e <= 0x00FF
}

func (t DataElementTag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.GroupNumber(), t.ElementNumber())
}

// delimiterGroup holds the item and delimitation pseudo elements.
const delimiterGroup = 0xFFFE

// Tags the stream codec reacts to.
const (
	FileMetaInformationGroupLengthTag DataElementTag = 0x00020000
	FileMetaInformationVersionTag     DataElementTag = 0x00020001
	MediaStorageSOPClassUIDTag        DataElementTag = 0x00020002
	MediaStorageSOPInstanceUIDTag     DataElementTag = 0x00020003
	TransferSyntaxUIDTag              DataElementTag = 0x00020010
	ImplementationClassUIDTag         DataElementTag = 0x00020012
	ImplementationVersionNameTag      DataElementTag = 0x00020013
	SourceApplicationEntityTitleTag   DataElementTag = 0x00020016

	SpecificCharacterSetTag DataElementTag = 0x00080005
	RecognitionCodeTag      DataElementTag = 0x00080010
	SOPClassUIDTag          DataElementTag = 0x00080016
	SOPInstanceUIDTag       DataElementTag = 0x00080018
	StudyDateTag            DataElementTag = 0x00080020
	StudyTimeTag            DataElementTag = 0x00080030
	ModalityTag             DataElementTag = 0x00080060

	ReferencedSeriesSequenceTag DataElementTag = 0x00081115
	ReferencedImageSequenceTag  DataElementTag = 0x00081140

	PatientNameTag DataElementTag = 0x00100010
	PatientIDTag   DataElementTag = 0x00100020

	StudyInstanceUIDTag        DataElementTag = 0x0020000D
	SeriesInstanceUIDTag       DataElementTag = 0x0020000E
	InstanceNumberTag          DataElementTag = 0x00200013
	ImagePositionPatientTag    DataElementTag = 0x00200032
	ImageOrientationPatientTag DataElementTag = 0x00200037
	FrameContentSequenceTag    DataElementTag = 0x00209111
	PlanePositionSequenceTag   DataElementTag = 0x00209113

	SamplesPerPixelTag     DataElementTag = 0x00280002
	NumberOfFramesTag      DataElementTag = 0x00280008
	RowsTag                DataElementTag = 0x00280010
	ColumnsTag             DataElementTag = 0x00280011
	PixelSpacingTag        DataElementTag = 0x00280030
	BitsAllocatedTag       DataElementTag = 0x00280100
	BitsStoredTag          DataElementTag = 0x00280101
	HighBitTag             DataElementTag = 0x00280102
	PixelRepresentationTag DataElementTag = 0x00280103

	SharedFunctionalGroupsSequenceTag   DataElementTag = 0x52009229
	PerFrameFunctionalGroupsSequenceTag DataElementTag = 0x52009230

	PixelDataTag DataElementTag = 0x7FE00010

	ItemTag                     DataElementTag = 0xFFFEE000
	ItemDelimitationItemTag     DataElementTag = 0xFFFEE00D
	SequenceDelimitationItemTag DataElementTag = 0xFFFEE0DD
)

// dictionary is the small data dictionary used to give VRs to elements of implicit streams.
// Tags missing from it come back as VRNone.
var dictionary = map[DataElementTag]VR{
	FileMetaInformationVersionTag:   OBVR,
	MediaStorageSOPClassUIDTag:      UIVR,
	MediaStorageSOPInstanceUIDTag:   UIVR,
	TransferSyntaxUIDTag:            UIVR,
	ImplementationClassUIDTag:       UIVR,
	ImplementationVersionNameTag:    SHVR,
	SourceApplicationEntityTitleTag: AEVR,

	SpecificCharacterSetTag: CSVR,
	RecognitionCodeTag:      SHVR,
	SOPClassUIDTag:          UIVR,
	SOPInstanceUIDTag:       UIVR,
	StudyDateTag:            DAVR,
	StudyTimeTag:            TMVR,
	ModalityTag:             CSVR,

	ReferencedSeriesSequenceTag: SQVR,
	ReferencedImageSequenceTag:  SQVR,

	PatientNameTag: PNVR,
	PatientIDTag:   LOVR,

	StudyInstanceUIDTag:        UIVR,
	SeriesInstanceUIDTag:       UIVR,
	InstanceNumberTag:          ISVR,
	ImagePositionPatientTag:    DSVR,
	ImageOrientationPatientTag: DSVR,
	FrameContentSequenceTag:    SQVR,
	PlanePositionSequenceTag:   SQVR,

	SamplesPerPixelTag:     USVR,
	NumberOfFramesTag:      ISVR,
	RowsTag:                USVR,
	ColumnsTag:             USVR,
	PixelSpacingTag:        DSVR,
	BitsAllocatedTag:       USVR,
	BitsStoredTag:          USVR,
	HighBitTag:             USVR,
	PixelRepresentationTag: USVR,

	SharedFunctionalGroupsSequenceTag:   SQVR,
	PerFrameFunctionalGroupsSequenceTag: SQVR,

	PixelDataTag: OWVR,
}

// DictionaryVR returns the VR an implicit stream implies for the tag.
func (t DataElementTag) DictionaryVR() VR {
	if vr, ok := dictionary[t]; ok {
		return vr
	}
	switch {
	case t.GroupNumber() == delimiterGroup:
		return VRNone
	case t.IsGroupLength():
		return ULVR
	case t.IsPrivateCreator():
		return LOVR
	}
	return VRNone
}

// DataElement models a DICOM Data Element as defined in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10
//
// The value is not copied out of the stream; it stays addressable at Offset until the
// reader moves on. Use the StreamContext accessors to decode it.
type DataElement struct {
	Tag DataElementTag

	// Value Representation
	VR VR

	// ValueLength is equal to the length of the ValueField in bytes.
	// Can be equal to 0xFFFFFFFF to represent an undefined length:
	// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.1
	ValueLength uint32

	// Offset is the stream position of the first value byte.
	Offset int64

	// Fake is set on delimiters the reader synthesized because a level ran out of bytes.
	Fake bool

	// Valid is cleared when the element's framing disagrees with the declared lengths; Warning
	// then says how.
	Valid   bool
	Warning string

	// Creator is the private creator owning a private data element.
	Creator string

	// Depth is the number of open levels enclosing the element.
	Depth int

	// ItemIndex is the zero based index of the enclosing item within its sequence, or -1.
	ItemIndex int

	role elementRole
}

type elementRole uint8

const (
	roleValue elementRole = iota
	roleGroupLength
	roleSequence
	roleItem
	roleFragment
	roleEncapsulated
	roleItemDelimiter
	roleSequenceDelimiter
)

// IsContainer is true for elements whose content the reader descends into: sequences,
// items, unknown VR elements of undefined length and encapsulated pixel data.
func (e *DataElement) IsContainer() bool {
	switch e.role {
	case roleSequence, roleItem, roleEncapsulated:
		return true
	}
	return false
}

// IsFragment is true for the items of encapsulated pixel data, whose values are raw bytes.
func (e *DataElement) IsFragment() bool { return e.role == roleFragment }

// IsDelimiter is true for item and sequence delimiters, real or fake.
func (e *DataElement) IsDelimiter() bool {
	return e.role == roleItemDelimiter || e.role == roleSequenceDelimiter
}
