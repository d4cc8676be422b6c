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

const (
	// ImplementationClassUID identifies streams written by this package.
	ImplementationClassUID = "2.25.329800735698586629295641978511506172918"
	// ImplementationVersionName goes with ImplementationClassUID.
	ImplementationVersionName = "DCMSTREAM_1"
)

// fileMetaInformationVersion is the value of (0002,0001).
var fileMetaInformationVersion = []byte{0x00, 0x01}

// MetaInfo holds the file meta information written by Create. Empty fields are left out,
// except for the transfer syntax and implementation identifiers which get defaults.
type MetaInfo struct {
	MediaStorageSOPClassUID      string
	MediaStorageSOPInstanceUID   string
	TransferSyntaxUID            string
	ImplementationClassUID       string
	ImplementationVersionName    string
	SourceApplicationEntityTitle string
}

func (m MetaInfo) withDefaults(syntax TransferSyntax) MetaInfo {
	if m.TransferSyntaxUID == "" {
		m.TransferSyntaxUID = syntax.UID()
	}
	if m.ImplementationClassUID == "" {
		m.ImplementationClassUID = ImplementationClassUID
		if m.ImplementationVersionName == "" {
			m.ImplementationVersionName = ImplementationVersionName
		}
	}
	return m
}

// writeMeta writes the meta group in explicit VR little endian. The group length is
// backpatched once the group is complete.
func (w *Writer) writeMeta(m MetaInfo) error {
	if err := w.WriteHeader(FileMetaInformationGroupLengthTag, ULVR, 4); err != nil {
		return fmt.Errorf("writing meta group length: %v", err)
	}
	lengthPos := w.ch.WritePos()
	if err := w.dw.UInt32(0); err != nil {
		return fmt.Errorf("writing meta group length: %v", err)
	}
	if err := w.WriteBytes(FileMetaInformationVersionTag, OBVR, fileMetaInformationVersion); err != nil {
		return err
	}
	uids := []struct {
		tag   DataElementTag
		vr    VR
		value string
	}{
		{MediaStorageSOPClassUIDTag, UIVR, m.MediaStorageSOPClassUID},
		{MediaStorageSOPInstanceUIDTag, UIVR, m.MediaStorageSOPInstanceUID},
		{TransferSyntaxUIDTag, UIVR, m.TransferSyntaxUID},
		{ImplementationClassUIDTag, UIVR, m.ImplementationClassUID},
		{ImplementationVersionNameTag, SHVR, m.ImplementationVersionName},
		{SourceApplicationEntityTitleTag, AEVR, m.SourceApplicationEntityTitle},
	}
	for _, u := range uids {
		if u.value == "" {
			continue
		}
		if err := w.WriteString(u.tag, u.vr, u.value); err != nil {
			return fmt.Errorf("writing meta element %v: %v", u.tag, err)
		}
	}
	length := w.ch.WritePos() - (lengthPos + 4)
	return w.dw.PatchUInt32(lengthPos, uint32(length))
}
