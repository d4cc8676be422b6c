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

// Package uid generates DICOM unique identifiers in the 2.25 arc, where the UUID is written as
// one unsigned decimal integer (PS3.5 B.2).
package uid

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Root is the arc for UUID derived UIDs.
const Root = "2.25."

// MaxLength is the longest UID DICOM allows.
const MaxLength = 64

// New returns a UID built from a time based (version 1) UUID.
func New() (string, error) {
	u, err := uuid.NewUUID()
	if err != nil {
		return "", errors.Wrap(err, "generating time based UUID")
	}
	return FromUUID(u), nil
}

// NewRandom returns a UID built from a random (version 4) UUID.
func NewRandom() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "generating random UUID")
	}
	return FromUUID(u), nil
}

// FromUUID converts u to its 2.25 UID.
func FromUUID(u uuid.UUID) string {
	n := new(big.Int).SetBytes(u[:])
	return Root + n.String()
}

// ToUUID recovers the UUID from a UID made by FromUUID.
func ToUUID(uid string) (uuid.UUID, error) {
	digits, ok := strings.CutPrefix(uid, Root)
	if !ok {
		return uuid.Nil, errors.Errorf("%q is not under %s", uid, Root)
	}
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 128 || (len(digits) > 1 && digits[0] == '0') {
		return uuid.Nil, errors.Errorf("%q does not hold a UUID", uid)
	}
	var u uuid.UUID
	n.FillBytes(u[:])
	return u, nil
}

// Valid reports whether uid is a syntactically valid UID: dot separated decimal components
// without leading zeros, at most MaxLength characters.
func Valid(uid string) bool {
	if uid == "" || len(uid) > MaxLength {
		return false
	}
	for _, c := range strings.Split(uid, ".") {
		if c == "" || (len(c) > 1 && c[0] == '0') {
			return false
		}
		for _, r := range c {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
