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

// creator is a private block reservation: (group,00xx) holding the creator string reserves
// elements (group,xx00) through (group,xxFF) at the nesting depth it was read at.
type creator struct {
	group uint16
	block uint16
	name  string
	depth int
}

// creatorTable holds the reservations in force. Entries die when the ladder unwinds below
// their depth, which need not be in the order they were added.
type creatorTable struct {
	entries []creator
}

func newCreatorTable(capacity int) creatorTable {
	return creatorTable{entries: make([]creator, 0, capacity)}
}

// register records a reservation, replacing an earlier one for the same block at the same
// depth. It returns false when the table is full.
func (t *creatorTable) register(group, element uint16, name string, depth int) bool {
	c := creator{group: group, block: element << 8, name: name, depth: depth}
	for i := range t.entries {
		e := &t.entries[i]
		if e.group == c.group && e.block == c.block && e.depth == c.depth {
			*e = c
			return true
		}
	}
	if len(t.entries) == cap(t.entries) {
		return false
	}
	t.entries = append(t.entries, c)
	return true
}

// unwind drops the reservations made deeper than depth.
func (t *creatorTable) unwind(depth int) {
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.depth <= depth {
			kept = append(kept, e)
		}
	}
	t.entries = kept
}

// resolve returns the creator owning (group,element) at depth.
func (t *creatorTable) resolve(group, element uint16, depth int) (string, bool) {
	block := element & 0xFF00
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := &t.entries[i]
		if e.group == group && e.block == block && e.depth == depth {
			return e.name, true
		}
	}
	return "", false
}
