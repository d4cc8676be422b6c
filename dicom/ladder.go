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

type levelKind uint8

const (
	rootLevel levelKind = iota
	groupLevel
	sequenceLevel
	itemLevel
)

func (k levelKind) String() string {
	switch k {
	case rootLevel:
		return "root"
	case groupLevel:
		return "group"
	case sequenceLevel:
		return "sequence"
	case itemLevel:
		return "item"
	}
	return "unknown"
}

const unbounded = -1

// rung is one open group, sequence or item.
type rung struct {
	start  int64
	size   int64 // unbounded for delimited levels
	syntax TransferSyntax
	tag    DataElementTag
	kind   levelKind

	// items counts the items opened so far in a sequence level; in an item level it is the
	// index of that item.
	items int

	// encapsulated marks the pixel data level whose items are fragments.
	encapsulated bool
	// vendor marks levels opened by an unknown VR element of a private group, whose
	// content is not trusted to register private creators.
	vendor bool
}

func (l *rung) bounded() bool { return l.size != unbounded }

func (l *rung) end() int64 { return l.start + l.size }

// ladder is the stack of open levels. Index 0 is the root and is never popped. Capacity
// is fixed when the ladder is built.
type ladder struct {
	levels []rung
}

func newLadder(capacity int, root rung) ladder {
	l := ladder{levels: make([]rung, 1, capacity)}
	l.levels[0] = root
	return l
}

func (l *ladder) depth() int { return len(l.levels) - 1 }

func (l *ladder) top() *rung { return &l.levels[len(l.levels)-1] }

func (l *ladder) root() *rung { return &l.levels[0] }

// push opens lv above the top level. A bounded level sticking out of a bounded parent is
// clamped to the parent's end; clamped reports that.
func (l *ladder) push(lv rung) (clamped bool, err error) {
	if len(l.levels) == cap(l.levels) {
		return false, ErrLadderOverflow
	}
	if p := l.enclosingBound(); p != nil && lv.bounded() && lv.end() > p.end() {
		lv.size = p.end() - lv.start
		if lv.size < 0 {
			lv.size = 0
		}
		clamped = true
	}
	l.levels = append(l.levels, lv)
	return clamped, nil
}

// enclosingBound returns the innermost bounded level, or nil.
func (l *ladder) enclosingBound() *rung {
	for i := len(l.levels) - 1; i >= 0; i-- {
		if l.levels[i].bounded() {
			return &l.levels[i]
		}
	}
	return nil
}

func (l *ladder) pop() rung {
	if len(l.levels) == 1 {
		panic("dicom: popping the root level")
	}
	lv := l.levels[len(l.levels)-1]
	l.levels = l.levels[:len(l.levels)-1]
	return lv
}

// expired reports whether any open level above the root ends at or before pos.
func (l *ladder) expired(pos int64) bool {
	for i := 1; i < len(l.levels); i++ {
		if lv := &l.levels[i]; lv.bounded() && pos >= lv.end() {
			return true
		}
	}
	return false
}

// nearest returns the innermost level of the given kind, or nil.
func (l *ladder) nearest(kind levelKind) *rung {
	for i := len(l.levels) - 1; i > 0; i-- {
		if l.levels[i].kind == kind {
			return &l.levels[i]
		}
	}
	return nil
}

// check verifies that bounded levels nest inside their bounded ancestors.
func (l *ladder) check() error {
	var outer *rung
	for i := range l.levels {
		lv := &l.levels[i]
		if !lv.bounded() {
			continue
		}
		if outer != nil && (lv.start < outer.start || lv.end() > outer.end()) {
			return fmt.Errorf("%v level [%d, %d) escapes %v level [%d, %d)",
				lv.kind, lv.start, lv.end(), outer.kind, outer.start, outer.end())
		}
		outer = lv
	}
	return nil
}
