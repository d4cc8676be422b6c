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

import (
	"github.com/go-kit/log"

	"github.com/radmedres/clmedview-sub000/channel"
)

// DefaultLadderCapacity is the default maximum nesting depth, counting the root level.
const DefaultLadderCapacity = 32

// creatorCapacity bounds the private creator table.
const creatorCapacity = 64

type options struct {
	logger         log.Logger
	ladderCapacity int
	deflate        bool
	channelOptions []channel.Option
}

// Option configures readers and writers.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		logger:         log.NewNopLogger(),
		ladderCapacity: DefaultLadderCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger structural warnings and syntax switches are reported to.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLadderCapacity sets the maximum nesting depth. Deeper streams stop with
// ErrLadderOverflow.
func WithLadderCapacity(n int) Option {
	return func(o *options) {
		if n > 1 {
			o.ladderCapacity = n
		}
	}
}

// WithDeflate enables reading the deflated explicit VR little endian transfer syntax.
func WithDeflate(enabled bool) Option {
	return func(o *options) { o.deflate = enabled }
}

// WithChannelOptions passes options to the channels Open and Create create.
func WithChannelOptions(opts ...channel.Option) Option {
	return func(o *options) { o.channelOptions = append(o.channelOptions, opts...) }
}

// CopyOption configures CopyDataset.
type CopyOption struct {
	filter func(*DataElement) bool
}

// WithFilter returns a CopyOption that drops every element for which keep returns false. A
// dropped container takes its whole content with it.
func WithFilter(keep func(*DataElement) bool) CopyOption {
	return CopyOption{filter: keep}
}

// DropPrivateElements excludes all elements of odd groups, creators included.
var DropPrivateElements = WithFilter(func(e *DataElement) bool {
	return !e.Tag.IsPrivate()
})

// ExcludeTags drops the listed tags wherever they appear.
func ExcludeTags(tags ...DataElementTag) CopyOption {
	set := make(map[DataElementTag]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return WithFilter(func(e *DataElement) bool { return !set[e.Tag] })
}
