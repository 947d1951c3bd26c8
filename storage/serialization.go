// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/mediasearch/core"
)

// IndexedEntryMUS serializes core.IndexedEntry in MUS format:
// id, vector (length + raw float32s), title, duration presence flag,
// duration (raw float64, only when present), createdAt.
var IndexedEntryMUS = indexedEntryMUS{}

type indexedEntryMUS struct{}

func (s indexedEntryMUS) Size(e core.IndexedEntry) (size int) {
	size += ord.String.Size(e.ID)
	size += varint.Int.Size(len(e.Vector))
	for _, f := range e.Vector {
		size += raw.Float32.Size(f)
	}
	size += ord.String.Size(e.Metadata.Title)
	size += ord.Bool.Size(e.Metadata.Duration != nil)
	if e.Metadata.Duration != nil {
		size += raw.Float64.Size(*e.Metadata.Duration)
	}
	size += ord.String.Size(e.Metadata.CreatedAt)
	return
}

func (s indexedEntryMUS) Marshal(e core.IndexedEntry, bs []byte) (n int) {
	n = ord.String.Marshal(e.ID, bs)
	n += varint.Int.Marshal(len(e.Vector), bs[n:])
	for _, f := range e.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	n += ord.String.Marshal(e.Metadata.Title, bs[n:])
	n += ord.Bool.Marshal(e.Metadata.Duration != nil, bs[n:])
	if e.Metadata.Duration != nil {
		n += raw.Float64.Marshal(*e.Metadata.Duration, bs[n:])
	}
	n += ord.String.Marshal(e.Metadata.CreatedAt, bs[n:])
	return
}

func (s indexedEntryMUS) Unmarshal(bs []byte) (e core.IndexedEntry, n int, err error) {
	var n1 int
	e.ID, n1, err = ord.String.Unmarshal(bs)
	n += n1
	if err != nil {
		return
	}

	var length int
	length, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if length < 0 || length*4 > len(bs)-n {
		err = ErrTruncatedData
		return
	}
	e.Vector = make([]float32, length)
	for i := range e.Vector {
		e.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}

	e.Metadata.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}

	var hasDuration bool
	hasDuration, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if hasDuration {
		var d float64
		d, n1, err = raw.Float64.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		e.Metadata.Duration = &d
	}

	e.Metadata.CreatedAt, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

// MarshalIndexedEntry serializes an IndexedEntry to bytes.
func MarshalIndexedEntry(entry *core.IndexedEntry) []byte {
	buf := make([]byte, IndexedEntryMUS.Size(*entry))
	IndexedEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalIndexedEntry deserializes an IndexedEntry from bytes.
func UnmarshalIndexedEntry(data []byte) (*core.IndexedEntry, error) {
	entry, _, err := IndexedEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}
