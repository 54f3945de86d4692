// Copyright 2022 Matrix Origin
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

package index

import (
	hll "github.com/axiomhq/hyperloglog"
	"github.com/matrixorigin/tabletstore/pkg/blockio"
	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
)

// BloomBlockBuilder accumulates the key set of one rowset while data
// blocks are written, then freezes it into a bloom block. The sketch
// tracks distinct keys so flush flows can size downstream structures
// without a second pass.
type BloomBlockBuilder struct {
	hashes []uint64
	sketch *hll.Sketch
}

func NewBloomBlockBuilder() *BloomBlockBuilder {
	return &BloomBlockBuilder{
		hashes: make([]uint64, 0),
		sketch: hll.New(),
	}
}

func (b *BloomBlockBuilder) AddKey(key []byte) {
	b.hashes = append(b.hashes, hashV1(key))
	b.sketch.Insert(key)
}

func (b *BloomBlockBuilder) KeyCount() int {
	return len(b.hashes)
}

func (b *BloomBlockBuilder) EstimatedDistinctKeys() uint64 {
	return b.sketch.Estimate()
}

// Finish builds the filter, persists it through mgr and returns the
// block holding it. The builder is spent afterwards.
func (b *BloomBlockBuilder) Finish(mgr blockio.Manager) (blockio.BlockId, error) {
	if len(b.hashes) == 0 {
		return blockio.NullBlockId, tserr.NewInvalidStateNoCtx("bloom builder has no keys")
	}
	filter, err := buildFuseFilter(b.hashes)
	if err != nil {
		return blockio.NullBlockId, err
	}
	buf, err := filter.Marshal()
	if err != nil {
		return blockio.NullBlockId, err
	}
	id, err := mgr.CreateBlock(buf)
	if err != nil {
		return blockio.NullBlockId, err
	}
	b.hashes = nil
	b.sketch = nil
	return id, nil
}

// ReadBloomBlock loads and decodes the filter held by a bloom block.
func ReadBloomBlock(mgr blockio.Manager, id blockio.BlockId) (StaticFilter, error) {
	payload, err := mgr.ReadBlock(id)
	if err != nil {
		return nil, err
	}
	return DecodeBloomFilter(payload)
}
