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

package blockio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockId(t *testing.T) {
	assert.True(t, NullBlockId.IsNull())
	assert.False(t, BlockId(3).IsNull())
	assert.Equal(t, "3", BlockId(3).String())
	assert.Equal(t, -1, BlockId(3).Compare(BlockId(4)))
	assert.Equal(t, 1, BlockId(5).Compare(BlockId(4)))
	assert.Equal(t, 0, BlockId(4).Compare(BlockId(4)))
}

func TestJoinStrings(t *testing.T) {
	assert.Equal(t, "", JoinStrings(nil))
	assert.Equal(t, "7", JoinStrings([]BlockId{7}))
	assert.Equal(t, "1,2,4", JoinStrings([]BlockId{1, 2, 4}))
}

func TestOptionalBlockIdCodec(t *testing.T) {
	var w bytes.Buffer
	n, err := WriteOptionalBlockId(&w, NullBlockId)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), n)
	n, err = WriteOptionalBlockId(&w, BlockId(42))
	assert.Nil(t, err)
	assert.Equal(t, int64(9), n)

	id, n, err := ReadOptionalBlockId(&w)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, id.IsNull())
	id, n, err = ReadOptionalBlockId(&w)
	assert.Nil(t, err)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, BlockId(42), id)
}

func TestBlockIdsCodec(t *testing.T) {
	ids := []BlockId{9, 3, 12}
	var w bytes.Buffer
	n, err := WriteBlockIds(&w, ids)
	assert.Nil(t, err)
	assert.Equal(t, int64(4+3*BlockIdSize), n)

	got, n2, err := ReadBlockIds(&w)
	assert.Nil(t, err)
	assert.Equal(t, n, n2)
	assert.Equal(t, ids, got)

	w.Reset()
	_, err = WriteBlockIds(&w, nil)
	assert.Nil(t, err)
	got, _, err = ReadBlockIds(&w)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(got))
}

func TestParseBlockFilename(t *testing.T) {
	id, ok := ParseBlockFilename("12.blk")
	assert.True(t, ok)
	assert.Equal(t, BlockId(12), id)
	_, ok = ParseBlockFilename("12.seg")
	assert.False(t, ok)
	_, ok = ParseBlockFilename("x.blk")
	assert.False(t, ok)
	assert.True(t, IsTempFile("12.blk.tmp"))
	assert.False(t, IsTempFile("12.blk"))
}
