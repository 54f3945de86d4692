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
	"io"
	"strconv"
	"strings"
	"unsafe"

	"github.com/matrixorigin/tabletstore/pkg/common"
)

// BlockId identifies one physical block in the block store. The zero
// value is the null id and is never handed out by an allocator.
type BlockId uint64

const NullBlockId BlockId = 0

const (
	BlockIdSize = int(unsafe.Sizeof(NullBlockId))

	present uint8 = 1
	absent  uint8 = 0
)

func (id BlockId) IsNull() bool {
	return id == NullBlockId
}

func (id BlockId) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func (id BlockId) Compare(o BlockId) int {
	if id < o {
		return -1
	} else if id > o {
		return 1
	}
	return 0
}

// JoinStrings renders ids as a comma-joined list. Used when a chain of
// blocks is reported in an error or printed by a tool.
func JoinStrings(ids []BlockId) string {
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(id.String())
	}
	return sb.String()
}

func EncodeBlockId(id *BlockId) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(id)), BlockIdSize)
}

func DecodeBlockId(buf []byte) BlockId {
	return *(*BlockId)(unsafe.Pointer(&buf[0]))
}

func WriteBlockId(w io.Writer, id BlockId) (n int64, err error) {
	return common.WriteValues(w, uint64(id))
}

func ReadBlockId(r io.Reader) (id BlockId, n int64, err error) {
	buf := make([]byte, BlockIdSize)
	if _, err = io.ReadFull(r, buf); err != nil {
		return
	}
	n = int64(BlockIdSize)
	id = DecodeBlockId(buf)
	return
}

// WriteOptionalBlockId encodes presence explicitly. A null id costs one
// byte on the wire, a present id costs nine.
func WriteOptionalBlockId(w io.Writer, id BlockId) (n int64, err error) {
	if id.IsNull() {
		return common.WriteValues(w, absent)
	}
	return common.WriteValues(w, present, uint64(id))
}

func ReadOptionalBlockId(r io.Reader) (id BlockId, n int64, err error) {
	flag := make([]byte, 1)
	if _, err = io.ReadFull(r, flag); err != nil {
		return
	}
	n = 1
	if flag[0] == absent {
		return
	}
	var nr int64
	if id, nr, err = ReadBlockId(r); err != nil {
		return
	}
	n += nr
	return
}

func WriteBlockIds(w io.Writer, ids []BlockId) (n int64, err error) {
	cnt := uint32(len(ids))
	if n, err = common.WriteValues(w, cnt); err != nil {
		return
	}
	if cnt == 0 {
		return
	}
	var nr int
	if nr, err = w.Write(common.EncodeSlice(ids)); err != nil {
		return
	}
	n += int64(nr)
	return
}

func ReadBlockIds(r io.Reader) (ids []BlockId, n int64, err error) {
	buf := make([]byte, 4)
	if _, err = io.ReadFull(r, buf); err != nil {
		return
	}
	n = 4
	cnt := common.DecodeFixed[uint32](buf)
	if cnt == 0 {
		return
	}
	data := make([]byte, int(cnt)*BlockIdSize)
	if _, err = io.ReadFull(r, data); err != nil {
		return
	}
	n += int64(len(data))
	ids = append(ids, common.DecodeSlice[BlockId](data)...)
	return
}
