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

package metadata

import (
	"fmt"
	"math/rand"

	"github.com/matrixorigin/tabletstore/pkg/blockio"
)

// MockSchema makes a schema of colCnt int32 columns with the first
// keyCnt forming the key prefix.
func MockSchema(colCnt, keyCnt int) *Schema {
	schema := NewEmptySchema(fmt.Sprintf("mock_%d", rand.Intn(1000000)))
	prefix := "mock_"
	for i := 0; i < colCnt; i++ {
		schema.AppendCol(fmt.Sprintf("%s%d", prefix, i), ColInt32)
	}
	schema.NumKeyColumns = keyCnt
	return schema
}

// MockSchemaAll covers every column type once; colCnt caps the count.
func MockSchemaAll(colCnt, keyCnt int) *Schema {
	schema := NewEmptySchema(fmt.Sprintf("mock_%d", rand.Intn(1000000)))
	types := []ColType{
		ColInt8, ColInt16, ColInt32, ColInt64, ColUint64,
		ColFloat64, ColDate, ColVarchar, ColBinary,
	}
	for i := 0; i < colCnt; i++ {
		schema.AppendCol(fmt.Sprintf("mock_%d", i), types[i%len(types)])
	}
	schema.NumKeyColumns = keyCnt
	return schema
}

func MockBlockIds(from blockio.BlockId, cnt int) []blockio.BlockId {
	ids := make([]blockio.BlockId, 0, cnt)
	for i := 0; i < cnt; i++ {
		ids = append(ids, from+blockio.BlockId(i))
	}
	return ids
}
