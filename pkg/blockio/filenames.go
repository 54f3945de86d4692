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
	"path"
	"strconv"
	"strings"
)

const (
	BlockSuffix = ".blk"
	TmpSuffix   = ".tmp"
)

func MakeBlockFilename(dirname string, id BlockId, isTmp bool) string {
	s := path.Join(dirname, id.String()+BlockSuffix)
	if isTmp {
		s += TmpSuffix
	}
	return s
}

// ParseBlockFilename recovers the block id from a block file name. Names
// not produced by MakeBlockFilename report ok as false.
func ParseBlockFilename(filename string) (id BlockId, ok bool) {
	name := strings.TrimSuffix(filename, BlockSuffix)
	if len(name) == len(filename) {
		return
	}
	v, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return
	}
	return BlockId(v), true
}

func IsTempFile(filename string) bool {
	return strings.HasSuffix(filename, TmpSuffix)
}
