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

	"github.com/matrixorigin/tabletstore/pkg/blockio"
)

type redoReplacement struct {
	toRemove []blockio.BlockId
	toAdd    []blockio.BlockId
}

// RowsetUpdate accumulates one batch of intended mutations against a
// rowset's block topology. Build it, hand it to CommitUpdate once,
// discard it. NewRedoBlocks is appended directly by callers; appending
// has no failure mode.
type RowsetUpdate struct {
	columnReplacements map[int]blockio.BlockId
	redoReplacements   []redoReplacement
	NewRedoBlocks      []blockio.BlockId
	applied            bool
}

func NewRowsetUpdate() *RowsetUpdate {
	return &RowsetUpdate{
		columnReplacements: make(map[int]blockio.BlockId),
	}
}

// ReplaceColumnBlock queues an overwrite of one column's block
// reference. Queueing the same column twice is a caller bug.
func (update *RowsetUpdate) ReplaceColumnBlock(colIdx int, blk blockio.BlockId) *RowsetUpdate {
	if _, ok := update.columnReplacements[colIdx]; ok {
		panic(fmt.Sprintf("column %d already has a pending replacement", colIdx))
	}
	update.columnReplacements[colIdx] = blk
	return update
}

// ReplaceRedoDeltaBlocks queues the replacement of one contiguous run of
// the redo chain. toRemove names the exact ordered run; an empty run is
// meaningless and panics. Multiple calls queue in order.
func (update *RowsetUpdate) ReplaceRedoDeltaBlocks(toRemove, toAdd []blockio.BlockId) *RowsetUpdate {
	if len(toRemove) == 0 {
		panic("empty redo delta run to remove")
	}
	update.redoReplacements = append(update.redoReplacements, redoReplacement{
		toRemove: append(make([]blockio.BlockId, 0, len(toRemove)), toRemove...),
		toAdd:    append(make([]blockio.BlockId, 0, len(toAdd)), toAdd...),
	})
	return update
}

func (update *RowsetUpdate) String() string {
	s := "Update["
	for i, rep := range update.redoReplacements {
		if i > 0 {
			s += ";"
		}
		s += fmt.Sprintf("redo<%s>-><%s>", blockio.JoinStrings(rep.toRemove), blockio.JoinStrings(rep.toAdd))
	}
	if len(update.NewRedoBlocks) > 0 {
		s += fmt.Sprintf(";append<%s>", blockio.JoinStrings(update.NewRedoBlocks))
	}
	for colIdx, blk := range update.columnReplacements {
		s += fmt.Sprintf(";col %d->%s", colIdx, blk.String())
	}
	return s + "]"
}
