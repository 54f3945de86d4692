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
	"sync"

	"github.com/matrixorigin/tabletstore/pkg/blockio"
	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
)

// Rowset is the authoritative in-memory record of one rowset's block
// topology: one block per column, the optional bloom and ad-hoc index
// blocks, and the two ordered delta chains. The embedded lock guards
// columnBlocks, redoDeltaBlocks, undoDeltaBlocks and the durability
// watermark as one consistency unit; every reader and writer of any of
// them holds it, including serialization.
type Rowset struct {
	sync.RWMutex
	tablet *Tablet
	id     uint64
	schema *Schema

	columnBlocks    []blockio.BlockId
	bloomBlock      blockio.BlockId
	adhocIndexBlock blockio.BlockId

	redoDeltaBlocks      []blockio.BlockId
	undoDeltaBlocks      []blockio.BlockId
	lastDurableRedoDmsId uint64

	// set exactly once by NewRowset or initFromDescriptor, before the
	// instance is shared
	initialized bool
}

// NewRowset makes the metadata for a fresh rowset: no delta blocks, null
// optional blocks, watermark zero. Column block slots are allocated null
// so the column alignment invariant holds from birth.
func NewRowset(tablet *Tablet, id uint64, schema *Schema) *Rowset {
	if !schema.Valid() {
		panic(fmt.Sprintf("rowset %d: invalid schema: %s", id, schema.String()))
	}
	return &Rowset{
		tablet:          tablet,
		id:              id,
		schema:          schema,
		columnBlocks:    make([]blockio.BlockId, schema.NumColumns()),
		redoDeltaBlocks: make([]blockio.BlockId, 0),
		undoDeltaBlocks: make([]blockio.BlockId, 0),
		initialized:     true,
	}
}

// OpenRowset rebuilds rowset metadata from its persisted descriptor. A
// descriptor whose columns cannot form a valid schema fails the open and
// the instance is discarded.
func OpenRowset(tablet *Tablet, desc *RowsetDescriptor) (*Rowset, error) {
	rs := &Rowset{tablet: tablet}
	if err := rs.initFromDescriptor(desc); err != nil {
		return nil, err
	}
	return rs, nil
}

func (rs *Rowset) initFromDescriptor(desc *RowsetDescriptor) error {
	if rs.initialized {
		panic(fmt.Sprintf("rowset %d: initialized more than once", rs.id))
	}
	schema := NewEmptySchema("")
	keyCnt := 0
	blocks := make([]blockio.BlockId, 0, len(desc.Columns))
	for i := range desc.Columns {
		col := &desc.Columns[i]
		blocks = append(blocks, col.Block)
		schema.AppendColDef(&ColDef{
			Name:        col.Name,
			Type:        col.Type,
			PersistedId: col.PersistedId,
		})
		if col.IsKey {
			keyCnt++
		}
	}
	schema.NumKeyColumns = keyCnt
	if !schema.Valid() {
		return tserr.NewBadSchemaNoCtx("rowset %d: descriptor columns form no valid schema: %s",
			desc.Id, schema.String())
	}
	for i := range desc.Columns {
		if desc.Columns[i].IsKey != (i < keyCnt) {
			return tserr.NewBadSchemaNoCtx("rowset %d: key columns are not a prefix: %s",
				desc.Id, desc.Columns[i].Name)
		}
	}

	rs.id = desc.Id
	rs.bloomBlock = desc.BloomBlock
	rs.adhocIndexBlock = desc.AdhocIndexBlock
	rs.schema = schema
	rs.columnBlocks = blocks
	rs.redoDeltaBlocks = append(make([]blockio.BlockId, 0, len(desc.RedoDeltas)), desc.RedoDeltas...)
	rs.lastDurableRedoDmsId = desc.LastDurableDmsId
	rs.undoDeltaBlocks = append(make([]blockio.BlockId, 0, len(desc.UndoDeltas)), desc.UndoDeltas...)
	rs.initialized = true
	return nil
}

func (rs *Rowset) checkInitialized() {
	if !rs.initialized {
		panic(fmt.Sprintf("rowset %d: used before initialization", rs.id))
	}
}

func (rs *Rowset) GetID() uint64 {
	return rs.id
}

func (rs *Rowset) GetSchema() *Schema {
	return rs.schema
}

func (rs *Rowset) NumColumns() int {
	return rs.schema.NumColumns()
}

// BloomBlock is lock-free: the field is written once before the rowset
// is shared and no code path mutates it afterward.
func (rs *Rowset) BloomBlock() blockio.BlockId {
	return rs.bloomBlock
}

func (rs *Rowset) AdhocIndexBlock() blockio.BlockId {
	return rs.adhocIndexBlock
}

// SetBloomBlock attaches the bloom block produced for this rowset's key
// set. Write-once before the rowset is shared; a second set panics.
func (rs *Rowset) SetBloomBlock(blk blockio.BlockId) {
	rs.checkInitialized()
	if !rs.bloomBlock.IsNull() {
		panic(fmt.Sprintf("rowset %d: bloom block set more than once", rs.id))
	}
	rs.bloomBlock = blk
}

func (rs *Rowset) SetAdhocIndexBlock(blk blockio.BlockId) {
	rs.checkInitialized()
	if !rs.adhocIndexBlock.IsNull() {
		panic(fmt.Sprintf("rowset %d: adhoc index block set more than once", rs.id))
	}
	rs.adhocIndexBlock = blk
}

func (rs *Rowset) ColumnBlocks() []blockio.BlockId {
	rs.RLock()
	defer rs.RUnlock()
	return append(make([]blockio.BlockId, 0, len(rs.columnBlocks)), rs.columnBlocks...)
}

func (rs *Rowset) RedoDeltaBlocks() []blockio.BlockId {
	rs.RLock()
	defer rs.RUnlock()
	return append(make([]blockio.BlockId, 0, len(rs.redoDeltaBlocks)), rs.redoDeltaBlocks...)
}

func (rs *Rowset) UndoDeltaBlocks() []blockio.BlockId {
	rs.RLock()
	defer rs.RUnlock()
	return append(make([]blockio.BlockId, 0, len(rs.undoDeltaBlocks)), rs.undoDeltaBlocks...)
}

func (rs *Rowset) LastDurableRedoDmsId() uint64 {
	rs.RLock()
	defer rs.RUnlock()
	return rs.lastDurableRedoDmsId
}

// SetColumnDataBlocks replaces the whole column block set. The caller
// owns schema alignment: a size mismatch is a contract breach and panics
// before any state changes.
func (rs *Rowset) SetColumnDataBlocks(blocks []blockio.BlockId) {
	rs.checkInitialized()
	if len(blocks) != rs.schema.NumColumns() {
		panic(fmt.Sprintf("rowset %d: %d column blocks for %d columns",
			rs.id, len(blocks), rs.schema.NumColumns()))
	}
	rs.Lock()
	defer rs.Unlock()
	rs.columnBlocks = append(rs.columnBlocks[:0], blocks...)
}

// CommitRedoDeltaBlock records one flushed delta memstore: the watermark
// is set to dmsId unconditionally and blk goes to the end of the redo
// chain.
func (rs *Rowset) CommitRedoDeltaBlock(dmsId uint64, blk blockio.BlockId) {
	rs.checkInitialized()
	rs.Lock()
	defer rs.Unlock()
	rs.lastDurableRedoDmsId = dmsId
	rs.redoDeltaBlocks = append(rs.redoDeltaBlocks, blk)
}

func (rs *Rowset) CommitUndoDeltaBlock(blk blockio.BlockId) {
	rs.checkInitialized()
	rs.Lock()
	defer rs.Unlock()
	rs.undoDeltaBlocks = append(rs.undoDeltaBlocks, blk)
}

// CommitUpdate applies one update batch in a single critical section, in
// fixed order: redo subsequence replacements in submission order, then
// new redo appends, then column replacements. The whole batch is staged
// on scratch state and installed only after every replacement matched
// and every column index passed bounds checking, so a failed or rejected
// batch leaves the rowset exactly as it was.
func (rs *Rowset) CommitUpdate(update *RowsetUpdate) error {
	rs.checkInitialized()
	if update.applied {
		panic(fmt.Sprintf("rowset %d: update applied more than once", rs.id))
	}
	rs.Lock()
	defer rs.Unlock()

	newRedo := append(make([]blockio.BlockId, 0, len(rs.redoDeltaBlocks)), rs.redoDeltaBlocks...)
	for _, rep := range update.redoReplacements {
		matchIdx := -1
		for i := range newRedo {
			if newRedo[i] == rep.toRemove[0] {
				matchIdx = i
				break
			}
		}
		if matchIdx >= 0 && matchIdx+len(rep.toRemove) <= len(newRedo) {
			for off := 1; off < len(rep.toRemove); off++ {
				if newRedo[matchIdx+off] != rep.toRemove[off] {
					matchIdx = -1
					break
				}
			}
		} else {
			matchIdx = -1
		}
		if matchIdx < 0 {
			return tserr.NewSubsequenceNotFoundNoCtx(
				blockio.JoinStrings(rep.toRemove),
				blockio.JoinStrings(rs.redoDeltaBlocks))
		}
		spliced := make([]blockio.BlockId, 0, len(newRedo)-len(rep.toRemove)+len(rep.toAdd))
		spliced = append(spliced, newRedo[:matchIdx]...)
		spliced = append(spliced, rep.toAdd...)
		spliced = append(spliced, newRedo[matchIdx+len(rep.toRemove):]...)
		newRedo = spliced
	}
	newRedo = append(newRedo, update.NewRedoBlocks...)

	for colIdx := range update.columnReplacements {
		if colIdx < 0 || colIdx >= len(rs.columnBlocks) {
			panic(fmt.Sprintf("rowset %d: column replacement index %d out of range [0,%d)",
				rs.id, colIdx, len(rs.columnBlocks)))
		}
	}

	rs.redoDeltaBlocks = newRedo
	for colIdx, blk := range update.columnReplacements {
		rs.columnBlocks[colIdx] = blk
	}
	update.applied = true
	return nil
}

// ToDescriptor snapshots the rowset under the guard; a concurrent commit
// can never interleave a half written chain into the emitted record.
func (rs *Rowset) ToDescriptor() *RowsetDescriptor {
	rs.checkInitialized()
	rs.RLock()
	defer rs.RUnlock()
	return rs.toDescriptorLocked()
}

func (rs *Rowset) toDescriptorLocked() *RowsetDescriptor {
	desc := &RowsetDescriptor{
		Id:               rs.id,
		BloomBlock:       rs.bloomBlock,
		AdhocIndexBlock:  rs.adhocIndexBlock,
		Columns:          make([]ColumnBlockDescriptor, 0, len(rs.columnBlocks)),
		RedoDeltas:       append(make([]blockio.BlockId, 0, len(rs.redoDeltaBlocks)), rs.redoDeltaBlocks...),
		LastDurableDmsId: rs.lastDurableRedoDmsId,
		UndoDeltas:       append(make([]blockio.BlockId, 0, len(rs.undoDeltaBlocks)), rs.undoDeltaBlocks...),
	}
	for i, blk := range rs.columnBlocks {
		def := rs.schema.ColDefs[i]
		desc.Columns = append(desc.Columns, ColumnBlockDescriptor{
			Block:       blk,
			Name:        def.Name,
			Type:        def.Type,
			PersistedId: def.PersistedId,
			IsKey:       i < rs.schema.NumKeyColumns,
		})
	}
	return desc
}

// Flush delegates to the owning tablet; durability ordering lives there.
func (rs *Rowset) Flush() error {
	rs.checkInitialized()
	return rs.tablet.Flush()
}

func (rs *Rowset) String() string {
	return fmt.Sprintf("Rowset(%d)", rs.id)
}

// StringLocked renders the full topology; the caller holds the guard.
func (rs *Rowset) StringLocked() string {
	return fmt.Sprintf("Rowset(%d)[cols=<%s>;redo=<%s>;dms=%d;undo=<%s>]",
		rs.id,
		blockio.JoinStrings(rs.columnBlocks),
		blockio.JoinStrings(rs.redoDeltaBlocks),
		rs.lastDurableRedoDmsId,
		blockio.JoinStrings(rs.undoDeltaBlocks))
}
