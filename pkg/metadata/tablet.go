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
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/google/btree"
	"github.com/matrixorigin/tabletstore/pkg/blockio"
	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
	"github.com/matrixorigin/tabletstore/pkg/logutil"
	"github.com/matrixorigin/tabletstore/pkg/options"
	"github.com/matrixorigin/tabletstore/pkg/tasks"
	"github.com/pierrec/lz4"
)

// deleteBlockFn is a stub point for tests that need to observe or fail
// block reclamation.
var deleteBlockFn = func(mgr blockio.Manager, id blockio.BlockId) error {
	return mgr.DeleteBlock(id)
}

type rowsetItem struct {
	rowset *Rowset
}

func (item *rowsetItem) Less(than btree.Item) bool {
	return item.rowset.id < than.(*rowsetItem).rowset.id
}

// Tablet owns the metadata of one tablet: the rowset set, the shared
// schema, and the superblock that persists both. Every flush writes a
// full superblock through the meta store, then hands blocks that fell
// out of the live set to the flush scheduler for deletion. Orphans that
// could not be deleted ride in the superblock so reclamation resumes
// after a restart.
//
// The embedded lock guards the rowset tree, the block sets and the
// superblock version. Lock order is tablet before rowset, never the
// reverse.
type Tablet struct {
	sync.RWMutex
	id            string
	schema        *Schema
	schemaVersion uint32
	rowsets       *btree.BTree
	lastRowsetId  uint64
	superVersion  uint64

	store   MetaStore
	mgr     blockio.Manager
	flusher *tasks.FlushScheduler

	liveBlocks     *roaring64.Bitmap
	orphanedBlocks *roaring64.Bitmap
}

// NewTablet builds an empty tablet bound to its meta store and block
// manager. Both are owned by the caller and survive Close.
func NewTablet(id string, schema *Schema, store MetaStore, mgr blockio.Manager, opts *options.Options) *Tablet {
	if !schema.Valid() {
		panic(fmt.Sprintf("tablet %s: invalid schema: %s", id, schema.String()))
	}
	opts = opts.FillDefaults("")
	return &Tablet{
		id:             id,
		schema:         schema,
		rowsets:        btree.New(8),
		store:          store,
		mgr:            mgr,
		flusher:        tasks.NewFlushScheduler(opts.SchedulerCfg.FlushWorkers),
		liveBlocks:     roaring64.New(),
		orphanedBlocks: roaring64.New(),
	}
}

// DecodeSuperblock decompresses and decodes a persisted superblock
// payload. Inspection tools use it to read a store without opening the
// owning tablet.
func DecodeSuperblock(payload []byte) (*TabletDescriptor, error) {
	raw, err := decompressSuperblock(payload)
	if err != nil {
		return nil, err
	}
	desc := new(TabletDescriptor)
	if err = desc.Unmarshal(raw); err != nil {
		return nil, err
	}
	return desc, nil
}

// OpenTablet rebuilds a tablet from the superblock held by store.
// Reclamation of orphans recorded by the previous incarnation resumes
// in the background.
func OpenTablet(id string, store MetaStore, mgr blockio.Manager, opts *options.Options) (*Tablet, error) {
	version, payload, err := store.LoadSuperblock()
	if err != nil {
		return nil, err
	}
	desc, err := DecodeSuperblock(payload)
	if err != nil {
		return nil, err
	}
	if desc.TabletId != id {
		return nil, tserr.NewInvalidInputNoCtx(
			"tablet id mismatch: opened %s, superblock holds %s", id, desc.TabletId)
	}
	if !desc.Schema.Valid() {
		return nil, tserr.NewBadSchemaNoCtx(
			"tablet %s: superblock schema is invalid: %s", id, desc.Schema.String())
	}

	opts = opts.FillDefaults("")
	t := &Tablet{
		id:             id,
		schema:         desc.Schema,
		schemaVersion:  desc.SchemaVersion,
		rowsets:        btree.New(8),
		lastRowsetId:   desc.LastRowsetId,
		superVersion:   version,
		store:          store,
		mgr:            mgr,
		flusher:        tasks.NewFlushScheduler(opts.SchedulerCfg.FlushWorkers),
		liveBlocks:     collectLiveBlocks(desc.Rowsets),
		orphanedBlocks: roaring64.New(),
	}
	for _, rsDesc := range desc.Rowsets {
		rs, err := OpenRowset(t, rsDesc)
		if err != nil {
			t.flusher.Stop()
			return nil, err
		}
		t.rowsets.ReplaceOrInsert(&rowsetItem{rowset: rs})
	}
	for _, blk := range desc.Orphaned {
		t.orphanedBlocks.Add(uint64(blk))
	}
	// A reclaimed orphan leaves the persisted set only on the next
	// flush, so the superblock can reference ids above any block file
	// left on disk. Raise the allocator floor before handing out ids.
	if last := maxBlockId(t.liveBlocks, t.orphanedBlocks); mgr.TryUpdateBlockId(last) {
		logutil.Infof("tablet %s: block allocator advanced to %s from superblock", id, last)
	}
	t.scheduleReclaim(desc.Orphaned)
	return t, nil
}

func (t *Tablet) GetID() string {
	return t.id
}

func (t *Tablet) GetSchema() *Schema {
	return t.schema
}

func (t *Tablet) SchemaVersion() uint32 {
	t.RLock()
	defer t.RUnlock()
	return t.schemaVersion
}

func (t *Tablet) SuperVersion() uint64 {
	t.RLock()
	defer t.RUnlock()
	return t.superVersion
}

// NextRowsetId hands out the next rowset id. Compaction flows use it to
// build replacement rowsets before registering them via ReplaceRowsets.
func (t *Tablet) NextRowsetId() uint64 {
	return atomic.AddUint64(&t.lastRowsetId, 1)
}

// CreateRowset allocates an id, builds an empty rowset on the tablet
// schema and registers it.
func (t *Tablet) CreateRowset() *Rowset {
	rs := NewRowset(t, t.NextRowsetId(), t.schema)
	t.Lock()
	defer t.Unlock()
	t.rowsets.ReplaceOrInsert(&rowsetItem{rowset: rs})
	return rs
}

func (t *Tablet) GetRowset(id uint64) *Rowset {
	t.RLock()
	defer t.RUnlock()
	return t.getRowsetLocked(id)
}

func (t *Tablet) getRowsetLocked(id uint64) *Rowset {
	item := t.rowsets.Get(&rowsetItem{rowset: &Rowset{id: id}})
	if item == nil {
		return nil
	}
	return item.(*rowsetItem).rowset
}

func (t *Tablet) RowsetCount() int {
	t.RLock()
	defer t.RUnlock()
	return t.rowsets.Len()
}

// ForEachRowset visits rowsets in id order until fn returns false.
func (t *Tablet) ForEachRowset(fn func(rs *Rowset) bool) {
	t.RLock()
	defer t.RUnlock()
	t.rowsets.Ascend(func(item btree.Item) bool {
		return fn(item.(*rowsetItem).rowset)
	})
}

// ReplaceRowsets swaps compaction inputs for their outputs and persists
// the result. Either every id in toRemove is registered or nothing is
// touched. Registering an output under an id that is still taken is a
// caller bug and panics.
//
// A flush failure after a successful swap leaves the new topology in
// memory; the caller retries Flush when the store recovers.
func (t *Tablet) ReplaceRowsets(toRemove []uint64, toAdd []*Rowset) error {
	t.Lock()
	for _, id := range toRemove {
		if t.getRowsetLocked(id) == nil {
			t.Unlock()
			return tserr.NewRowsetNotFoundNoCtx(id)
		}
	}
	removing := make(map[uint64]bool, len(toRemove))
	for _, id := range toRemove {
		removing[id] = true
	}
	for _, rs := range toAdd {
		if t.getRowsetLocked(rs.id) != nil && !removing[rs.id] {
			t.Unlock()
			panic(fmt.Sprintf("rowset %d already registered", rs.id))
		}
	}
	for _, id := range toRemove {
		t.rowsets.Delete(&rowsetItem{rowset: &Rowset{id: id}})
	}
	for _, rs := range toAdd {
		t.rowsets.ReplaceOrInsert(&rowsetItem{rowset: rs})
	}
	orphans, err := t.flushLocked()
	t.Unlock()
	if err != nil {
		return err
	}
	t.scheduleReclaim(orphans)
	return nil
}

// UpdateAndFlush commits one rowset update and persists the superblock.
// A commit error leaves both memory and storage untouched.
func (t *Tablet) UpdateAndFlush(rowsetId uint64, update *RowsetUpdate) error {
	rs := t.GetRowset(rowsetId)
	if rs == nil {
		return tserr.NewRowsetNotFoundNoCtx(rowsetId)
	}
	if err := rs.CommitUpdate(update); err != nil {
		return err
	}
	return t.Flush()
}

// Flush persists the current topology as a new superblock version, then
// queues blocks that dropped out of the live set for deletion.
func (t *Tablet) Flush() error {
	t.Lock()
	orphans, err := t.flushLocked()
	t.Unlock()
	if err != nil {
		return err
	}
	t.scheduleReclaim(orphans)
	return nil
}

// flushLocked persists and, on success, swaps in the new block
// accounting. It returns every pending orphan, not only the fresh ones:
// a reclaim task that lost a race or failed earlier gets retried on the
// next flush. The caller schedules reclamation after releasing the lock
// so a saturated worker pool cannot wedge the tablet.
func (t *Tablet) flushLocked() (orphans []blockio.BlockId, err error) {
	version := t.superVersion + 1
	desc := t.toDescriptorLocked()

	newLive := collectLiveBlocks(desc.Rowsets)
	dropped := t.liveBlocks.Clone()
	dropped.AndNot(newLive)
	pending := t.orphanedBlocks.Clone()
	pending.Or(dropped)

	desc.Orphaned = bitmapToBlockIds(pending)
	raw, err := desc.Marshal()
	if err != nil {
		return nil, err
	}
	payload, err := compressSuperblock(raw)
	if err != nil {
		return nil, err
	}
	if err = t.store.SaveSuperblock(version, payload); err != nil {
		return nil, err
	}

	t.superVersion = version
	t.liveBlocks = newLive
	t.orphanedBlocks = pending
	return desc.Orphaned, nil
}

func (t *Tablet) ToDescriptor() *TabletDescriptor {
	t.RLock()
	defer t.RUnlock()
	return t.toDescriptorLocked()
}

func (t *Tablet) toDescriptorLocked() *TabletDescriptor {
	desc := &TabletDescriptor{
		TabletId:      t.id,
		SchemaVersion: t.schemaVersion,
		Schema:        t.schema,
		LastRowsetId:  atomic.LoadUint64(&t.lastRowsetId),
		Rowsets:       make([]*RowsetDescriptor, 0, t.rowsets.Len()),
	}
	t.rowsets.Ascend(func(item btree.Item) bool {
		desc.Rowsets = append(desc.Rowsets, item.(*rowsetItem).rowset.ToDescriptor())
		return true
	})
	return desc
}

func (t *Tablet) scheduleReclaim(ids []blockio.BlockId) {
	if len(ids) == 0 {
		return
	}
	if err := t.flusher.Schedule(func() {
		t.reclaimBlocks(ids)
	}); err != nil {
		logutil.Warnf("tablet %s: reclaim of %d blocks not scheduled: %s",
			t.id, len(ids), err)
	}
}

// reclaimBlocks deletes orphaned blocks and clears the reclaimed ids
// from the pending set. A block already gone counts as reclaimed; any
// other failure stays pending and is retried on the next flush.
func (t *Tablet) reclaimBlocks(ids []blockio.BlockId) {
	reclaimed := make([]blockio.BlockId, 0, len(ids))
	for _, id := range ids {
		if err := deleteBlockFn(t.mgr, id); err != nil {
			if !tserr.IsTsErrCode(err, tserr.ErrBlockNotFound) {
				logutil.Warnf("tablet %s: delete block %s: %s", t.id, id, err)
				continue
			}
		}
		reclaimed = append(reclaimed, id)
	}
	if len(reclaimed) == 0 {
		return
	}
	t.Lock()
	defer t.Unlock()
	for _, id := range reclaimed {
		t.orphanedBlocks.Remove(uint64(id))
	}
}

// OrphanedBlocks snapshots the ids whose deletion is still pending.
func (t *Tablet) OrphanedBlocks() []blockio.BlockId {
	t.RLock()
	defer t.RUnlock()
	return bitmapToBlockIds(t.orphanedBlocks)
}

// LiveBlocks snapshots the ids referenced by the last persisted
// superblock.
func (t *Tablet) LiveBlocks() []blockio.BlockId {
	t.RLock()
	defer t.RUnlock()
	return bitmapToBlockIds(t.liveBlocks)
}

// Close drains background reclamation. The meta store and the block
// manager belong to the caller and stay open.
func (t *Tablet) Close() {
	t.flusher.Stop()
}

func (t *Tablet) String() string {
	t.RLock()
	defer t.RUnlock()
	var w bytes.Buffer
	_, _ = w.WriteString(fmt.Sprintf("Tablet[\"%s\"](Ver=%d,Rowsets=%d,Live=%d,Orphaned=%d)",
		t.id, t.superVersion, t.rowsets.Len(),
		t.liveBlocks.GetCardinality(), t.orphanedBlocks.GetCardinality()))
	t.rowsets.Ascend(func(item btree.Item) bool {
		rs := item.(*rowsetItem).rowset
		rs.RLock()
		_, _ = w.WriteString("\n")
		_, _ = w.WriteString(rs.StringLocked())
		rs.RUnlock()
		return true
	})
	return w.String()
}

func collectLiveBlocks(rowsets []*RowsetDescriptor) *roaring64.Bitmap {
	live := roaring64.New()
	add := func(id blockio.BlockId) {
		if !id.IsNull() {
			live.Add(uint64(id))
		}
	}
	for _, rs := range rowsets {
		add(rs.BloomBlock)
		add(rs.AdhocIndexBlock)
		for i := range rs.Columns {
			add(rs.Columns[i].Block)
		}
		for _, blk := range rs.RedoDeltas {
			add(blk)
		}
		for _, blk := range rs.UndoDeltas {
			add(blk)
		}
	}
	return live
}

func bitmapToBlockIds(bm *roaring64.Bitmap) []blockio.BlockId {
	ids := make([]blockio.BlockId, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ids = append(ids, blockio.BlockId(it.Next()))
	}
	return ids
}

func maxBlockId(bitmaps ...*roaring64.Bitmap) blockio.BlockId {
	maxId := blockio.NullBlockId
	for _, bm := range bitmaps {
		if bm.IsEmpty() {
			continue
		}
		if id := blockio.BlockId(bm.Maximum()); id.Compare(maxId) > 0 {
			maxId = id
		}
	}
	return maxId
}

func compressSuperblock(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, tserr.NewInternalErrorNoCtx("compress superblock: %s", err)
	}
	if err := zw.Close(); err != nil {
		return nil, tserr.NewInternalErrorNoCtx("compress superblock: %s", err)
	}
	return buf.Bytes(), nil
}

func decompressSuperblock(payload []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(payload))
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, tserr.NewInternalErrorNoCtx("decompress superblock: %s", err)
	}
	return raw, nil
}
