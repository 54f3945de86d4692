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
	"testing"

	"github.com/matrixorigin/tabletstore/pkg/blockio"
	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
	"github.com/matrixorigin/tabletstore/pkg/options"
	"github.com/matrixorigin/tabletstore/pkg/testutils"
	"github.com/matrixorigin/tabletstore/pkg/testutils/config"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
)

func initTablet(t *testing.T, opts *options.Options) (*Tablet, MetaStore, blockio.Manager, *options.Options) {
	dir := testutils.InitTestEnv(ModuleName, t)
	opts = opts.FillDefaults(dir)
	store, err := OpenMetaStore(opts)
	assert.Nil(t, err)
	mgr, err := blockio.NewFileManager(opts.StoreCfg.BlockDir)
	assert.Nil(t, err)
	tablet := NewTablet("t1", MockSchema(3, 1), store, mgr, opts)
	return tablet, store, mgr, opts
}

func createBlocks(t *testing.T, mgr blockio.Manager, cnt int) []blockio.BlockId {
	ids := make([]blockio.BlockId, 0, cnt)
	for i := 0; i < cnt; i++ {
		id, err := mgr.CreateBlock([]byte(fmt.Sprintf("payload-%d", i)))
		assert.Nil(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestTabletCreateAndFlush(t *testing.T) {
	tablet, store, mgr, _ := initTablet(t, nil)
	defer store.Close()
	defer tablet.Close()

	rs1 := tablet.CreateRowset()
	rs2 := tablet.CreateRowset()
	assert.Equal(t, uint64(1), rs1.GetID())
	assert.Equal(t, uint64(2), rs2.GetID())
	assert.Equal(t, 2, tablet.RowsetCount())
	assert.Equal(t, rs1, tablet.GetRowset(1))
	assert.Nil(t, tablet.GetRowset(42))

	rs1.SetColumnDataBlocks(createBlocks(t, mgr, 3))
	rs2.SetColumnDataBlocks(createBlocks(t, mgr, 3))
	assert.Equal(t, uint64(0), tablet.SuperVersion())
	assert.Nil(t, tablet.Flush())
	assert.Equal(t, uint64(1), tablet.SuperVersion())
	assert.Equal(t, 6, len(tablet.LiveBlocks()))
	assert.Equal(t, 0, len(tablet.OrphanedBlocks()))

	// Flushing an unchanged topology still advances the version.
	assert.Nil(t, rs2.Flush())
	assert.Equal(t, uint64(2), tablet.SuperVersion())

	visited := make([]uint64, 0, 2)
	tablet.ForEachRowset(func(rs *Rowset) bool {
		visited = append(visited, rs.GetID())
		return true
	})
	assert.Equal(t, []uint64{1, 2}, visited)
	t.Log(tablet.String())
}

func testTabletFlushAndOpen(t *testing.T, in *options.Options) {
	tablet, store, mgr, opts := initTablet(t, in)
	defer store.Close()

	rs1 := tablet.CreateRowset()
	rs1.SetColumnDataBlocks(createBlocks(t, mgr, 3))
	rs1.CommitRedoDeltaBlock(7, createBlocks(t, mgr, 1)[0])
	rs2 := tablet.CreateRowset()
	rs2.SetColumnDataBlocks(createBlocks(t, mgr, 3))
	rs2.SetBloomBlock(createBlocks(t, mgr, 1)[0])
	assert.Nil(t, tablet.Flush())
	tablet.Close()

	loaded, err := OpenTablet("t1", store, mgr, opts)
	assert.Nil(t, err)
	defer loaded.Close()
	assert.Equal(t, tablet.SuperVersion(), loaded.SuperVersion())
	assert.Equal(t, 2, loaded.RowsetCount())
	assert.Equal(t, tablet.LiveBlocks(), loaded.LiveBlocks())
	assert.Equal(t, tablet.GetSchema().Name, loaded.GetSchema().Name)
	assert.Equal(t, tablet.GetSchema().Types(), loaded.GetSchema().Types())

	lrs1 := loaded.GetRowset(rs1.GetID())
	assert.NotNil(t, lrs1)
	assert.Equal(t, rs1.ColumnBlocks(), lrs1.ColumnBlocks())
	assert.Equal(t, rs1.RedoDeltaBlocks(), lrs1.RedoDeltaBlocks())
	assert.Equal(t, uint64(7), lrs1.LastDurableRedoDmsId())
	lrs2 := loaded.GetRowset(rs2.GetID())
	assert.NotNil(t, lrs2)
	assert.Equal(t, rs2.BloomBlock(), lrs2.BloomBlock())

	// Ids handed out after reopen continue past the persisted high
	// water mark.
	assert.Equal(t, rs2.GetID()+1, loaded.NextRowsetId())

	_, err = OpenTablet("someone-else", store, mgr, opts)
	assert.True(t, tserr.IsTsErrCode(err, tserr.ErrInvalidInput))
}

func TestTabletFlushAndOpenFileBackend(t *testing.T) {
	testTabletFlushAndOpen(t, nil)
}

func TestTabletFlushAndOpenPebbleBackend(t *testing.T) {
	testTabletFlushAndOpen(t, config.WithPebbleMetaOpts(nil))
}

func TestTabletOrphanReclaim(t *testing.T) {
	tablet, store, mgr, _ := initTablet(t, nil)
	defer store.Close()
	defer tablet.Close()

	rs := tablet.CreateRowset()
	blocks := createBlocks(t, mgr, 3)
	rs.SetColumnDataBlocks(blocks)
	assert.Nil(t, tablet.Flush())

	replacement := createBlocks(t, mgr, 1)[0]
	update := NewRowsetUpdate().ReplaceColumnBlock(0, replacement)
	assert.Nil(t, tablet.UpdateAndFlush(rs.GetID(), update))
	assert.Equal(t, []blockio.BlockId{replacement, blocks[1], blocks[2]}, rs.ColumnBlocks())

	testutils.WaitExpect(4000, func() bool {
		return len(tablet.OrphanedBlocks()) == 0
	})
	assert.Equal(t, 0, len(tablet.OrphanedBlocks()))
	_, err := mgr.ReadBlock(blocks[0])
	assert.True(t, tserr.IsTsErrCode(err, tserr.ErrBlockNotFound))
	_, err = mgr.ReadBlock(replacement)
	assert.Nil(t, err)
}

func TestTabletOrphanSurvivesRestart(t *testing.T) {
	tablet, store, mgr, opts := initTablet(t, config.WithSingleFlushWorkerOpts(nil))
	defer store.Close()

	rs := tablet.CreateRowset()
	blocks := createBlocks(t, mgr, 3)
	rs.SetColumnDataBlocks(blocks)
	assert.Nil(t, tablet.Flush())

	stub := gostub.Stub(&deleteBlockFn, func(blockio.Manager, blockio.BlockId) error {
		return tserr.NewInternalErrorNoCtx("disk on strike")
	})
	replacement := createBlocks(t, mgr, 1)[0]
	assert.Nil(t, tablet.UpdateAndFlush(rs.GetID(),
		NewRowsetUpdate().ReplaceColumnBlock(0, replacement)))
	tablet.Close()
	stub.Reset()

	// The failed deletion stayed pending and was persisted with the
	// superblock.
	assert.Equal(t, []blockio.BlockId{blocks[0]}, tablet.OrphanedBlocks())
	_, err := mgr.ReadBlock(blocks[0])
	assert.Nil(t, err)

	loaded, err := OpenTablet("t1", store, mgr, opts)
	assert.Nil(t, err)
	defer loaded.Close()
	testutils.WaitExpect(4000, func() bool {
		return len(loaded.OrphanedBlocks()) == 0
	})
	assert.Equal(t, 0, len(loaded.OrphanedBlocks()))
	_, err = mgr.ReadBlock(blocks[0])
	assert.True(t, tserr.IsTsErrCode(err, tserr.ErrBlockNotFound))
}

// A reclaimed orphan leaves the persisted superblock only on the next
// flush. Until then a restart must keep its id fenced, or resumed
// reclamation could hit a fresh block reusing it.
func TestTabletRestartDoesNotReuseOrphanIds(t *testing.T) {
	tablet, store, mgr, opts := initTablet(t, config.WithSingleFlushWorkerOpts(nil))
	defer store.Close()

	rs := tablet.CreateRowset()
	rs.SetColumnDataBlocks(createBlocks(t, mgr, 3))
	redo := createBlocks(t, mgr, 1)[0]
	rs.CommitRedoDeltaBlock(9, redo)
	assert.Nil(t, tablet.Flush())

	compaction := NewRowsetUpdate().ReplaceRedoDeltaBlocks([]blockio.BlockId{redo}, nil)
	assert.Nil(t, tablet.UpdateAndFlush(rs.GetID(), compaction))
	testutils.WaitExpect(4000, func() bool {
		return len(tablet.OrphanedBlocks()) == 0
	})
	assert.Equal(t, 0, len(tablet.OrphanedBlocks()))
	tablet.Close()

	// The reclaimed orphan is still recorded by the persisted
	// superblock; only the next flush would have dropped it.
	_, payload, err := store.LoadSuperblock()
	assert.Nil(t, err)
	desc, err := DecodeSuperblock(payload)
	assert.Nil(t, err)
	assert.Equal(t, []blockio.BlockId{redo}, desc.Orphaned)
	_, err = mgr.ReadBlock(redo)
	assert.True(t, tserr.IsTsErrCode(err, tserr.ErrBlockNotFound))

	// A manager reseeded from the surviving files knows nothing about
	// the reclaimed id.
	mgr2, err := blockio.NewFileManager(opts.StoreCfg.BlockDir)
	assert.Nil(t, err)

	gate := make(chan struct{})
	stub := gostub.Stub(&deleteBlockFn, func(m blockio.Manager, id blockio.BlockId) error {
		<-gate
		return m.DeleteBlock(id)
	})
	defer stub.Reset()

	loaded, err := OpenTablet("t1", store, mgr2, opts)
	assert.Nil(t, err)
	defer loaded.Close()
	assert.Equal(t, []blockio.BlockId{redo}, loaded.OrphanedBlocks())

	// Ids handed out while reclamation is still pending continue past
	// everything the superblock references.
	fresh, err := mgr2.CreateBlock([]byte("fresh"))
	assert.Nil(t, err)
	assert.Equal(t, redo+1, fresh)

	close(gate)
	testutils.WaitExpect(4000, func() bool {
		return len(loaded.OrphanedBlocks()) == 0
	})
	assert.Equal(t, 0, len(loaded.OrphanedBlocks()))
	buf, err := mgr2.ReadBlock(fresh)
	assert.Nil(t, err)
	assert.Equal(t, []byte("fresh"), buf)
}

func TestTabletReplaceRowsets(t *testing.T) {
	tablet, store, mgr, _ := initTablet(t, nil)
	defer store.Close()
	defer tablet.Close()

	rs1 := tablet.CreateRowset()
	rs1.SetColumnDataBlocks(createBlocks(t, mgr, 3))
	rs2 := tablet.CreateRowset()
	rs2.SetColumnDataBlocks(createBlocks(t, mgr, 3))
	assert.Nil(t, tablet.Flush())
	oldBlocks := append(rs1.ColumnBlocks(), rs2.ColumnBlocks()...)

	// A swap naming an unknown input applies nothing.
	merged := NewRowset(tablet, tablet.NextRowsetId(), tablet.GetSchema())
	merged.SetColumnDataBlocks(createBlocks(t, mgr, 3))
	err := tablet.ReplaceRowsets([]uint64{rs1.GetID(), 42}, []*Rowset{merged})
	assert.True(t, tserr.IsTsErrCode(err, tserr.ErrRowsetNotFound))
	assert.Equal(t, 2, tablet.RowsetCount())
	assert.NotNil(t, tablet.GetRowset(rs1.GetID()))
	assert.Nil(t, tablet.GetRowset(merged.GetID()))

	version := tablet.SuperVersion()
	assert.Nil(t, tablet.ReplaceRowsets(
		[]uint64{rs1.GetID(), rs2.GetID()}, []*Rowset{merged}))
	assert.Equal(t, version+1, tablet.SuperVersion())
	assert.Equal(t, 1, tablet.RowsetCount())
	assert.Nil(t, tablet.GetRowset(rs1.GetID()))
	assert.Nil(t, tablet.GetRowset(rs2.GetID()))
	assert.Equal(t, merged, tablet.GetRowset(merged.GetID()))

	testutils.WaitExpect(4000, func() bool {
		return len(tablet.OrphanedBlocks()) == 0
	})
	for _, blk := range oldBlocks {
		_, err = mgr.ReadBlock(blk)
		assert.True(t, tserr.IsTsErrCode(err, tserr.ErrBlockNotFound))
	}
	assert.Equal(t, merged.ColumnBlocks(), tablet.LiveBlocks())

	// Registering an output under a taken id is a caller bug.
	dup := NewRowset(tablet, merged.GetID(), tablet.GetSchema())
	assert.Panics(t, func() {
		_ = tablet.ReplaceRowsets(nil, []*Rowset{dup})
	})
}

func TestTabletUpdateAndFlush(t *testing.T) {
	tablet, store, mgr, _ := initTablet(t, nil)
	defer store.Close()
	defer tablet.Close()

	rs := tablet.CreateRowset()
	rs.SetColumnDataBlocks(createBlocks(t, mgr, 3))
	rs.CommitRedoDeltaBlock(1, createBlocks(t, mgr, 1)[0])
	assert.Nil(t, tablet.Flush())

	err := tablet.UpdateAndFlush(42, NewRowsetUpdate())
	assert.True(t, tserr.IsTsErrCode(err, tserr.ErrRowsetNotFound))

	// A rejected update must not produce a superblock.
	version, _, err := store.LoadSuperblock()
	assert.Nil(t, err)
	bad := NewRowsetUpdate().ReplaceRedoDeltaBlocks(MockBlockIds(1000, 2), nil)
	err = tablet.UpdateAndFlush(rs.GetID(), bad)
	assert.True(t, tserr.IsTsErrCode(err, tserr.ErrSubsequenceNotFound))
	assert.Equal(t, version, tablet.SuperVersion())
	storedVersion, _, err := store.LoadSuperblock()
	assert.Nil(t, err)
	assert.Equal(t, version, storedVersion)

	compacted := createBlocks(t, mgr, 1)[0]
	good := NewRowsetUpdate().ReplaceRedoDeltaBlocks(rs.RedoDeltaBlocks(), []blockio.BlockId{compacted})
	assert.Nil(t, tablet.UpdateAndFlush(rs.GetID(), good))
	assert.Equal(t, version+1, tablet.SuperVersion())
	assert.Equal(t, []blockio.BlockId{compacted}, rs.RedoDeltaBlocks())
}

func TestTabletRefusesSharedStore(t *testing.T) {
	tablet, store, mgr, opts := initTablet(t, nil)
	defer store.Close()
	defer tablet.Close()

	rs := tablet.CreateRowset()
	rs.SetColumnDataBlocks(createBlocks(t, mgr, 3))
	assert.Nil(t, tablet.Flush())

	// A second tablet handle on the same store lost the version race
	// and may not clobber the first one's superblock.
	stray := NewTablet("t1", MockSchema(3, 1), store, mgr, opts)
	defer stray.Close()
	err := stray.Flush()
	assert.True(t, tserr.IsTsErrCode(err, tserr.ErrStaleSuperblock))
	assert.Equal(t, uint64(0), stray.SuperVersion())
	assert.Equal(t, uint64(1), tablet.SuperVersion())
}
