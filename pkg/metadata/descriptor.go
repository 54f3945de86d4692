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

	"github.com/matrixorigin/tabletstore/pkg/blockio"
	"github.com/matrixorigin/tabletstore/pkg/common"
	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
)

const (
	SuperblockMagic   uint32 = 0x54425342
	SuperblockVersion uint16 = 1
)

// ColumnBlockDescriptor pairs one column block reference with the column
// definition it stores, so a rowset can be reopened without consulting
// any other record.
type ColumnBlockDescriptor struct {
	Block       blockio.BlockId
	Name        string
	Type        ColType
	PersistedId uint64
	IsKey       bool
}

func (desc *ColumnBlockDescriptor) WriteTo(w io.Writer) (n int64, err error) {
	if n, err = blockio.WriteBlockId(w, desc.Block); err != nil {
		return
	}
	var nr int64
	if nr, err = common.WriteString(desc.Name, w); err != nil {
		return
	}
	n += nr
	if nr, err = common.WriteValues(w, uint16(desc.Type), desc.PersistedId, desc.IsKey); err != nil {
		return
	}
	n += nr
	return
}

func (desc *ColumnBlockDescriptor) ReadFrom(r io.Reader) (n int64, err error) {
	if desc.Block, n, err = blockio.ReadBlockId(r); err != nil {
		return
	}
	var nr int64
	if desc.Name, nr, err = common.ReadString(r); err != nil {
		return
	}
	n += nr
	var sn int
	var typ uint16
	if sn, err = r.Read(common.EncodeUint16(&typ)); err != nil {
		return
	}
	n += int64(sn)
	desc.Type = ColType(typ)
	if sn, err = r.Read(common.EncodeUint64(&desc.PersistedId)); err != nil {
		return
	}
	n += int64(sn)
	flag := uint8(0)
	if sn, err = r.Read(common.EncodeUint8(&flag)); err != nil {
		return
	}
	n += int64(sn)
	desc.IsKey = flag != 0
	return
}

func (desc *ColumnBlockDescriptor) String() string {
	key := ""
	if desc.IsKey {
		key = ",key"
	}
	return fmt.Sprintf("%s<%d,%s%s>:%s", desc.Name, desc.PersistedId, desc.Type.String(), key, desc.Block.String())
}

// RowsetDescriptor is the persisted form of one rowset's block topology.
type RowsetDescriptor struct {
	Id               uint64
	BloomBlock       blockio.BlockId
	AdhocIndexBlock  blockio.BlockId
	Columns          []ColumnBlockDescriptor
	RedoDeltas       []blockio.BlockId
	LastDurableDmsId uint64
	UndoDeltas       []blockio.BlockId
}

func (desc *RowsetDescriptor) WriteTo(w io.Writer) (n int64, err error) {
	if n, err = common.WriteValues(w, desc.Id); err != nil {
		return
	}
	var nr int64
	if nr, err = blockio.WriteOptionalBlockId(w, desc.BloomBlock); err != nil {
		return
	}
	n += nr
	if nr, err = blockio.WriteOptionalBlockId(w, desc.AdhocIndexBlock); err != nil {
		return
	}
	n += nr
	if nr, err = common.WriteValues(w, uint32(len(desc.Columns))); err != nil {
		return
	}
	n += nr
	for i := range desc.Columns {
		if nr, err = desc.Columns[i].WriteTo(w); err != nil {
			return
		}
		n += nr
	}
	if nr, err = blockio.WriteBlockIds(w, desc.RedoDeltas); err != nil {
		return
	}
	n += nr
	if nr, err = common.WriteValues(w, desc.LastDurableDmsId); err != nil {
		return
	}
	n += nr
	if nr, err = blockio.WriteBlockIds(w, desc.UndoDeltas); err != nil {
		return
	}
	n += nr
	return
}

func (desc *RowsetDescriptor) ReadFrom(r io.Reader) (n int64, err error) {
	var sn int
	if sn, err = r.Read(common.EncodeUint64(&desc.Id)); err != nil {
		return
	}
	n += int64(sn)
	var nr int64
	if desc.BloomBlock, nr, err = blockio.ReadOptionalBlockId(r); err != nil {
		return
	}
	n += nr
	if desc.AdhocIndexBlock, nr, err = blockio.ReadOptionalBlockId(r); err != nil {
		return
	}
	n += nr
	colCnt := uint32(0)
	if sn, err = r.Read(common.EncodeUint32(&colCnt)); err != nil {
		return
	}
	n += int64(sn)
	desc.Columns = make([]ColumnBlockDescriptor, colCnt)
	for i := uint32(0); i < colCnt; i++ {
		if nr, err = desc.Columns[i].ReadFrom(r); err != nil {
			return
		}
		n += nr
	}
	if desc.RedoDeltas, nr, err = blockio.ReadBlockIds(r); err != nil {
		return
	}
	n += nr
	if sn, err = r.Read(common.EncodeUint64(&desc.LastDurableDmsId)); err != nil {
		return
	}
	n += int64(sn)
	if desc.UndoDeltas, nr, err = blockio.ReadBlockIds(r); err != nil {
		return
	}
	n += nr
	return
}

func (desc *RowsetDescriptor) Marshal() (buf []byte, err error) {
	var bbuf bytes.Buffer
	if _, err = desc.WriteTo(&bbuf); err != nil {
		return
	}
	buf = bbuf.Bytes()
	return
}

func (desc *RowsetDescriptor) Unmarshal(buf []byte) (err error) {
	bbuf := bytes.NewBuffer(buf)
	_, err = desc.ReadFrom(bbuf)
	return
}

func (desc *RowsetDescriptor) String() string {
	cols := ""
	for i := range desc.Columns {
		if i > 0 {
			cols += ","
		}
		cols += desc.Columns[i].String()
	}
	s := fmt.Sprintf("Rowset(%d)[cols={%s};redo=<%s>;dms=%d;undo=<%s>",
		desc.Id, cols, blockio.JoinStrings(desc.RedoDeltas),
		desc.LastDurableDmsId, blockio.JoinStrings(desc.UndoDeltas))
	if !desc.BloomBlock.IsNull() {
		s = fmt.Sprintf("%s;bloom=%s", s, desc.BloomBlock.String())
	}
	if !desc.AdhocIndexBlock.IsNull() {
		s = fmt.Sprintf("%s;adhoc=%s", s, desc.AdhocIndexBlock.String())
	}
	return s + "]"
}

// TabletDescriptor is the tablet superblock: the single persisted record
// from which the whole tablet metadata state is reopened. Orphaned carries
// blocks dropped by earlier superblock swaps whose deletion has not been
// confirmed yet, so reclamation survives a restart.
type TabletDescriptor struct {
	TabletId      string
	SchemaVersion uint32
	Schema        *Schema
	LastRowsetId  uint64
	Rowsets       []*RowsetDescriptor
	Orphaned      []blockio.BlockId
}

func (desc *TabletDescriptor) WriteTo(w io.Writer) (n int64, err error) {
	magic := SuperblockMagic
	version := SuperblockVersion
	if n, err = common.WriteValues(w, magic, version); err != nil {
		return
	}
	var nr int64
	if nr, err = common.WriteString(desc.TabletId, w); err != nil {
		return
	}
	n += nr
	if nr, err = common.WriteValues(w, desc.SchemaVersion); err != nil {
		return
	}
	n += nr
	if nr, err = desc.Schema.WriteTo(w); err != nil {
		return
	}
	n += nr
	if nr, err = common.WriteValues(w, desc.LastRowsetId, uint32(len(desc.Rowsets))); err != nil {
		return
	}
	n += nr
	for _, rs := range desc.Rowsets {
		if nr, err = rs.WriteTo(w); err != nil {
			return
		}
		n += nr
	}
	if nr, err = blockio.WriteBlockIds(w, desc.Orphaned); err != nil {
		return
	}
	n += nr
	return
}

func (desc *TabletDescriptor) ReadFrom(r io.Reader) (n int64, err error) {
	var sn int
	magic := uint32(0)
	if sn, err = r.Read(common.EncodeUint32(&magic)); err != nil {
		return
	}
	n += int64(sn)
	if magic != SuperblockMagic {
		err = tserr.NewInvalidInputNoCtx("bad superblock magic: %x", magic)
		return
	}
	version := uint16(0)
	if sn, err = r.Read(common.EncodeUint16(&version)); err != nil {
		return
	}
	n += int64(sn)
	if version != SuperblockVersion {
		err = tserr.NewInvalidInputNoCtx("unsupported superblock version: %d", version)
		return
	}
	var nr int64
	if desc.TabletId, nr, err = common.ReadString(r); err != nil {
		return
	}
	n += nr
	if sn, err = r.Read(common.EncodeUint32(&desc.SchemaVersion)); err != nil {
		return
	}
	n += int64(sn)
	desc.Schema = NewEmptySchema("")
	if nr, err = desc.Schema.ReadFrom(r); err != nil {
		return
	}
	n += nr
	if sn, err = r.Read(common.EncodeUint64(&desc.LastRowsetId)); err != nil {
		return
	}
	n += int64(sn)
	rsCnt := uint32(0)
	if sn, err = r.Read(common.EncodeUint32(&rsCnt)); err != nil {
		return
	}
	n += int64(sn)
	desc.Rowsets = make([]*RowsetDescriptor, 0, rsCnt)
	for i := uint32(0); i < rsCnt; i++ {
		rs := new(RowsetDescriptor)
		if nr, err = rs.ReadFrom(r); err != nil {
			return
		}
		n += nr
		desc.Rowsets = append(desc.Rowsets, rs)
	}
	if desc.Orphaned, nr, err = blockio.ReadBlockIds(r); err != nil {
		return
	}
	n += nr
	return
}

func (desc *TabletDescriptor) Marshal() (buf []byte, err error) {
	var bbuf bytes.Buffer
	if _, err = desc.WriteTo(&bbuf); err != nil {
		return
	}
	buf = bbuf.Bytes()
	return
}

func (desc *TabletDescriptor) Unmarshal(buf []byte) (err error) {
	bbuf := bytes.NewBuffer(buf)
	_, err = desc.ReadFrom(bbuf)
	return
}

func (desc *TabletDescriptor) String() string {
	s := fmt.Sprintf("Tablet[\"%s\"](SchemaVersion=%d,LastRowsetId=%d,Rowsets=%d,Orphaned=%d)",
		desc.TabletId, desc.SchemaVersion, desc.LastRowsetId, len(desc.Rowsets), len(desc.Orphaned))
	for _, rs := range desc.Rowsets {
		s = fmt.Sprintf("%s\n%s", s, rs.String())
	}
	return s
}
