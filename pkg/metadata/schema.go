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
	"encoding/json"
	"io"

	"github.com/matrixorigin/tabletstore/pkg/common"
)

type ColType uint16

const (
	ColInvalid ColType = iota
	ColInt8
	ColInt16
	ColInt32
	ColInt64
	ColUint64
	ColFloat64
	ColDate
	ColVarchar
	ColBinary
)

func (t ColType) String() string {
	switch t {
	case ColInt8:
		return "int8"
	case ColInt16:
		return "int16"
	case ColInt32:
		return "int32"
	case ColInt64:
		return "int64"
	case ColUint64:
		return "uint64"
	case ColFloat64:
		return "float64"
	case ColDate:
		return "date"
	case ColVarchar:
		return "varchar"
	case ColBinary:
		return "binary"
	}
	return "invalid"
}

type ColDef struct {
	Name string  `json:"name"`
	Idx  int     `json:"idx"`
	Type ColType `json:"type"`
	// PersistedId is the stable column identity carried by descriptors.
	// It never changes across schema alters, unlike Idx.
	PersistedId uint64 `json:"colid"`
}

func (def *ColDef) IsKey(s *Schema) bool {
	return def.Idx < s.NumKeyColumns
}

// Schema describes the column layout of a tablet or rowset. The first
// NumKeyColumns columns form the key prefix.
type Schema struct {
	Name          string         `json:"name"`
	ColDefs       []*ColDef      `json:"cols"`
	NameIndex     map[string]int `json:"nindex"`
	NumKeyColumns int            `json:"keycols"`
}

func NewEmptySchema(name string) *Schema {
	return &Schema{
		Name:      name,
		ColDefs:   make([]*ColDef, 0),
		NameIndex: make(map[string]int),
	}
}

func NewSchema(name string, keyCnt int) *Schema {
	s := NewEmptySchema(name)
	s.NumKeyColumns = keyCnt
	return s
}

func (s *Schema) AppendCol(name string, typ ColType) {
	colDef := &ColDef{
		Name:        name,
		Type:        typ,
		Idx:         len(s.ColDefs),
		PersistedId: uint64(len(s.ColDefs)) + 1,
	}
	s.ColDefs = append(s.ColDefs, colDef)
	s.NameIndex[name] = colDef.Idx
}

// AppendColDef registers a fully specified column. Load paths use it to
// keep the persisted ids from the descriptor.
func (s *Schema) AppendColDef(def *ColDef) {
	def.Idx = len(s.ColDefs)
	s.ColDefs = append(s.ColDefs, def)
	s.NameIndex[def.Name] = def.Idx
}

func (s *Schema) String() string {
	buf, _ := json.Marshal(s)
	return string(buf)
}

func (s *Schema) NumColumns() int {
	return len(s.ColDefs)
}

func (s *Schema) Types() []ColType {
	ts := make([]ColType, len(s.ColDefs))
	for i, colDef := range s.ColDefs {
		ts[i] = colDef.Type
	}
	return ts
}

func (s *Schema) Valid() bool {
	if s == nil {
		return false
	}
	if len(s.ColDefs) == 0 {
		return false
	}
	if s.NumKeyColumns < 1 || s.NumKeyColumns > len(s.ColDefs) {
		return false
	}

	names := make(map[string]bool)
	ids := make(map[uint64]bool)
	for idx, colDef := range s.ColDefs {
		if idx != colDef.Idx {
			return false
		}
		if names[colDef.Name] {
			return false
		}
		if ids[colDef.PersistedId] {
			return false
		}
		names[colDef.Name] = true
		ids[colDef.PersistedId] = true
	}
	return true
}

// GetColIdx returns column index for the given column name
// if found, otherwise returns -1.
func (s *Schema) GetColIdx(attr string) int {
	idx, ok := s.NameIndex[attr]
	if !ok {
		return -1
	}
	return idx
}

func (s *Schema) WriteTo(w io.Writer) (n int64, err error) {
	if n, err = common.WriteString(s.Name, w); err != nil {
		return
	}
	var nr int64
	if nr, err = common.WriteValues(w, uint32(s.NumKeyColumns), uint32(len(s.ColDefs))); err != nil {
		return
	}
	n += nr
	for _, def := range s.ColDefs {
		if nr, err = common.WriteString(def.Name, w); err != nil {
			return
		}
		n += nr
		if nr, err = common.WriteValues(w, uint16(def.Type), def.PersistedId); err != nil {
			return
		}
		n += nr
	}
	return
}

func (s *Schema) ReadFrom(r io.Reader) (n int64, err error) {
	if s.Name, n, err = common.ReadString(r); err != nil {
		return
	}
	var keyCnt, colCnt uint32
	var nr int
	if nr, err = r.Read(common.EncodeUint32(&keyCnt)); err != nil {
		return
	}
	n += int64(nr)
	if nr, err = r.Read(common.EncodeUint32(&colCnt)); err != nil {
		return
	}
	n += int64(nr)
	s.NumKeyColumns = int(keyCnt)
	s.ColDefs = make([]*ColDef, 0, colCnt)
	s.NameIndex = make(map[string]int)
	for i := uint32(0); i < colCnt; i++ {
		def := new(ColDef)
		var sn int64
		if def.Name, sn, err = common.ReadString(r); err != nil {
			return
		}
		n += sn
		var typ uint16
		if nr, err = r.Read(common.EncodeUint16(&typ)); err != nil {
			return
		}
		n += int64(nr)
		def.Type = ColType(typ)
		if nr, err = r.Read(common.EncodeUint64(&def.PersistedId)); err != nil {
			return
		}
		n += int64(nr)
		s.AppendColDef(def)
	}
	return
}
