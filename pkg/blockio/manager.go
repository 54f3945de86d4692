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
	"os"
	"path"
	"sync/atomic"

	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
	"github.com/matrixorigin/tabletstore/pkg/logutil"
)

// Allocator hands out block ids. Implementations never return the null
// id.
type Allocator interface {
	NextBlockId() BlockId
}

type SeqAllocator struct {
	id uint64
}

func NewSeqAllocator(from BlockId) *SeqAllocator {
	if from.IsNull() {
		panic("should not start from the null id")
	}
	return &SeqAllocator{
		id: uint64(from) - 1,
	}
}

func (alloc *SeqAllocator) NextBlockId() BlockId {
	return BlockId(atomic.AddUint64(&alloc.id, uint64(1)))
}

func (alloc *SeqAllocator) Get() BlockId {
	return BlockId(atomic.LoadUint64(&alloc.id))
}

// TryUpdate moves the last issued id forward to last so smaller ids are
// never handed out again. Updates that would move it backwards are
// ignored.
func (alloc *SeqAllocator) TryUpdate(last BlockId) bool {
	for {
		curr := atomic.LoadUint64(&alloc.id)
		if curr >= uint64(last) {
			return false
		}
		if atomic.CompareAndSwapUint64(&alloc.id, curr, uint64(last)) {
			return true
		}
	}
}

// Manager owns the physical blocks referenced by metadata. Implementations
// must keep CreateBlock atomic: a block either becomes fully readable
// under its id or leaves no trace. Ids are never reused: recovery calls
// TryUpdateBlockId with the highest id durable metadata references, which
// can sit above every block file still on disk.
type Manager interface {
	CreateBlock(payload []byte) (BlockId, error)
	ReadBlock(id BlockId) ([]byte, error)
	DeleteBlock(id BlockId) error
	TryUpdateBlockId(last BlockId) bool
	Sync() error
}

// FileManager stores one file per block under a single directory. Block
// payloads are written to a temp file, synced and renamed into place.
type FileManager struct {
	dir   string
	alloc *SeqAllocator
}

func NewFileManager(dir string) (*FileManager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	maxId := NullBlockId
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsTempFile(entry.Name()) {
			logutil.Infof("remove stale temp file: %s", entry.Name())
			if err = os.Remove(path.Join(dir, entry.Name())); err != nil {
				return nil, err
			}
			continue
		}
		id, ok := ParseBlockFilename(entry.Name())
		if !ok {
			continue
		}
		if id.Compare(maxId) > 0 {
			maxId = id
		}
	}
	return &FileManager{
		dir:   dir,
		alloc: NewSeqAllocator(maxId + 1),
	}, nil
}

func (mgr *FileManager) Dir() string {
	return mgr.dir
}

func (mgr *FileManager) CreateBlock(payload []byte) (BlockId, error) {
	id := mgr.alloc.NextBlockId()
	tmp := MakeBlockFilename(mgr.dir, id, true)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE, 0666)
	if err != nil {
		return NullBlockId, err
	}
	if _, err = f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmp)
		return NullBlockId, err
	}
	if err = Fdatasync(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return NullBlockId, err
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return NullBlockId, err
	}
	if err = os.Rename(tmp, MakeBlockFilename(mgr.dir, id, false)); err != nil {
		os.Remove(tmp)
		return NullBlockId, err
	}
	return id, nil
}

func (mgr *FileManager) ReadBlock(id BlockId) ([]byte, error) {
	payload, err := os.ReadFile(MakeBlockFilename(mgr.dir, id, false))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tserr.NewBlockNotFoundNoCtx(id.String())
		}
		return nil, err
	}
	return payload, nil
}

func (mgr *FileManager) DeleteBlock(id BlockId) error {
	err := os.Remove(MakeBlockFilename(mgr.dir, id, false))
	if err != nil && os.IsNotExist(err) {
		return tserr.NewBlockNotFoundNoCtx(id.String())
	}
	return err
}

// TryUpdateBlockId raises the allocator so CreateBlock never reissues an
// id at or below last.
func (mgr *FileManager) TryUpdateBlockId(last BlockId) bool {
	return mgr.alloc.TryUpdate(last)
}

// Sync makes the renames of previously created blocks durable.
func (mgr *FileManager) Sync() error {
	f, err := os.Open(mgr.dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return Fdatasync(f)
}
