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
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/matrixorigin/tabletstore/pkg/common"
	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
	"github.com/matrixorigin/tabletstore/pkg/logutil"
	"github.com/matrixorigin/tabletstore/pkg/options"
)

var (
	superblockKey        = []byte("/meta/superblock")
	superblockVersionKey = []byte("/meta/superblock_version")
)

// pebbleLogger routes pebble's own logging through the global logger.
type pebbleLogger struct{}

func (l *pebbleLogger) Infof(format string, args ...interface{}) {
	logutil.Infof("[pebble] "+format, args...)
}

func (l *pebbleLogger) Fatalf(format string, args ...interface{}) {
	logutil.Fatalf("[pebble] "+format, args...)
}

// PebbleStore keeps the superblock in a pebble DB under a fixed key,
// with the version counter under a sibling key. Saves go through a
// synced batch so payload and version move together.
type PebbleStore struct {
	sync.Mutex
	db      *pebble.DB
	version uint64
}

func NewPebbleStore(dir string, cfg *options.PebbleCfg) (*PebbleStore, error) {
	cache := pebble.NewCache(cfg.CacheSizeMB << 20)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:        cache,
		MemTableSize: int(cfg.MemTableSizeMB << 20),
		Logger:       &pebbleLogger{},
		Levels: []pebble.LevelOptions{
			{FilterPolicy: bloom.FilterPolicy(10)},
		},
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	s := &PebbleStore{db: db}
	if s.version, err = s.readVersion(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PebbleStore) readVersion() (uint64, error) {
	v, closer, err := s.db.Get(superblockVersionKey)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	version := common.DecodeFixed[uint64](v)
	closer.Close()
	return version, nil
}

func (s *PebbleStore) SaveSuperblock(version uint64, payload []byte) error {
	s.Lock()
	defer s.Unlock()
	if version <= s.version {
		return tserr.NewStaleSuperblockNoCtx(version, s.version)
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(superblockKey, payload, nil); err != nil {
		return err
	}
	if err := batch.Set(superblockVersionKey, common.EncodeUint64(&version), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	s.version = version
	return nil
}

func (s *PebbleStore) LoadSuperblock() (version uint64, payload []byte, err error) {
	v, closer, err := s.db.Get(superblockKey)
	if err == pebble.ErrNotFound {
		err = tserr.NewMetaNotFoundNoCtx(string(superblockKey))
		return
	}
	if err != nil {
		return
	}
	payload = make([]byte, len(v))
	copy(payload, v)
	closer.Close()
	if version, err = s.readVersion(); err != nil {
		return
	}
	return
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
