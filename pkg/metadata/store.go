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
	"os"
	"path"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/matrixorigin/tabletstore/pkg/blockio"
	"github.com/matrixorigin/tabletstore/pkg/common"
	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
	"github.com/matrixorigin/tabletstore/pkg/logutil"
	"github.com/matrixorigin/tabletstore/pkg/options"
)

// MetaStore persists the tablet superblock. The version is the
// tablet's flush counter: a save whose version does not advance the
// last stored one fails with ErrStaleSuperblock, which catches two
// tablet handles pointed at the same store.
type MetaStore interface {
	SaveSuperblock(version uint64, payload []byte) error
	LoadSuperblock() (version uint64, payload []byte, err error)
	Close() error
}

// OpenMetaStore opens the superblock backend named by the options.
func OpenMetaStore(opts *options.Options) (MetaStore, error) {
	switch opts.StoreCfg.MetaBackend {
	case options.MetaBackendFile:
		return NewFileStore(opts.StoreCfg.MetaDir)
	case options.MetaBackendPebble:
		return NewPebbleStore(opts.StoreCfg.MetaDir, opts.PebbleCfg)
	default:
		return nil, tserr.NewBadConfigNoCtx("unknown meta backend: %s", opts.StoreCfg.MetaBackend)
	}
}

const superblockFilename = "superblock"

// footer: version uint64 + xxhash of everything before the checksum
const superblockFooterSize = 16

// FileStore keeps the superblock in a single file, swapped in with
// write-temp + rename + fdatasync of the file and its directory.
type FileStore struct {
	sync.Mutex
	dir     string
	version uint64
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	s := &FileStore{dir: dir}
	tmp := s.filename() + blockio.TmpSuffix
	if _, err := os.Stat(tmp); err == nil {
		logutil.Infof("removing stale superblock temp: %s", tmp)
		if err = os.Remove(tmp); err != nil {
			return nil, err
		}
	}
	if version, _, err := s.LoadSuperblock(); err == nil {
		s.version = version
	} else if !tserr.IsTsErrCode(err, tserr.ErrMetaNotFound) {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) filename() string {
	return path.Join(s.dir, superblockFilename)
}

func (s *FileStore) SaveSuperblock(version uint64, payload []byte) (err error) {
	s.Lock()
	defer s.Unlock()
	if version <= s.version {
		return tserr.NewStaleSuperblockNoCtx(version, s.version)
	}

	buf := make([]byte, 0, len(payload)+superblockFooterSize)
	buf = append(buf, payload...)
	buf = append(buf, common.EncodeUint64(&version)...)
	sum := xxhash.Sum64(buf)
	buf = append(buf, common.EncodeUint64(&sum)...)

	tmp := s.filename() + blockio.TmpSuffix
	var w *os.File
	if w, err = os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666); err != nil {
		return
	}
	if _, err = w.Write(buf); err != nil {
		w.Close()
		os.Remove(tmp)
		return
	}
	if err = blockio.Fdatasync(w); err != nil {
		w.Close()
		os.Remove(tmp)
		return
	}
	if err = w.Close(); err != nil {
		os.Remove(tmp)
		return
	}
	if err = os.Rename(tmp, s.filename()); err != nil {
		os.Remove(tmp)
		return
	}
	if err = s.syncDir(); err != nil {
		return
	}
	s.version = version
	return
}

func (s *FileStore) LoadSuperblock() (version uint64, payload []byte, err error) {
	buf, err := os.ReadFile(s.filename())
	if err != nil {
		if os.IsNotExist(err) {
			err = tserr.NewMetaNotFoundNoCtx(superblockFilename)
		}
		return
	}
	if len(buf) < superblockFooterSize {
		err = tserr.NewInternalErrorNoCtx("superblock truncated to %d bytes", len(buf))
		return
	}
	stored := common.DecodeFixed[uint64](buf[len(buf)-8:])
	sum := xxhash.Sum64(buf[:len(buf)-8])
	if stored != sum {
		err = tserr.NewChecksumMismatchNoCtx(stored, sum)
		return
	}
	version = common.DecodeFixed[uint64](buf[len(buf)-16 : len(buf)-8])
	payload = buf[:len(buf)-superblockFooterSize]
	return
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) syncDir() error {
	d, err := os.Open(s.dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return blockio.Fdatasync(d)
}
