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

package options

import (
	"os"
	"path"

	"github.com/BurntSushi/toml"
	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
	"github.com/matrixorigin/tabletstore/pkg/logutil"
)

const (
	MetaBackendFile   = "file"
	MetaBackendPebble = "pebble"
)

const (
	DefaultMetaBackend    = MetaBackendFile
	DefaultFlushWorkers   = 4
	DefaultCacheSizeMB    = int64(128)
	DefaultMemTableSizeMB = int64(64)

	defaultMetaSubDir  = "meta"
	defaultBlockSubDir = "blocks"
)

type StoreCfg struct {
	MetaDir     string `toml:"meta-dir"`
	MetaBackend string `toml:"meta-backend"`
	BlockDir    string `toml:"block-dir"`
}

type SchedulerCfg struct {
	FlushWorkers int `toml:"flush-workers"`
}

type PebbleCfg struct {
	CacheSizeMB    int64 `toml:"cache-size-mb"`
	MemTableSizeMB int64 `toml:"memtable-size-mb"`
}

type Options struct {
	StoreCfg     *StoreCfg          `toml:"store-cfg"`
	SchedulerCfg *SchedulerCfg      `toml:"scheduler-cfg"`
	PebbleCfg    *PebbleCfg         `toml:"pebble-cfg"`
	LogCfg       *logutil.LogConfig `toml:"log-cfg"`
}

func (o *Options) FillDefaults(dirname string) *Options {
	if o == nil {
		o = &Options{}
	}

	if o.StoreCfg == nil {
		o.StoreCfg = &StoreCfg{}
	}
	if o.StoreCfg.MetaDir == "" {
		o.StoreCfg.MetaDir = path.Join(dirname, defaultMetaSubDir)
	}
	if o.StoreCfg.MetaBackend == "" {
		o.StoreCfg.MetaBackend = DefaultMetaBackend
	}
	if o.StoreCfg.BlockDir == "" {
		o.StoreCfg.BlockDir = path.Join(dirname, defaultBlockSubDir)
	}

	if o.SchedulerCfg == nil {
		o.SchedulerCfg = &SchedulerCfg{}
	}
	if o.SchedulerCfg.FlushWorkers == 0 {
		o.SchedulerCfg.FlushWorkers = DefaultFlushWorkers
	}

	if o.PebbleCfg == nil {
		o.PebbleCfg = &PebbleCfg{}
	}
	if o.PebbleCfg.CacheSizeMB == 0 {
		o.PebbleCfg.CacheSizeMB = DefaultCacheSizeMB
	}
	if o.PebbleCfg.MemTableSizeMB == 0 {
		o.PebbleCfg.MemTableSizeMB = DefaultMemTableSizeMB
	}

	if o.LogCfg == nil {
		o.LogCfg = &logutil.LogConfig{}
	}

	return o
}

// LoadOptions reads a toml config file. A missing file is not an
// error: callers run FillDefaults on the result either way.
func LoadOptions(file string) (*Options, error) {
	o := &Options{}
	if _, err := toml.DecodeFile(file, o); err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return nil, tserr.NewBadConfigNoCtx("%s: %s", file, err)
	}
	return o, nil
}
