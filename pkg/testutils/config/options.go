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

package config

import (
	"github.com/matrixorigin/tabletstore/pkg/options"
)

func WithFileMetaOpts(in *options.Options) (opts *options.Options) {
	if in == nil {
		opts = new(options.Options)
	} else {
		opts = in
	}
	opts.StoreCfg = new(options.StoreCfg)
	opts.StoreCfg.MetaBackend = options.MetaBackendFile
	return opts
}

// WithPebbleMetaOpts keeps the pebble footprint small enough for test
// runs that open many stores.
func WithPebbleMetaOpts(in *options.Options) (opts *options.Options) {
	if in == nil {
		opts = new(options.Options)
	} else {
		opts = in
	}
	opts.StoreCfg = new(options.StoreCfg)
	opts.StoreCfg.MetaBackend = options.MetaBackendPebble
	opts.PebbleCfg = new(options.PebbleCfg)
	opts.PebbleCfg.CacheSizeMB = 8
	opts.PebbleCfg.MemTableSizeMB = 4
	return opts
}

// WithSingleFlushWorkerOpts serializes background reclamation so tests
// can reason about ordering.
func WithSingleFlushWorkerOpts(in *options.Options) (opts *options.Options) {
	if in == nil {
		opts = new(options.Options)
	} else {
		opts = in
	}
	opts.SchedulerCfg = new(options.SchedulerCfg)
	opts.SchedulerCfg.FlushWorkers = 1
	return opts
}
