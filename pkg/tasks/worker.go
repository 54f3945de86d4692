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

package tasks

import (
	"sync"

	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
	"github.com/matrixorigin/tabletstore/pkg/logutil"
	"github.com/panjf2000/ants/v2"
)

// FlushScheduler runs post-flush background work, mostly orphaned
// block deletion. Scheduled funcs own their error handling: anything
// that escapes as a panic is logged here instead of killing the
// worker goroutine.
type FlushScheduler struct {
	mu      sync.RWMutex
	pool    *ants.Pool
	wg      sync.WaitGroup
	stopped bool
}

func NewFlushScheduler(workers int) *FlushScheduler {
	if workers <= 0 {
		panic("flush scheduler needs at least one worker")
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v interface{}) {
		logutil.Errorf("flush task panic: %v", v)
	}))
	if err != nil {
		panic(err)
	}
	return &FlushScheduler{pool: pool}
}

func (s *FlushScheduler) Schedule(fn func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return tserr.NewInvalidStateNoCtx("flush scheduler is stopped")
	}
	s.wg.Add(1)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		fn()
	})
	if err != nil {
		s.wg.Done()
		return tserr.NewInternalErrorNoCtx("schedule flush task: %s", err)
	}
	return nil
}

// Stop drains scheduled work, then releases the pool. Idempotent.
func (s *FlushScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
	s.pool.Release()
}
