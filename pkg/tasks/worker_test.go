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
	"sync/atomic"
	"testing"

	"github.com/lni/goutils/leaktest"
	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
	"github.com/matrixorigin/tabletstore/pkg/testutils"
	"github.com/stretchr/testify/assert"
)

func TestFlushSchedulerDrainsOnStop(t *testing.T) {
	defer leaktest.AfterTest(t)()
	s := NewFlushScheduler(2)
	var done int32
	for i := 0; i < 100; i++ {
		assert.Nil(t, s.Schedule(func() {
			atomic.AddInt32(&done, 1)
		}))
	}
	s.Stop()
	assert.Equal(t, int32(100), atomic.LoadInt32(&done))
}

func TestFlushSchedulerStopped(t *testing.T) {
	defer leaktest.AfterTest(t)()
	s := NewFlushScheduler(1)
	s.Stop()
	err := s.Schedule(func() {})
	assert.True(t, tserr.IsTsErrCode(err, tserr.ErrInvalidState))
	// Stopping twice is harmless.
	s.Stop()

	assert.Panics(t, func() {
		NewFlushScheduler(0)
	})
}

func TestFlushSchedulerSurvivesPanics(t *testing.T) {
	defer leaktest.AfterTest(t)()
	s := NewFlushScheduler(1)
	defer s.Stop()
	assert.Nil(t, s.Schedule(func() {
		panic("task gone wrong")
	}))
	var done int32
	assert.Nil(t, s.Schedule(func() {
		atomic.AddInt32(&done, 1)
	}))
	testutils.WaitExpect(4000, func() bool {
		return atomic.LoadInt32(&done) == 1
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&done))
}
