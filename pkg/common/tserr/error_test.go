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

package tserr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTsErrCode(t *testing.T) {
	require.True(t, IsTsErrCode(nil, Ok))
	require.False(t, IsTsErrCode(nil, ErrInternal))

	err := NewInternalError(context.TODO(), "oops %d", 42)
	require.True(t, IsTsErrCode(err, ErrInternal))
	require.False(t, IsTsErrCode(err, ErrInvalidInput))
	assert.Equal(t, "internal error: oops 42", err.Error())
	assert.Equal(t, ErrInternal, err.ErrorCode())
}

func TestSubsequenceNotFound(t *testing.T) {
	err := NewSubsequenceNotFoundNoCtx("2,3", "1,2,4")
	require.True(t, IsTsErrCode(err, ErrSubsequenceNotFound))
	assert.Equal(t, "cannot find delta subsequence <2,3> in <1,2,4>", err.Error())
}

func TestStaticInstances(t *testing.T) {
	assert.Same(t, GetOkExpectedEOF(), GetOkExpectedEOF())
	assert.True(t, GetOkExpectedEOF().Succeeded())
	assert.True(t, IsTsErrCode(GetOkExpectedDup(), OkExpectedDup))
	assert.False(t, NewRowsetNotFoundNoCtx(7).Succeeded())
}

func TestUnknownCodePanics(t *testing.T) {
	defer func() {
		require.NotNil(t, recover())
	}()
	newError(context.TODO(), uint16(31222))
}
