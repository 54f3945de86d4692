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
	"fmt"
)

const (
	// 0 - 99 is OK. They do not contain info, and are special handled
	// using a static instance, no alloc.
	Ok            uint16 = 0
	OkExpectedEOF uint16 = 2
	OkExpectedDup uint16 = 4

	OkMax uint16 = 99

	// Group 1: internal errors
	ErrStart    uint16 = 20100
	ErrInternal uint16 = 20101
	ErrNYI      uint16 = 20102

	// Group 3: invalid input
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state and io errors
	ErrInvalidState     uint16 = 20400
	ErrBadSchema        uint16 = 20401
	ErrBlockNotFound    uint16 = 20402
	ErrMetaNotFound     uint16 = 20403
	ErrChecksumMismatch uint16 = 20404

	// Group 6: storage engine
	ErrSubsequenceNotFound uint16 = 20600
	ErrRowsetNotFound      uint16 = 20601
	ErrStaleSuperblock     uint16 = 20602

	// ErrEnd, the max value of tabletstore error code
	ErrEnd uint16 = 65535
)

type tsErrorMsgItem struct {
	errorCode        uint16
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]tsErrorMsgItem{
	Ok:            {Ok, "ok"},
	OkExpectedEOF: {OkExpectedEOF, "expected end of file"},
	OkExpectedDup: {OkExpectedDup, "expected duplicate"},

	ErrInternal: {ErrInternal, "internal error: %s"},
	ErrNYI:      {ErrNYI, "%s is not yet implemented"},

	ErrBadConfig:    {ErrBadConfig, "invalid configuration: %s"},
	ErrInvalidInput: {ErrInvalidInput, "invalid input: %s"},

	ErrInvalidState:     {ErrInvalidState, "invalid state %s"},
	ErrBadSchema:        {ErrBadSchema, "bad schema: %s"},
	ErrBlockNotFound:    {ErrBlockNotFound, "block %s not found"},
	ErrMetaNotFound:     {ErrMetaNotFound, "metadata %s not found"},
	ErrChecksumMismatch: {ErrChecksumMismatch, "checksum mismatch: expected %x, got %x"},

	ErrSubsequenceNotFound: {ErrSubsequenceNotFound, "cannot find delta subsequence <%s> in <%s>"},
	ErrRowsetNotFound:      {ErrRowsetNotFound, "rowset %d not found"},
	ErrStaleSuperblock:     {ErrStaleSuperblock, "stale superblock: version %d is behind stored version %d"},
}

type Error struct {
	code    uint16
	message string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Succeeded() bool {
	return e.code < OkMax
}

// IsTsErrCode checks if the error is a tabletstore error with the
// given error code. A nil error matches Ok.
func IsTsErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}
	me, ok := e.(*Error)
	if !ok {
		return false
	}
	return me.code == rc
}

func newError(ctx context.Context, code uint16, args ...any) *Error {
	var err *Error
	item, has := errorMsgRefer[code]
	if !has {
		panic(fmt.Sprintf("not exist error code: %d", code))
	}
	if len(args) == 0 {
		err = &Error{
			code:    code,
			message: item.errorMsgOrFormat,
		}
	} else {
		err = &Error{
			code:    code,
			message: fmt.Sprintf(item.errorMsgOrFormat, args...),
		}
	}
	return err
}

var errOkExpectedEOF = Error{OkExpectedEOF, "expected end of file"}
var errOkExpectedDup = Error{OkExpectedDup, "expected duplicate"}

// GetOkExpectedEOF returns a static instance, to be used in
// loop-termination checks without allocation.
func GetOkExpectedEOF() *Error {
	return &errOkExpectedEOF
}

func GetOkExpectedDup() *Error {
	return &errOkExpectedDup
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInternal, xmsg)
}

func NewNYI(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrNYI, xmsg)
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrBadConfig, xmsg)
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidInput, xmsg)
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidState, xmsg)
}

func NewBadSchema(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrBadSchema, xmsg)
}

func NewBlockNotFound(ctx context.Context, id string) *Error {
	return newError(ctx, ErrBlockNotFound, id)
}

func NewMetaNotFound(ctx context.Context, name string) *Error {
	return newError(ctx, ErrMetaNotFound, name)
}

func NewChecksumMismatch(ctx context.Context, expected, got uint64) *Error {
	return newError(ctx, ErrChecksumMismatch, expected, got)
}

func NewSubsequenceNotFound(ctx context.Context, requested, actual string) *Error {
	return newError(ctx, ErrSubsequenceNotFound, requested, actual)
}

func NewRowsetNotFound(ctx context.Context, id uint64) *Error {
	return newError(ctx, ErrRowsetNotFound, id)
}

func NewStaleSuperblock(ctx context.Context, version, stored uint64) *Error {
	return newError(ctx, ErrStaleSuperblock, version, stored)
}
