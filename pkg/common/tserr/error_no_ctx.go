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

import "context"

// NoCtx variants for the storage engine code paths, which do not
// thread a request context.

func NewInternalErrorNoCtx(msg string, args ...any) *Error {
	return NewInternalError(context.Background(), msg, args...)
}

func NewInvalidInputNoCtx(msg string, args ...any) *Error {
	return NewInvalidInput(context.Background(), msg, args...)
}

func NewInvalidStateNoCtx(msg string, args ...any) *Error {
	return NewInvalidState(context.Background(), msg, args...)
}

func NewBadSchemaNoCtx(msg string, args ...any) *Error {
	return NewBadSchema(context.Background(), msg, args...)
}

func NewBadConfigNoCtx(msg string, args ...any) *Error {
	return NewBadConfig(context.Background(), msg, args...)
}

func NewBlockNotFoundNoCtx(id string) *Error {
	return NewBlockNotFound(context.Background(), id)
}

func NewMetaNotFoundNoCtx(name string) *Error {
	return NewMetaNotFound(context.Background(), name)
}

func NewChecksumMismatchNoCtx(expected, got uint64) *Error {
	return NewChecksumMismatch(context.Background(), expected, got)
}

func NewSubsequenceNotFoundNoCtx(requested, actual string) *Error {
	return NewSubsequenceNotFound(context.Background(), requested, actual)
}

func NewRowsetNotFoundNoCtx(id uint64) *Error {
	return NewRowsetNotFound(context.Background(), id)
}

func NewStaleSuperblockNoCtx(version, stored uint64) *Error {
	return NewStaleSuperblock(context.Background(), version, stored)
}
