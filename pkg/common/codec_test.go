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

package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeFixed(t *testing.T) {
	v64 := uint64(0xDEADBEEF00C0FFEE)
	buf := EncodeFixed(v64)
	assert.Equal(t, 8, len(buf))
	assert.Equal(t, v64, DecodeFixed[uint64](buf))

	v16 := uint16(0xBEEF)
	assert.Equal(t, v16, DecodeFixed[uint16](EncodeFixed(v16)))

	// The pointer encoders alias the value, so reads through them
	// decode in place.
	target := uint32(0)
	src := uint32(42)
	copy(EncodeUint32(&target), EncodeFixed(src))
	assert.Equal(t, src, target)
}

func TestEncodeDecodeSlice(t *testing.T) {
	vals := []uint64{1, 2, 3, 0xFFFFFFFFFFFFFFFF}
	buf := EncodeSlice(vals)
	assert.Equal(t, 32, len(buf))
	assert.Equal(t, vals, DecodeSlice[uint64](buf))

	assert.Equal(t, 0, len(EncodeSlice[uint64](nil)))
	assert.Equal(t, 0, len(DecodeSlice[uint64](nil)))
}

func TestWriteValues(t *testing.T) {
	var w bytes.Buffer
	n, err := WriteValues(&w, uint8(1), uint16(2), uint32(3), uint64(4), true, []byte{9, 9})
	assert.Nil(t, err)
	assert.Equal(t, int64(1+2+4+8+1+2), n)
	assert.Equal(t, w.Len(), int(n))

	r := bytes.NewReader(w.Bytes())
	var v8 uint8
	var v16 uint16
	var v32 uint32
	var v64 uint64
	_, err = r.Read(EncodeUint8(&v8))
	assert.Nil(t, err)
	_, err = r.Read(EncodeUint16(&v16))
	assert.Nil(t, err)
	_, err = r.Read(EncodeUint32(&v32))
	assert.Nil(t, err)
	_, err = r.Read(EncodeUint64(&v64))
	assert.Nil(t, err)
	assert.Equal(t, uint8(1), v8)
	assert.Equal(t, uint16(2), v16)
	assert.Equal(t, uint32(3), v32)
	assert.Equal(t, uint64(4), v64)
}

func TestStringCodec(t *testing.T) {
	var w bytes.Buffer
	n, err := WriteString("tablet-7", &w)
	assert.Nil(t, err)
	assert.Equal(t, int64(2+8), n)

	str, rn, err := ReadString(bytes.NewReader(w.Bytes()))
	assert.Nil(t, err)
	assert.Equal(t, n, rn)
	assert.Equal(t, "tablet-7", str)

	// Short input fails instead of returning a truncated string.
	_, _, err = ReadString(bytes.NewReader(w.Bytes()[:4]))
	assert.NotNil(t, err)

	w.Reset()
	_, err = WriteBytes([]byte{1, 2, 3}, &w)
	assert.Nil(t, err)
	b, _, err := ReadBytes(bytes.NewReader(w.Bytes()))
	assert.Nil(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	w.Reset()
	_, err = WriteString("", &w)
	assert.Nil(t, err)
	str, rn, err = ReadString(bytes.NewReader(w.Bytes()))
	assert.Nil(t, err)
	assert.Equal(t, int64(2), rn)
	assert.Equal(t, "", str)
}
