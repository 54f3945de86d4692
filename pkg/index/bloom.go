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

package index

import (
	"bytes"
	"strconv"

	"github.com/FastFilter/xorfilter"
	"github.com/cespare/xxhash/v2"
	"github.com/matrixorigin/tabletstore/pkg/common"
	"github.com/matrixorigin/tabletstore/pkg/common/tserr"
	"github.com/samber/lo"
)

const fuseFilterError = "too many iterations, you probably have duplicate keys"

// StaticFilter answers approximate membership over a frozen key set.
// False positives are possible, false negatives are not.
type StaticFilter interface {
	MayContainsKey(key []byte) (bool, error)
	Marshal() ([]byte, error)
	Unmarshal(buf []byte) error
	String() string
}

func hashV1(v []byte) uint64 {
	return xxhash.Sum64(v)
}

type bloomFilter struct {
	xorfilter.BinaryFuse8
}

func NewEmptyBloomFilter() StaticFilter {
	return &bloomFilter{}
}

func DecodeBloomFilter(data []byte) (StaticFilter, error) {
	sf := &bloomFilter{}
	if err := sf.Unmarshal(data); err != nil {
		return nil, err
	}
	return sf, nil
}

// NewBloomFilter builds a filter over the given keys in one shot.
func NewBloomFilter(keys [][]byte) (StaticFilter, error) {
	hashes := make([]uint64, 0, len(keys))
	for _, key := range keys {
		hashes = append(hashes, hashV1(key))
	}
	return buildFuseFilter(hashes)
}

func buildFuseFilter(hashes []uint64) (*bloomFilter, error) {
	inner, err := xorfilter.PopulateBinaryFuse8(hashes)
	if err != nil {
		if err.Error() != fuseFilterError {
			return nil, tserr.NewInternalErrorNoCtx("populate fuse filter: %s", err)
		}
		// Too many duplicate hashes starve the construction. Dedup and
		// retry once; a multiset and a set filter the same.
		hashes = lo.Uniq(hashes)
		if inner, err = xorfilter.PopulateBinaryFuse8(hashes); err != nil {
			return nil, tserr.NewInternalErrorNoCtx("populate fuse filter: %s", err)
		}
	}
	sf := &bloomFilter{}
	sf.BinaryFuse8 = *inner
	return sf, nil
}

func (filter *bloomFilter) MayContainsKey(key []byte) (bool, error) {
	return filter.Contains(hashV1(key)), nil
}

func (filter *bloomFilter) Marshal() (buf []byte, err error) {
	var w bytes.Buffer
	if _, err = common.WriteValues(
		&w,
		filter.Seed,
		filter.SegmentLength,
		filter.SegmentLengthMask,
		filter.SegmentCount,
		filter.SegmentCountLength); err != nil {
		return
	}
	if _, err = w.Write(common.EncodeSlice(filter.Fingerprints)); err != nil {
		return
	}
	buf = w.Bytes()
	return
}

func (filter *bloomFilter) Unmarshal(buf []byte) error {
	if len(buf) < 24 {
		return tserr.NewInternalErrorNoCtx("fuse filter truncated to %d bytes", len(buf))
	}
	filter.Seed = common.DecodeFixed[uint64](buf[:8])
	buf = buf[8:]
	filter.SegmentLength = common.DecodeFixed[uint32](buf[:4])
	buf = buf[4:]
	filter.SegmentLengthMask = common.DecodeFixed[uint32](buf[:4])
	buf = buf[4:]
	filter.SegmentCount = common.DecodeFixed[uint32](buf[:4])
	buf = buf[4:]
	filter.SegmentCountLength = common.DecodeFixed[uint32](buf[:4])
	buf = buf[4:]
	filter.Fingerprints = common.DecodeSlice[uint8](buf)
	return nil
}

func (filter *bloomFilter) String() string {
	s := "<BF>\n"
	s += strconv.Itoa(int(filter.SegmentCount))
	s += "\n"
	s += strconv.Itoa(int(filter.SegmentCountLength))
	s += "\n"
	s += strconv.Itoa(int(filter.SegmentLength))
	s += "\n"
	s += strconv.Itoa(int(filter.SegmentLengthMask))
	s += "\n"
	s += strconv.Itoa(len(filter.Fingerprints))
	s += "\n"
	s += "</BF>"
	return s
}
