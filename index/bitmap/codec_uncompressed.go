// Copyright 2021 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package bitmap

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/willf/bitset"
)

// uncompressedCodec stores one bit per row id up to the highest set bit,
// packed into 64-bit words by willf/bitset. It is the baseline every other
// encoding is measured against for compression ratio (§4.3).
type uncompressedCodec struct{}

func (uncompressedCodec) Encode(b *roaring.Bitmap) []byte {
	if b.IsEmpty() {
		return nil
	}
	max := b.Maximum()
	bs := bitset.New(uint(max) + 1)
	it := b.Iterator()
	for it.HasNext() {
		bs.Set(uint(it.Next()))
	}
	words := bs.Bytes()
	out := make([]byte, 8*len(words))
	for i, w := range words {
		for j := 0; j < 8; j++ {
			out[i*8+j] = byte(w >> (8 * j))
		}
	}
	return out
}

func (uncompressedCodec) Decode(data []byte) *roaring.Bitmap {
	out := roaring.New()
	if len(data) == 0 {
		return out
	}
	nWords := (len(data) + 7) / 8
	words := make([]uint64, nWords)
	for i := 0; i < len(data); i++ {
		words[i/8] |= uint64(data[i]) << (8 * uint(i%8))
	}
	bs := bitset.From(words)
	for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
		out.Add(uint32(i))
	}
	return out
}
