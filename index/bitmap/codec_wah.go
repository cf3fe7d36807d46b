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
	"encoding/binary"

	"github.com/RoaringBitmap/roaring/v2"
)

// wahCodec implements word-aligned hybrid encoding over 32-bit words: a
// literal word has its top bit clear and carries 31 bits of raw data; a
// fill word has its top bit set, bit 30 holds the fill value (0 or 1), and
// bits 0-29 count how many consecutive all-0 or all-1 31-bit groups it
// stands for. Runs of identical groups collapse to one fill word; every
// other group is stored literally. Grounded on the WAH scheme spec.md
// §4.3 names alongside CONCISE and Roaring.
type wahCodec struct{}

const wahGroupBits = 31

func (wahCodec) Encode(b *roaring.Bitmap) []byte {
	if b.IsEmpty() {
		return nil
	}
	groups := toGroups(b, wahGroupBits)

	var words []uint32
	i := 0
	for i < len(groups) {
		g := groups[i]
		if fillVal, ok := allSameBit(g); ok {
			run := uint32(1)
			j := i + 1
			for j < len(groups) {
				if fv, ok2 := allSameBit(groups[j]); ok2 && fv == fillVal {
					run++
					j++
					continue
				}
				break
			}
			if run > 1 {
				word := uint32(1) << 31
				if fillVal == 1 {
					word |= 1 << 30
				}
				word |= run & 0x3FFFFFFF
				words = append(words, word)
				i = j
				continue
			}
		}
		words = append(words, g&0x7FFFFFFF)
		i++
	}

	out := make([]byte, 4*len(words))
	for idx, w := range words {
		binary.LittleEndian.PutUint32(out[idx*4:], w)
	}
	return out
}

func (wahCodec) Decode(data []byte) *roaring.Bitmap {
	out := roaring.New()
	pos := uint32(0)
	for off := 0; off+4 <= len(data); off += 4 {
		word := binary.LittleEndian.Uint32(data[off:])
		if word&(1<<31) != 0 {
			fillVal := uint32(0)
			if word&(1<<30) != 0 {
				fillVal = 1
			}
			run := word & 0x3FFFFFFF
			if fillVal == 1 {
				for g := uint32(0); g < run; g++ {
					base := pos
					for b := uint32(0); b < wahGroupBits; b++ {
						out.Add(base + b)
					}
					pos += wahGroupBits
				}
			} else {
				pos += run * wahGroupBits
			}
			continue
		}
		lit := word & 0x7FFFFFFF
		for b := uint32(0); b < wahGroupBits; b++ {
			if lit&(1<<b) != 0 {
				out.Add(pos + b)
			}
		}
		pos += wahGroupBits
	}
	return out
}

// toGroups splits b's bits (0..max) into fixed-width groups, each packed
// low-bit-first into a uint32.
func toGroups(b *roaring.Bitmap, groupBits uint32) []uint32 {
	max := b.Maximum()
	nGroups := int(uint32(max)/groupBits) + 1
	groups := make([]uint32, nGroups)
	it := b.Iterator()
	for it.HasNext() {
		v := it.Next()
		g := v / groupBits
		bit := v % groupBits
		groups[g] |= 1 << bit
	}
	return groups
}

func allSameBit(g uint32) (uint32, bool) {
	if g == 0 {
		return 0, true
	}
	if g == 0x7FFFFFFF {
		return 1, true
	}
	return 0, false
}
