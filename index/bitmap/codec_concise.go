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

// conciseCodec is CONCISE (COmpressed 'N' Composable Integer SEt): like
// WAH but a fill word may additionally carry one exception bit in its
// first 31-bit block, which is what lets CONCISE beat WAH on bitmaps
// whose runs are broken by occasional isolated bits. No pack library
// implements CONCISE, so this is hand-rolled (§4.3).
//
// Word layout (32 bits):
//
//	bit31 = 0           -> literal word, bits[0:31) = raw block
//	bit31 = 1, bit30 = f -> fill word with fill bit f
//	  bits[25:30)  = exception position (0..30), or 31 for "no exception"
//	  bits[0:25)   = run length in blocks
type conciseCodec struct{}

const (
	concisePosNone = 31
	conciseMaxRun  = 1<<25 - 1
)

func (conciseCodec) Encode(b *roaring.Bitmap) []byte {
	if b.IsEmpty() {
		return nil
	}
	groups := toGroups(b, wahGroupBits)

	var words []uint32
	i := 0
	for i < len(groups) {
		fillVal, exPos, ok := fillWithException(groups[i])
		if ok {
			run := uint32(1)
			j := i + 1
			for j < len(groups) && run < conciseMaxRun {
				fv, ok2 := allSameBit(groups[j])
				if !ok2 || fv != fillVal {
					break
				}
				run++
				j++
			}
			if run > 1 || exPos != concisePosNone {
				word := uint32(1) << 31
				if fillVal == 1 {
					word |= 1 << 30
				}
				word |= exPos << 25
				word |= run & conciseMaxRun
				words = append(words, word)
				i = j
				continue
			}
		}
		words = append(words, groups[i]&0x7FFFFFFF)
		i++
	}

	out := make([]byte, 4*len(words))
	for idx, w := range words {
		binary.LittleEndian.PutUint32(out[idx*4:], w)
	}
	return out
}

func (conciseCodec) Decode(data []byte) *roaring.Bitmap {
	out := roaring.New()
	pos := uint32(0)
	for off := 0; off+4 <= len(data); off += 4 {
		word := binary.LittleEndian.Uint32(data[off:])
		if word&(1<<31) == 0 {
			lit := word & 0x7FFFFFFF
			for b := uint32(0); b < wahGroupBits; b++ {
				if lit&(1<<b) != 0 {
					out.Add(pos + b)
				}
			}
			pos += wahGroupBits
			continue
		}

		fillVal := uint32(0)
		if word&(1<<30) != 0 {
			fillVal = 1
		}
		exPos := (word >> 25) & 0x1F
		run := word & conciseMaxRun

		for g := uint32(0); g < run; g++ {
			base := pos
			if fillVal == 1 {
				for b := uint32(0); b < wahGroupBits; b++ {
					bit := b
					if g == 0 && exPos != concisePosNone && bit == exPos {
						continue // exception flips this one bit to 0
					}
					out.Add(base + bit)
				}
			} else if g == 0 && exPos != concisePosNone {
				out.Add(base + exPos) // exception flips this one bit to 1
			}
			pos += wahGroupBits
		}
	}
	return out
}

// fillWithException reports whether g is all-0, all-1, or differs from
// one of those by exactly one bit (an "exceptional" block), returning the
// base fill value and the differing bit position (or concisePosNone).
func fillWithException(g uint32) (fillVal, exPos uint32, ok bool) {
	if g == 0 {
		return 0, concisePosNone, true
	}
	if g == 0x7FFFFFFF {
		return 1, concisePosNone, true
	}
	if popcount(g) == 1 {
		return 0, bitPos(g), true
	}
	if inv := (^g) & 0x7FFFFFFF; popcount(inv) == 1 {
		return 1, bitPos(inv), true
	}
	return 0, 0, false
}

func popcount(x uint32) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}

func bitPos(x uint32) uint32 {
	p := uint32(0)
	for x&1 == 0 {
		x >>= 1
		p++
	}
	return p
}
