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
	"bytes"

	"github.com/RoaringBitmap/roaring/v2"
)

// roaringCodec is a thin pass-through onto the roaring library's own
// container format (array/bitmap/run containers chosen per chunk), the
// only one of the four encodings not hand-rolled for this index (§4.3).
type roaringCodec struct{}

func (roaringCodec) Encode(b *roaring.Bitmap) []byte {
	if b.IsEmpty() {
		return nil
	}
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

func (roaringCodec) Decode(data []byte) *roaring.Bitmap {
	out := roaring.New()
	if len(data) == 0 {
		return out
	}
	_, _ = out.ReadFrom(bytes.NewReader(data))
	return out
}
