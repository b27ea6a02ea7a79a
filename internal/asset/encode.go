package asset

import "encoding/binary"

// Canonical byte encoding for content-addressed offer keys.
//
// The layout is fixed so the same ref always encodes to the same bytes:
// kind (1 byte), contract (length-prefixed UTF-8), item id (8 bytes BE),
// quantity (32 bytes BE, zero for unique refs). Bundles are count-prefixed.
// Any layout change requires a new hashing domain version.

// AppendRef appends the canonical encoding of r to dst.
func AppendRef(dst []byte, r Ref) []byte {
	dst = append(dst, byte(r.Kind))
	dst = appendString(dst, string(r.Contract))
	dst = binary.BigEndian.AppendUint64(dst, r.ID)
	var qty [32]byte
	if r.Kind != Unique && r.Quantity != nil {
		qty = r.Quantity.Bytes32()
	}
	return append(dst, qty[:]...)
}

// AppendBundle appends the canonical encoding of b to dst.
func AppendBundle(dst []byte, b Bundle) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(b)))
	for _, r := range b {
		dst = AppendRef(dst, r)
	}
	return dst
}

// AppendTarget appends the canonical encoding of t to dst.
// The open flag is encoded explicitly so an open target can never collide
// with a specific one.
func AppendTarget(dst []byte, t Target) []byte {
	if t.open {
		dst = append(dst, 1)
		return appendString(dst, "")
	}
	dst = append(dst, 0)
	return appendString(dst, string(t.addr))
}

func appendString(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}
