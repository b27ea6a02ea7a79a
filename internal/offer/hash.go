package offer

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/0xthrpw/remand/internal/asset"
)

// DomainOffer is the domain prefix for offer key hashing. The version
// suffix allows the encoding layout to change without silent collisions.
const DomainOffer = "remand/offer/v1"

// Key computes the content-addressed key for an offer created at sequence
// number seq.
//
// The hash covers the full creation payload plus seq, so two byte-identical
// offers created back to back still get distinct keys, and a key can be
// recomputed from event data (the creation event carries both key and seq).
func Key(o *Offer, seq int64) string {
	payload := appendstring(nil, string(o.Owner))
	payload = asset.AppendTarget(payload, o.Target)
	payload = binary.BigEndian.AppendUint64(payload, uint64(o.Term))
	payload = binary.BigEndian.AppendUint64(payload, uint64(o.Deadline))
	payload = asset.AppendBundle(payload, o.Ask)
	payload = asset.AppendBundle(payload, o.Collateral)
	payload = asset.AppendBundle(payload, o.Fee)
	payload = binary.BigEndian.AppendUint64(payload, uint64(seq))
	return hashWithDomain(DomainOffer, payload)
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain || 0x00 || data). The null separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func appendstring(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}
