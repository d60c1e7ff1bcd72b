package driver

import (
	"crypto/sha256"
	"encoding/binary"
)

// Digest is a sha256 content digest.
type Digest [sha256.Size]byte

// IsZero reports whether the digest was never computed.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// HashBytes digests raw scenario content.
func HashBytes(b []byte) Digest {
	return sha256.Sum256(b)
}

// cacheKey mixes the content digest with the payload schema version so a
// format bump invalidates every stale entry by key, not just by the schema
// check on read.
func cacheKey(content Digest, schema uint16) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	var tag [2]byte
	binary.LittleEndian.PutUint16(tag[:], schema)
	_, _ = h.Write(tag[:])
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
