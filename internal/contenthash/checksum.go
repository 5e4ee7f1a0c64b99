package contenthash

import (
	"encoding/binary"
	"encoding/hex"
	"math/bits"
)

const lanes = 8

// laneSeeds are the initial values of the checksum lanes.
var laneSeeds = [lanes]uint32{
	0x811c9dc5, 0x9e3779b9, 0x85ebca6b, 0xc2b2ae35,
	0x27d4eb2f, 0x165667b1, 0xd3a2646c, 0xfd7046c5,
}

// Checksum is the arithmetic fallback used when no digest is configured.
// It runs eight independent 32-bit rolling checksums over msg and returns
// their concatenation, Size hex characters like the digest path.
// It is deterministic but not collision resistant.
func Checksum(msg []byte) string {
	var h [lanes]uint32
	copy(h[:], laneSeeds[:])

	for pos, b := range msg {
		for l := 0; l < lanes; l++ {
			x := h[l] ^ uint32(b)
			x *= 0x01000193
			x = bits.RotateLeft32(x, 5+l) + uint32(pos)*uint32(2*l+1)
			h[l] = x
		}
	}

	var out [lanes * 4]byte
	for l := 0; l < lanes; l++ {
		binary.BigEndian.PutUint32(out[l*4:], fmix32(h[l]^uint32(len(msg))))
	}
	return hex.EncodeToString(out[:])
}

// fmix32 is the MurmurHash3 finaliser.
func fmix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
