// Package namehash computes the 32-bit identifier hashes every reflected
// primitive is keyed by.
//
// Hashes are persisted in databases and compared across translation units,
// so the function is fixed: MurmurHash3 x86_32 with a zero seed.
package namehash

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// NoName is the hash of the empty name.
const NoName uint32 = 0

// String hashes an identifier. The empty string maps to NoName.
func String(text string) uint32 {
	if len(text) == 0 {
		return NoName
	}
	return murmur3.Sum32([]byte(text))
}

// Data hashes an arbitrary byte slice with the given seed.
func Data(data []byte, seed uint32) uint32 {
	return murmur3.Sum32WithSeed(data, seed)
}

// Mix folds hash b into hash a.
func Mix(a, b uint32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], b)
	return murmur3.Sum32WithSeed(buf[:], a)
}
