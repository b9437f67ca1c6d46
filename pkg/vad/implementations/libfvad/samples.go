package libfvad

import (
	"encoding/binary"
)

// decodeS16LE decodes little-endian 16-bit samples into dst, reusing its
// capacity.
func decodeS16LE(dst []int16, b []byte) []int16 {
	count := len(b) / 2
	if cap(dst) < count {
		dst = make([]int16, count)
	}
	dst = dst[:count]
	for idx := range dst {
		dst[idx] = int16(binary.LittleEndian.Uint16(b[2*idx:]))
	}
	return dst
}
