// ABOUTME: Little-endian 16-bit PCM byte helpers
// ABOUTME: Moves samples between wire bytes and int16 slices
package convert

import "encoding/binary"

// Int16ToBytes appends samples to dst as little-endian 16-bit PCM
func Int16ToBytes(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// BytesToInt16 appends little-endian 16-bit PCM from data to dst. An odd
// trailing byte is ignored.
func BytesToInt16(dst []int16, data []byte) []int16 {
	n := len(data) / 2
	for i := 0; i < n; i++ {
		dst = append(dst, int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return dst
}

// PutInt16 writes samples into data in place. data must hold 2*len(samples) bytes.
func PutInt16(data []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
}
