package audio

import (
	"encoding/binary"
	"math"
)

// RMS returns the root-mean-square loudness of a 16-bit signed little-endian
// PCM buffer, normalised to [0, 1] where 1 corresponds to a full-scale signal.
// Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}
