package audio

import "time"

// BytesPerSample is the size of one 16-bit PCM sample.
const BytesPerSample = 2

// Frame is a chunk of raw capture audio as delivered by a [CaptureStream].
// PCM is 16-bit signed little-endian, interleaved when the stream has more
// than one channel.
type Frame struct {
	// PCM holds the raw sample data for this frame.
	PCM []byte

	// Time is the capture timestamp of the first sample in the frame.
	// Timestamps are monotonically non-decreasing within one stream.
	Time time.Time
}

// Duration returns the playback duration of pcm at the given sample rate and
// channel count. Returns 0 for invalid inputs.
func Duration(pcm []byte, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := len(pcm) / (BytesPerSample * channels)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to a slice of int16 PCM samples.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
