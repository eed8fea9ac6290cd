package whisper

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcmFromInt16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestPCMToFloat32(t *testing.T) {
	t.Parallel()

	got := pcmToFloat32(pcmFromInt16(0, 16384, -16384, 32767, -32768))
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPCMToFloat32MonoDownmix(t *testing.T) {
	t.Parallel()

	// Interleaved stereo frames: (16384, -16384) averages to 0,
	// (16384, 16384) averages to 0.5.
	got := pcmToFloat32Mono(pcmFromInt16(16384, -16384, 16384, 16384), 2)
	want := []float32{0, 0.5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPCMToFloat32MonoSingleChannel(t *testing.T) {
	t.Parallel()

	in := pcmFromInt16(100, -100, 3000)
	a := pcmToFloat32(in)
	b := pcmToFloat32Mono(in, 1)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("mono passthrough differs at %d: %v vs %v", i, a[i], b[i])
		}
	}
}
