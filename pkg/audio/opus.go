package audio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"layeh.com/gopus"
)

// Translated clips cross the wire as a sequence of Opus packets at 20 ms frame
// size, each prefixed with its length as a big-endian uint16.
const (
	opusFrameMs = 20

	// opusMaxPacketBytes is the buffer size handed to the encoder per packet.
	opusMaxPacketBytes = 4000
)

// OpusFrameSize returns the number of samples per channel in one 20 ms Opus
// frame at the given sample rate.
func OpusFrameSize(sampleRate int) int {
	return sampleRate * opusFrameMs / 1000
}

// OpusEncoder wraps a gopus Opus encoder and the length-prefixed clip framing
// used between the gateway and the client. One encoder instance maintains
// codec state across consecutive frames of a clip and must not be shared
// between goroutines.
type OpusEncoder struct {
	enc        *gopus.Encoder
	sampleRate int
	channels   int
	frameSize  int // samples per channel per 20 ms frame
}

// NewOpusEncoder creates an Opus encoder for the given PCM format.
func NewOpusEncoder(sampleRate, channels int) (*OpusEncoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus encoder: %w", err)
	}
	return &OpusEncoder{
		enc:        enc,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  OpusFrameSize(sampleRate),
	}, nil
}

// EncodeClip encodes interleaved 16-bit little-endian PCM into a framed Opus
// clip. The final frame is zero-padded to a full 20 ms so the decoder never
// sees a short packet.
func (e *OpusEncoder) EncodeClip(pcmBytes []byte) ([]byte, error) {
	pcm := BytesToInt16s(pcmBytes)
	samplesPerFrame := e.frameSize * e.channels

	var clip []byte
	for off := 0; off < len(pcm); off += samplesPerFrame {
		end := off + samplesPerFrame
		frame := pcm[off:min(end, len(pcm))]
		if len(frame) < samplesPerFrame {
			padded := make([]int16, samplesPerFrame)
			copy(padded, frame)
			frame = padded
		}
		packet, err := e.enc.Encode(frame, e.frameSize, opusMaxPacketBytes)
		if err != nil {
			return nil, fmt.Errorf("audio: opus encode: %w", err)
		}
		clip = appendPacket(clip, packet)
	}
	return clip, nil
}

// OpusDecoder wraps a gopus Opus decoder for a single clip. Decoders carry
// codec state between packets, so each clip gets a fresh instance which is
// discarded once the clip has been fully decoded.
type OpusDecoder struct {
	dec       *gopus.Decoder
	channels  int
	frameSize int
}

// NewOpusDecoder creates an Opus decoder for the given PCM format.
func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{
		dec:       dec,
		channels:  channels,
		frameSize: OpusFrameSize(sampleRate),
	}, nil
}

// DecodeClip decodes a framed Opus clip back into interleaved 16-bit
// little-endian PCM.
func (d *OpusDecoder) DecodeClip(clip []byte) ([]byte, error) {
	var pcm []byte
	for len(clip) > 0 {
		packet, rest, err := nextPacket(clip)
		if err != nil {
			return nil, err
		}
		clip = rest

		samples, err := d.dec.Decode(packet, d.frameSize, false)
		if err != nil {
			return nil, fmt.Errorf("audio: opus decode: %w", err)
		}
		pcm = append(pcm, Int16sToBytes(samples)...)
	}
	return pcm, nil
}

// appendPacket appends one length-prefixed Opus packet to clip.
func appendPacket(clip, packet []byte) []byte {
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(packet)))
	clip = append(clip, hdr[:]...)
	return append(clip, packet...)
}

// nextPacket splits the first length-prefixed Opus packet off clip.
func nextPacket(clip []byte) (packet, rest []byte, err error) {
	if len(clip) < 2 {
		return nil, nil, errors.New("audio: truncated opus clip header")
	}
	n := int(binary.BigEndian.Uint16(clip[:2]))
	if len(clip) < 2+n {
		return nil, nil, errors.New("audio: truncated opus packet")
	}
	return clip[2 : 2+n], clip[2+n:], nil
}
