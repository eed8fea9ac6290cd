// Package coqui provides a TTS synthesizer backed by a locally-running
// standard Coqui TTS server (ghcr.io/coqui-ai/tts-cpu). Synthesis is one
// GET /api/tts call per utterance; the WAV response is stripped of its header
// and returned as raw PCM so the gateway can re-encode it for transport.
//
// Usage:
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithSpeaker("p225"),
//	    coqui.WithOutputSampleRate(48000),
//	)
//	clip, err := p.Synthesize(ctx, tts.Request{Text: "hallo", Language: "de"})
package coqui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dragoon4890/siren/pkg/audio"
	"github.com/dragoon4890/siren/pkg/provider/tts"
)

const (
	apiTTSEndpoint = "/api/tts"

	defaultTimeout = 30 * time.Second
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithSpeaker sets the speaker_id query parameter for multi-speaker models.
// Single-speaker models need none.
func WithSpeaker(id string) Option {
	return func(p *Provider) {
		p.speaker = id
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithOutputSampleRate configures the provider to resample synthesized PCM to
// the given rate (e.g., 48000 for Opus transport). When 0 (default) the PCM is
// returned at the model's native rate.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) {
		p.outputRate = rate
	}
}

// Provider implements tts.Synthesizer backed by a standard Coqui TTS server.
// It is stateless between calls and safe for concurrent use.
type Provider struct {
	serverURL  string
	speaker    string
	outputRate int
	httpClient *http.Client
}

// New creates a Provider that targets the Coqui TTS server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements tts.Synthesizer. The request's language is passed as
// the language_id query parameter for multilingual models.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Clip, error) {
	if strings.TrimSpace(req.Text) == "" {
		return tts.Clip{}, errors.New("coqui: empty text")
	}

	params := url.Values{}
	params.Set("text", req.Text)
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}
	if req.Language != "" {
		params.Set("language_id", req.Language)
	}

	reqURL := p.serverURL + apiTTSEndpoint + "?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("coqui: create tts request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tts.Clip{}, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("coqui: read WAV response: %w", err)
	}

	info, err := audio.DecodeWAV(wav)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("coqui: %w", err)
	}

	pcm := wav[info.DataOffset : info.DataOffset+info.DataSize]
	rate := info.SampleRate
	if p.outputRate > 0 && rate != p.outputRate && info.Channels == 1 {
		pcm = resampleMono16(pcm, rate, p.outputRate)
		rate = p.outputRate
	}

	return tts.Clip{
		Data:       pcm,
		Format:     tts.FormatPCM16,
		SampleRate: rate,
		Channels:   info.Channels,
	}, nil
}

// resampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. Good enough for speech; a proper polyphase filter
// would be overkill here.
func resampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := 0; i < dstSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}
