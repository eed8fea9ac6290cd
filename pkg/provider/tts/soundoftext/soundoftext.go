// Package soundoftext provides a TTS synthesizer backed by the Sound of Text
// API (https://soundoftext.com), which fronts Google's TTS engine.
//
// Synthesis is a three-step exchange: POST the text to /sounds, poll
// GET /sounds/{id} until the status is "Done", then download the MP3 from the
// returned location. The whole exchange runs inside one Synthesize call.
//
// Usage:
//
//	p := soundoftext.New()
//	clip, err := p.Synthesize(ctx, tts.Request{Text: "hello", Language: "en"})
package soundoftext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dragoon4890/siren/pkg/provider/tts"
)

const (
	defaultBaseURL      = "https://api.soundoftext.com"
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 1500 * time.Millisecond
	defaultMaxPolls     = 20

	// engine is the only engine the API currently offers.
	engine = "Google"

	fallbackVoice = "en-US"
)

// voiceMap maps short language codes to the Sound of Text voice identifiers.
// Unlisted languages fall back to en-US.
var voiceMap = map[string]string{
	"en":    "en-US",
	"en-us": "en-US",
	"en-gb": "en-GB",
	"ja":    "ja-JP",
	"ja-jp": "ja-JP",
	"de":    "de-DE",
	"fr":    "fr-FR",
	"es":    "es-ES",
	"it":    "it-IT",
	"pt":    "pt-BR",
	"pt-br": "pt-BR",
	"ru":    "ru-RU",
	"ko":    "ko-KR",
	"zh":    "zh-CN",
	"nl":    "nl-NL",
	"sv":    "sv-SE",
	"no":    "nb-NO",
	"da":    "da-DK",
	"fi":    "fi-FI",
	"pl":    "pl-PL",
	"tr":    "tr-TR",
	"ar":    "ar-SA",
	"hi":    "hi-IN",
	"th":    "th-TH",
	"vi":    "vi-VN",
}

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithPollInterval sets the delay between status checks. Defaults to 1.5 s.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) {
		p.pollInterval = d
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Synthesizer backed by the Sound of Text API. It is
// stateless between calls and safe for concurrent use.
type Provider struct {
	baseURL      string
	pollInterval time.Duration
	maxPolls     int
	httpClient   *http.Client
}

// New creates a Provider targeting the public Sound of Text API.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL:      defaultBaseURL,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Voice returns the Sound of Text voice identifier for a language code.
func Voice(lang string) string {
	if v, ok := voiceMap[strings.ToLower(lang)]; ok {
		return v
	}
	return fallbackVoice
}

// createRequest is the JSON body for POST /sounds.
type createRequest struct {
	Engine string     `json:"engine"`
	Data   createData `json:"data"`
}

type createData struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// createResponse is the JSON body returned by POST /sounds.
type createResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// statusResponse is the JSON body returned by GET /sounds/{id}.
type statusResponse struct {
	Status   string `json:"status"`
	Location string `json:"location"`
	Message  string `json:"message"`
}

// Synthesize implements tts.Synthesizer. It submits the text, polls until the
// sound is ready, and downloads the MP3.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Clip, error) {
	if strings.TrimSpace(req.Text) == "" {
		return tts.Clip{}, errors.New("soundoftext: empty text")
	}

	id, err := p.create(ctx, req.Text, Voice(req.Language))
	if err != nil {
		return tts.Clip{}, err
	}

	location, err := p.awaitReady(ctx, id)
	if err != nil {
		return tts.Clip{}, err
	}

	mp3, err := p.download(ctx, location)
	if err != nil {
		return tts.Clip{}, err
	}

	return tts.Clip{Data: mp3, Format: tts.FormatMP3}, nil
}

// create submits the synthesis job and returns its ID.
func (p *Provider) create(ctx context.Context, text, voice string) (string, error) {
	body, err := json.Marshal(createRequest{
		Engine: engine,
		Data:   createData{Text: text, Voice: voice},
	})
	if err != nil {
		return "", fmt.Errorf("soundoftext: marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/sounds", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("soundoftext: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("soundoftext: POST /sounds: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("soundoftext: POST /sounds returned status %d", resp.StatusCode)
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("soundoftext: decode create response: %w", err)
	}
	if !created.Success || created.ID == "" {
		return "", fmt.Errorf("soundoftext: create rejected: %s", created.Message)
	}
	return created.ID, nil
}

// awaitReady polls the job status until it is done and returns the audio URL.
func (p *Provider) awaitReady(ctx context.Context, id string) (string, error) {
	statusURL := p.baseURL + "/sounds/" + id

	for attempt := 0; attempt < p.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("soundoftext: await sound %s: %w", id, ctx.Err())
		case <-time.After(p.pollInterval):
		}

		status, err := p.checkStatus(ctx, statusURL)
		if err != nil {
			// Transient failure; keep polling until the attempt budget runs out.
			continue
		}

		switch strings.ToLower(status.Status) {
		case "done":
			if status.Location == "" {
				return "", errors.New("soundoftext: done without audio location")
			}
			return status.Location, nil
		case "error":
			return "", fmt.Errorf("soundoftext: synthesis failed: %s", status.Message)
		}
		// "pending" / "processing": poll again.
	}
	return "", fmt.Errorf("soundoftext: sound %s not ready after %d polls", id, p.maxPolls)
}

// checkStatus performs one GET /sounds/{id} request.
func (p *Provider) checkStatus(ctx context.Context, statusURL string) (statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return statusResponse{}, fmt.Errorf("soundoftext: create status request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return statusResponse{}, fmt.Errorf("soundoftext: GET status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusResponse{}, fmt.Errorf("soundoftext: status returned %d", resp.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return statusResponse{}, fmt.Errorf("soundoftext: decode status: %w", err)
	}
	return status, nil
}

// download fetches the finished MP3.
func (p *Provider) download(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("soundoftext: create download request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("soundoftext: download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("soundoftext: download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("soundoftext: read audio body: %w", err)
	}
	return data, nil
}
