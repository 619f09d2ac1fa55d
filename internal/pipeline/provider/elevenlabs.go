package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultElevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabs synthesizes narration through the text-to-speech API, writing
// the resulting MP3 under outputDir.
type ElevenLabs struct {
	apiKey    string
	outputDir string
	baseURL   string
	client    httpDoer
}

// NewElevenLabs builds the ElevenLabs narration provider.
func NewElevenLabs(apiKey, outputDir string, client httpDoer) *ElevenLabs {
	if client == nil {
		client = http.DefaultClient
	}
	return &ElevenLabs{
		apiKey:    apiKey,
		outputDir: outputDir,
		baseURL:   defaultElevenLabsBaseURL,
		client:    client,
	}
}

// WithBaseURL redirects API calls, used by tests with httptest servers.
func (p *ElevenLabs) WithBaseURL(u string) *ElevenLabs {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *ElevenLabs) Name() string { return "elevenlabs" }

type elevenLabsRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	VoiceSettings elevenLabsVoiceOpts `json:"voice_settings"`
}

type elevenLabsVoiceOpts struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize renders one narration track and returns the local MP3 path.
// Duration is estimated from the text since the API does not report it.
func (p *ElevenLabs) Synthesize(ctx context.Context, req AudioRequest) (AudioArtifact, error) {
	if req.VoiceID == "" {
		return AudioArtifact{}, Permanent(p.Name(), "audio", fmt.Errorf("no voice configured for language %q", req.LanguageCode))
	}
	body, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: elevenLabsVoiceOpts{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return AudioArtifact{}, Permanent(p.Name(), "audio", err)
	}

	url := p.baseURL + "/v1/text-to-speech/" + req.VoiceID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return AudioArtifact{}, Permanent(p.Name(), "audio", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return AudioArtifact{}, asFailure(p.Name(), "audio", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return AudioArtifact{}, FromStatus(p.Name(), "audio", resp.StatusCode,
			fmt.Errorf("elevenlabs api status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return AudioArtifact{}, asFailure(p.Name(), "audio", err)
	}
	if len(raw) == 0 {
		return AudioArtifact{}, Permanent(p.Name(), "audio", fmt.Errorf("elevenlabs returned empty audio"))
	}
	path, err := writeArtifactFile(p.outputDir, fmt.Sprintf("narration_%s.mp3", req.LanguageCode), raw)
	if err != nil {
		return AudioArtifact{}, Permanent(p.Name(), "audio", err)
	}
	return AudioArtifact{URI: path, DurationSeconds: EstimateSpeechSeconds(req.Text)}, nil
}

// EstimateSpeechSeconds approximates narration length at a conversational
// 150 words per minute, clamped to at least one second.
func EstimateSpeechSeconds(text string) float64 {
	words := len(strings.Fields(text))
	seconds := float64(words) / 150.0 * 60.0
	if seconds < 1 {
		return 1
	}
	return seconds
}
