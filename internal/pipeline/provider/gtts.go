package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

const defaultGTTSBaseURL = "https://translate.google.com"

// gttsChunkLimit is the longest text the translate endpoint accepts per call.
const gttsChunkLimit = 180

// GTTS synthesizes narration from the free Google Translate TTS endpoint.
// It needs no API key, which makes it the default narration backend.
type GTTS struct {
	outputDir string
	baseURL   string
	client    httpDoer
}

// NewGTTS builds the translate-backed narration provider.
func NewGTTS(outputDir string, client httpDoer) *GTTS {
	if client == nil {
		client = http.DefaultClient
	}
	return &GTTS{
		outputDir: outputDir,
		baseURL:   defaultGTTSBaseURL,
		client:    client,
	}
}

// WithBaseURL redirects API calls, used by tests with httptest servers.
func (p *GTTS) WithBaseURL(u string) *GTTS {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *GTTS) Name() string { return "gtts" }

// Synthesize fetches MP3 fragments for each text chunk, concatenates them and
// writes the track under outputDir. MPEG frames are self-delimiting, so plain
// concatenation yields a playable file.
func (p *GTTS) Synthesize(ctx context.Context, req AudioRequest) (AudioArtifact, error) {
	lang := req.LanguageCode
	if lang == "" {
		lang = "en"
	}

	var combined []byte
	for i, chunk := range splitTTSChunks(req.Text, gttsChunkLimit) {
		raw, err := p.fetchChunk(ctx, chunk, lang, i)
		if err != nil {
			return AudioArtifact{}, err
		}
		combined = append(combined, raw...)
	}
	if len(combined) == 0 {
		return AudioArtifact{}, Permanent(p.Name(), "audio", fmt.Errorf("no audio produced for language %q", lang))
	}

	path, err := writeArtifactFile(p.outputDir, fmt.Sprintf("narration_%s.mp3", lang), combined)
	if err != nil {
		return AudioArtifact{}, Permanent(p.Name(), "audio", err)
	}
	return AudioArtifact{URI: path, DurationSeconds: EstimateSpeechSeconds(req.Text)}, nil
}

func (p *GTTS) fetchChunk(ctx context.Context, chunk, lang string, index int) ([]byte, error) {
	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("tl", lang)
	query.Set("q", chunk)
	query.Set("idx", fmt.Sprintf("%d", index))

	target := p.baseURL + "/translate_tts?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, Permanent(p.Name(), "audio", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, asFailure(p.Name(), "audio", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, FromStatus(p.Name(), "audio", resp.StatusCode,
			fmt.Errorf("translate tts status %d", resp.StatusCode))
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, asFailure(p.Name(), "audio", err)
	}
	return raw, nil
}

// splitTTSChunks breaks text into pieces no longer than limit runes,
// preferring sentence and then word boundaries.
func splitTTSChunks(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0
	for _, word := range strings.Fields(text) {
		wordLen := utf8.RuneCountInString(word)
		if currentLen > 0 && currentLen+1+wordLen > limit {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
