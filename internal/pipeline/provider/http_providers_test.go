package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStabilityWritesDecodedImage(t *testing.T) {
	payload := []byte("fake-png-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.URL.Path, "/v1/generation/")
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req stabilityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, 512, req.Width)
		require.Len(t, req.TextPrompts, 1)

		_ = json.NewEncoder(w).Encode(stabilityResponse{
			Artifacts: []struct {
				Base64 string `json:"base64"`
			}{{Base64: base64.StdEncoding.EncodeToString(payload)}},
		})
	}))
	defer server.Close()

	dir := t.TempDir()
	p := NewStability("test-key", "", dir, server.Client()).WithBaseURL(server.URL)

	artifact, err := p.Generate(context.Background(), ImageRequest{
		Prompt:     "a farmer at dawn",
		Size:       "512x512",
		SceneIndex: 1,
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(artifact.URI, "scene_2.png"))

	written, err := os.ReadFile(artifact.URI)
	require.NoError(t, err)
	require.Equal(t, payload, written)
}

func TestStabilityClassifiesServerErrorTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewStability("k", "", t.TempDir(), server.Client()).WithBaseURL(server.URL)
	_, err := p.Generate(context.Background(), ImageRequest{Prompt: "x"})

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ClassTransient, failure.Class)
}

func TestLeonardoSubmitsAndPollsToCompletion(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			_, _ = w.Write([]byte(`{"sdGenerationJob":{"generationId":"gen-1"}}`))
		case r.Method == http.MethodGet:
			require.Equal(t, "/generations/gen-1", r.URL.Path)
			polls++
			if polls < 2 {
				_, _ = w.Write([]byte(`{"generations_by_pk":{"status":"PENDING"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"generations_by_pk":{"status":"COMPLETE","generated_images":[{"url":"https://cdn.example/img.png"}]}}`))
		}
	}))
	defer server.Close()

	p := NewLeonardo("k", "", server.Client()).WithBaseURL(server.URL)
	p.pollInterval = 0

	artifact, err := p.Generate(context.Background(), ImageRequest{Prompt: "x", Size: "1024x1024"})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/img.png", artifact.URI)
	require.Equal(t, 2, polls)
}

func TestLeonardoFailedGenerationIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"sdGenerationJob":{"generationId":"gen-2"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"generations_by_pk":{"status":"FAILED"}}`))
	}))
	defer server.Close()

	p := NewLeonardo("k", "", server.Client()).WithBaseURL(server.URL)
	p.pollInterval = 0

	_, err := p.Generate(context.Background(), ImageRequest{Prompt: "x"})
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ClassPermanent, failure.Class)
}

func TestElevenLabsWritesNarration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/text-to-speech/voice-ta", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("xi-api-key"))
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	p := NewElevenLabs("secret", t.TempDir(), server.Client()).WithBaseURL(server.URL)
	artifact, err := p.Synthesize(context.Background(), AudioRequest{
		Text:         "ஒரு கதை",
		LanguageCode: "ta",
		VoiceID:      "voice-ta",
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(artifact.URI, "narration_ta.mp3"))
	require.Greater(t, artifact.DurationSeconds, 0.0)
}

func TestElevenLabsMissingVoiceIsPermanent(t *testing.T) {
	p := NewElevenLabs("secret", t.TempDir(), http.DefaultClient)
	_, err := p.Synthesize(context.Background(), AudioRequest{Text: "hi", LanguageCode: "en"})

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ClassPermanent, failure.Class)
}

func TestGTTSConcatenatesChunks(t *testing.T) {
	var chunks []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/translate_tts", r.URL.Path)
		require.Equal(t, "en", r.URL.Query().Get("tl"))
		chunks = append(chunks, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte("seg|"))
	}))
	defer server.Close()

	long := strings.Repeat("the farmer forgave his neighbor and found peace ", 10)
	p := NewGTTS(t.TempDir(), server.Client()).WithBaseURL(server.URL)

	artifact, err := p.Synthesize(context.Background(), AudioRequest{Text: long, LanguageCode: "en"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	written, err := os.ReadFile(artifact.URI)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("seg|", len(chunks)), string(written))
}

func TestSplitTTSChunksRespectsLimit(t *testing.T) {
	text := strings.Repeat("word ", 100)
	for _, chunk := range splitTTSChunks(text, 40) {
		require.LessOrEqual(t, len(chunk), 40)
	}
	require.Equal(t, []string{"short text"}, splitTTSChunks("short text", 180))
	require.Nil(t, splitTTSChunks("   ", 180))
}

func TestVideoAPIAssembles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req VideoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"/img/1.png"}, req.ImageURIs)
		require.Equal(t, 24, req.FPS)
		_, _ = w.Write([]byte(`{"uri":"/out/final.mp4"}`))
	}))
	defer server.Close()

	p := NewVideoAPI(server.URL, server.Client())
	artifact, err := p.Assemble(context.Background(), VideoRequest{
		ImageURIs: []string{"/img/1.png"},
		FPS:       24,
	})
	require.NoError(t, err)
	require.Equal(t, "/out/final.mp4", artifact.URI)
}

func TestVideoAPIWithoutEndpointIsPermanent(t *testing.T) {
	p := NewVideoAPI("", nil)
	_, err := p.Assemble(context.Background(), VideoRequest{})

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ClassPermanent, failure.Class)
}

func TestRenderPlaceholderImageIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	first, err := RenderPlaceholderImage(dir, 0, "a farmer at dawn")
	require.NoError(t, err)
	second, err := RenderPlaceholderImage(dir, 0, "a farmer at dawn")
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestParseImageSize(t *testing.T) {
	w, h := parseImageSize("512x768")
	require.Equal(t, 512, w)
	require.Equal(t, 768, h)

	w, h = parseImageSize("garbage")
	require.Equal(t, 1024, w)
	require.Equal(t, 1024, h)
}
