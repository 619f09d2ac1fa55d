package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultStabilityBaseURL = "https://api.stability.ai"

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Stability renders scene images through the Stability text-to-image API and
// writes the decoded artifacts under outputDir.
type Stability struct {
	apiKey    string
	engine    string
	baseURL   string
	outputDir string
	client    httpDoer
}

// NewStability builds the Stability provider. An empty engine falls back to
// the SDXL default; baseURL and client are overridable for tests.
func NewStability(apiKey, engine, outputDir string, client httpDoer) *Stability {
	if engine == "" {
		engine = "stable-diffusion-xl-1024-v1-0"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Stability{
		apiKey:    apiKey,
		engine:    engine,
		baseURL:   defaultStabilityBaseURL,
		outputDir: outputDir,
		client:    client,
	}
}

// WithBaseURL redirects API calls, used by tests with httptest servers.
func (p *Stability) WithBaseURL(u string) *Stability {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *Stability) Name() string { return "stability" }

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Samples     int               `json:"samples"`
}

type stabilityPrompt struct {
	Text string `json:"text"`
}

type stabilityResponse struct {
	Artifacts []struct {
		Base64 string `json:"base64"`
	} `json:"artifacts"`
}

// Generate renders one image and returns the local file it was written to.
func (p *Stability) Generate(ctx context.Context, req ImageRequest) (ImageArtifact, error) {
	width, height := parseImageSize(req.Size)
	body, err := json.Marshal(stabilityRequest{
		TextPrompts: []stabilityPrompt{{Text: req.Prompt}},
		Width:       width,
		Height:      height,
		Samples:     1,
	})
	if err != nil {
		return ImageArtifact{}, Permanent(p.Name(), "image", err)
	}

	url := fmt.Sprintf("%s/v1/generation/%s/text-to-image", p.baseURL, p.engine)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ImageArtifact{}, Permanent(p.Name(), "image", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ImageArtifact{}, asFailure(p.Name(), "image", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return ImageArtifact{}, FromStatus(p.Name(), "image", resp.StatusCode,
			fmt.Errorf("stability api status %d", resp.StatusCode))
	}

	var decoded stabilityResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&decoded); err != nil {
		return ImageArtifact{}, Permanent(p.Name(), "image", err)
	}
	if len(decoded.Artifacts) == 0 {
		return ImageArtifact{}, Permanent(p.Name(), "image", fmt.Errorf("stability response carried no artifacts"))
	}

	raw, err := base64.StdEncoding.DecodeString(decoded.Artifacts[0].Base64)
	if err != nil {
		return ImageArtifact{}, Permanent(p.Name(), "image", err)
	}
	path, err := writeArtifactFile(p.outputDir, fmt.Sprintf("scene_%d.png", req.SceneIndex+1), raw)
	if err != nil {
		return ImageArtifact{}, Permanent(p.Name(), "image", err)
	}
	return ImageArtifact{URI: path}, nil
}

// parseImageSize splits "1024x1024" into dimensions, defaulting to 1024.
func parseImageSize(size string) (int, int) {
	parts := strings.SplitN(strings.ToLower(size), "x", 2)
	if len(parts) != 2 {
		return 1024, 1024
	}
	width, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	height, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 1024, 1024
	}
	return width, height
}

// writeArtifactFile persists raw provider output under dir, creating the
// directory on first use.
func writeArtifactFile(dir, name string, raw []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
