package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultLeonardoBaseURL = "https://cloud.leonardo.ai/api/rest/v1"

// Leonardo renders scene images through the Leonardo generation API. The API
// is asynchronous: a generation is submitted, then polled until complete.
type Leonardo struct {
	apiKey       string
	modelID      string
	baseURL      string
	client       httpDoer
	pollInterval time.Duration
}

// NewLeonardo builds the Leonardo provider. modelID may be empty, leaving
// the account default engine in charge.
func NewLeonardo(apiKey, modelID string, client httpDoer) *Leonardo {
	if client == nil {
		client = http.DefaultClient
	}
	return &Leonardo{
		apiKey:       apiKey,
		modelID:      modelID,
		baseURL:      defaultLeonardoBaseURL,
		client:       client,
		pollInterval: 2 * time.Second,
	}
}

// WithBaseURL redirects API calls, used by tests with httptest servers.
func (p *Leonardo) WithBaseURL(u string) *Leonardo {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *Leonardo) Name() string { return "leonardo" }

type leonardoSubmitRequest struct {
	Prompt    string `json:"prompt"`
	ModelID   string `json:"modelId,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	NumImages int    `json:"num_images"`
}

type leonardoSubmitResponse struct {
	Job struct {
		GenerationID string `json:"generationId"`
	} `json:"sdGenerationJob"`
}

type leonardoPollResponse struct {
	Generation struct {
		Status string `json:"status"`
		Images []struct {
			URL string `json:"url"`
		} `json:"generated_images"`
	} `json:"generations_by_pk"`
}

// Generate submits one generation and polls until the API reports COMPLETE,
// returning the first hosted image URL.
func (p *Leonardo) Generate(ctx context.Context, req ImageRequest) (ImageArtifact, error) {
	width, height := parseImageSize(req.Size)
	id, err := p.submit(ctx, req.Prompt, width, height)
	if err != nil {
		return ImageArtifact{}, err
	}

	interval := p.pollInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ImageArtifact{}, ctx.Err()
		case <-ticker.C:
		}
		status, url, err := p.poll(ctx, id)
		if err != nil {
			return ImageArtifact{}, err
		}
		switch status {
		case "COMPLETE":
			if url == "" {
				return ImageArtifact{}, Permanent(p.Name(), "image", fmt.Errorf("generation %s completed without images", id))
			}
			return ImageArtifact{URI: url}, nil
		case "FAILED":
			return ImageArtifact{}, Permanent(p.Name(), "image", fmt.Errorf("generation %s failed", id))
		}
	}
}

func (p *Leonardo) submit(ctx context.Context, prompt string, width, height int) (string, error) {
	body, err := json.Marshal(leonardoSubmitRequest{
		Prompt:    prompt,
		ModelID:   p.modelID,
		Width:     width,
		Height:    height,
		NumImages: 1,
	})
	if err != nil {
		return "", Permanent(p.Name(), "image", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/generations", bytes.NewReader(body))
	if err != nil {
		return "", Permanent(p.Name(), "image", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", asFailure(p.Name(), "image", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", FromStatus(p.Name(), "image", resp.StatusCode,
			fmt.Errorf("leonardo submit status %d", resp.StatusCode))
	}

	var decoded leonardoSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", Permanent(p.Name(), "image", err)
	}
	if decoded.Job.GenerationID == "" {
		return "", Permanent(p.Name(), "image", fmt.Errorf("leonardo submit returned no generation id"))
	}
	return decoded.Job.GenerationID, nil
}

func (p *Leonardo) poll(ctx context.Context, id string) (status, url string, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/generations/"+id, nil)
	if err != nil {
		return "", "", Permanent(p.Name(), "image", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", "", asFailure(p.Name(), "image", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", "", FromStatus(p.Name(), "image", resp.StatusCode,
			fmt.Errorf("leonardo poll status %d", resp.StatusCode))
	}

	var decoded leonardoPollResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", "", Permanent(p.Name(), "image", err)
	}
	if len(decoded.Generation.Images) > 0 {
		url = decoded.Generation.Images[0].URL
	}
	return decoded.Generation.Status, url, nil
}
