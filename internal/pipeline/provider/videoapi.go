package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// VideoAPI assembles the final cut through a remote rendering service that
// accepts the stage outputs as JSON and returns the finished video's URI.
type VideoAPI struct {
	endpoint string
	client   httpDoer
}

// NewVideoAPI builds the remote assembler client.
func NewVideoAPI(endpoint string, client httpDoer) *VideoAPI {
	if client == nil {
		client = http.DefaultClient
	}
	return &VideoAPI{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
	}
}

func (p *VideoAPI) Name() string { return "videoapi" }

type videoAPIResponse struct {
	URI string `json:"uri"`
}

// Assemble posts the render request and returns the assembled video's URI.
func (p *VideoAPI) Assemble(ctx context.Context, req VideoRequest) (VideoArtifact, error) {
	if p.endpoint == "" {
		return VideoArtifact{}, Permanent(p.Name(), "video", fmt.Errorf("no assembler endpoint configured"))
	}
	body, err := json.Marshal(req)
	if err != nil {
		return VideoArtifact{}, Permanent(p.Name(), "video", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return VideoArtifact{}, Permanent(p.Name(), "video", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return VideoArtifact{}, asFailure(p.Name(), "video", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return VideoArtifact{}, FromStatus(p.Name(), "video", resp.StatusCode,
			fmt.Errorf("assembler status %d", resp.StatusCode))
	}

	var decoded videoAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return VideoArtifact{}, Permanent(p.Name(), "video", err)
	}
	if decoded.URI == "" {
		return VideoArtifact{}, Permanent(p.Name(), "video", fmt.Errorf("assembler returned no uri"))
	}
	return VideoArtifact{URI: decoded.URI}, nil
}
