package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/valluvarai/valluvarai/internal/config"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
	"github.com/valluvarai/valluvarai/internal/pipeline/cache"
	"github.com/valluvarai/valluvarai/internal/pipeline/provider"
	"github.com/valluvarai/valluvarai/internal/prompts"
)

// ImageExecutor renders one image per scene, fanning the scenes out
// concurrently. A failed scene falls back to a generated placeholder frame
// when enabled, degrading the stage rather than failing it.
type ImageExecutor struct {
	rt      *Runtime
	gateway *provider.Gateway
	image   provider.ImageProvider
	prompts *prompts.Builder
	cfg     config.ImageGenerationConfig
}

// NewImageExecutor wires the scene image stage.
func NewImageExecutor(rt *Runtime, gateway *provider.Gateway, image provider.ImageProvider, builder *prompts.Builder, cfg config.ImageGenerationConfig) *ImageExecutor {
	return &ImageExecutor{rt: rt, gateway: gateway, image: image, prompts: builder, cfg: cfg}
}

type sceneOutcome struct {
	ref    artifact.ImageRef
	source artifact.Source
	err    error
}

// Generate renders the scene images for a story. Scene order in the result
// matches prompt order regardless of completion order.
func (e *ImageExecutor) Generate(ctx context.Context, story, verseEnglish string) (artifact.ImageResult, artifact.StageStatus, error) {
	scenePrompts := e.prompts.ScenePrompts(story, verseEnglish, e.cfg.SceneCount)
	if len(scenePrompts) == 0 {
		return artifact.ImageResult{}, failedStatus(artifact.StageImage, "no scene prompts derived"),
			&Error{Stage: artifact.StageImage, Reason: "no scene prompts derived", Err: errors.New("empty story")}
	}

	outcomes := make([]sceneOutcome, len(scenePrompts))
	var wg sync.WaitGroup
	for i, prompt := range scenePrompts {
		wg.Add(1)
		go func(idx int, prompt string) {
			defer wg.Done()
			outcomes[idx] = e.renderScene(ctx, idx, prompt)
		}(i, prompt)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return artifact.ImageResult{}, artifact.StageStatus{}, ctx.Err()
	}

	result := artifact.ImageResult{Source: artifact.SourceCache}
	placeholders := 0
	for _, outcome := range outcomes {
		if outcome.err != nil {
			return artifact.ImageResult{}, failedStatus(artifact.StageImage, "scene rendering failed"),
				&Error{Stage: artifact.StageImage, Reason: "scene rendering failed", Err: outcome.err}
		}
		if outcome.ref.Placeholder {
			placeholders++
			result.Source = artifact.SourcePlaceholder
		} else if outcome.source != artifact.SourceCache && result.Source == artifact.SourceCache {
			result.Source = artifact.SourceProvider
		}
		result.Images = append(result.Images, outcome.ref)
	}

	if placeholders > 0 {
		result.Source = artifact.SourcePlaceholder
		reason := fmt.Sprintf("%d of %d scenes used placeholder images", placeholders, len(outcomes))
		return result, artifact.StageStatus{Stage: artifact.StageImage, State: artifact.StageDegraded, Reason: reason}, nil
	}
	return result, artifact.StageStatus{Stage: artifact.StageImage, State: artifact.StageSucceeded}, nil
}

func (e *ImageExecutor) renderScene(ctx context.Context, idx int, prompt string) sceneOutcome {
	providerName := "none"
	if e.image != nil {
		providerName = e.image.Name()
	}
	key := cache.Fingerprint{
		Stage:    string(artifact.StageImage),
		Provider: providerName,
		Model:    e.cfg.Model,
		Input:    fmt.Sprintf("%s|scene=%d|size=%s", prompt, idx, e.cfg.ImageSize),
	}.Key()

	payload, source, err := e.rt.fetch(ctx, artifact.StageImage, key, func(ctx context.Context) ([]byte, error) {
		if e.image == nil {
			return nil, provider.Permanent("none", "image", errors.New("no image provider configured"))
		}
		generated, err := e.gateway.Image(ctx, e.image, provider.ImageRequest{
			Prompt:     prompt,
			Model:      e.cfg.Model,
			Size:       e.cfg.ImageSize,
			SceneIndex: idx,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(artifact.ImageRef{SceneIndex: idx, Prompt: prompt, URI: generated.URI})
	})
	if err == nil {
		var ref artifact.ImageRef
		if uerr := json.Unmarshal(payload, &ref); uerr != nil {
			return sceneOutcome{err: uerr}
		}
		return sceneOutcome{ref: ref, source: source}
	}
	if ctx.Err() != nil {
		return sceneOutcome{err: ctx.Err()}
	}

	if e.cfg.FallbackToPlaceholder {
		uri, perr := provider.RenderPlaceholderImage(e.cfg.OutputDir, idx, prompt)
		if perr == nil {
			return sceneOutcome{
				ref:    artifact.ImageRef{SceneIndex: idx, Prompt: prompt, URI: uri, Placeholder: true},
				source: artifact.SourcePlaceholder,
			}
		}
		err = errors.Join(err, perr)
	}
	return sceneOutcome{err: err}
}
