package stage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/valluvarai/valluvarai/internal/config"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
	"github.com/valluvarai/valluvarai/internal/pipeline/cache"
	"github.com/valluvarai/valluvarai/internal/pipeline/provider"
)

// VideoExecutor assembles the final video from the image and narration
// outputs. There is no fallback for this stage: if the assembler fails, the
// stage fails.
type VideoExecutor struct {
	rt      *Runtime
	gateway *provider.Gateway
	video   provider.VideoProvider
	cfg     config.VideoGenerationConfig
}

// NewVideoExecutor wires the video assembly stage.
func NewVideoExecutor(rt *Runtime, gateway *provider.Gateway, video provider.VideoProvider, cfg config.VideoGenerationConfig) *VideoExecutor {
	return &VideoExecutor{rt: rt, gateway: gateway, video: video, cfg: cfg}
}

// Assemble joins the scene images and narration tracks into the final cut,
// burning the story's sentences in as subtitles.
func (e *VideoExecutor) Assemble(ctx context.Context, images artifact.ImageResult, narration artifact.NarrationResult, subtitles []string) (artifact.VideoResult, artifact.StageStatus, error) {
	if len(images.Images) == 0 {
		return artifact.VideoResult{}, failedStatus(artifact.StageVideo, "no images to assemble"),
			&Error{Stage: artifact.StageVideo, Reason: "no images to assemble", Err: errors.New("image stage produced no frames")}
	}

	imageURIs := make([]string, 0, len(images.Images))
	for _, ref := range images.Images {
		imageURIs = append(imageURIs, ref.URI)
	}
	audioURIs := make(map[string]string, len(narration.Audio))
	for _, ref := range narration.Audio {
		audioURIs[string(ref.Language)] = ref.URI
	}

	providerName := "none"
	if e.video != nil {
		providerName = e.video.Name()
	}
	key := cache.Fingerprint{
		Stage:    string(artifact.StageVideo),
		Provider: providerName,
		Input:    strings.Join(imageURIs, ",") + "|" + joinAudio(audioURIs),
	}.Key()

	payload, source, err := e.rt.fetch(ctx, artifact.StageVideo, key, func(ctx context.Context) ([]byte, error) {
		if e.video == nil {
			return nil, provider.Permanent("none", "video", errors.New("no video assembler configured"))
		}
		assembled, err := e.gateway.Video(ctx, e.video, provider.VideoRequest{
			ImageURIs:       imageURIs,
			AudioURIs:       audioURIs,
			Subtitles:       subtitles,
			SubtitleStyle:   e.cfg.SubtitleStyle,
			FPS:             e.cfg.DefaultFPS,
			DurationSeconds: e.cfg.DefaultDuration,
			Transition:      e.cfg.DefaultTransition,
			EnableEffects:   e.cfg.EnableEffects,
			AddMusic:        e.cfg.AddMusic,
			MusicPath:       e.cfg.MusicPath,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(artifact.VideoResult{URI: assembled.URI})
	})
	if err != nil {
		if ctx.Err() != nil {
			return artifact.VideoResult{}, artifact.StageStatus{}, ctx.Err()
		}
		return artifact.VideoResult{}, failedStatus(artifact.StageVideo, "video assembly failed"),
			&Error{Stage: artifact.StageVideo, Reason: "video assembly failed", Err: err}
	}

	var result artifact.VideoResult
	if uerr := json.Unmarshal(payload, &result); uerr != nil {
		return artifact.VideoResult{}, failedStatus(artifact.StageVideo, "corrupt cached video"),
			&Error{Stage: artifact.StageVideo, Reason: "corrupt cached video", Err: uerr}
	}
	result.Source = source
	return result, artifact.StageStatus{Stage: artifact.StageVideo, State: artifact.StageSucceeded}, nil
}

func joinAudio(audio map[string]string) string {
	parts := make([]string, 0, len(audio))
	for _, lang := range []string{"ta", "en"} {
		if uri, ok := audio[lang]; ok {
			parts = append(parts, lang+"="+uri)
		}
	}
	return strings.Join(parts, ",")
}
