// Package provider contains the gateway over the external generation
// services. The gateway owns transport policy only: per-call timeouts, error
// classification and the single transient retry. Fallback artifacts and
// caching are the stage executors' concern.
package provider

import "context"

// TextRequest asks a text provider for one story completion.
type TextRequest struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// TextProvider produces prose completions.
type TextProvider interface {
	Name() string
	Complete(ctx context.Context, req TextRequest) (string, error)
}

// ImageRequest asks an image provider for one scene image.
type ImageRequest struct {
	Prompt string
	Model  string
	Size   string
	// SceneIndex names the output artifact for providers that write files.
	SceneIndex int
}

// ImageArtifact references a generated image by URI (hosted URL or local path).
type ImageArtifact struct {
	URI string
}

// ImageProvider renders scene images.
type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, req ImageRequest) (ImageArtifact, error)
}

// AudioRequest asks an audio provider for one narration track.
type AudioRequest struct {
	Text         string
	LanguageCode string
	VoiceID      string
}

// AudioArtifact references a narration track.
type AudioArtifact struct {
	URI             string
	DurationSeconds float64
}

// AudioProvider synthesizes narration audio.
type AudioProvider interface {
	Name() string
	Synthesize(ctx context.Context, req AudioRequest) (AudioArtifact, error)
}

// VideoRequest carries everything the assembler needs for the final cut.
type VideoRequest struct {
	ImageURIs       []string          `json:"image_uris"`
	AudioURIs       map[string]string `json:"audio_uris"`
	Subtitles       []string          `json:"subtitles"`
	SubtitleStyle   string            `json:"subtitle_style,omitempty"`
	FPS             int               `json:"fps"`
	DurationSeconds int               `json:"duration_seconds"`
	Transition      string            `json:"transition,omitempty"`
	EnableEffects   bool              `json:"enable_effects"`
	AddMusic        bool              `json:"add_music"`
	MusicPath       string            `json:"music_path,omitempty"`
}

// VideoArtifact references the assembled video.
type VideoArtifact struct {
	URI string
}

// VideoProvider assembles the final video from stage outputs.
type VideoProvider interface {
	Name() string
	Assemble(ctx context.Context, req VideoRequest) (VideoArtifact, error)
}
